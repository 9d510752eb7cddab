// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import "testing"

func TestNewRootCommand_HasExpectedBasics(t *testing.T) {
	cmd := NewRootCommand()

	if cmd.Use != "sitegraph" {
		t.Fatalf("expected Use to be 'sitegraph', got %q", cmd.Use)
	}
	if cmd.Short == "" {
		t.Fatalf("expected Short description to be non-empty")
	}

	for _, name := range []string{"build", "graph", "purge", "server"} {
		if _, _, err := cmd.Find([]string{name}); err != nil {
			t.Fatalf("expected to find %q subcommand, got error: %v", name, err)
		}
	}
}

func TestParsePositionalDims(t *testing.T) {
	cases := []struct {
		name       string
		args       []string
		wantHeight string
		wantBlade  string
		wantErr    bool
	}{
		{name: "height only", args: []string{"80"}, wantHeight: "80"},
		{name: "height and blade", args: []string{"80", "40"}, wantHeight: "80", wantBlade: "40"},
		{name: "math expression height", args: []string{"80+20"}, wantHeight: "80+20"},
		{name: "missing args", args: nil, wantErr: true},
		{name: "too many args", args: []string{"80", "40", "extra"}, wantErr: true},
		{name: "empty height", args: []string{""}, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			height, blade, err := parsePositionalDims(tc.args)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if height != tc.wantHeight {
				t.Fatalf("height = %q, want %q", height, tc.wantHeight)
			}
			if blade != tc.wantBlade {
				t.Fatalf("blade = %q, want %q", blade, tc.wantBlade)
			}
		})
	}
}

func TestCountTrue(t *testing.T) {
	if n := countTrue(true, false, true, false); n != 2 {
		t.Fatalf("countTrue = %d, want 2", n)
	}
	if n := countTrue(false, false, false); n != 0 {
		t.Fatalf("countTrue = %d, want 0", n)
	}
}

func TestNewBuildCommand_HasExpectedMetadata(t *testing.T) {
	cmd := newBuildCommand()
	if cmd.Use == "" {
		t.Fatalf("expected non-empty Use")
	}
	if _, err := cmd.Flags().GetBool("graphonly"); err != nil {
		t.Fatalf("expected --graphonly flag to be registered: %v", err)
	}
}

func TestNewPurgeCommand_HasExpectedFlags(t *testing.T) {
	cmd := newPurgeCommand()
	for _, flag := range []string{"all", "db", "downloads", "outputs"} {
		if cmd.Flags().Lookup(flag) == nil {
			t.Fatalf("expected --%s flag to be registered", flag)
		}
	}
}
