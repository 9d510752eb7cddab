// SPDX-License-Identifier: AGPL-3.0-or-later

// Package mathexpr resolves the per-branch arithmetic expressions
// described in spec.md §4.2 step 3: any string value under a branch that
// parses as an arithmetic expression over the branch's math context is
// evaluated and replaced by the number; failure to evaluate leaves the
// value unchanged.
package mathexpr

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/traefik/yaegi/interp"
)

// Context is the numeric variable set available to expression
// resolution for one branch (spec.md §3 MathContext): the two primary
// parameters plus any derived constants the branch defines (recovered
// from original_source/opensite/constants.py).
type Context struct {
	HeightToTip float64
	BladeRadius float64
	Derived     map[string]float64
}

// NewContext builds a Context with the standard derived constant
// tip_clearance = height_to_tip - blade_radius, matching the turbine
// geometry relationship enumerated in the original source's constants
// module.
func NewContext(heightToTip, bladeRadius float64) Context {
	return Context{
		HeightToTip: heightToTip,
		BladeRadius: bladeRadius,
		Derived: map[string]float64{
			"tip_clearance": heightToTip - bladeRadius,
		},
	}
}

// Resolve evaluates raw as an arithmetic expression over ctx. If raw is
// already a plain number it is parsed directly without invoking the
// interpreter. If raw does not parse as a number and does not evaluate
// as an expression, Resolve returns ok=false and the caller must leave
// the original value unchanged (spec.md §4.2 step 3).
func Resolve(raw string, ctx Context) (value float64, ok bool) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0, false
	}

	if v, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return v, true
	}

	v, err := eval(trimmed, ctx)
	if err != nil {
		return 0, false
	}
	return v, true
}

// eval interprets expr as a Go expression with ctx's variables
// pre-declared, using yaegi (the embeddable Go interpreter) rather than
// a hand-rolled arithmetic parser.
func eval(expr string, ctx Context) (float64, error) {
	i := interp.New(interp.Options{})

	var decls strings.Builder
	decls.WriteString("package main\n\n")
	fmt.Fprintf(&decls, "var height_to_tip float64 = %s\n", formatFloat(ctx.HeightToTip))
	fmt.Fprintf(&decls, "var blade_radius float64 = %s\n", formatFloat(ctx.BladeRadius))
	for name, v := range ctx.Derived {
		if !isIdentifier(name) {
			continue
		}
		fmt.Fprintf(&decls, "var %s float64 = %s\n", name, formatFloat(v))
	}

	if _, err := i.Eval(decls.String()); err != nil {
		return 0, fmt.Errorf("declaring math context: %w", err)
	}

	res, err := i.Eval(expr)
	if err != nil {
		return 0, fmt.Errorf("evaluating expression %q: %w", expr, err)
	}

	f, ok := toFloat(res.Interface())
	if !ok {
		return 0, fmt.Errorf("expression %q did not evaluate to a number", expr)
	}
	return f, nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	default:
		return 0, false
	}
}

func isIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for i, r := range s {
		switch {
		case r == '_':
		case r >= 'a' && r <= 'z':
		case r >= 'A' && r <= 'Z':
		case r >= '0' && r <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}
