// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server implements the long-running HTTP listener mode
// (spec.md §4.6 "server mode (a long-running HTTP listener serving
// graph introspection and file downloads; treated as an external
// collaborator for this spec's purposes)"). Only the thin surface this
// spec names is implemented: graph introspection and output-file
// downloads, gated by the config-provided server secret.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"sitegraph/internal/graph"
	"sitegraph/internal/logging"
)

// Server serves graph introspection and output-file downloads.
type Server struct {
	addr      string
	secret    string
	outputDir string
	graph     *graph.Graph
	log       logging.Logger
	srv       *http.Server
}

// New constructs a Server. g may be nil until a build has run; requests
// to /graph before then return 503.
func New(addr, secret, outputDir string, g *graph.Graph, log logging.Logger) *Server {
	s := &Server{addr: addr, secret: secret, outputDir: outputDir, graph: g, log: log}

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/graph", s.requireSecret(s.handleGraph))
	mux.HandleFunc("/files/", s.requireSecret(s.handleFile))

	s.srv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// SetGraph updates the graph snapshot served at /graph, called once a
// build has completed.
func (s *Server) SetGraph(g *graph.Graph) {
	s.graph = g
}

// ListenAndServe blocks until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errCh := make(chan error, 1)
	go func() {
		s.log.Info("server listening", logging.F("addr", s.addr))
		errCh <- s.srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return s.srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}

func (s *Server) requireSecret(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.secret != "" && r.Header.Get("Authorization") != "Bearer "+s.secret {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

type nodeView struct {
	URN       int    `json:"urn"`
	GlobalURN int    `json:"global_urn"`
	Name      string `json:"name"`
	Action    string `json:"action"`
	Status    string `json:"status"`
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	if s.graph == nil {
		http.Error(w, "no graph available yet", http.StatusServiceUnavailable)
		return
	}
	nodes := s.graph.Nodes()
	views := make([]nodeView, len(nodes))
	for i, n := range nodes {
		views[i] = nodeView{URN: n.URN, GlobalURN: n.GlobalURN, Name: n.Name, Action: string(n.Action), Status: string(n.Status)}
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(views)
}

func (s *Server) handleFile(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/files/")
	if name == "" || strings.Contains(name, "..") {
		http.Error(w, "invalid file name", http.StatusBadRequest)
		return
	}
	path := filepath.Join(s.outputDir, name)
	if !strings.HasPrefix(path, filepath.Clean(s.outputDir)+string(filepath.Separator)) {
		http.Error(w, "invalid file name", http.StatusBadRequest)
		return
	}
	http.ServeFile(w, r, path)
}
