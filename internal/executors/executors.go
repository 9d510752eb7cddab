// SPDX-License-Identifier: AGPL-3.0-or-later

// Package executors implements the per-action workers dispatched by the
// scheduler: download, extract, concatenate, run, import, buffer,
// preprocess, amalgamate, postprocess, clip, and output (spec.md §4.4,
// §9). Dispatch is a closed table keyed by graph.Action rather than an
// open provider-registration pattern (spec.md §9 "Dynamic dispatch on
// action").
package executors

import (
	"fmt"

	"sitegraph/internal/config"
	"sitegraph/internal/execrunner"
	"sitegraph/internal/graph"
	"sitegraph/internal/logging"
	"sitegraph/internal/postgis"
	"sitegraph/internal/registry"
	"sitegraph/internal/scheduler"
)

// Deps bundles everything an executor needs to act on a node.
type Deps struct {
	Config    *config.Config
	Pool      *postgis.Pool
	Registry  *registry.Registry
	Shared    *graph.SharedOutputs
	Runner    execrunner.Runner
	Log       logging.Logger
	Overwrite bool
}

// HedgerowExceptions names source tables that must be buffered as lines
// (boundary-then-buffer) rather than by area, even though their
// geometry type is polygon (spec.md §4.4 "Buffer", §8 scenario 2).
var HedgerowExceptions = map[string]bool{
	"hedgerows--xx": true,
}

// Dispatcher is the closed action -> executor table used by the
// scheduler (spec.md §9). Adding a new action requires a new case here
// and a new variant in graph.Action; there is no open registration path.
type Dispatcher struct {
	deps Deps
}

// NewDispatcher builds the fixed dispatch table.
func NewDispatcher(deps Deps) *Dispatcher {
	return &Dispatcher{deps: deps}
}

// ExecutorFor implements scheduler.Dispatcher.
func (d *Dispatcher) ExecutorFor(a graph.Action) (scheduler.Executor, bool) {
	switch a {
	case graph.ActionDownload:
		return &DownloadExecutor{Deps: d.deps}, true
	case graph.ActionUnzip:
		return &ExtractExecutor{Deps: d.deps}, true
	case graph.ActionConcatenate:
		return &ConcatenateExecutor{Deps: d.deps}, true
	case graph.ActionRun:
		return &RunExecutor{Deps: d.deps}, true
	case graph.ActionImport:
		return &ImportExecutor{Deps: d.deps}, true
	case graph.ActionBuffer:
		return &BufferExecutor{Deps: d.deps}, true
	case graph.ActionPreprocess:
		return &PreprocessExecutor{Deps: d.deps}, true
	case graph.ActionAmalgamate:
		return &AmalgamateExecutor{Deps: d.deps}, true
	case graph.ActionPostprocess:
		return &PostprocessExecutor{Deps: d.deps}, true
	case graph.ActionClip:
		return &ClipExecutor{Deps: d.deps}, true
	case graph.ActionOutput:
		return &OutputExecutor{Deps: d.deps}, true
	default:
		return nil, false
	}
}

func outputTableName(prefix, hash string) string {
	return fmt.Sprintf("%s%s_%s", postgis.TablePrefix, prefix, hash)
}
