// SPDX-License-Identifier: AGPL-3.0-or-later

// Package graph is the in-memory node/graph data model: identity,
// lineage, status lifecycle, and clone (global_urn) semantics described
// in spec.md §3 and §4.1.
package graph

import "fmt"

// NodeType classifies a node's role in the graph (spec.md §3).
type NodeType string

const (
	NodeTypeSource      NodeType = "source"
	NodeTypeGroup       NodeType = "group"
	NodeTypeDownload    NodeType = "download"
	NodeTypeExtract     NodeType = "extract"
	NodeTypeConcatenate NodeType = "concatenate"
	NodeTypeRun         NodeType = "run"
	NodeTypeImport      NodeType = "import"
	NodeTypeProcess     NodeType = "process"
	NodeTypeOutput      NodeType = "output"
)

// Action is the closed enumeration of executable actions (spec.md §9:
// "prefer a closed enumeration over action kinds ... avoiding open class
// registration").
type Action string

const (
	ActionDownload    Action = "download"
	ActionUnzip       Action = "unzip"
	ActionConcatenate Action = "concatenate"
	ActionRun         Action = "run"
	ActionImport      Action = "import"
	ActionBuffer      Action = "buffer"
	ActionPreprocess  Action = "preprocess"
	ActionAmalgamate  Action = "amalgamate"
	ActionPostprocess Action = "postprocess"
	ActionClip        Action = "clip"
	ActionOutput      Action = "output"
)

// Pool classifies an Action into the scheduler's I/O or CPU pool
// (spec.md §4.3).
type Pool int

const (
	PoolIO Pool = iota
	PoolCPU
)

// PoolOf returns the pool an action is dispatched to.
func PoolOf(a Action) Pool {
	switch a {
	case ActionDownload, ActionUnzip, ActionConcatenate:
		return PoolIO
	default:
		return PoolCPU
	}
}

// Status is a node's lifecycle state (spec.md §3). Terminal states are
// Processed, Failed, Skipped.
type Status string

const (
	StatusPending   Status = "pending"
	StatusProcessed Status = "processed"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
)

// IsTerminal reports whether s is one of the terminal statuses.
func (s Status) IsTerminal() bool {
	return s == StatusProcessed || s == StatusFailed || s == StatusSkipped
}

// CustomProperties holds the recognized custom-property keys from
// spec.md §3, plus any unrecognized pass-through keys.
type CustomProperties struct {
	Hash          string
	HeightToTip   float64
	BladeRadius   float64
	BufferValue   float64
	Clip          string
	Children      []string // amalgamate input output-handles
	OSM           string
	YML           string
	Parent        string
	Snapgrid      bool
	Extra         map[string]string
}

// Node is a single unit of work in the build graph (spec.md §3).
type Node struct {
	URN       int
	GlobalURN int

	Name   string
	Title  string

	NodeType NodeType
	Action   Action
	Format   string

	Input  string
	Output string

	Custom CustomProperties

	Status Status

	Children []*Node
}

// NewNode constructs a Node with a fresh identity. GlobalURN defaults to
// URN (i.e. the node is not a clone) unless explicitly overridden with
// SetGlobalURN.
func NewNode(urn int, name string, nodeType NodeType) *Node {
	return &Node{
		URN:       urn,
		GlobalURN: urn,
		Name:      name,
		NodeType:  nodeType,
		Status:    StatusPending,
		Custom:    CustomProperties{Extra: map[string]string{}},
	}
}

// SetGlobalURN marks n as a clone sharing physical work with every other
// node carrying the same global URN.
func (n *Node) SetGlobalURN(g int) {
	n.GlobalURN = g
}

// IsReady reports whether every child of n has completed successfully
// and n itself is not already terminal (spec.md §4.3).
func (n *Node) IsReady() bool {
	if n.Status.IsTerminal() {
		return false
	}
	for _, c := range n.Children {
		if c.Status != StatusProcessed {
			return false
		}
	}
	return true
}

func (n *Node) String() string {
	return fmt.Sprintf("Node{urn=%d global=%d name=%q action=%s status=%s}",
		n.URN, n.GlobalURN, n.Name, n.Action, n.Status)
}
