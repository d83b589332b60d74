package core

import "github.com/louisfellows/canto/pkg/canto"

// NodesResult holds a list of presence records.
type NodesResult struct {
	Nodes []canto.Presence
}

// ResolveResult reports the outcome of a phrase resolution.
type ResolveResult struct {
	NodeID string
	Reply  canto.ResolveQueryReply
}

// StartResult reports how many tracks a start queued.
type StartResult struct {
	NodeID string
	Reply  canto.ResolveStartReply
}

// StatusResult holds the currently playing track for a node.
type StatusResult struct {
	NodeID string
	Reply  canto.StatusReply
}

// RebuildResult summarises a catalog rebuild.
type RebuildResult struct {
	NodeID string
	Reply  canto.CatalogRebuildReply
}
