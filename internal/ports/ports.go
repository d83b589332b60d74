// Package ports declares the interfaces the CLI core is wired through.
package ports

import (
	"context"

	"github.com/louisfellows/canto/pkg/canto"
)

// Broker publishes commands and reads retained presence.
type Broker interface {
	ReplyTopic() string
	PublishCommand(ctx context.Context, nodeID string, cmd canto.CommandEnvelope) (canto.ReplyEnvelope, error)
	ListPresence(ctx context.Context) ([]canto.Presence, error)
}

// IDGen returns unique correlation IDs.
type IDGen interface {
	NewID() string
}
