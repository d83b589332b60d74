package core

import (
	"context"
	"testing"

	"github.com/louisfellows/canto/pkg/canto"
)

type fakePresence struct {
	presence []canto.Presence
}

func (f fakePresence) ReplyTopic() string { return "" }
func (f fakePresence) PublishCommand(ctx context.Context, nodeID string, cmd canto.CommandEnvelope) (canto.ReplyEnvelope, error) {
	return canto.ReplyEnvelope{}, nil
}
func (f fakePresence) ListPresence(ctx context.Context) ([]canto.Presence, error) {
	return f.presence, nil
}

func TestResolverAlias(t *testing.T) {
	presence := []canto.Presence{{NodeID: "canto:bridge:one", Kind: "voicebridge", Name: "Living Room"}}
	resolver := Resolver{
		Presence: fakePresence{presence: presence},
		Config: Config{
			Aliases: map[string]string{"livingroom": "canto:bridge:one"},
		},
	}
	got, err := resolver.ResolveBridge(context.Background(), "livingroom")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.NodeID != "canto:bridge:one" {
		t.Fatalf("expected alias resolution")
	}
}

func TestResolverSingleBridgeDefault(t *testing.T) {
	presence := []canto.Presence{
		{NodeID: "canto:bridge:one", Kind: "voicebridge", Name: "Living Room"},
		{NodeID: "canto:other:two", Kind: "other", Name: "Not A Bridge"},
	}
	resolver := Resolver{Presence: fakePresence{presence: presence}}
	got, err := resolver.ResolveBridge(context.Background(), "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.NodeID != "canto:bridge:one" {
		t.Fatalf("expected the only bridge, got %s", got.NodeID)
	}
}

func TestResolverNoSelectorMultipleBridges(t *testing.T) {
	presence := []canto.Presence{
		{NodeID: "canto:bridge:one", Kind: "voicebridge", Name: "Living Room"},
		{NodeID: "canto:bridge:two", Kind: "voicebridge", Name: "Kitchen"},
	}
	resolver := Resolver{Presence: fakePresence{presence: presence}}
	_, err := resolver.ResolveBridge(context.Background(), "")
	if ExitCode(err) != ExitUsage {
		t.Fatalf("expected usage error, got %v", err)
	}
}

func TestResolverDefaultNode(t *testing.T) {
	presence := []canto.Presence{
		{NodeID: "canto:bridge:one", Kind: "voicebridge", Name: "Living Room"},
		{NodeID: "canto:bridge:two", Kind: "voicebridge", Name: "Kitchen"},
	}
	resolver := Resolver{
		Presence: fakePresence{presence: presence},
		Config:   Config{Node: "Kitchen"},
	}
	got, err := resolver.ResolveBridge(context.Background(), "")
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got.NodeID != "canto:bridge:two" {
		t.Fatalf("expected configured default node, got %s", got.NodeID)
	}
}

func TestResolverAmbiguous(t *testing.T) {
	presence := []canto.Presence{
		{NodeID: "canto:bridge:one", Kind: "voicebridge", Name: "Living Room"},
		{NodeID: "canto:bridge:two", Kind: "voicebridge", Name: "Living Room"},
	}
	resolver := Resolver{Presence: fakePresence{presence: presence}}
	_, err := resolver.ResolveBridge(context.Background(), "Living Room")
	if err == nil {
		t.Fatalf("expected ambiguous error")
	}
}

func TestResolverNotFound(t *testing.T) {
	resolver := Resolver{Presence: fakePresence{}}
	_, err := resolver.ResolveBridge(context.Background(), "garage")
	if ExitCode(err) != ExitNotFound {
		t.Fatalf("expected not-found error, got %v", err)
	}
}
