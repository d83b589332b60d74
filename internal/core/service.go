// Package core implements the CLI use cases over the command protocol.
package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/louisfellows/canto/internal/adapters/clock"
	"github.com/louisfellows/canto/internal/ports"
	"github.com/louisfellows/canto/pkg/canto"
)

// Service orchestrates canto CLI use cases.
type Service struct {
	Broker   ports.Broker
	Resolver Resolver
	Clock    clock.Clock
	IDGen    ports.IDGen
	Config   Config
}

// ListNodes returns presence entries, optionally filtered by kind.
func (s Service) ListNodes(ctx context.Context, kind string) (NodesResult, error) {
	nodes, err := s.Broker.ListPresence(ctx)
	if err != nil {
		return NodesResult{}, WrapError(ExitRuntime, "list nodes", err)
	}
	if kind != "" {
		filtered := make([]canto.Presence, 0, len(nodes))
		for _, node := range nodes {
			if node.Kind == kind {
				filtered = append(filtered, node)
			}
		}
		nodes = filtered
	}
	return NodesResult{Nodes: nodes}, nil
}

// Resolve asks a bridge to match a spoken phrase.
func (s Service) Resolve(ctx context.Context, selector string, phrase string) (ResolveResult, error) {
	bridge, err := s.Resolver.ResolveBridge(ctx, selector)
	if err != nil {
		return ResolveResult{}, err
	}
	var reply canto.ResolveQueryReply
	if err := s.request(ctx, bridge.NodeID, "resolve.query", canto.ResolveQueryBody{Phrase: phrase}, &reply); err != nil {
		return ResolveResult{}, err
	}
	return ResolveResult{NodeID: bridge.NodeID, Reply: reply}, nil
}

// Start queues and plays the media described by a resolve descriptor.
func (s Service) Start(ctx context.Context, selector string, data canto.ResolveData) (StartResult, error) {
	bridge, err := s.Resolver.ResolveBridge(ctx, selector)
	if err != nil {
		return StartResult{}, err
	}
	var reply canto.ResolveStartReply
	if err := s.request(ctx, bridge.NodeID, "resolve.start", canto.ResolveStartBody{Data: data}, &reply); err != nil {
		return StartResult{}, err
	}
	return StartResult{NodeID: bridge.NodeID, Reply: reply}, nil
}

// Add appends the media described by a resolve descriptor to the queue
// without replacing what is already playing.
func (s Service) Add(ctx context.Context, selector string, data canto.ResolveData) (StartResult, error) {
	bridge, err := s.Resolver.ResolveBridge(ctx, selector)
	if err != nil {
		return StartResult{}, err
	}
	var reply canto.ResolveStartReply
	if err := s.request(ctx, bridge.NodeID, "resolve.add", canto.ResolveStartBody{Data: data}, &reply); err != nil {
		return StartResult{}, err
	}
	return StartResult{NodeID: bridge.NodeID, Reply: reply}, nil
}

// PlaybackPause sends playback.pause.
func (s Service) PlaybackPause(ctx context.Context, selector string) error {
	return s.simpleCommand(ctx, selector, "playback.pause")
}

// PlaybackResume sends playback.resume.
func (s Service) PlaybackResume(ctx context.Context, selector string) error {
	return s.simpleCommand(ctx, selector, "playback.resume")
}

// PlaybackNext sends playback.next.
func (s Service) PlaybackNext(ctx context.Context, selector string) error {
	return s.simpleCommand(ctx, selector, "playback.next")
}

// PlaybackPrev sends playback.prev.
func (s Service) PlaybackPrev(ctx context.Context, selector string) error {
	return s.simpleCommand(ctx, selector, "playback.prev")
}

// SetVolume sets an absolute volume percentage.
func (s Service) SetVolume(ctx context.Context, selector string, percent int) error {
	if percent < 0 || percent > 100 {
		return &CLIError{Code: ExitUsage, Msg: "volume must be 0-100"}
	}
	bridge, err := s.Resolver.ResolveBridge(ctx, selector)
	if err != nil {
		return err
	}
	return s.request(ctx, bridge.NodeID, "volume.set", canto.VolumeSetBody{Percent: percent}, nil)
}

// Duck lowers the volume for a voice interaction.
func (s Service) Duck(ctx context.Context, selector string) error {
	return s.simpleCommand(ctx, selector, "volume.duck")
}

// RestoreVolume schedules the ducked volume to come back up.
func (s Service) RestoreVolume(ctx context.Context, selector string) error {
	return s.simpleCommand(ctx, selector, "volume.restore")
}

// Status reports what is currently playing on a node.
func (s Service) Status(ctx context.Context, selector string) (StatusResult, error) {
	bridge, err := s.Resolver.ResolveBridge(ctx, selector)
	if err != nil {
		return StatusResult{}, err
	}
	var reply canto.StatusReply
	if err := s.request(ctx, bridge.NodeID, "status.current", struct{}{}, &reply); err != nil {
		return StatusResult{}, err
	}
	return StatusResult{NodeID: bridge.NodeID, Reply: reply}, nil
}

// Announce asks a node to duck playback and emit a now-playing event the
// host can speak over.
func (s Service) Announce(ctx context.Context, selector string) (StatusResult, error) {
	bridge, err := s.Resolver.ResolveBridge(ctx, selector)
	if err != nil {
		return StatusResult{}, err
	}
	var reply canto.StatusReply
	if err := s.request(ctx, bridge.NodeID, "status.announce", struct{}{}, &reply); err != nil {
		return StatusResult{}, err
	}
	return StatusResult{NodeID: bridge.NodeID, Reply: reply}, nil
}

// RebuildCatalog asks a bridge to rebuild its media catalog.
func (s Service) RebuildCatalog(ctx context.Context, selector string) (RebuildResult, error) {
	bridge, err := s.Resolver.ResolveBridge(ctx, selector)
	if err != nil {
		return RebuildResult{}, err
	}
	var reply canto.CatalogRebuildReply
	if err := s.request(ctx, bridge.NodeID, "catalog.rebuild", struct{}{}, &reply); err != nil {
		return RebuildResult{}, err
	}
	return RebuildResult{NodeID: bridge.NodeID, Reply: reply}, nil
}

func (s Service) simpleCommand(ctx context.Context, selector string, cmdType string) error {
	bridge, err := s.Resolver.ResolveBridge(ctx, selector)
	if err != nil {
		return err
	}
	return s.request(ctx, bridge.NodeID, cmdType, struct{}{}, nil)
}

// request publishes one command and decodes the reply body into out when
// out is non-nil.
func (s Service) request(ctx context.Context, nodeID string, cmdType string, body any, out any) error {
	cmd, err := canto.NewCommand(cmdType, body)
	if err != nil {
		return WrapError(ExitRuntime, "build command", err)
	}
	cmd = s.decorateCommand(cmd)

	reply, err := s.Broker.PublishCommand(ctx, nodeID, cmd)
	if err != nil {
		return WrapError(ExitRuntime, "publish command", err)
	}
	if reply.Err != nil {
		return ErrorForReplyCode(reply.Err.Code, reply.Err.Message)
	}
	if out != nil && len(reply.Body) > 0 {
		if err := json.Unmarshal(reply.Body, out); err != nil {
			return WrapError(ExitRuntime, "decode reply", err)
		}
	}
	return nil
}

func (s Service) decorateCommand(cmd canto.CommandEnvelope) canto.CommandEnvelope {
	cmd.ID = s.IDGen.NewID()
	cmd.TS = s.now().Unix()
	cmd.From = s.Config.Identity
	cmd.ReplyTo = s.Broker.ReplyTopic()
	return cmd
}

func (s Service) now() time.Time {
	if s.Clock == nil {
		return time.Now()
	}
	return s.Clock.Now()
}
