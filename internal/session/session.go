// Package session drives playback on the remote media server and owns the
// volume ducking state used while voice interactions are in flight.
package session

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/louisfellows/canto/internal/adapters/clock"
	"github.com/louisfellows/canto/internal/mopidy"
)

// MaxQueuedTracks bounds a single queueing operation. Larger selections are
// sampled down so huge libraries do not swamp the tracklist.
const MaxQueuedTracks = 50

// DefaultRestoreDelay is how long to wait before undoing a duck.
const DefaultRestoreDelay = 2 * time.Second

// ErrNoTracks is returned when a play request resolves to nothing playable.
var ErrNoTracks = errors.New("session: no tracks to queue")

// Transport is the slice of the media client the session needs.
type Transport interface {
	ClearTracklist(ctx context.Context) error
	AddTracks(ctx context.Context, uris []string) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	SetVolume(ctx context.Context, percent int) error
	LowerVolume(ctx context.Context) error
	RestoreVolume(ctx context.Context) error
	CurrentTrack(ctx context.Context) (*mopidy.Track, error)
}

// Session serialises playback commands against one media server.
type Session struct {
	log          *zap.Logger
	transport    Transport
	clk          clock.Clock
	restoreDelay time.Duration
	rng          *rand.Rand

	mu     sync.Mutex
	ducked bool
	gen    uint64
}

// Option tweaks session construction.
type Option func(*Session)

// WithRestoreDelay overrides the duck restore delay.
func WithRestoreDelay(d time.Duration) Option {
	return func(s *Session) { s.restoreDelay = d }
}

// WithRand overrides the sampling source, mainly for tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Session) { s.rng = r }
}

// New creates a session over the given transport.
func New(log *zap.Logger, transport Transport, clk clock.Clock, opts ...Option) *Session {
	s := &Session{
		log:          log.Named("session"),
		transport:    transport,
		clk:          clk,
		restoreDelay: DefaultRestoreDelay,
		rng:          rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Play replaces the tracklist with the given URIs and starts playback. The
// selection is randomly sampled down to MaxQueuedTracks first. A pending
// duck is undone before playback starts so it never mutes the music; an
// explicit volume level is left alone.
func (s *Session) Play(ctx context.Context, uris []string) error {
	if len(uris) == 0 {
		return ErrNoTracks
	}
	queued := s.capTracks(uris)

	if err := s.transport.ClearTracklist(ctx); err != nil {
		return err
	}
	if err := s.transport.AddTracks(ctx, queued); err != nil {
		return err
	}
	if s.cancelDuck() {
		if err := s.transport.RestoreVolume(ctx); err != nil {
			return err
		}
	}
	s.log.Info("starting playback", zap.Int("tracks", len(queued)))
	return s.transport.Play(ctx)
}

// Add appends the given URIs to the current tracklist without clearing it
// and makes sure playback is running. The same sampling cap applies.
func (s *Session) Add(ctx context.Context, uris []string) error {
	if len(uris) == 0 {
		return ErrNoTracks
	}
	queued := s.capTracks(uris)

	if err := s.transport.AddTracks(ctx, queued); err != nil {
		return err
	}
	s.log.Info("appending to tracklist", zap.Int("tracks", len(queued)))
	return s.transport.Play(ctx)
}

func (s *Session) capTracks(uris []string) []string {
	out := make([]string, len(uris))
	copy(out, uris)
	if len(out) <= MaxQueuedTracks {
		return out
	}
	s.mu.Lock()
	s.rng.Shuffle(len(out), func(i, j int) {
		out[i], out[j] = out[j], out[i]
	})
	s.mu.Unlock()
	return out[:MaxQueuedTracks]
}

// Pause pauses playback.
func (s *Session) Pause(ctx context.Context) error {
	return s.transport.Pause(ctx)
}

// Resume resumes paused playback.
func (s *Session) Resume(ctx context.Context) error {
	return s.transport.Resume(ctx)
}

// Next skips to the next track.
func (s *Session) Next(ctx context.Context) error {
	return s.transport.Next(ctx)
}

// Previous skips to the previous track.
func (s *Session) Previous(ctx context.Context) error {
	return s.transport.Previous(ctx)
}

// SetVolume sets an absolute volume and cancels any pending duck restore so
// a stale timer cannot clobber the explicit level.
func (s *Session) SetVolume(ctx context.Context, percent int) error {
	s.cancelDuck()
	return s.transport.SetVolume(ctx, percent)
}

// Duck lowers the volume while the voice pipeline is listening. Calling it
// again while already ducked keeps the volume low and invalidates any
// restore that was scheduled by an earlier RestoreAfterDelay.
func (s *Session) Duck(ctx context.Context) error {
	s.mu.Lock()
	s.ducked = true
	s.gen++
	s.mu.Unlock()
	return s.transport.LowerVolume(ctx)
}

// RestoreAfterDelay schedules the volume to come back up after the restore
// delay. A Duck, SetVolume or Play that lands in the meantime invalidates
// the scheduled restore.
func (s *Session) RestoreAfterDelay(ctx context.Context) {
	s.mu.Lock()
	if !s.ducked {
		s.mu.Unlock()
		return
	}
	s.ducked = false
	s.gen++
	gen := s.gen
	s.mu.Unlock()

	go func() {
		select {
		case <-s.clk.After(s.restoreDelay):
		case <-ctx.Done():
			return
		}
		s.mu.Lock()
		stale := s.gen != gen
		s.mu.Unlock()
		if stale {
			return
		}
		if err := s.transport.RestoreVolume(ctx); err != nil {
			s.log.Warn("volume restore failed", zap.Error(err))
		}
	}()
}

// Ducked reports whether the volume is currently lowered.
func (s *Session) Ducked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ducked
}

// cancelDuck invalidates any pending restore and reports whether the
// session was ducked.
func (s *Session) cancelDuck() bool {
	s.mu.Lock()
	wasDucked := s.ducked
	s.ducked = false
	s.gen++
	s.mu.Unlock()
	return wasDucked
}

// CurrentTrack reports the playing track, nil when idle.
func (s *Session) CurrentTrack(ctx context.Context) (*mopidy.Track, error) {
	return s.transport.CurrentTrack(ctx)
}

// AnnounceCurrent ducks playback around the speak callback so a spoken
// now-playing announcement is audible, then schedules the volume restore.
// When nothing is playing the callback is invoked with nil and the volume
// is left alone.
func (s *Session) AnnounceCurrent(ctx context.Context, speak func(*mopidy.Track)) error {
	track, err := s.transport.CurrentTrack(ctx)
	if err != nil {
		return err
	}
	if track == nil {
		speak(nil)
		return nil
	}
	if err := s.Duck(ctx); err != nil {
		return err
	}
	speak(track)
	s.RestoreAfterDelay(ctx)
	return nil
}
