// Package voicebridge exposes phrase resolution and playback control over
// the canto command protocol. It fronts a Mopidy server: spoken phrases
// come in as resolve.query commands and, once the host commits, a
// resolve.start queues the matched media and starts playback.
package voicebridge

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"go.uber.org/zap"

	"github.com/louisfellows/canto/internal/catalog"
	"github.com/louisfellows/canto/internal/mopidy"
	"github.com/louisfellows/canto/internal/phrase"
	"github.com/louisfellows/canto/internal/search"
	"github.com/louisfellows/canto/pkg/canto"
)

// Config configures the voice bridge module.
type Config struct {
	NodeID    string
	TopicBase string
	Name      string
}

// Bus is the broker connection the module publishes and subscribes on.
type Bus interface {
	Publish(topic string, qos byte, retained bool, payload []byte) error
	Subscribe(topic string, qos byte, handler paho.MessageHandler) error
	Unsubscribe(topic string) error
}

// Directory expands catalog entries and search hits into track URIs.
type Directory interface {
	Tracks(ctx context.Context, uri string) ([]string, error)
	PlaylistItems(ctx context.Context, uri string) ([]string, error)
}

// Player is the slice of the playback session the bridge drives.
type Player interface {
	Play(ctx context.Context, uris []string) error
	Add(ctx context.Context, uris []string) error
	Pause(ctx context.Context) error
	Resume(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	SetVolume(ctx context.Context, percent int) error
	Duck(ctx context.Context) error
	RestoreAfterDelay(ctx context.Context)
	CurrentTrack(ctx context.Context) (*mopidy.Track, error)
	AnnounceCurrent(ctx context.Context, speak func(*mopidy.Track)) error
}

// MaxQueuedTracks mirrors the session cap for reporting queue sizes.
const MaxQueuedTracks = 50

// Module bridges voice commands to the media server.
type Module struct {
	log      *zap.Logger
	client   Bus
	config   Config
	cmdTopic string

	matcher   *phrase.Matcher
	builder   *catalog.Builder
	resolver  *search.Resolver
	player    Player
	directory Directory
}

// NewModule creates a voice bridge module.
func NewModule(log *zap.Logger, client Bus, cfg Config, matcher *phrase.Matcher, builder *catalog.Builder, resolver *search.Resolver, player Player, directory Directory) (*Module, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if strings.TrimSpace(cfg.NodeID) == "" {
		return nil, errors.New("node_id required")
	}
	if strings.TrimSpace(cfg.TopicBase) == "" {
		cfg.TopicBase = canto.BaseTopic
	}
	if strings.TrimSpace(cfg.Name) == "" {
		cfg.Name = "Voice Bridge"
	}

	return &Module{
		log:       log,
		client:    client,
		config:    cfg,
		cmdTopic:  canto.TopicCommands(cfg.TopicBase, cfg.NodeID),
		matcher:   matcher,
		builder:   builder,
		resolver:  resolver,
		player:    player,
		directory: directory,
	}, nil
}

// Run starts the module. The initial catalog build happens here; a failed
// build leaves the matcher without an index, which means phrases are not
// claimed until a catalog.rebuild succeeds. The module never faults over
// an unreachable media server.
func (m *Module) Run(ctx context.Context) error {
	if err := m.publishPresence(); err != nil {
		return err
	}

	if ix, err := m.builder.Build(ctx); err != nil {
		m.log.Warn("initial catalog build failed", zap.Error(err))
	} else {
		m.matcher.SetIndex(ix)
		m.log.Info("catalog ready", zap.Int("entries", ix.Len()))
	}

	handler := func(_ paho.Client, msg paho.Message) {
		m.handleMessage(ctx, msg)
	}
	if err := m.client.Subscribe(m.cmdTopic, 1, handler); err != nil {
		return err
	}
	defer m.client.Unsubscribe(m.cmdTopic)

	<-ctx.Done()
	return nil
}

func (m *Module) publishPresence() error {
	presence := canto.Presence{
		NodeID: m.config.NodeID,
		Kind:   "voicebridge",
		Name:   m.config.Name,
		Caps: map[string]any{
			"resolve":  true,
			"playback": true,
			"volume":   true,
			"mode":     string(m.matcher.Mode()),
		},
		TS: time.Now().Unix(),
	}
	payload, err := json.Marshal(presence)
	if err != nil {
		return err
	}
	return m.client.Publish(canto.TopicPresence(m.config.TopicBase, m.config.NodeID), 1, true, payload)
}

func (m *Module) handleMessage(ctx context.Context, msg paho.Message) {
	var cmd canto.CommandEnvelope
	if err := json.Unmarshal(msg.Payload(), &cmd); err != nil {
		m.log.Warn("invalid command", zap.Error(err))
		return
	}
	reply := m.dispatch(ctx, cmd)
	if cmd.ReplyTo == "" {
		return
	}
	payload, err := json.Marshal(reply)
	if err != nil {
		m.log.Error("marshal reply", zap.Error(err))
		return
	}
	if err := m.client.Publish(cmd.ReplyTo, 1, false, payload); err != nil {
		m.log.Error("publish reply", zap.Error(err))
	}
}

func (m *Module) dispatch(ctx context.Context, cmd canto.CommandEnvelope) canto.ReplyEnvelope {
	reply := canto.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "ack",
		OK:   true,
		TS:   time.Now().Unix(),
	}
	switch cmd.Type {
	case "resolve.query":
		return m.resolveQuery(cmd, reply)
	case "resolve.start":
		return m.resolveStart(ctx, cmd, reply)
	case "resolve.add":
		return m.resolveAdd(ctx, cmd, reply)
	case "playback.pause":
		return m.simplePlayback(ctx, cmd, reply, m.player.Pause)
	case "playback.resume":
		return m.simplePlayback(ctx, cmd, reply, m.player.Resume)
	case "playback.next":
		return m.simplePlayback(ctx, cmd, reply, m.player.Next)
	case "playback.prev":
		return m.simplePlayback(ctx, cmd, reply, m.player.Previous)
	case "volume.set":
		return m.volumeSet(ctx, cmd, reply)
	case "volume.duck":
		return m.volumeDuck(ctx, cmd, reply)
	case "volume.restore":
		m.player.RestoreAfterDelay(ctx)
		return reply
	case "status.current":
		return m.statusCurrent(ctx, cmd, reply)
	case "status.announce":
		return m.statusAnnounce(ctx, cmd, reply)
	case "catalog.rebuild":
		return m.catalogRebuild(ctx, cmd, reply)
	default:
		return errorReply(cmd, "INVALID", "unsupported command")
	}
}

func (m *Module) resolveQuery(cmd canto.CommandEnvelope, reply canto.ReplyEnvelope) canto.ReplyEnvelope {
	var body canto.ResolveQueryBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, "INVALID", "invalid body")
	}
	if strings.TrimSpace(body.Phrase) == "" {
		return errorReply(cmd, "INVALID", "phrase required")
	}

	res, ok := m.matcher.Resolve(body.Phrase)
	if !ok {
		return withBody(reply, canto.ResolveQueryReply{Matched: false})
	}

	out := canto.ResolveQueryReply{
		Matched:    true,
		Phrase:     res.Phrase,
		Tier:       res.Tier.String(),
		Confidence: res.Match.Confidence,
		Data: canto.ResolveData{
			Artist: res.Hints.Artist,
			Album:  res.Hints.Album,
			Track:  res.Hints.Track,
		},
	}
	if res.Match.Found {
		out.Data.Name = res.Match.Name
		out.Data.Category = string(res.Match.Category)
		out.Data.Source = string(res.Match.Source)
	} else if res.Match.Category != "" {
		out.Data.Category = string(res.Match.Category)
	}
	return withBody(reply, out)
}

func (m *Module) resolveStart(ctx context.Context, cmd canto.CommandEnvelope, reply canto.ReplyEnvelope) canto.ReplyEnvelope {
	var body canto.ResolveStartBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, "INVALID", "invalid body")
	}

	uris, code, err := m.collectTracks(ctx, body.Data)
	if err != nil {
		return errorReply(cmd, code, err.Error())
	}
	if err := m.player.Play(ctx, uris); err != nil {
		return errorReply(cmd, "UNAVAILABLE", err.Error())
	}

	queued := len(uris)
	if queued > MaxQueuedTracks {
		queued = MaxQueuedTracks
	}
	return withBody(reply, canto.ResolveStartReply{Queued: queued})
}

// resolveAdd appends a descriptor's tracks to whatever is already
// queued instead of replacing it.
func (m *Module) resolveAdd(ctx context.Context, cmd canto.CommandEnvelope, reply canto.ReplyEnvelope) canto.ReplyEnvelope {
	var body canto.ResolveStartBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, "INVALID", "invalid body")
	}

	uris, code, err := m.collectTracks(ctx, body.Data)
	if err != nil {
		return errorReply(cmd, code, err.Error())
	}
	if err := m.player.Add(ctx, uris); err != nil {
		return errorReply(cmd, "UNAVAILABLE", err.Error())
	}

	queued := len(uris)
	if queued > MaxQueuedTracks {
		queued = MaxQueuedTracks
	}
	return withBody(reply, canto.ResolveStartReply{Queued: queued})
}

// collectTracks turns a resolve descriptor back into track URIs. Named
// descriptors go through the catalog index; hint-only descriptors go
// through the confirmed library search.
func (m *Module) collectTracks(ctx context.Context, data canto.ResolveData) ([]string, string, error) {
	if data.Name != "" {
		entry, code, err := m.lookupEntry(data)
		if err != nil {
			return nil, code, err
		}
		uris, err := m.expandEntry(ctx, entry)
		if err != nil {
			return nil, "UNAVAILABLE", err
		}
		return uris, "", nil
	}

	hints := phrase.Hints{Artist: data.Artist, Album: data.Album, Track: data.Track}
	if hints.Empty() {
		return nil, "INVALID", errors.New("descriptor has no name and no hints")
	}
	uri, ok, err := m.resolver.Resolve(ctx, hints)
	if err != nil {
		return nil, "UNAVAILABLE", err
	}
	if !ok {
		return nil, "NOT_FOUND", errors.New("no confident library match")
	}
	uris, err := m.expandURI(ctx, uri)
	if err != nil {
		return nil, "UNAVAILABLE", err
	}
	return uris, "", nil
}

func (m *Module) lookupEntry(data canto.ResolveData) (catalog.Entry, string, error) {
	ix := m.matcher.Index()
	if ix == nil {
		return catalog.Entry{}, "UNAVAILABLE", errors.New("no catalog available")
	}

	if data.Category == string(phrase.CategoryGeneric) || data.Category == "" {
		entry, ok := ix.LookupGeneric(data.Name)
		if !ok {
			return catalog.Entry{}, "NOT_FOUND", errors.New("catalog entry not found")
		}
		return entry, "", nil
	}

	cat, ok := phrase.Category(data.Category).CatalogCategory()
	if !ok {
		return catalog.Entry{}, "INVALID", errors.New("unknown category")
	}
	entry, ok := ix.Lookup(cat, catalog.Source(data.Source), data.Name)
	if !ok {
		return catalog.Entry{}, "NOT_FOUND", errors.New("catalog entry not found")
	}
	return entry, "", nil
}

func (m *Module) expandEntry(ctx context.Context, entry catalog.Entry) ([]string, error) {
	switch entry.Kind {
	case catalog.KindTrack, catalog.KindRadio:
		return []string{entry.URI}, nil
	case catalog.KindPlaylist:
		return m.directory.PlaylistItems(ctx, entry.URI)
	default:
		return m.expandURI(ctx, entry.URI)
	}
}

// expandURI resolves container URIs to their tracks; a URI that browses
// to nothing is assumed to already be a playable track.
func (m *Module) expandURI(ctx context.Context, uri string) ([]string, error) {
	uris, err := m.directory.Tracks(ctx, uri)
	if err != nil {
		return nil, err
	}
	if len(uris) == 0 {
		return []string{uri}, nil
	}
	return uris, nil
}

func (m *Module) simplePlayback(ctx context.Context, cmd canto.CommandEnvelope, reply canto.ReplyEnvelope, op func(context.Context) error) canto.ReplyEnvelope {
	if err := op(ctx); err != nil {
		return errorReply(cmd, "UNAVAILABLE", err.Error())
	}
	return reply
}

func (m *Module) volumeSet(ctx context.Context, cmd canto.CommandEnvelope, reply canto.ReplyEnvelope) canto.ReplyEnvelope {
	var body canto.VolumeSetBody
	if err := json.Unmarshal(cmd.Body, &body); err != nil {
		return errorReply(cmd, "INVALID", "invalid body")
	}
	if body.Percent < 0 || body.Percent > 100 {
		return errorReply(cmd, "INVALID", "percent must be 0-100")
	}
	if err := m.player.SetVolume(ctx, body.Percent); err != nil {
		return errorReply(cmd, "UNAVAILABLE", err.Error())
	}
	return reply
}

func (m *Module) volumeDuck(ctx context.Context, cmd canto.CommandEnvelope, reply canto.ReplyEnvelope) canto.ReplyEnvelope {
	if err := m.player.Duck(ctx); err != nil {
		return errorReply(cmd, "UNAVAILABLE", err.Error())
	}
	return reply
}

func (m *Module) statusCurrent(ctx context.Context, cmd canto.CommandEnvelope, reply canto.ReplyEnvelope) canto.ReplyEnvelope {
	track, err := m.player.CurrentTrack(ctx)
	if err != nil {
		return errorReply(cmd, "UNAVAILABLE", err.Error())
	}
	if track == nil {
		return withBody(reply, canto.StatusReply{Playing: false})
	}
	return withBody(reply, canto.StatusReply{Playing: true, Track: trackInfo(track)})
}

// statusAnnounce ducks playback while the now-playing event goes out so
// the host can speak the announcement over lowered music. The reply
// mirrors status.current.
func (m *Module) statusAnnounce(ctx context.Context, cmd canto.CommandEnvelope, reply canto.ReplyEnvelope) canto.ReplyEnvelope {
	var announced canto.StatusReply
	speak := func(track *mopidy.Track) {
		if track != nil {
			announced.Playing = true
			announced.Track = trackInfo(track)
		}
		m.publishNowPlaying(announced)
	}
	if err := m.player.AnnounceCurrent(ctx, speak); err != nil {
		return errorReply(cmd, "UNAVAILABLE", err.Error())
	}
	return withBody(reply, announced)
}

func (m *Module) publishNowPlaying(status canto.StatusReply) {
	evt := canto.NowPlayingEvent{
		Type:    "now_playing",
		Playing: status.Playing,
		Track:   status.Track,
		TS:      time.Now().Unix(),
	}
	payload, err := json.Marshal(evt)
	if err != nil {
		m.log.Error("marshal event", zap.Error(err))
		return
	}
	topic := canto.TopicEvents(m.config.TopicBase, m.config.NodeID)
	if err := m.client.Publish(topic, 1, false, payload); err != nil {
		m.log.Error("publish event", zap.Error(err))
	}
}

func trackInfo(track *mopidy.Track) *canto.TrackInfo {
	info := &canto.TrackInfo{
		Name:  track.Name,
		Album: track.Album.Name,
		URI:   track.URI,
	}
	if len(track.Artists) > 0 {
		info.Artist = track.Artists[0].Name
	}
	return info
}

func (m *Module) catalogRebuild(ctx context.Context, cmd canto.CommandEnvelope, reply canto.ReplyEnvelope) canto.ReplyEnvelope {
	ix, err := m.builder.Build(ctx)
	if err != nil {
		return errorReply(cmd, "UNAVAILABLE", err.Error())
	}
	m.matcher.SetIndex(ix)
	m.log.Info("catalog rebuilt", zap.Int("entries", ix.Len()))
	return withBody(reply, canto.CatalogRebuildReply{Entries: ix.Len()})
}

func withBody(reply canto.ReplyEnvelope, body any) canto.ReplyEnvelope {
	payload, err := json.Marshal(body)
	if err != nil {
		return canto.ReplyEnvelope{
			ID:   reply.ID,
			Type: "error",
			OK:   false,
			TS:   time.Now().Unix(),
			Err:  &canto.ReplyError{Code: "INTERNAL", Message: "marshal reply body"},
		}
	}
	reply.Body = payload
	return reply
}

func errorReply(cmd canto.CommandEnvelope, code string, message string) canto.ReplyEnvelope {
	return canto.ReplyEnvelope{
		ID:   cmd.ID,
		Type: "error",
		OK:   false,
		TS:   time.Now().Unix(),
		Err:  &canto.ReplyError{Code: code, Message: message},
	}
}
