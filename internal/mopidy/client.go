// Package mopidy is a JSON-RPC 2.0 client for a remote Mopidy server.
package mopidy

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"
)

const apiPath = "/mopidy/rpc"

// ErrNoTracks indicates AddTracks was called with an empty list.
var ErrNoTracks = errors.New("no track uris to add")

// Config configures the Mopidy client.
type Config struct {
	BaseURL       string
	Timeout       time.Duration
	SearchTimeout time.Duration
	CloudScheme   string
	VolumeLow     int
	VolumeHigh    int
}

// Client issues JSON-RPC requests to a Mopidy server.
type Client struct {
	log     *zap.Logger
	baseURL string
	http    *http.Client
	config  Config
}

// NewClient creates a Mopidy JSON-RPC client.
func NewClient(log *zap.Logger, cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = "http://localhost:6680"
	}
	if !strings.Contains(base, "://") {
		base = "http://" + base
	}
	parsed, err := url.Parse(base)
	if err != nil {
		return nil, err
	}
	if !strings.HasSuffix(parsed.Path, apiPath) {
		parsed.Path = path.Join(parsed.Path, apiPath)
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.SearchTimeout == 0 {
		cfg.SearchTimeout = 45 * time.Second
	}
	if cfg.CloudScheme == "" {
		cfg.CloudScheme = "gmusic"
	}
	if cfg.VolumeLow == 0 {
		cfg.VolumeLow = 5
	}
	if cfg.VolumeHigh == 0 {
		cfg.VolumeHigh = 15
	}
	if log == nil {
		log = zap.NewNop()
	}

	return &Client{
		log:     log,
		baseURL: parsed.String(),
		http:    &http.Client{},
		config:  cfg,
	}, nil
}

// Ref is a browsable library reference.
type Ref struct {
	Name string `json:"name"`
	URI  string `json:"uri"`
	Type string `json:"type"`
}

// Artist names a track or album artist.
type Artist struct {
	Name string `json:"name"`
	URI  string `json:"uri,omitempty"`
}

// Album names an album and its artists.
type Album struct {
	Name    string   `json:"name"`
	URI     string   `json:"uri,omitempty"`
	Artists []Artist `json:"artists,omitempty"`
}

// Track describes a playable track.
type Track struct {
	Name    string   `json:"name"`
	URI     string   `json:"uri"`
	Artists []Artist `json:"artists,omitempty"`
	Album   Album    `json:"album,omitempty"`
}

// SearchResult holds the ranked buckets returned by core.library.search.
type SearchResult struct {
	URI     string   `json:"uri,omitempty"`
	Tracks  []Track  `json:"tracks,omitempty"`
	Albums  []Album  `json:"albums,omitempty"`
	Artists []Artist `json:"artists,omitempty"`
}

// Query carries the entity hints for a library search.
type Query struct {
	Artist string
	Album  string
	Track  string
}

// Empty reports whether no hint is present.
func (q Query) Empty() bool {
	return q.Artist == "" && q.Album == "" && q.Track == ""
}

// Search queries the cloud source for the given hints. An empty query is
// a no-op. A response without a result key yields an empty result, not an
// error: an empty library is a valid state.
func (c *Client) Search(ctx context.Context, q Query) (SearchResult, error) {
	if q.Empty() {
		return SearchResult{}, nil
	}

	query := map[string][]string{}
	if q.Artist != "" {
		query["artist"] = []string{q.Artist}
	}
	if q.Album != "" {
		query["album"] = []string{q.Album}
	}
	if q.Track != "" {
		query["track"] = []string{q.Track}
	}
	params := map[string]any{
		"uris":  []string{c.config.CloudScheme + ":"},
		"query": query,
	}

	raw, err := c.rpc(ctx, "core.library.search", params, c.config.SearchTimeout)
	if err != nil {
		return SearchResult{}, err
	}
	if len(raw) == 0 {
		return SearchResult{}, nil
	}
	var results []SearchResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return SearchResult{}, fmt.Errorf("decode search result: %w", err)
	}
	if len(results) == 0 {
		return SearchResult{}, nil
	}
	return results[0], nil
}

// FindExact looks up exact library entries for the given URIs.
func (c *Client) FindExact(ctx context.Context, uris []string) ([]SearchResult, error) {
	raw, err := c.rpc(ctx, "core.library.find_exact", map[string]any{"uris": uris}, c.config.Timeout)
	if err != nil {
		return nil, err
	}
	var results []SearchResult
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &results); err != nil {
			return nil, fmt.Errorf("decode find_exact result: %w", err)
		}
	}
	return results, nil
}

// Browse lists the immediate children of a container URI.
func (c *Client) Browse(ctx context.Context, uri string) ([]Ref, error) {
	raw, err := c.rpc(ctx, "core.library.browse", map[string]any{"uri": uri}, c.config.Timeout)
	if err != nil {
		return nil, err
	}
	var refs []Ref
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &refs); err != nil {
			return nil, fmt.Errorf("decode browse result: %w", err)
		}
	}
	return refs, nil
}

// Tracks recursively expands uri until only track URIs remain, in browse
// order. The server hierarchy is assumed acyclic.
func (c *Client) Tracks(ctx context.Context, uri string) ([]string, error) {
	refs, err := c.Browse(ctx, uri)
	if err != nil {
		return nil, err
	}

	uris := []string{}
	for _, ref := range refs {
		if ref.Type == "track" {
			uris = append(uris, ref.URI)
			continue
		}
		sub, err := c.Tracks(ctx, ref.URI)
		if err != nil {
			return nil, err
		}
		uris = append(uris, sub...)
	}
	return uris, nil
}

// Playlists lists playlists, optionally keeping only URIs matching a
// scheme prefix.
func (c *Client) Playlists(ctx context.Context, scheme string) ([]Ref, error) {
	raw, err := c.rpc(ctx, "core.playlists.as_list", nil, c.config.Timeout)
	if err != nil {
		return nil, err
	}
	var refs []Ref
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &refs); err != nil {
			return nil, fmt.Errorf("decode playlists result: %w", err)
		}
	}
	if scheme == "" {
		return refs, nil
	}
	filtered := refs[:0]
	for _, ref := range refs {
		if strings.Contains(ref.URI, scheme+":") {
			filtered = append(filtered, ref)
		}
	}
	return filtered, nil
}

// PlaylistItems returns the item URIs of a playlist.
func (c *Client) PlaylistItems(ctx context.Context, uri string) ([]string, error) {
	raw, err := c.rpc(ctx, "core.playlists.get_items", map[string]any{"uri": uri}, c.config.Timeout)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 {
		return nil, nil
	}
	var items []Ref
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("decode playlist items: %w", err)
	}
	uris := make([]string, 0, len(items))
	for _, item := range items {
		uris = append(uris, item.URI)
	}
	return uris, nil
}

// ClearTracklist empties the server tracklist.
func (c *Client) ClearTracklist(ctx context.Context) error {
	_, err := c.rpc(ctx, "core.tracklist.clear", nil, c.config.Timeout)
	return err
}

// AddTrack enqueues a single track URI.
func (c *Client) AddTrack(ctx context.Context, uri string) error {
	if uri == "" {
		return ErrNoTracks
	}
	_, err := c.rpc(ctx, "core.tracklist.add", map[string]any{"uri": uri}, c.config.Timeout)
	return err
}

// AddTracks enqueues an ordered list of track URIs. An empty list is a
// programmer error, not a silent no-op.
func (c *Client) AddTracks(ctx context.Context, uris []string) error {
	if len(uris) == 0 {
		return ErrNoTracks
	}
	_, err := c.rpc(ctx, "core.tracklist.add", map[string]any{"uris": uris}, c.config.Timeout)
	return err
}

// Play starts playback of the current tracklist.
func (c *Client) Play(ctx context.Context) error {
	_, err := c.rpc(ctx, "core.playback.play", nil, c.config.Timeout)
	return err
}

// Pause pauses playback.
func (c *Client) Pause(ctx context.Context) error {
	_, err := c.rpc(ctx, "core.playback.pause", nil, c.config.Timeout)
	return err
}

// Resume resumes paused playback.
func (c *Client) Resume(ctx context.Context) error {
	_, err := c.rpc(ctx, "core.playback.resume", nil, c.config.Timeout)
	return err
}

// Stop pauses playback; Mopidy keeps the tracklist, so stop is a pause.
func (c *Client) Stop(ctx context.Context) error {
	return c.Pause(ctx)
}

// Next skips to the next track.
func (c *Client) Next(ctx context.Context) error {
	_, err := c.rpc(ctx, "core.playback.next", nil, c.config.Timeout)
	return err
}

// Previous skips to the previous track.
func (c *Client) Previous(ctx context.Context) error {
	_, err := c.rpc(ctx, "core.playback.previous", nil, c.config.Timeout)
	return err
}

// CurrentTrack returns the playing track, or nil when nothing is playing.
func (c *Client) CurrentTrack(ctx context.Context) (*Track, error) {
	raw, err := c.rpc(ctx, "core.playback.get_current_track", nil, c.config.Timeout)
	if err != nil {
		return nil, err
	}
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var track Track
	if err := json.Unmarshal(raw, &track); err != nil {
		return nil, fmt.Errorf("decode current track: %w", err)
	}
	return &track, nil
}

// SetVolume sets the mixer volume as a percentage.
func (c *Client) SetVolume(ctx context.Context, percent int) error {
	_, err := c.rpc(ctx, "core.mixer.set_volume", map[string]any{"volume": percent}, c.config.Timeout)
	return err
}

// LowerVolume sets the configured low level.
func (c *Client) LowerVolume(ctx context.Context) error {
	return c.SetVolume(ctx, c.config.VolumeLow)
}

// RestoreVolume sets the configured high level.
func (c *Client) RestoreVolume(ctx context.Context) error {
	return c.SetVolume(ctx, c.config.VolumeHigh)
}

type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int    `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error,omitempty"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (c *Client) rpc(ctx context.Context, method string, params any, timeout time.Duration) (json.RawMessage, error) {
	if params == nil {
		params = map[string]any{}
	}
	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      1,
		Method:  method,
		Params:  params,
	}
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	c.log.Debug("mopidy rpc", zap.String("method", method))
	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s: mopidy error: %s", method, strings.TrimSpace(string(body)))
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	var rpcResp rpcResponse
	if err := json.Unmarshal(data, &rpcResp); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", method, err)
	}
	if rpcResp.Error != nil {
		return nil, fmt.Errorf("%s: mopidy error: %s", method, rpcResp.Error.Message)
	}
	return rpcResp.Result, nil
}
