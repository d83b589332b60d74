package mopidy

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"go.uber.org/zap"
)

type rpcCall struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int            `json:"id"`
	Method  string         `json:"method"`
	Params  map[string]any `json:"params"`
}

// fakeServer answers JSON-RPC calls from canned results keyed by method
// (or method plus browse uri) and records every request.
type fakeServer struct {
	t       *testing.T
	results map[string]any
	calls   []rpcCall
	server  *httptest.Server
}

func newFakeServer(t *testing.T, results map[string]any) *fakeServer {
	fs := &fakeServer{t: t, results: results}
	fs.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/mopidy/rpc" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("unexpected content type %q", ct)
		}
		var call rpcCall
		if err := json.NewDecoder(r.Body).Decode(&call); err != nil {
			t.Errorf("decode request: %v", err)
		}
		fs.calls = append(fs.calls, call)

		key := call.Method
		if call.Method == "core.library.browse" {
			if uri, ok := call.Params["uri"].(string); ok {
				key = call.Method + " " + uri
			}
		}
		resp := map[string]any{"jsonrpc": "2.0", "id": call.ID}
		if result, ok := fs.results[key]; ok {
			resp["result"] = result
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(fs.server.Close)
	return fs
}

func newTestClient(t *testing.T, fs *fakeServer) *Client {
	client, err := NewClient(zap.NewNop(), Config{BaseURL: fs.server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return client
}

func TestSearchWireShape(t *testing.T) {
	fs := newFakeServer(t, map[string]any{
		"core.library.search": []map[string]any{{
			"tracks": []map[string]any{{
				"name":    "One More Time",
				"uri":     "gmusic:track:1",
				"artists": []map[string]any{{"name": "Daft Punk"}},
				"album":   map[string]any{"name": "Discovery"},
			}},
		}},
	})
	client := newTestClient(t, fs)

	result, err := client.Search(context.Background(), Query{Artist: "Daft Punk", Track: "One More Time"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Tracks) != 1 || result.Tracks[0].URI != "gmusic:track:1" {
		t.Fatalf("unexpected result: %+v", result)
	}

	if len(fs.calls) != 1 {
		t.Fatalf("expected 1 call, got %d", len(fs.calls))
	}
	call := fs.calls[0]
	if call.JSONRPC != "2.0" || call.ID != 1 || call.Method != "core.library.search" {
		t.Fatalf("unexpected envelope: %+v", call)
	}
	uris, _ := call.Params["uris"].([]any)
	if len(uris) != 1 || uris[0] != "gmusic:" {
		t.Fatalf("unexpected uris: %v", call.Params["uris"])
	}
	query, _ := call.Params["query"].(map[string]any)
	if query == nil {
		t.Fatalf("missing query: %+v", call.Params)
	}
	if artists, _ := query["artist"].([]any); len(artists) != 1 || artists[0] != "Daft Punk" {
		t.Fatalf("unexpected artist hint: %v", query["artist"])
	}
	if _, present := query["album"]; present {
		t.Fatalf("album hint should be absent: %v", query)
	}
}

func TestSearchEmptyQueryMakesNoCall(t *testing.T) {
	fs := newFakeServer(t, nil)
	client := newTestClient(t, fs)

	result, err := client.Search(context.Background(), Query{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Tracks)+len(result.Albums)+len(result.Artists) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
	if len(fs.calls) != 0 {
		t.Fatalf("expected no calls, got %d", len(fs.calls))
	}
}

func TestSearchMissingResultIsEmptyNotError(t *testing.T) {
	fs := newFakeServer(t, nil) // no result key in response
	client := newTestClient(t, fs)

	result, err := client.Search(context.Background(), Query{Album: "Discovery"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(result.Albums) != 0 {
		t.Fatalf("expected empty result, got %+v", result)
	}
}

func TestFindExactWireShape(t *testing.T) {
	fs := newFakeServer(t, map[string]any{
		"core.library.find_exact": []map[string]any{{
			"uri": "local:album:discovery",
			"tracks": []map[string]any{{
				"name": "One More Time",
				"uri":  "local:track:omt",
			}},
		}},
	})
	client := newTestClient(t, fs)

	results, err := client.FindExact(context.Background(), []string{"local:album:discovery"})
	if err != nil {
		t.Fatalf("find_exact: %v", err)
	}
	if len(results) != 1 || len(results[0].Tracks) != 1 || results[0].Tracks[0].URI != "local:track:omt" {
		t.Fatalf("unexpected results: %+v", results)
	}

	call := fs.calls[0]
	if call.Method != "core.library.find_exact" {
		t.Fatalf("unexpected method %q", call.Method)
	}
	uris, _ := call.Params["uris"].([]any)
	if len(uris) != 1 || uris[0] != "local:album:discovery" {
		t.Fatalf("unexpected uris: %v", call.Params["uris"])
	}
}

func TestAddTrackAndAddTracksWireShape(t *testing.T) {
	fs := newFakeServer(t, map[string]any{"core.tracklist.add": map[string]any{}})
	client := newTestClient(t, fs)

	if err := client.AddTrack(context.Background(), "local:track:1"); err != nil {
		t.Fatalf("add track: %v", err)
	}
	if err := client.AddTracks(context.Background(), []string{"local:track:1", "local:track:2"}); err != nil {
		t.Fatalf("add tracks: %v", err)
	}

	if len(fs.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(fs.calls))
	}
	if uri, ok := fs.calls[0].Params["uri"].(string); !ok || uri != "local:track:1" {
		t.Fatalf("single add should send uri, got %+v", fs.calls[0].Params)
	}
	if _, ok := fs.calls[0].Params["uris"]; ok {
		t.Fatalf("single add must not send uris: %+v", fs.calls[0].Params)
	}
	if uris, ok := fs.calls[1].Params["uris"].([]any); !ok || len(uris) != 2 {
		t.Fatalf("list add should send uris, got %+v", fs.calls[1].Params)
	}
}

func TestAddTracksEmptyIsError(t *testing.T) {
	fs := newFakeServer(t, nil)
	client := newTestClient(t, fs)

	if err := client.AddTracks(context.Background(), nil); !errors.Is(err, ErrNoTracks) {
		t.Fatalf("expected ErrNoTracks, got %v", err)
	}
	if len(fs.calls) != 0 {
		t.Fatalf("expected no calls, got %d", len(fs.calls))
	}
}

func TestTracksRecursesContainers(t *testing.T) {
	fs := newFakeServer(t, map[string]any{
		"core.library.browse local:album:greatest": []map[string]any{
			{"name": "Track A", "uri": "local:track:a", "type": "track"},
			{"name": "Disc 2", "uri": "local:album:disc2", "type": "directory"},
		},
		"core.library.browse local:album:disc2": []map[string]any{
			{"name": "Track B", "uri": "local:track:b", "type": "track"},
			{"name": "Track C", "uri": "local:track:c", "type": "track"},
		},
	})
	client := newTestClient(t, fs)

	uris, err := client.Tracks(context.Background(), "local:album:greatest")
	if err != nil {
		t.Fatalf("tracks: %v", err)
	}
	want := []string{"local:track:a", "local:track:b", "local:track:c"}
	if len(uris) != len(want) {
		t.Fatalf("got %v, want %v", uris, want)
	}
	for i := range want {
		if uris[i] != want[i] {
			t.Fatalf("got %v, want %v", uris, want)
		}
	}
}

func TestTracksKeepsBrowseOrder(t *testing.T) {
	fs := newFakeServer(t, map[string]any{
		"core.library.browse local:directory:mixed": []map[string]any{
			{"name": "Intro", "uri": "local:track:intro", "type": "track"},
			{"name": "Side B", "uri": "local:album:sideb", "type": "directory"},
			{"name": "Outro", "uri": "local:track:outro", "type": "track"},
		},
		"core.library.browse local:album:sideb": []map[string]any{
			{"name": "Track B", "uri": "local:track:b", "type": "track"},
		},
	})
	client := newTestClient(t, fs)

	uris, err := client.Tracks(context.Background(), "local:directory:mixed")
	if err != nil {
		t.Fatalf("tracks: %v", err)
	}
	want := []string{"local:track:intro", "local:track:b", "local:track:outro"}
	if len(uris) != len(want) {
		t.Fatalf("got %v, want %v", uris, want)
	}
	for i := range want {
		if uris[i] != want[i] {
			t.Fatalf("got %v, want %v", uris, want)
		}
	}
}

func TestCurrentTrackNullResult(t *testing.T) {
	fs := newFakeServer(t, nil)
	client := newTestClient(t, fs)

	track, err := client.CurrentTrack(context.Background())
	if err != nil {
		t.Fatalf("current track: %v", err)
	}
	if track != nil {
		t.Fatalf("expected nil track, got %+v", track)
	}
}

func TestPlaylistsFiltersByScheme(t *testing.T) {
	fs := newFakeServer(t, map[string]any{
		"core.playlists.as_list": []map[string]any{
			{"name": "Party", "uri": "spotify:playlist:1", "type": "playlist"},
			{"name": "Road Trip", "uri": "m3u:road.m3u", "type": "playlist"},
		},
	})
	client := newTestClient(t, fs)

	refs, err := client.Playlists(context.Background(), "m3u")
	if err != nil {
		t.Fatalf("playlists: %v", err)
	}
	if len(refs) != 1 || refs[0].Name != "Road Trip" {
		t.Fatalf("unexpected playlists: %+v", refs)
	}
}

func TestHTTPErrorIsTransportFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(zap.NewNop(), Config{BaseURL: server.URL})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if err := client.Play(context.Background()); err == nil {
		t.Fatalf("expected transport failure")
	}
}

func TestVolumeLevels(t *testing.T) {
	fs := newFakeServer(t, map[string]any{"core.mixer.set_volume": true})
	client, err := NewClient(zap.NewNop(), Config{BaseURL: fs.server.URL, VolumeLow: 5, VolumeHigh: 15})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if err := client.LowerVolume(context.Background()); err != nil {
		t.Fatalf("lower: %v", err)
	}
	if err := client.RestoreVolume(context.Background()); err != nil {
		t.Fatalf("restore: %v", err)
	}

	if len(fs.calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", len(fs.calls))
	}
	if vol, _ := fs.calls[0].Params["volume"].(float64); vol != 5 {
		t.Fatalf("lower volume sent %v", fs.calls[0].Params["volume"])
	}
	if vol, _ := fs.calls[1].Params["volume"].(float64); vol != 15 {
		t.Fatalf("restore volume sent %v", fs.calls[1].Params["volume"])
	}
}
