package search

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"github.com/louisfellows/canto/internal/mopidy"
	"github.com/louisfellows/canto/internal/phrase"
)

type fakeSearcher struct {
	result mopidy.SearchResult
	err    error
	query  mopidy.Query
	calls  int
}

func (f *fakeSearcher) Search(_ context.Context, q mopidy.Query) (mopidy.SearchResult, error) {
	f.calls++
	f.query = q
	return f.result, f.err
}

func track(name, artist, album, uri string) mopidy.Track {
	return mopidy.Track{
		Name:    name,
		URI:     uri,
		Artists: []mopidy.Artist{{Name: artist}},
		Album:   mopidy.Album{Name: album},
	}
}

func TestResolveTrackConfirmsEveryHint(t *testing.T) {
	searcher := &fakeSearcher{result: mopidy.SearchResult{
		Tracks: []mopidy.Track{
			track("One More Time", "Some Cover Band", "Karaoke Classics", "gmusic:track:cover"),
			track("One More Time", "Daft Punk", "Discovery", "gmusic:track:omt"),
		},
	}}
	resolver := NewResolver(zap.NewNop(), searcher, 90)

	uri, found, err := resolver.Resolve(context.Background(), phrase.Hints{
		Artist: "Daft Punk",
		Track:  "One More Time",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !found || uri != "gmusic:track:omt" {
		t.Fatalf("got (%q, %v), want the Daft Punk track", uri, found)
	}
}

func TestResolveRejectsPartialFieldMatch(t *testing.T) {
	// Track name matches perfectly but the album hint falls below the
	// gate, so the result is rejected.
	searcher := &fakeSearcher{result: mopidy.SearchResult{
		Tracks: []mopidy.Track{
			track("One More Time", "Daft Punk", "Greatest Hits Vol 3", "gmusic:track:wrong"),
		},
	}}
	resolver := NewResolver(zap.NewNop(), searcher, 90)

	_, found, err := resolver.Resolve(context.Background(), phrase.Hints{
		Artist: "Daft Punk",
		Album:  "Discovery",
		Track:  "One More Time",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if found {
		t.Fatalf("partial-field match must be rejected")
	}
}

func TestResolveAlbumBucket(t *testing.T) {
	searcher := &fakeSearcher{result: mopidy.SearchResult{
		Albums: []mopidy.Album{
			{Name: "Discovered Sounds", URI: "gmusic:album:other", Artists: []mopidy.Artist{{Name: "Daft Punk"}}},
			{Name: "Discovery", URI: "gmusic:album:discovery", Artists: []mopidy.Artist{{Name: "Daft Punk"}}},
		},
	}}
	resolver := NewResolver(zap.NewNop(), searcher, 90)

	uri, found, err := resolver.Resolve(context.Background(), phrase.Hints{
		Artist: "Daft Punk",
		Album:  "Discovery",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !found || uri != "gmusic:album:discovery" {
		t.Fatalf("got (%q, %v)", uri, found)
	}
}

func TestResolveArtistBucket(t *testing.T) {
	searcher := &fakeSearcher{result: mopidy.SearchResult{
		Artists: []mopidy.Artist{{Name: "Daft Punk", URI: "gmusic:artist:dp"}},
	}}
	resolver := NewResolver(zap.NewNop(), searcher, 90)

	uri, found, err := resolver.Resolve(context.Background(), phrase.Hints{Artist: "Daft Punk"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !found || uri != "gmusic:artist:dp" {
		t.Fatalf("got (%q, %v)", uri, found)
	}
}

func TestResolveFirstPassingResultWins(t *testing.T) {
	// Server order is the tie-break; both pass, the first is returned.
	searcher := &fakeSearcher{result: mopidy.SearchResult{
		Tracks: []mopidy.Track{
			track("Around the World", "Daft Punk", "Homework", "gmusic:track:first"),
			track("Around the World", "Daft Punk", "Homework", "gmusic:track:second"),
		},
	}}
	resolver := NewResolver(zap.NewNop(), searcher, 90)

	uri, found, err := resolver.Resolve(context.Background(), phrase.Hints{Track: "Around the World"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !found || uri != "gmusic:track:first" {
		t.Fatalf("got (%q, %v)", uri, found)
	}
}

func TestResolveEmptyHintsMakesNoCall(t *testing.T) {
	searcher := &fakeSearcher{}
	resolver := NewResolver(zap.NewNop(), searcher, 90)

	_, found, err := resolver.Resolve(context.Background(), phrase.Hints{})
	if err != nil || found {
		t.Fatalf("got (found=%v, err=%v)", found, err)
	}
	if searcher.calls != 0 {
		t.Fatalf("expected no search call")
	}
}

func TestResolveTransportFailure(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("connection refused")}
	resolver := NewResolver(zap.NewNop(), searcher, 90)

	_, found, err := resolver.Resolve(context.Background(), phrase.Hints{Artist: "Daft Punk"})
	if err == nil {
		t.Fatalf("expected a transport error")
	}
	if found {
		t.Fatalf("transport failure must not report found")
	}
}
