// Package search confirms remote search results against entity hints.
//
// Catalog names are known-good entries needing only a reasonable match;
// search results are machine-ranked candidates, so they pass through a
// stricter confirmation gate before a URI is returned.
package search

import (
	"context"

	"go.uber.org/zap"

	"github.com/louisfellows/canto/internal/fuzzy"
	"github.com/louisfellows/canto/internal/mopidy"
	"github.com/louisfellows/canto/internal/phrase"
)

// Searcher is the subset of the Mopidy client the resolver needs.
type Searcher interface {
	Search(ctx context.Context, q mopidy.Query) (mopidy.SearchResult, error)
}

// Resolver re-filters raw search results with a strict similarity gate.
type Resolver struct {
	log       *zap.Logger
	client    Searcher
	threshold int
}

// NewResolver creates a search resolver. The threshold is the minimum
// similarity every present hint must reach (inclusive); default 90.
func NewResolver(log *zap.Logger, client Searcher, threshold int) *Resolver {
	if log == nil {
		log = zap.NewNop()
	}
	if threshold == 0 {
		threshold = 90
	}
	return &Resolver{log: log, client: client, threshold: threshold}
}

// Resolve searches the remote library for the hinted entities and returns
// the URI of the first result confirmed by every present hint. A false
// return with a nil error is the defined not-found outcome; an error is a
// transport failure.
func (r *Resolver) Resolve(ctx context.Context, hints phrase.Hints) (string, bool, error) {
	if hints.Empty() {
		return "", false, nil
	}

	result, err := r.client.Search(ctx, mopidy.Query{
		Artist: hints.Artist,
		Album:  hints.Album,
		Track:  hints.Track,
	})
	if err != nil {
		return "", false, err
	}

	// The bucket follows the most specific hint: track > album > artist.
	switch {
	case hints.Track != "":
		return r.confirmTracks(hints, result.Tracks)
	case hints.Album != "":
		return r.confirmAlbums(hints, result.Albums)
	default:
		return r.confirmArtists(hints, result.Artists)
	}
}

func (r *Resolver) confirmTracks(hints phrase.Hints, tracks []mopidy.Track) (string, bool, error) {
	for _, track := range tracks {
		if fuzzy.Score(hints.Track, track.Name) < r.threshold {
			continue
		}
		if hints.Artist != "" && fuzzy.Score(hints.Artist, primaryArtist(track.Artists)) < r.threshold {
			continue
		}
		if hints.Album != "" && fuzzy.Score(hints.Album, track.Album.Name) < r.threshold {
			continue
		}
		r.log.Debug("track confirmed", zap.String("uri", track.URI))
		return track.URI, true, nil
	}
	return "", false, nil
}

func (r *Resolver) confirmAlbums(hints phrase.Hints, albums []mopidy.Album) (string, bool, error) {
	for _, album := range albums {
		if fuzzy.Score(hints.Album, album.Name) < r.threshold {
			continue
		}
		if hints.Artist != "" && fuzzy.Score(hints.Artist, primaryArtist(album.Artists)) < r.threshold {
			continue
		}
		r.log.Debug("album confirmed", zap.String("uri", album.URI))
		return album.URI, true, nil
	}
	return "", false, nil
}

func (r *Resolver) confirmArtists(hints phrase.Hints, artists []mopidy.Artist) (string, bool, error) {
	for _, artist := range artists {
		if fuzzy.Score(hints.Artist, artist.Name) < r.threshold {
			continue
		}
		r.log.Debug("artist confirmed", zap.String("uri", artist.URI))
		return artist.URI, true, nil
	}
	return "", false, nil
}

func primaryArtist(artists []mopidy.Artist) string {
	if len(artists) == 0 {
		return ""
	}
	return artists[0].Name
}
