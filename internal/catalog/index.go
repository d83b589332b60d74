// Package catalog builds and holds the in-memory media library index
// merged from the server's local, cloud and playlist-service backends.
package catalog

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/louisfellows/canto/internal/mopidy"
)

// Category classifies a catalog entry.
type Category string

// Catalog categories.
const (
	CategoryAlbum    Category = "album"
	CategoryArtist   Category = "artist"
	CategoryGenre    Category = "genre"
	CategoryPlaylist Category = "playlist"
	CategoryTrack    Category = "track"
)

// Categories lists all categories in a fixed order.
var Categories = []Category{CategoryAlbum, CategoryArtist, CategoryGenre, CategoryPlaylist, CategoryTrack}

// Source identifies a backend music provider.
type Source string

// Catalog sources, in enumeration (tie-break) order.
const (
	SourceLocal    Source = "local"
	SourceCloud    Source = "cloud"
	SourcePlaylist Source = "playlist-service"
)

// Sources lists all sources in enumeration order.
var Sources = []Source{SourceLocal, SourceCloud, SourcePlaylist}

// Kind is the playable type of an entry.
type Kind string

// Entry kinds.
const (
	KindTrack     Kind = "track"
	KindAlbum     Kind = "album"
	KindArtist    Kind = "artist"
	KindPlaylist  Kind = "playlist"
	KindDirectory Kind = "directory"
	KindRadio     Kind = "radio"
)

// Entry is one immutable catalog item.
type Entry struct {
	Name   string
	URI    string
	Kind   Kind
	Source Source
}

// Index is a read-only snapshot of the merged catalog. It is built once
// per connect sequence and replaced wholesale on rebuild; lookups never
// race with writers.
type Index struct {
	categories map[Category]map[Source]map[string]Entry
	generic    map[string]Entry
}

// Names returns the entry names for one category and source.
func (ix *Index) Names(category Category, source Source) []string {
	entries := ix.categories[category][source]
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	return names
}

// Lookup finds a named entry in one category and source.
func (ix *Index) Lookup(category Category, source Source, name string) (Entry, bool) {
	entry, ok := ix.categories[category][source][name]
	return entry, ok
}

// GenericNames returns the names of the flattened generic mapping.
func (ix *Index) GenericNames() []string {
	names := make([]string, 0, len(ix.generic))
	for name := range ix.generic {
		names = append(names, name)
	}
	return names
}

// LookupGeneric finds a named entry in the flattened generic mapping.
func (ix *Index) LookupGeneric(name string) (Entry, bool) {
	entry, ok := ix.generic[name]
	return entry, ok
}

// Len returns the number of entries in the generic mapping.
func (ix *Index) Len() int {
	return len(ix.generic)
}

// Lister is the subset of the Mopidy client the builder needs.
type Lister interface {
	Browse(ctx context.Context, uri string) ([]mopidy.Ref, error)
	Playlists(ctx context.Context, scheme string) ([]mopidy.Ref, error)
}

// Builder fetches the per-source listings and assembles an Index.
type Builder struct {
	log            *zap.Logger
	client         Lister
	cloudScheme    string
	playlistScheme string
}

// NewBuilder creates a catalog builder.
func NewBuilder(log *zap.Logger, client Lister, cloudScheme, playlistScheme string) *Builder {
	if log == nil {
		log = zap.NewNop()
	}
	if cloudScheme == "" {
		cloudScheme = "gmusic"
	}
	if playlistScheme == "" {
		playlistScheme = "spotify"
	}
	return &Builder{log: log, client: client, cloudScheme: cloudScheme, playlistScheme: playlistScheme}
}

// Build runs one connect sequence against the server and returns a fresh
// index. Any listing failure aborts the build: a partial catalog is never
// returned.
func (b *Builder) Build(ctx context.Context) (*Index, error) {
	ix := &Index{
		categories: map[Category]map[Source]map[string]Entry{},
		generic:    map[string]Entry{},
	}
	for _, category := range Categories {
		ix.categories[category] = map[Source]map[string]Entry{}
		for _, source := range Sources {
			ix.categories[category][source] = map[string]Entry{}
		}
	}

	if err := b.loadLocal(ctx, ix); err != nil {
		return nil, fmt.Errorf("load local source: %w", err)
	}
	if err := b.loadCloud(ctx, ix); err != nil {
		return nil, fmt.Errorf("load cloud source: %w", err)
	}
	if err := b.loadPlaylistService(ctx, ix); err != nil {
		return nil, fmt.Errorf("load playlist service: %w", err)
	}

	b.mergeGeneric(ix)

	b.log.Info("catalog built", zap.Int("entries", ix.Len()))
	return ix, nil
}

func (b *Builder) loadLocal(ctx context.Context, ix *Index) error {
	browses := []struct {
		uri      string
		keep     Kind
		category Category
	}{
		{"local:directory?type=album", KindAlbum, CategoryAlbum},
		{"local:directory?type=artist", KindArtist, CategoryArtist},
		{"local:directory?type=genre", KindDirectory, CategoryGenre},
		{"local:directory?type=track", KindTrack, CategoryTrack},
	}
	for _, spec := range browses {
		refs, err := b.client.Browse(ctx, spec.uri)
		if err != nil {
			return err
		}
		for _, ref := range refs {
			if Kind(ref.Type) != spec.keep {
				continue
			}
			ix.put(spec.category, Entry{Name: ref.Name, URI: ref.URI, Kind: Kind(ref.Type), Source: SourceLocal})
		}
	}

	playlists, err := b.client.Playlists(ctx, "m3u")
	if err != nil {
		return err
	}
	for _, ref := range playlists {
		ix.put(CategoryPlaylist, Entry{Name: ref.Name, URI: ref.URI, Kind: KindPlaylist, Source: SourceLocal})
	}
	return nil
}

func (b *Builder) loadCloud(ctx context.Context, ix *Index) error {
	albums, err := b.client.Browse(ctx, b.cloudScheme+":album")
	if err != nil {
		return err
	}
	for _, ref := range albums {
		if ref.Type != string(KindDirectory) {
			continue
		}
		// Cloud albums are named "Artist - Album"; key by the album part.
		name, ok := cloudAlbumName(ref.Name)
		if !ok {
			b.log.Warn("skipping cloud album without separator", zap.String("name", ref.Name))
			continue
		}
		ix.put(CategoryAlbum, Entry{Name: name, URI: ref.URI, Kind: KindAlbum, Source: SourceCloud})
	}

	artists, err := b.client.Browse(ctx, b.cloudScheme+":artist")
	if err != nil {
		return err
	}
	for _, ref := range artists {
		if ref.Type != string(KindDirectory) {
			continue
		}
		ix.put(CategoryArtist, Entry{Name: ref.Name, URI: ref.URI, Kind: KindArtist, Source: SourceCloud})
	}

	radios, err := b.client.Browse(ctx, b.cloudScheme+":radio")
	if err != nil {
		return err
	}
	for _, ref := range radios {
		if ref.Type != string(KindDirectory) {
			continue
		}
		ix.put(CategoryGenre, Entry{Name: ref.Name, URI: ref.URI, Kind: KindRadio, Source: SourceCloud})
	}
	return nil
}

func (b *Builder) loadPlaylistService(ctx context.Context, ix *Index) error {
	playlists, err := b.client.Playlists(ctx, b.playlistScheme)
	if err != nil {
		return err
	}
	for _, ref := range playlists {
		ix.put(CategoryPlaylist, Entry{
			Name:   normalizePlaylistName(ref.Name),
			URI:    ref.URI,
			Kind:   KindPlaylist,
			Source: SourcePlaylist,
		})
	}
	return nil
}

// mergeGeneric flattens every category and source into one name map. The
// merge order is fixed (sources in enumeration order; within a source:
// playlists, genres, artists, albums, tracks) so a name collision always
// resolves the same way: last write wins.
func (b *Builder) mergeGeneric(ix *Index) {
	order := []Category{CategoryPlaylist, CategoryGenre, CategoryArtist, CategoryAlbum, CategoryTrack}
	for _, source := range Sources {
		for _, category := range order {
			for name, entry := range ix.categories[category][source] {
				ix.generic[name] = entry
			}
		}
	}
}

func (ix *Index) put(category Category, entry Entry) {
	ix.categories[category][entry.Source][entry.Name] = entry
}

func cloudAlbumName(display string) (string, bool) {
	_, album, ok := strings.Cut(display, " - ")
	if !ok || album == "" {
		return "", false
	}
	return album, true
}

// normalizePlaylistName lowercases a playlist-service name and strips the
// trailing "(by owner)" suffix the service appends.
func normalizePlaylistName(name string) string {
	if i := strings.Index(name, "(by"); i >= 0 {
		name = name[:i]
	}
	return strings.ToLower(strings.TrimSpace(name))
}
