// Package phrase resolves free-form spoken media requests against the
// catalog index, or extracts entity hints for deferred search resolution.
package phrase

import (
	"fmt"
	"regexp"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/louisfellows/canto/internal/catalog"
	"github.com/louisfellows/canto/internal/fuzzy"
)

// Mode selects how a phrase is matched.
//
// ModeEager matches against the warm catalog index and claims with a
// concrete entry. ModeDeferred claims on the structural pattern alone and
// defers resolution to the search resolver at play time; it never touches
// the catalog. The two are never mixed.
type Mode string

// Matching modes.
const (
	ModeEager    Mode = "eager"
	ModeDeferred Mode = "deferred"
)

// Tier is the coarse match-quality classification returned to the host.
type Tier int

// Tiers, weakest to strongest.
const (
	TierNone Tier = iota
	TierGeneric
	TierMultiKey
	TierExact
)

// String returns the wire name of a tier.
func (t Tier) String() string {
	switch t {
	case TierGeneric:
		return "generic"
	case TierMultiKey:
		return "multi-key"
	case TierExact:
		return "exact"
	default:
		return "none"
	}
}

// Category classifies what kind of entity was matched.
type Category string

// Match categories.
const (
	CategoryAlbum    Category = "album"
	CategoryArtist   Category = "artist"
	CategorySong     Category = "song"
	CategoryPlaylist Category = "playlist"
	CategoryGeneric  Category = "generic"
)

// CatalogCategory maps a match category to its catalog category.
func (c Category) CatalogCategory() (catalog.Category, bool) {
	switch c {
	case CategoryAlbum:
		return catalog.CategoryAlbum, true
	case CategoryArtist:
		return catalog.CategoryArtist, true
	case CategorySong:
		return catalog.CategoryTrack, true
	case CategoryPlaylist:
		return catalog.CategoryPlaylist, true
	default:
		return "", false
	}
}

// Hints are the entities extracted from a phrase by the pattern templates.
type Hints struct {
	Artist string
	Album  string
	Track  string
}

// Empty reports whether no hint was extracted.
func (h Hints) Empty() bool {
	return h.Artist == "" && h.Album == "" && h.Track == ""
}

// Match is a scored catalog candidate. The zero value is the "nothing
// found" sentinel: Found false, confidence 0.
type Match struct {
	Name       string
	Confidence int
	Category   Category
	Source     catalog.Source
	Found      bool
}

// Result is what a successful Resolve hands back to the host. In eager
// mode Match identifies a catalog entry; in deferred mode only Hints and
// the template category are populated.
type Result struct {
	Phrase string
	Tier   Tier
	Match  Match
	Hints  Hints
}

// Config configures a Matcher.
type Config struct {
	Mode      Mode
	Threshold int    // catalog acceptance gate; candidates must score strictly above it
	Trigger   string // regexp marking an explicit mention of the service
}

const defaultTrigger = `(?i)\s*(?:\b(?:on|in|with|using)\s+)?\bmopidy\b`

// Matcher turns phrases into match results. The catalog index is swapped
// atomically; a matching pass sees either the old or the new index, never
// a partial one.
type Matcher struct {
	log       *zap.Logger
	mode      Mode
	threshold int
	trigger   *regexp.Regexp
	index     atomic.Pointer[catalog.Index]
}

// NewMatcher creates a phrase matcher.
func NewMatcher(log *zap.Logger, cfg Config) (*Matcher, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Mode == "" {
		cfg.Mode = ModeEager
	}
	if cfg.Mode != ModeEager && cfg.Mode != ModeDeferred {
		return nil, fmt.Errorf("unknown matching mode %q", cfg.Mode)
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 50
	}
	if cfg.Trigger == "" {
		cfg.Trigger = defaultTrigger
	}
	trigger, err := regexp.Compile(cfg.Trigger)
	if err != nil {
		return nil, fmt.Errorf("compile trigger pattern: %w", err)
	}
	return &Matcher{log: log, mode: cfg.Mode, threshold: cfg.Threshold, trigger: trigger}, nil
}

// Mode returns the configured matching mode.
func (m *Matcher) Mode() Mode {
	return m.mode
}

// SetIndex replaces the catalog index wholesale.
func (m *Matcher) SetIndex(ix *catalog.Index) {
	m.index.Store(ix)
}

// Index returns the current catalog index, or nil when no catalog is
// available (connect failure; distinct from an empty catalog).
func (m *Matcher) Index() *catalog.Index {
	return m.index.Load()
}

// Resolve matches a phrase. The returned bool reports whether the request
// is claimed at all; a false return is the expected no-match outcome, not
// an error.
func (m *Matcher) Resolve(phrase string) (Result, bool) {
	triggered := m.trigger.MatchString(phrase)
	cleaned := collapseSpaces(m.trigger.ReplaceAllString(phrase, " "))

	if m.mode == ModeDeferred {
		return m.resolveDeferred(cleaned, triggered)
	}
	return m.resolveEager(cleaned, triggered)
}

func (m *Matcher) resolveEager(phrase string, triggered bool) (Result, bool) {
	if m.index.Load() == nil {
		m.log.Debug("no catalog available")
		return Result{}, false
	}

	tier := TierMultiKey
	match, hints := m.specificQuery(phrase)
	if !match.Found {
		match = m.genericQuery(phrase)
		tier = TierGeneric
	}
	if !match.Found {
		m.log.Debug("nothing found", zap.String("phrase", phrase))
		return Result{}, false
	}
	if triggered {
		tier = TierExact
	}

	m.log.Info("phrase matched",
		zap.String("phrase", phrase),
		zap.String("name", match.Name),
		zap.Int("confidence", match.Confidence),
		zap.String("category", string(match.Category)),
		zap.String("source", string(match.Source)),
	)
	return Result{Phrase: phrase, Tier: tier, Match: match, Hints: hints}, true
}

func (m *Matcher) resolveDeferred(phrase string, triggered bool) (Result, bool) {
	for _, tmpl := range templates {
		groups := tmpl.capture(phrase)
		if groups == nil {
			continue
		}
		tier := TierMultiKey
		if triggered {
			tier = TierExact
		}
		return Result{
			Phrase: phrase,
			Tier:   tier,
			Match:  Match{Category: tmpl.category},
			Hints:  hintsFrom(groups),
		}, true
	}
	return Result{}, false
}

// specificQuery tries the entity templates in fixed order; the first
// structural match wins and its captured entity is looked up across all
// sources of that category.
func (m *Matcher) specificQuery(phrase string) (Match, Hints) {
	for _, tmpl := range templates {
		groups := tmpl.capture(phrase)
		if groups == nil {
			continue
		}
		hints := hintsFrom(groups)
		needle := ""
		switch tmpl.category {
		case CategoryAlbum:
			needle = hints.Album
		case CategoryArtist:
			needle = hints.Artist
		case CategorySong:
			needle = hints.Track
		}
		return m.queryCategory(tmpl.category, needle), hints
	}
	return Match{}, Hints{}
}

// queryCategory picks the best-scoring candidate for needle across all
// sources. Sources are visited in enumeration order and a later source
// must score strictly higher to win, so ties break toward the first.
func (m *Matcher) queryCategory(category Category, needle string) Match {
	ix := m.index.Load()
	catCategory, ok := category.CatalogCategory()
	if ix == nil || !ok || needle == "" {
		return Match{}
	}

	var best Match
	for _, source := range catalog.Sources {
		found, conf := fuzzy.ExtractOne(needle, ix.Names(catCategory, source))
		if conf > best.Confidence && conf > m.threshold {
			best = Match{Name: found, Confidence: conf, Category: category, Source: source, Found: true}
		}
	}
	return best
}

func (m *Matcher) genericQuery(phrase string) Match {
	ix := m.index.Load()
	if ix == nil {
		return Match{}
	}
	found, conf := fuzzy.ExtractOne(phrase, ix.GenericNames())
	if conf <= m.threshold {
		return Match{}
	}
	entry, _ := ix.LookupGeneric(found)
	return Match{Name: found, Confidence: conf, Category: CategoryGeneric, Source: entry.Source, Found: true}
}

type template struct {
	category Category
	re       *regexp.Regexp
}

// Ordered entity templates; album before artist before track, first
// structural match short-circuits the rest.
var templates = []template{
	{CategoryAlbum, regexp.MustCompile(`(?i)^(?:play\s+)?(?:the\s+)?album\s+(?P<album>.+?)(?:\s+by\s+(?P<artist>.+))?$`)},
	{CategoryArtist, regexp.MustCompile(`(?i)^(?:play\s+)?(?:(?:the\s+)?(?:artist|band)\s+|(?:something\s+|anything\s+|music\s+)?by\s+)(?P<artist>.+)$`)},
	{CategorySong, regexp.MustCompile(`(?i)^(?:play\s+)?(?:the\s+)?(?:track|song|tune)\s+(?P<track>.+?)(?:\s+by\s+(?P<artist>.+))?$`)},
}

func (t template) capture(phrase string) map[string]string {
	match := t.re.FindStringSubmatch(phrase)
	if match == nil {
		return nil
	}
	groups := map[string]string{}
	for i, name := range t.re.SubexpNames() {
		if name != "" && i < len(match) && match[i] != "" {
			groups[name] = strings.TrimSpace(match[i])
		}
	}
	return groups
}

func hintsFrom(groups map[string]string) Hints {
	return Hints{
		Artist: groups["artist"],
		Album:  groups["album"],
		Track:  groups["track"],
	}
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
