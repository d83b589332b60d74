package canto

// Match tiers returned to the voice host, weakest to strongest.
const (
	TierGeneric  = "generic"
	TierMultiKey = "multi-key"
	TierExact    = "exact"
)

// ResolveQueryBody asks the bridge to match a spoken phrase.
type ResolveQueryBody struct {
	Phrase string `json:"phrase"`
}

// ResolveData is the opaque descriptor handed back on resolve.start.
// For eager matches Name/Category/Source identify a catalog entry; for
// deferred matches only the hint fields are populated.
type ResolveData struct {
	Name     string `json:"name,omitempty"`
	Category string `json:"category,omitempty"`
	Source   string `json:"source,omitempty"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Track    string `json:"track,omitempty"`
}

// ResolveQueryReply reports the match outcome for a phrase.
type ResolveQueryReply struct {
	Matched    bool        `json:"matched"`
	Phrase     string      `json:"phrase,omitempty"`
	Tier       string      `json:"tier,omitempty"`
	Confidence int         `json:"confidence,omitempty"`
	Data       ResolveData `json:"data,omitempty"`
}

// ResolveStartBody starts playback for a previously returned descriptor.
type ResolveStartBody struct {
	Data ResolveData `json:"data"`
}

// ResolveStartReply reports how many tracks were queued.
type ResolveStartReply struct {
	Queued int `json:"queued"`
}

// VolumeSetBody sets an absolute mixer volume.
type VolumeSetBody struct {
	Percent int `json:"percent"`
}

// TrackInfo describes a playing or queued track.
type TrackInfo struct {
	Name   string `json:"name"`
	Artist string `json:"artist,omitempty"`
	Album  string `json:"album,omitempty"`
	URI    string `json:"uri,omitempty"`
}

// StatusReply carries the currently playing track, if any.
type StatusReply struct {
	Playing bool       `json:"playing"`
	Track   *TrackInfo `json:"track,omitempty"`
}

// NowPlayingEvent is published on the node event topic when an
// announcement fires, so listeners beyond the requester hear about it.
type NowPlayingEvent struct {
	Type    string     `json:"type"`
	Playing bool       `json:"playing"`
	Track   *TrackInfo `json:"track,omitempty"`
	TS      int64      `json:"ts"`
}

// CatalogRebuildReply summarises a catalog rebuild.
type CatalogRebuildReply struct {
	Entries int `json:"entries"`
}
