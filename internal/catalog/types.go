// Package catalog is the relational persistence layer of spec.md §4.2: raw
// SQL over a SQLite database (modernc.org/sqlite), transactional CRUD per
// entity, with read-through denormalized counts. Query shape is grounded
// on repository/track_repository.go's database/sql + Prepare/Exec/Scan
// style; the original Rust core (original_source/sonar/src/db.rs) confirms
// raw SQL over an ORM is the right idiom for this spec, so no ORM is used.
package catalog

import "time"

// Blob mirrors spec.md §3's Blob entity: exactly one row per distinct
// sha256, referenced by Image or Audio rows.
type Blob struct {
	ID        int64
	Key       string
	Size      int64
	SHA256    string
	CreatedAt time.Time
}

// Image mirrors spec.md §3's Image entity.
type Image struct {
	ID        int64
	BlobID    int64
	Mime      string
	CreatedAt time.Time
}

// Audio mirrors spec.md §3's Audio entity.
type Audio struct {
	ID          int64
	BlobID      int64
	Mime        string
	Bitrate     int
	DurationMs  int64
	Channels    int
	SampleFreq  int
	Filename    string
	CreatedAt   time.Time
}

// User mirrors spec.md §3's User entity.
type User struct {
	ID            int64
	Username      string
	PasswordHash  string
	AvatarImageID *int64
	IsAdmin       bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Artist mirrors spec.md §3's Artist entity.
type Artist struct {
	ID           int64
	Name         string
	ListenCount  int64
	CoverImageID *int64
	AlbumCount   int64 // denormalized read view, spec.md §3
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Album mirrors spec.md §3's Album entity.
type Album struct {
	ID           int64
	Name         string
	ArtistID     int64
	ListenCount  int64
	CoverImageID *int64
	TrackCount   int64 // denormalized read view
	TotalDurationMs int64
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// LyricsKind is the kind of lyrics attached to a track, spec.md §3.
type LyricsKind string

const (
	LyricsKindSynced   LyricsKind = "S"
	LyricsKindUnsynced LyricsKind = "U"
)

// Track mirrors spec.md §3's Track entity.
type Track struct {
	ID              int64
	Name            string
	AlbumID         int64
	CoverImageID    *int64
	LyricsKind      *LyricsKind
	ListenCount     int64
	DurationMs      int64 // denormalized from preferred audio
	PreferredAudioID *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// TrackAudio mirrors spec.md §3's TrackAudio join entity.
type TrackAudio struct {
	ID        int64
	TrackID   int64
	AudioID   int64
	Preferred bool
	CreatedAt time.Time
}

// Playlist mirrors spec.md §3's Playlist entity.
type Playlist struct {
	ID              int64
	OwnerID         int64
	Name            string
	CoverImageID    *int64
	TrackCount      int64 // denormalized read view
	TotalDurationMs int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// PlaylistTrack mirrors spec.md §3's PlaylistTrack join entity.
type PlaylistTrack struct {
	PlaylistID int64
	TrackID    int64
	CreatedAt  time.Time
}

// Scrobble mirrors spec.md §3's Scrobble entity.
type Scrobble struct {
	ID               int64
	UserID           int64
	TrackID          int64
	ListenAt         time.Time
	ListenDurationMs int64
	Device           string
	CreatedAt        time.Time
}

// ScrobbleSubmission mirrors spec.md §3's ScrobbleSubmission entity.
type ScrobbleSubmission struct {
	ID         int64
	ScrobbleID int64
	Scrobbler  string
	CreatedAt  time.Time
}

// Favorite mirrors spec.md §3's Favorite entity.
type Favorite struct {
	UserID     int64
	Namespace  string
	Identifier int64
	CreatedAt  time.Time
}

// Pin mirrors spec.md §3's Pin entity.
type Pin struct {
	UserID     int64
	Namespace  string
	Identifier int64
	CreatedAt  time.Time
}

// MediaType is the kind of entity a Subscription targets, spec.md §3.
type MediaType string

const (
	MediaTypeArtist   MediaType = "artist"
	MediaTypeAlbum    MediaType = "album"
	MediaTypeTrack    MediaType = "track"
	MediaTypePlaylist MediaType = "playlist"
)

// Subscription mirrors spec.md §3's Subscription entity.
type Subscription struct {
	ID              int64
	UserID          int64
	ArtistID        *int64
	AlbumID         *int64
	TrackID         *int64
	PlaylistID      *int64
	ExternalID      *string
	MediaType       MediaType
	IntervalSeconds int64
	LastSubmitted   *time.Time
	BackoffUntil    *time.Time
	Description     string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// Property mirrors spec.md §3's Property entity. UserID is nil for the
// global value.
type Property struct {
	Namespace  string
	Identifier int64
	Key        string
	UserID     *int64
	Value      string
}

// LyricsLine mirrors spec.md §3's LyricsLine entity.
type LyricsLine struct {
	ID         int64
	TrackID    int64
	OffsetMs   int64
	DurationMs int64
	Text       string
}

// ListParams controls offset/limit pagination per spec.md §4.2. Count is a
// pointer so "omitted" (nil, defaults to 20) is distinguishable from an
// explicit 0 (returns an empty page per spec.md §8's boundary rule).
type ListParams struct {
	Offset int
	Count  *int
}

const (
	defaultListCount = 20
	maxListCount     = 500
)

// normalize resolves Offset/Count into a concrete (offset, limit) pair:
// negative offsets clamp to 0, a nil Count becomes the default of 20, and
// any Count is clamped to [0, maxListCount].
func (p ListParams) normalize() (offset, limit int) {
	offset = p.Offset
	if offset < 0 {
		offset = 0
	}
	limit = defaultListCount
	if p.Count != nil {
		limit = *p.Count
	}
	if limit > maxListCount {
		limit = maxListCount
	}
	if limit < 0 {
		limit = 0
	}
	return offset, limit
}

// IntPtr is a small helper for building ListParams.Count literals.
func IntPtr(v int) *int { return &v }
