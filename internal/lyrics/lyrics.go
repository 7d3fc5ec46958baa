// Package lyrics implements spec.md §4's Lyrics Service: synced or
// unsynced lyrics stored per track. A thin layer over
// internal/catalog's lyrics_lines table, the same way internal/image sits
// over catalog's images table.
package lyrics

import (
	"context"
	"database/sql"

	"github.com/sonar-music/sonar/internal/catalog"
	"github.com/sonar-music/sonar/internal/sonarerr"
)

// Line is one lyrics line, synced (OffsetMs/DurationMs meaningful) or
// unsynced (both zero, Text is the whole line in reading order).
type Line struct {
	OffsetMs   int64
	DurationMs int64
	Text       string
}

// Service is the Lyrics Service of spec.md §4.
type Service struct {
	catalog *catalog.Store
}

// New constructs a Service over an already-open catalog Store.
func New(catalogStore *catalog.Store) *Service {
	return &Service{catalog: catalogStore}
}

// SetSynced replaces a track's lyrics with a synced set (offset+duration
// per line) and records its lyrics_kind as Synced.
func (s *Service) SetSynced(ctx context.Context, tx *sql.Tx, trackID int64, lines []Line) error {
	return s.replace(ctx, tx, trackID, lines, catalog.LyricsKindSynced)
}

// SetUnsynced replaces a track's lyrics with a plain, offsetless set and
// records its lyrics_kind as Unsynced.
func (s *Service) SetUnsynced(ctx context.Context, tx *sql.Tx, trackID int64, lines []string) error {
	converted := make([]Line, len(lines))
	for i, text := range lines {
		converted[i] = Line{Text: text}
	}
	return s.replace(ctx, tx, trackID, converted, catalog.LyricsKindUnsynced)
}

func (s *Service) replace(ctx context.Context, tx *sql.Tx, trackID int64, lines []Line, kind catalog.LyricsKind) error {
	rows := make([]catalog.LyricsLine, len(lines))
	for i, l := range lines {
		rows[i] = catalog.LyricsLine{TrackID: trackID, OffsetMs: l.OffsetMs, DurationMs: l.DurationMs, Text: l.Text}
	}
	if err := s.catalog.LyricsLinesReplace(ctx, tx, trackID, rows); err != nil {
		return err
	}
	k := kind
	return s.catalog.TrackSetLyricsKind(ctx, tx, trackID, &k)
}

// Get returns a track's lyrics lines in offset order. Returns
// sonarerr.NotFound if the track has no lyrics_kind set.
func (s *Service) Get(ctx context.Context, tx *sql.Tx, trackID int64) ([]Line, catalog.LyricsKind, error) {
	track, err := s.catalog.TrackGet(ctx, tx, trackID)
	if err != nil {
		return nil, "", err
	}
	if track.LyricsKind == nil {
		return nil, "", sonarerr.NotFound("lyrics", "")
	}
	rows, err := s.catalog.LyricsLinesList(ctx, tx, trackID)
	if err != nil {
		return nil, "", err
	}
	out := make([]Line, len(rows))
	for i, r := range rows {
		out[i] = Line{OffsetMs: r.OffsetMs, DurationMs: r.DurationMs, Text: r.Text}
	}
	return out, *track.LyricsKind, nil
}

// Clear removes a track's lyrics entirely.
func (s *Service) Clear(ctx context.Context, tx *sql.Tx, trackID int64) error {
	if err := s.catalog.LyricsLinesClear(ctx, tx, trackID); err != nil {
		return err
	}
	return s.catalog.TrackSetLyricsKind(ctx, tx, trackID, nil)
}
