package server

import (
	"net/http"

	"github.com/sonar-music/sonar/internal/lyrics"
)

type wireLyricsLine struct {
	OffsetMs   int64  `json:"offset_ms"`
	DurationMs int64  `json:"duration_ms"`
	Text       string `json:"text"`
}

func (s *Server) handleLyricsGet(w http.ResponseWriter, r *http.Request) {
	var req idRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	trackID, err := parseIDAs(req.ID, "track")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	lines, kind, err := s.engine.Lyrics.Get(r.Context(), nil, trackID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	out := make([]wireLyricsLine, len(lines))
	for i, l := range lines {
		out[i] = wireLyricsLine{OffsetMs: l.OffsetMs, DurationMs: l.DurationMs, Text: l.Text}
	}
	writeResult(w, map[string]any{"kind": string(kind), "lines": out})
}

type lyricsSetSyncedRequest struct {
	TrackID string           `json:"track_id"`
	Lines   []wireLyricsLine `json:"lines"`
}

func (s *Server) handleLyricsSetSynced(w http.ResponseWriter, r *http.Request) {
	var req lyricsSetSyncedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	trackID, err := parseIDAs(req.TrackID, "track")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	lines := make([]lyrics.Line, len(req.Lines))
	for i, l := range req.Lines {
		lines[i] = lyrics.Line{OffsetMs: l.OffsetMs, DurationMs: l.DurationMs, Text: l.Text}
	}
	if err := s.engine.Lyrics.SetSynced(r.Context(), nil, trackID, lines); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

type lyricsSetUnsyncedRequest struct {
	TrackID string   `json:"track_id"`
	Lines   []string `json:"lines"`
}

func (s *Server) handleLyricsSetUnsynced(w http.ResponseWriter, r *http.Request) {
	var req lyricsSetUnsyncedRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	trackID, err := parseIDAs(req.TrackID, "track")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Lyrics.SetUnsynced(r.Context(), nil, trackID, req.Lines); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}
