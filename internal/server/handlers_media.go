package server

import (
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"

	"github.com/sonar-music/sonar/internal/audio"
	"github.com/sonar-music/sonar/internal/id"
)

func (s *Server) handleImageCreate(w http.ResponseWriter, r *http.Request) {
	img, err := s.engine.Image.Create(r.Context(), nil, r.Body)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"id": id.New(id.NamespaceImage, img.ID).String(), "mime": img.Mime})
}

func (s *Server) handleImageDownload(w http.ResponseWriter, r *http.Request) {
	imgID, err := parseIDAs(r.URL.Query().Get("id"), "image")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	rc, mime, err := s.engine.Image.Download(r.Context(), nil, imgID)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	defer rc.Close()
	w.Header().Set("Content-Type", mime)
	_, _ = io.Copy(w, rc)
}

// handleAudioAttach stores an uploaded audio file and attaches it to a
// track. The payload is first staged to a temp file so the AudioExtractor
// capability (ffprobe, which needs a seekable path, not a request body
// stream) can probe it directly, matching internal/audio.Service.Attach's
// probePath parameter contract.
func (s *Server) handleAudioAttach(w http.ResponseWriter, r *http.Request) {
	trackID, err := parseIDAs(r.URL.Query().Get("track_id"), "track")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	filename := r.URL.Query().Get("filename")

	tmp, err := os.CreateTemp("", "sonar-audio-upload-*")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()
	if _, err := io.Copy(tmp, r.Body); err != nil {
		writeError(w, s.log, err)
		return
	}
	if _, err := tmp.Seek(0, io.SeekStart); err != nil {
		writeError(w, s.log, err)
		return
	}

	audioRow, trackAudio, err := s.engine.Audio.Attach(r.Context(), nil, trackID, tmp, filename, tmp.Name())
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{
		"audio_id":      id.New(id.NamespaceAudio, audioRow.ID).String(),
		"preferred":     trackAudio.Preferred,
		"bitrate":       audioRow.Bitrate,
		"duration_ms":   audioRow.DurationMs,
		"channels":      audioRow.Channels,
		"sample_freq":   audioRow.SampleFreq,
		"mime":          audioRow.Mime,
	})
}

type audioSetPreferredRequest struct {
	TrackID      string `json:"track_id"`
	TrackAudioID string `json:"track_audio_id"`
}

func (s *Server) handleAudioSetPreferred(w http.ResponseWriter, r *http.Request) {
	var req audioSetPreferredRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, s.log, err)
		return
	}
	trackID, err := parseIDAs(req.TrackID, "track")
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	trackAudioID, err := strconv.ParseInt(req.TrackAudioID, 10, 64)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	if err := s.engine.Audio.SetPreferred(r.Context(), nil, trackID, trackAudioID); err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, map[string]any{"ok": true})
}

// handleAudioStream serves a track's preferred audio, honoring HTTP Range
// requests per spec.md §4.6's "stream(track_id, [offset, length])". The
// bounded reader underneath (internal/blob.GetRange) keeps memory
// footprint constant regardless of file size.
func (s *Server) handleAudioStream(w http.ResponseWriter, r *http.Request) {
	trackID, err := parseIDAs(r.URL.Query().Get("track_id"), "track")
	if err != nil {
		writeError(w, s.log, err)
		return
	}

	var rng *audio.Range
	if h := r.Header.Get("Range"); h != "" {
		if parsed, ok := parseRangeHeader(h); ok {
			rng = &parsed
		}
	}

	rc, audioRow, err := s.engine.Audio.Stream(r.Context(), nil, trackID, rng)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", audioRow.Mime)
	w.Header().Set("Accept-Ranges", "bytes")
	if rng != nil {
		w.WriteHeader(http.StatusPartialContent)
	}
	_, _ = io.Copy(w, rc)
}

// parseRangeHeader parses a single-range "bytes=start-" or "bytes=start-end"
// header into an audio.Range. Multi-range requests are not supported;
// callers get the first range only.
func parseRangeHeader(h string) (audio.Range, bool) {
	h = strings.TrimPrefix(h, "bytes=")
	if i := strings.IndexByte(h, ','); i >= 0 {
		h = h[:i]
	}
	parts := strings.SplitN(h, "-", 2)
	if len(parts) != 2 {
		return audio.Range{}, false
	}
	start, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return audio.Range{}, false
	}
	if parts[1] == "" {
		return audio.Range{Offset: start}, true
	}
	end, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || end < start {
		return audio.Range{Offset: start}, true
	}
	return audio.Range{Offset: start, Length: end - start + 1}, true
}
