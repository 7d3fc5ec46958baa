package server

import (
	"io"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/sonar-music/sonar/internal/id"
	"github.com/sonar-music/sonar/internal/importer"
)

func importHints(r *http.Request) (importer.Hints, error) {
	hints := importer.Hints{Filepath: r.URL.Query().Get("filepath")}
	if s := r.URL.Query().Get("artist_id"); s != "" {
		v, err := parseIDAs(s, "artist")
		if err != nil {
			return importer.Hints{}, err
		}
		hints.ArtistID = &v
	}
	if s := r.URL.Query().Get("album_id"); s != "" {
		v, err := parseIDAs(s, "album")
		if err != nil {
			return importer.Hints{}, err
		}
		hints.AlbumID = &v
	}
	return hints, nil
}

func wireImportResult(res importer.Result) map[string]any {
	out := map[string]any{
		"artist_id":     id.New(id.NamespaceArtist, res.ArtistID).String(),
		"album_id":      id.New(id.NamespaceAlbum, res.AlbumID).String(),
		"track_id":      id.New(id.NamespaceTrack, res.TrackID).String(),
		"audio_id":      id.New(id.NamespaceAudio, res.AudioID).String(),
		"track_created": res.TrackCreated,
	}
	return out
}

// handleImport is the whole-body variant of the Import Pipeline: the
// request body is itself already a stream, so the blob store folds it
// into its staging file without ever buffering the full upload in memory.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	hints, err := importHints(r)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	res, err := s.engine.Importer.Import(r.Context(), r.Body, hints)
	if err != nil {
		writeError(w, s.log, err)
		return
	}
	writeResult(w, wireImportResult(res))
}

var importUpgrader = websocket.Upgrader{
	ReadBufferSize:  32 * 1024,
	WriteBufferSize: 32 * 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

type importProgressMessage struct {
	Stage  string         `json:"stage"`
	Error  string         `json:"error,omitempty"`
	Result map[string]any `json:"result,omitempty"`
}

// handleImportProgressWS is the chunked variant of the Import Pipeline:
// the client sends binary frames for each chunk of the file, followed by
// one text frame that ends the upload (its body is not read, and the
// import runs with empty Hints), and this handler folds
// the chunks into an io.Pipe fed to Importer.Import as they arrive —
// exactly the pattern internal/importer.Service's doc comment describes
// for "an io.Pipe fed as chunks arrive". Progress/result messages are
// written back on the same connection.
func (s *Server) handleImportProgressWS(w http.ResponseWriter, r *http.Request) {
	conn, err := importUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("import progress websocket upgrade failed")
		return
	}
	defer conn.Close()

	pr, pw := io.Pipe()
	done := make(chan struct{})
	var result importer.Result
	var importErr error

	go func() {
		defer close(done)
		result, importErr = s.engine.Importer.Import(r.Context(), pr, importer.Hints{})
	}()

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			pw.CloseWithError(err)
			break
		}
		if msgType == websocket.TextMessage {
			// A text frame signals end-of-stream; its body is unused hints
			// metadata reserved for future extension.
			pw.Close()
			break
		}
		if _, err := pw.Write(data); err != nil {
			break
		}
		_ = conn.WriteJSON(importProgressMessage{Stage: "chunk_received"})
	}

	<-done
	if importErr != nil {
		_ = conn.WriteJSON(importProgressMessage{Stage: "failed", Error: importErr.Error()})
		return
	}
	_ = conn.WriteJSON(importProgressMessage{Stage: "done", Result: wireImportResult(result)})
}
