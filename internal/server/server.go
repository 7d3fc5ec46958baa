package server

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/sonar-music/sonar/internal/engine"
)

// Server is the native RPC collaborator holding a reference to the
// engine and nothing else, per spec.md §9's "no ambient globals" — every
// handler method reaches the engine through s.engine, never a package
// var the way db/database.go's `var DB *sql.DB` worked in the teacher.
type Server struct {
	engine *engine.Engine
	log    *zap.Logger
	router *mux.Router
}

// New builds the RPC router over an already-running Engine.
func New(e *engine.Engine) *Server {
	log := e.Log
	s := &Server{engine: e, log: log, router: mux.NewRouter()}
	s.routes()
	return s
}

// Handler returns the http.Handler serving the RPC API.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe blocks serving the RPC API on addr until ctx is
// canceled, then shuts down gracefully. Grounded on server/server.go's
// http.Server construction (fixed Read/Write/Idle timeouts), generalized
// to take the listen address from config instead of a hardcoded ":8080".
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // audio streaming responses can run far longer than 30s
		IdleTimeout:  120 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() {
	s.router.Use(cors)

	s.router.HandleFunc("/rpc/UserCreate", s.adminRequired(s.handleUserCreate)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/UserDelete", s.adminRequired(s.handleUserDelete)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/UserGet", s.authRequired(s.handleUserGet)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/UserLogin", s.handleLogin).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/UserLogout", s.authRequired(s.handleLogout)).Methods(http.MethodPost)

	s.router.HandleFunc("/rpc/ArtistGet", s.authRequired(s.handleArtistGet)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/ArtistList", s.authRequired(s.handleArtistList)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/ArtistCreate", s.authRequired(s.handleArtistCreate)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/ArtistUpdate", s.authRequired(s.handleArtistUpdate)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/ArtistDelete", s.authRequired(s.handleArtistDelete)).Methods(http.MethodPost)

	s.router.HandleFunc("/rpc/AlbumGet", s.authRequired(s.handleAlbumGet)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/AlbumListByArtist", s.authRequired(s.handleAlbumListByArtist)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/AlbumCreate", s.authRequired(s.handleAlbumCreate)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/AlbumUpdate", s.authRequired(s.handleAlbumUpdate)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/AlbumDelete", s.authRequired(s.handleAlbumDelete)).Methods(http.MethodPost)

	s.router.HandleFunc("/rpc/TrackGet", s.authRequired(s.handleTrackGet)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/TrackListByAlbum", s.authRequired(s.handleTrackListByAlbum)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/TrackUpdate", s.authRequired(s.handleTrackUpdate)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/TrackDelete", s.authRequired(s.handleTrackDelete)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/TrackLyricsGet", s.authRequired(s.handleLyricsGet)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/TrackLyricsSetSynced", s.authRequired(s.handleLyricsSetSynced)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/TrackLyricsSetUnsynced", s.authRequired(s.handleLyricsSetUnsynced)).Methods(http.MethodPost)

	s.router.HandleFunc("/rpc/AudioStream", s.authRequired(s.handleAudioStream)).Methods(http.MethodGet)
	s.router.HandleFunc("/rpc/AudioAttach", s.authRequired(s.handleAudioAttach)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/AudioSetPreferred", s.authRequired(s.handleAudioSetPreferred)).Methods(http.MethodPost)

	s.router.HandleFunc("/rpc/ImageCreate", s.authRequired(s.handleImageCreate)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/ImageDownload", s.handleImageDownload).Methods(http.MethodGet)

	s.router.HandleFunc("/rpc/PlaylistCreate", s.authRequired(s.handlePlaylistCreate)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/PlaylistGet", s.authRequired(s.handlePlaylistGet)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/PlaylistUpdate", s.authRequired(s.handlePlaylistUpdate)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/PlaylistDelete", s.authRequired(s.handlePlaylistDelete)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/PlaylistDuplicate", s.authRequired(s.handlePlaylistDuplicate)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/PlaylistTrackList", s.authRequired(s.handlePlaylistTrackList)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/PlaylistTrackInsert", s.authRequired(s.handlePlaylistTrackInsert)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/PlaylistTrackRemove", s.authRequired(s.handlePlaylistTrackRemove)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/PlaylistTrackClear", s.authRequired(s.handlePlaylistTrackClear)).Methods(http.MethodPost)

	s.router.HandleFunc("/rpc/FavoriteAdd", s.authRequired(s.handleFavoriteAdd)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/FavoriteRemove", s.authRequired(s.handleFavoriteRemove)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/FavoriteList", s.authRequired(s.handleFavoriteList)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/PinSet", s.authRequired(s.handlePinSet)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/PinUnset", s.authRequired(s.handlePinUnset)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/PinList", s.authRequired(s.handlePinList)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/ScrobbleCreate", s.authRequired(s.handleScrobbleCreate)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/ScrobbleDelete", s.authRequired(s.handleScrobbleDelete)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/ScrobbleList", s.authRequired(s.handleScrobbleList)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/SubscriptionAdd", s.authRequired(s.handleSubscriptionAdd)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/SubscriptionRemove", s.authRequired(s.handleSubscriptionRemove)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/SubscriptionList", s.authRequired(s.handleSubscriptionList)).Methods(http.MethodPost)

	s.router.HandleFunc("/rpc/Import", s.authRequired(s.handleImport)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/ImportProgress", s.handleImportProgressWS)

	s.router.HandleFunc("/rpc/MetadataFetch", s.authRequired(s.handleMetadataFetch)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/MetadataAlbumTracks", s.authRequired(s.handleMetadataAlbumTracks)).Methods(http.MethodPost)

	s.router.HandleFunc("/rpc/Search", s.authRequired(s.handleSearch)).Methods(http.MethodPost)

	s.router.HandleFunc("/rpc/PropertyList", s.authRequired(s.handlePropertyList)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/PropertySet", s.authRequired(s.handlePropertySet)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/PropertyUnset", s.authRequired(s.handlePropertyUnset)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/GenreAdd", s.authRequired(s.handleGenreAdd)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/GenreRemove", s.authRequired(s.handleGenreRemove)).Methods(http.MethodPost)
	s.router.HandleFunc("/rpc/GenreList", s.authRequired(s.handleGenreList)).Methods(http.MethodPost)
}
