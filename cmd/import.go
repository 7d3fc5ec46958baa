package cmd

import (
	"fmt"
	"os"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/sonar-music/sonar/internal/capability/audioext"
	"github.com/sonar-music/sonar/internal/capability/tagext"
	"github.com/sonar-music/sonar/internal/config"
	"github.com/sonar-music/sonar/internal/engine"
	"github.com/sonar-music/sonar/internal/id"
	"github.com/sonar-music/sonar/internal/importer"
	"github.com/sonar-music/sonar/internal/logging"
)

var (
	importArtistID string
	importAlbumID  string
)

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "import a single audio file into the library",
	Long:  "Runs the Import Pipeline directly against the engine, bypassing the RPC surface entirely, with a progress bar tracking bytes read from disk.",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	importCmd.Flags().StringVar(&importArtistID, "artist-id", "", "skip artist resolution and attach to this artist id")
	importCmd.Flags().StringVar(&importAlbumID, "album-id", "", "skip album resolution and attach to this album id")
	rootCmd.AddCommand(importCmd)
}

// runImport opens a short-lived engine against the same data directory a
// running sonar server uses — the CLI is an external collaborator exactly
// like the RPC and OpenSubsonic servers, holding no catalog state of its
// own, per spec.md §1.
func runImport(cmd *cobra.Command, args []string) error {
	path := args[0]
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("failed to stat %q: %w", path, err)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	log := logging.Nop()

	e, err := engine.New(cmd.Context(), cfg, log, engine.Options{
		TagExtractor:   tagext.New(),
		AudioExtractor: audioext.New(cfg.FFProbePath),
	})
	if err != nil {
		return fmt.Errorf("failed to start engine: %w", err)
	}
	defer e.Close()

	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %q: %w", path, err)
	}
	defer f.Close()

	bar := progressbar.DefaultBytes(info.Size(), "importing "+path)
	reader := progressbar.NewReader(f, bar)

	hints := importer.Hints{Filepath: path}
	if importArtistID != "" {
		id, err := parseHintID(importArtistID, "artist")
		if err != nil {
			return err
		}
		hints.ArtistID = &id
	}
	if importAlbumID != "" {
		id, err := parseHintID(importAlbumID, "album")
		if err != nil {
			return err
		}
		hints.AlbumID = &id
	}

	result, err := e.Importer.Import(cmd.Context(), &reader, hints)
	if err != nil {
		return fmt.Errorf("import failed: %w", err)
	}
	fmt.Printf("\nimported track=%d album=%d artist=%d audio=%d track_created=%v\n",
		result.TrackID, result.AlbumID, result.ArtistID, result.AudioID, result.TrackCreated)
	return nil
}

// parseHintID decodes an opaque external id flag value, enforcing the
// expected namespace the same way the RPC handlers do via internal/id.
func parseHintID(s, ns string) (int64, error) {
	parsed, err := id.ParseAs(s, id.Namespace(ns))
	if err != nil {
		return 0, fmt.Errorf("invalid --%s-id %q: %w", ns, s, err)
	}
	return parsed.Key, nil
}
