// Package audioext is the default AudioExtractor capability (spec.md §6),
// shelling out to ffprobe the way core/audio/ffmpeg_processor.go's
// getAudioFormat shells to its sibling binary: exec.CommandContext with
// "-of json" and a json.Unmarshal of the result, generalized here to pull
// bitrate/duration/channels/sample-rate/mime in one probe instead of just
// a codec name.
package audioext

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/sonar-music/sonar/internal/capability"
	"github.com/sonar-music/sonar/internal/sonarerr"
)

// Extractor implements capability.AudioExtractor via ffprobe.
type Extractor struct {
	ffprobePath string
}

// New constructs an Extractor that shells to ffprobePath (typically just
// "ffprobe", resolved via $PATH).
func New(ffprobePath string) *Extractor {
	if ffprobePath == "" {
		ffprobePath = "ffprobe"
	}
	return &Extractor{ffprobePath: ffprobePath}
}

type probeOutput struct {
	Streams []struct {
		CodecType  string `json:"codec_type"`
		Channels   int    `json:"channels"`
		SampleRate string `json:"sample_rate"`
		BitRate    string `json:"bit_rate"`
	} `json:"streams"`
	Format struct {
		Duration   string `json:"duration"`
		BitRate    string `json:"bit_rate"`
		FormatName string `json:"format_name"`
	} `json:"format"`
}

// ExtractAudio runs ffprobe over the file at path and maps its JSON output
// into capability.AudioAttributes. path is a temp file ffprobe reads
// directly, generally without an extension (importer and upload handlers
// both probe files created via os.CreateTemp), so mime is derived from
// ffprobe's own container detection (format.format_name) rather than
// guessed from the path.
func (e *Extractor) ExtractAudio(ctx context.Context, path string) (capability.AudioAttributes, error) {
	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "error",
		"-select_streams", "a:0",
		"-show_entries", "stream=channels,sample_rate,bit_rate,codec_type:format=duration,bit_rate,format_name",
		"-of", "json",
		path,
	)
	var out, stderr bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return capability.AudioAttributes{}, sonarerr.IO(
			fmt.Sprintf("ffprobe failed: %s", stderr.String()), err)
	}

	var probe probeOutput
	if err := json.Unmarshal(out.Bytes(), &probe); err != nil {
		return capability.AudioAttributes{}, sonarerr.IO("failed to parse ffprobe output", err)
	}
	if len(probe.Streams) == 0 {
		return capability.AudioAttributes{}, sonarerr.InvalidArgument("audio", "no audio stream found")
	}
	stream := probe.Streams[0]

	bitrate := atoiDefault(stream.BitRate, 0)
	if bitrate == 0 {
		bitrate = atoiDefault(probe.Format.BitRate, 0)
	}
	durationMs := int64(parseFloatDefault(probe.Format.Duration, 0) * 1000)

	return capability.AudioAttributes{
		Mime:       mimeFromFormatName(probe.Format.FormatName),
		Bitrate:    bitrate,
		DurationMs: durationMs,
		Channels:   stream.Channels,
		SampleFreq: atoiDefault(stream.SampleRate, 44100),
	}, nil
}

func atoiDefault(s string, fallback int) int {
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

func parseFloatDefault(s string, fallback float64) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fallback
	}
	return f
}

// mimeFromFormatName maps ffprobe's format.format_name to a mime type.
// ffprobe reports some containers as a comma-separated list of demuxer
// names it could equally have matched (e.g. "mov,mp4,m4a,3gp,3g2,mj2"), so
// this checks substrings rather than the whole field.
func mimeFromFormatName(name string) string {
	name = strings.ToLower(name)
	switch {
	case strings.Contains(name, "flac"):
		return "audio/flac"
	case strings.Contains(name, "mp3"):
		return "audio/mpeg"
	case strings.Contains(name, "ogg"):
		return "audio/ogg"
	case strings.Contains(name, "mp4"), strings.Contains(name, "m4a"):
		return "audio/mp4"
	case strings.Contains(name, "wav"):
		return "audio/wav"
	default:
		return "application/octet-stream"
	}
}
