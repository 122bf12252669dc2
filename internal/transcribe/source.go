package transcribe

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/kalambet/reelkit/internal/resolver"
	"github.com/kalambet/reelkit/internal/video"
)

// ErrNoShareURL is returned when an entry carries neither a share URL nor a
// resolved media URL.
var ErrNoShareURL = errors.New("entry has no share url")

// MediaResolver turns share URLs into local media files.
type MediaResolver interface {
	Resolve(ctx context.Context, shareURL string) (resolver.Resolution, error)
	Download(ctx context.Context, mediaURL, dir, name string) (string, error)
}

// Transcriber converts a local media file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Analyzer reconstructs a script from a local media file.
type Analyzer interface {
	AnalyzeVideo(ctx context.Context, path string, e video.Entry) (string, error)
}

// Source produces a transcript for a queue entry by resolving its share URL,
// downloading the media and transcribing it. When transcription fails and an
// analyzer is configured, the multimodal reconstruction is used instead.
type Source struct {
	resolver    MediaResolver
	transcriber Transcriber
	analyzer    Analyzer
	workDir     string
}

// NewSource creates a Source. analyzer may be nil.
func NewSource(r MediaResolver, t Transcriber, a Analyzer, workDir string) *Source {
	return &Source{resolver: r, transcriber: t, analyzer: a, workDir: workDir}
}

// Transcript returns the spoken text of e. An entry whose MediaURL is set
// is downloaded directly without resolving ShareURL again.
func (s *Source) Transcript(ctx context.Context, e video.Entry) (string, error) {
	mediaURL := e.MediaURL
	if mediaURL == "" {
		if e.ShareURL == "" {
			return "", ErrNoShareURL
		}
		res, err := s.resolver.Resolve(ctx, e.ShareURL)
		if err != nil {
			return "", err
		}
		mediaURL = res.DownloadURL
	}

	path, err := s.resolver.Download(ctx, mediaURL, s.workDir, e.VideoID+".mp4")
	if err != nil {
		return "", err
	}
	defer os.Remove(path)

	text, terr := s.transcriber.Transcribe(ctx, path)
	if terr == nil && text != "" {
		slog.Debug("transcribed video", "video_id", e.VideoID, "chars", len(text))
		return text, nil
	}
	if terr == nil {
		terr = errors.New("empty transcript")
	}
	if s.analyzer == nil {
		return "", fmt.Errorf("transcribing %s: %w", e.VideoID, terr)
	}

	slog.Warn("transcription failed, trying multimodal analysis", "video_id", e.VideoID, "error", terr)
	text, err = s.analyzer.AnalyzeVideo(ctx, path, e)
	if err != nil {
		return "", fmt.Errorf("transcribing %s: %w", e.VideoID, errors.Join(terr, err))
	}
	return text, nil
}

// Resolve exposes the underlying resolver so one-off URL analysis can read
// the resolved title.
func (s *Source) Resolve(ctx context.Context, shareURL string) (resolver.Resolution, error) {
	return s.resolver.Resolve(ctx, shareURL)
}
