package decompose

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kalambet/reelkit/internal/llm"
	"github.com/kalambet/reelkit/internal/video"
)

const (
	temperature = 0.7
	maxTokens   = 3000
)

// Completer is the chat completion capability the engine needs.
type Completer interface {
	Complete(ctx context.Context, r llm.Request) (string, error)
}

// Saver persists finished decompositions.
type Saver interface {
	Save(d video.Decomposition) error
}

// TranscriptSource fetches the spoken text of a video.
type TranscriptSource interface {
	Transcript(ctx context.Context, e video.Entry) (string, error)
}

// Engine turns queue entries into stored decompositions.
type Engine struct {
	llm         Completer
	store       Saver
	transcripts TranscriptSource
	now         func() time.Time
}

// NewEngine creates an Engine. transcripts may be nil, in which case every
// analysis works from metadata alone.
func NewEngine(c Completer, s Saver, transcripts TranscriptSource) *Engine {
	return &Engine{
		llm:         c,
		store:       s,
		transcripts: transcripts,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// Decompose analyses e, saves the result keyed by its video ID and returns
// it. A failed transcript lookup degrades to a metadata-only analysis; a
// failed completion or save is returned as an error.
func (en *Engine) Decompose(ctx context.Context, e video.Entry) (video.Decomposition, error) {
	transcript := en.transcript(ctx, e)

	raw, err := en.llm.Complete(ctx, llm.Request{
		System:      systemPrompt,
		User:        BuildPrompt(e, transcript),
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return video.Decomposition{}, fmt.Errorf("analysing %s: %w", e.VideoID, err)
	}

	d := ParseAnalysis(raw)
	d.VideoID = e.VideoID
	d.Video = e
	d.Transcript = transcript
	d.CreatedAt = en.now()

	if d.CoreTheme == "" {
		slog.Warn("analysis reply had no recognisable sections", "video_id", e.VideoID, "chars", len(raw))
	}

	if err := en.store.Save(d); err != nil {
		return video.Decomposition{}, fmt.Errorf("saving %s: %w", e.VideoID, err)
	}
	slog.Info("video decomposed", "video_id", e.VideoID, "theme", d.CoreTheme)
	return d, nil
}

func (en *Engine) transcript(ctx context.Context, e video.Entry) string {
	if en.transcripts == nil {
		return ""
	}
	text, err := en.transcripts.Transcript(ctx, e)
	if err != nil {
		slog.Warn("transcript unavailable, using metadata only", "video_id", e.VideoID, "error", err)
		return ""
	}
	return text
}
