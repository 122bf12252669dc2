package transcribe

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/kalambet/reelkit/internal/llm"
	"github.com/kalambet/reelkit/internal/video"
)

// defaultMaxInline caps how much of a media file is inlined into a
// multimodal request.
const defaultMaxInline = 20 << 20

// Completer is the chat completion capability the analyzer needs.
type Completer interface {
	Complete(ctx context.Context, r llm.Request) (string, error)
}

// VideoAnalyzer asks a multimodal model to reconstruct a video's voice-over
// and structure directly from the media file. It is the fallback when audio
// transcription is unavailable.
type VideoAnalyzer struct {
	llm       Completer
	maxInline int64
}

// NewVideoAnalyzer creates an analyzer backed by c.
func NewVideoAnalyzer(c Completer) *VideoAnalyzer {
	return &VideoAnalyzer{llm: c, maxInline: defaultMaxInline}
}

// AnalyzeVideo inlines the media at path as a data URL and returns the
// model's reconstruction of the spoken script.
func (a *VideoAnalyzer) AnalyzeVideo(ctx context.Context, path string, e video.Entry) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("stat media: %w", err)
	}
	if info.Size() > a.maxInline {
		return "", fmt.Errorf("media %s is %d bytes, over the %d byte inline limit", path, info.Size(), a.maxInline)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading media: %w", err)
	}

	dataURL := "data:video/mp4;base64," + base64.StdEncoding.EncodeToString(data)
	text, err := a.llm.Complete(ctx, llm.Request{
		Parts:       []llm.Part{llm.TextPart(analysisPrompt(e)), llm.VideoPart(dataURL)},
		Temperature: 0.7,
		MaxTokens:   4000,
	})
	if err != nil {
		return "", fmt.Errorf("multimodal analysis: %w", err)
	}
	return strings.TrimSpace(text), nil
}

func analysisPrompt(e video.Entry) string {
	var b strings.Builder
	b.WriteString("请深度分析这个抖音视频的内容结构和口播文案。\n\n")
	b.WriteString("【视频信息】\n")
	fmt.Fprintf(&b, "- 标题: %s\n", e.Title)
	fmt.Fprintf(&b, "- 作者: %s\n", e.Author)
	fmt.Fprintf(&b, "- 点赞: %d | 分享: %d | 收藏: %d\n\n", e.Likes, e.Shares, e.Collects)
	b.WriteString("【分析要求】\n")
	b.WriteString("1. 完整口播文本 - 尽可能还原视频的口播内容\n")
	b.WriteString("2. 开头钩子 - 前3秒如何吸引观众\n")
	b.WriteString("3. 结构框架 - 视频如何组织\n")
	b.WriteString("4. 情绪曲线 - 情感起伏点在哪里\n")
	b.WriteString("5. 金句摘录 - 3-5个精彩表达\n")
	b.WriteString("6. CTA设计 - 如何引导互动\n\n")
	b.WriteString("请尽可能详细地还原口播文本。")
	return b.String()
}
