package script

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/kalambet/reelkit/internal/llm"
	"github.com/kalambet/reelkit/internal/video"
)

const (
	temperature = 0.8
	maxTokens   = 4000

	// DefaultSampleSize is how many stored decompositions an originate
	// prompt learns from.
	DefaultSampleSize = 3
)

// Mode selects how a script is derived.
type Mode int

const (
	// Imitate mirrors one analysed video.
	Imitate Mode = iota + 1
	// Originate writes on a new topic using stored patterns.
	Originate
)

func (m Mode) String() string {
	switch m {
	case Imitate:
		return "imitate"
	case Originate:
		return "originate"
	default:
		return "unknown"
	}
}

// Completer is the chat completion capability the generator needs.
type Completer interface {
	Complete(ctx context.Context, r llm.Request) (string, error)
}

// Request carries the inputs for one generation. Imitate reads
// Decomposition; Originate reads Topic and Patterns.
type Request struct {
	Mode          Mode
	Decomposition video.Decomposition
	Topic         string
	Patterns      []video.Decomposition
	Product       Product
}

// Generator writes short-video scripts with an LLM.
type Generator struct {
	llm        Completer
	sampleSize int
}

// NewGenerator creates a Generator. sampleSize <= 0 uses DefaultSampleSize.
func NewGenerator(c Completer, sampleSize int) *Generator {
	if sampleSize <= 0 {
		sampleSize = DefaultSampleSize
	}
	return &Generator{llm: c, sampleSize: sampleSize}
}

// Generate builds the prompt for r.Mode and returns the model's script
// verbatim. An empty reply is returned as an empty string.
func (g *Generator) Generate(ctx context.Context, r Request) (string, error) {
	var (
		system, prompt string
		err            error
	)
	switch r.Mode {
	case Imitate:
		if r.Decomposition.VideoID == "" && r.Decomposition.Raw == "" {
			return "", errors.New("imitate: empty decomposition")
		}
		system, prompt = imitateSystem, imitatePrompt(r.Decomposition, r.Product)
	case Originate:
		topic := strings.TrimSpace(r.Topic)
		if topic == "" {
			return "", errors.New("originate: empty topic")
		}
		system = originateSystem
		prompt, err = originatePrompt(topic, sample(r.Patterns, g.sampleSize), r.Product)
		if err != nil {
			return "", err
		}
	default:
		return "", fmt.Errorf("unknown script mode %d", r.Mode)
	}

	text, err := g.llm.Complete(ctx, llm.Request{
		System:      system,
		User:        prompt,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("%s script: %w", r.Mode, err)
	}
	return text, nil
}

// Imitate writes a script modelled on d that promotes p.
func (g *Generator) Imitate(ctx context.Context, d video.Decomposition, p Product) (string, error) {
	return g.Generate(ctx, Request{Mode: Imitate, Decomposition: d, Product: p})
}

// Originate writes a script on topic, learning from the first stored
// decompositions in corpus. An empty corpus still produces a script.
func (g *Generator) Originate(ctx context.Context, topic string, corpus []video.Decomposition, p Product) (string, error) {
	return g.Generate(ctx, Request{Mode: Originate, Topic: topic, Patterns: corpus, Product: p})
}

func sample(all []video.Decomposition, n int) []video.Decomposition {
	if len(all) <= n {
		return all
	}
	return all[:n]
}
