package dispatch

import (
	"context"
	"errors"

	"github.com/kalambet/reelkit/internal/command"
	"github.com/kalambet/reelkit/internal/llm"
	"github.com/kalambet/reelkit/internal/resolver"
	"github.com/kalambet/reelkit/internal/store"
	"github.com/kalambet/reelkit/internal/transcribe"
)

// Class groups errors by who can fix them.
type Class int

const (
	ClassNone Class = iota
	// ClassParse: the instruction text was not understood.
	ClassParse
	// ClassResolve: a queue index or stored video could not be found.
	ClassResolve
	// ClassCollaborator: an external service failed.
	ClassCollaborator
	// ClassCanceled: the caller gave up.
	ClassCanceled
	// ClassInternal: anything else, usually local I/O.
	ClassInternal
)

func (c Class) String() string {
	switch c {
	case ClassNone:
		return "none"
	case ClassParse:
		return "parse"
	case ClassResolve:
		return "resolve"
	case ClassCollaborator:
		return "collaborator"
	case ClassCanceled:
		return "canceled"
	default:
		return "internal"
	}
}

// Classify reports the Class of err.
func Classify(err error) Class {
	if err == nil {
		return ClassNone
	}

	var (
		ce *llm.CompletionError
		re *resolver.ResolutionError
		de *resolver.DownloadError
		te *transcribe.Error
	)
	switch {
	case errors.Is(err, command.ErrUnrecognized):
		return ClassParse
	case errors.Is(err, store.ErrNotFound), errors.Is(err, store.ErrNoQueue):
		return ClassResolve
	case errors.As(err, &ce), errors.As(err, &re), errors.As(err, &de), errors.As(err, &te):
		return ClassCollaborator
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return ClassCanceled
	default:
		return ClassInternal
	}
}
