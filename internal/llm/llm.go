// Package llm defines the contract between the dialog engine and text
// generation backends.
package llm

import (
	"context"
	"errors"
	"fmt"
)

// Request is one generation call.
type Request struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Generator produces text for a request. Implementations return a
// *GenerationError on failure.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, req Request) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, req Request) (string, error) {
	return f(ctx, req)
}

// ErrorKind classifies a generation failure.
type ErrorKind string

const (
	KindTimeout   ErrorKind = "timeout"
	KindQuota     ErrorKind = "quota"
	KindMalformed ErrorKind = "malformed"
	KindTransport ErrorKind = "transport"
	KindBackend   ErrorKind = "backend"
)

// GenerationError is the single failure type of every backend.
type GenerationError struct {
	Backend string
	Kind    ErrorKind
	Status  int
	Err     error
}

func (e *GenerationError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s %s (status %d): %v", e.Backend, e.Kind, e.Status, e.Err)
	}
	return fmt.Sprintf("%s %s: %v", e.Backend, e.Kind, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }

// NewError builds a GenerationError, reclassifying context deadline errors
// as timeouts.
func NewError(backend string, kind ErrorKind, status int, err error) *GenerationError {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = KindTimeout
	}
	return &GenerationError{Backend: backend, Kind: kind, Status: status, Err: err}
}

// KindForStatus maps an HTTP status to an error kind.
func KindForStatus(status int) ErrorKind {
	switch {
	case status == 429 || status == 402:
		return KindQuota
	case status == 408 || status == 504:
		return KindTimeout
	default:
		return KindBackend
	}
}

// KindOf extracts the kind of err, or "" when err is not a GenerationError.
func KindOf(err error) ErrorKind {
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Kind
	}
	return ""
}
