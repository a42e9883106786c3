package assistant

import (
	"context"
	"errors"
)

var (
	// ErrInvalidClassification marks a backend reply that is not one of the
	// two classification shapes.
	ErrInvalidClassification = errors.New("invalid classification")

	// ErrUnauthenticated is returned by classifiers when the credential is
	// missing or rejected.
	ErrUnauthenticated = errors.New("classifier credential missing or rejected")

	// ErrNotUnderstood is returned by a Source when audio could not be
	// transcribed into an actionable command.
	ErrNotUnderstood = errors.New("input not understood")
)

// Classifier sends a single prompt string to the generative backend and
// returns its raw text reply.
type Classifier interface {
	Classify(ctx context.Context, prompt string) (string, error)
}

// Executor hands a command string verbatim to the host shell.
type Executor interface {
	Run(ctx context.Context, command string) error
}

// Sink displays and/or speaks one line of output.
type Sink interface {
	Say(ctx context.Context, text string) error
}

// Input is one line of natural-language text. Activated is set when the
// activation was already established out of band (wake word).
type Input struct {
	Text      string
	Activated bool
}

// Source yields one Input per turn. It returns io.EOF when there is no more
// input and ErrNotUnderstood when capture failed.
type Source interface {
	Next(ctx context.Context) (Input, error)
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, text string) error

func (f SinkFunc) Say(ctx context.Context, text string) error { return f(ctx, text) }

// MultiSink fans one line out to several sinks. The first error wins but
// every sink is still called.
type MultiSink []Sink

func (m MultiSink) Say(ctx context.Context, text string) error {
	var first error
	for _, s := range m {
		if s == nil {
			continue
		}
		if err := s.Say(ctx, text); err != nil && first == nil {
			first = err
		}
	}
	return first
}
