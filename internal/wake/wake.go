// Package wake runs the background wake-word listener and exposes it to the
// dispatch loop as an assistant.Source.
//
// The listener owns the microphone. It reports an activation over a channel
// and then waits, without capturing, until the source hands the microphone
// back after the turn and a cooldown.
package wake

import (
	"context"
	"fmt"
	log "log/slog"
	"regexp"
	"strings"
	"sync/atomic"
	"time"

	"mia/internal/assistant"
)

// Capturer records one utterance. No samples and no error means nothing
// was said.
type Capturer interface {
	Capture(ctx context.Context, maxDur time.Duration) ([]float32, error)
}

type Transcriber interface {
	Transcribe(ctx context.Context, pcm []float32) (string, error)
}

type Config struct {
	Capturer    Capturer
	Transcriber Transcriber
	WakeWords   []string

	SnippetMax time.Duration
	CommandMax time.Duration
	Cooldown   time.Duration

	// OnActivate runs before the command is captured (beep, notify, duck).
	OnActivate func(ctx context.Context)
	// OnCaptured runs after capture with the cleaned transcript, which is
	// empty when nothing was understood.
	OnCaptured func(ctx context.Context, text string)
}

type Listener struct {
	cfg Config

	activations chan struct{}
	resume      chan struct{}
	trigger     chan struct{}
	injected    chan assistant.Input

	active        atomic.Bool
	pendingResume bool
}

func NewListener(cfg Config) *Listener {
	if cfg.SnippetMax <= 0 {
		cfg.SnippetMax = 4 * time.Second
	}
	if cfg.CommandMax <= 0 {
		cfg.CommandMax = 10 * time.Second
	}
	return &Listener{
		cfg:         cfg,
		activations: make(chan struct{}),
		resume:      make(chan struct{}),
		trigger:     make(chan struct{}, 1),
		injected:    make(chan assistant.Input),
	}
}

// Active reports whether a turn is in progress or cooling down.
func (l *Listener) Active() bool { return l.active.Load() }

// Trigger activates as if the wake word was heard.
func (l *Listener) Trigger() {
	select {
	case l.trigger <- struct{}{}:
	default:
	}
}

// Inject queues a turn that did not come from the microphone. It blocks
// until the dispatch loop takes it.
func (l *Listener) Inject(ctx context.Context, in assistant.Input) error {
	select {
	case l.injected <- in:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run is the background wake-word loop.
func (l *Listener) Run(ctx context.Context) error {
	log.Info("Wake word detection started", "words", l.cfg.WakeWords)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.trigger:
			log.Info("Activation triggered")
			if err := l.activate(ctx); err != nil {
				return err
			}
			continue
		default:
		}

		heard, err := l.listen(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Warn("Wake word detection error", "err", err)
			if !sleep(ctx, time.Second) {
				return ctx.Err()
			}
			continue
		}

		if heard == "" {
			continue
		}
		log.Debug("Heard", "text", heard)

		if l.isWake(heard) {
			log.Info("Wake word detected", "text", heard)
			if err := l.activate(ctx); err != nil {
				return err
			}
		}
	}
}

func (l *Listener) listen(ctx context.Context) (string, error) {
	pcm, err := l.cfg.Capturer.Capture(ctx, l.cfg.SnippetMax)
	if err != nil || len(pcm) == 0 {
		return "", err
	}
	text, err := l.cfg.Transcriber.Transcribe(ctx, pcm)
	if err != nil {
		return "", fmt.Errorf("transcribe snippet: %w", err)
	}
	return strings.ToLower(cleanTranscript(text)), nil
}

func (l *Listener) isWake(text string) bool {
	for _, w := range l.cfg.WakeWords {
		if strings.Contains(text, w) {
			return true
		}
	}
	return false
}

// activate hands the microphone to the source and blocks until it is given
// back.
func (l *Listener) activate(ctx context.Context) error {
	l.active.Store(true)

	select {
	case l.activations <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-l.resume:
	case <-ctx.Done():
		return ctx.Err()
	}

	// drop triggers that arrived during the turn
	select {
	case <-l.trigger:
	default:
	}
	l.active.Store(false)
	return nil
}

// Next implements assistant.Source. It must be called from a single
// goroutine, the dispatch loop.
func (l *Listener) Next(ctx context.Context) (assistant.Input, error) {
	if l.pendingResume {
		l.pendingResume = false
		go l.giveBack(ctx)
	}

	select {
	case <-ctx.Done():
		return assistant.Input{}, ctx.Err()

	case in := <-l.injected:
		return in, nil

	case <-l.activations:
		l.pendingResume = true
		return l.captureCommand(ctx)
	}
}

func (l *Listener) captureCommand(ctx context.Context) (assistant.Input, error) {
	if l.cfg.OnActivate != nil {
		l.cfg.OnActivate(ctx)
	}

	var text string
	pcm, err := l.cfg.Capturer.Capture(ctx, l.cfg.CommandMax)
	if err == nil && len(pcm) > 0 {
		text, err = l.cfg.Transcriber.Transcribe(ctx, pcm)
		text = cleanTranscript(text)
	}

	if l.cfg.OnCaptured != nil {
		l.cfg.OnCaptured(ctx, text)
	}

	if err != nil {
		return assistant.Input{}, fmt.Errorf("%w: %v", assistant.ErrNotUnderstood, err)
	}
	if text == "" {
		return assistant.Input{}, assistant.ErrNotUnderstood
	}

	log.Info("Command heard", "text", text)
	return assistant.Input{Text: text, Activated: true}, nil
}

func (l *Listener) giveBack(ctx context.Context) {
	if !sleep(ctx, l.cfg.Cooldown) {
		return
	}
	select {
	case l.resume <- struct{}{}:
	case <-ctx.Done():
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// whisper marks non-speech as [BLANK_AUDIO], (music), *coughs* and so on.
var annotationRe = regexp.MustCompile(`\[[^\]]*\]|\([^)]*\)|\*[^*]*\*`)

// cleanTranscript strips non-speech annotations and collapses whitespace.
func cleanTranscript(text string) string {
	text = annotationRe.ReplaceAllString(text, " ")
	return strings.Join(strings.Fields(text), " ")
}
