package wake

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mia/internal/assistant"
)

// script feeds one transcript per capture. A blank entry is silence; once
// exhausted every capture is silence.
type script struct {
	mu     sync.Mutex
	steps  []string
	texts  []string
	limits []time.Duration
}

func (s *script) Capture(ctx context.Context, maxDur time.Duration) ([]float32, error) {
	s.mu.Lock()
	s.limits = append(s.limits, maxDur)
	if len(s.steps) == 0 {
		s.mu.Unlock()
		select {
		case <-time.After(5 * time.Millisecond):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
		return nil, nil
	}
	text := s.steps[0]
	s.steps = s.steps[1:]
	if text == "" {
		s.mu.Unlock()
		return nil, nil
	}
	s.texts = append(s.texts, text)
	id := len(s.texts) - 1
	s.mu.Unlock()
	return []float32{float32(id)}, nil
}

func (s *script) Transcribe(_ context.Context, pcm []float32) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.texts[int(pcm[0])], nil
}

func (s *script) captureLimits() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.limits...)
}

func newListener(s *script, hooks *[]string) *Listener {
	return NewListener(Config{
		Capturer:    s,
		Transcriber: s,
		WakeWords:   []string{"bhai"},
		SnippetMax:  4 * time.Second,
		CommandMax:  10 * time.Second,
		Cooldown:    10 * time.Millisecond,
		OnActivate: func(context.Context) {
			*hooks = append(*hooks, "activate")
		},
		OnCaptured: func(_ context.Context, text string) {
			*hooks = append(*hooks, "captured:"+text)
		},
	})
}

func nextWithin(t *testing.T, ctx context.Context, l *Listener) (assistant.Input, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return l.Next(ctx)
}

func TestWakeWordFeedsOneCommand(t *testing.T) {
	s := &script{steps: []string{" Hello world", " Hey [BLANK_AUDIO] Bhai!", " Open the calculator."}}
	var hooks []string
	l := newListener(s, &hooks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	in, err := nextWithin(t, ctx, l)
	require.NoError(t, err)
	assert.Equal(t, assistant.Input{Text: "Open the calculator.", Activated: true}, in)
	assert.True(t, l.Active())
	assert.Equal(t, []string{"activate", "captured:Open the calculator."}, hooks)
	assert.Equal(t, []time.Duration{4 * time.Second, 4 * time.Second, 10 * time.Second}, s.captureLimits())

	// Asking for the next turn hands the microphone back after the cooldown.
	go l.Next(ctx)
	assert.Eventually(t, func() bool { return !l.Active() }, 2*time.Second, 5*time.Millisecond)
	assert.Eventually(t, func() bool { return len(s.captureLimits()) > 3 }, 2*time.Second, 5*time.Millisecond)
}

func TestTriggerSkipsWakeWord(t *testing.T) {
	s := &script{steps: []string{"open notepad"}}
	var hooks []string
	l := newListener(s, &hooks)
	l.Trigger()
	l.Trigger()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	in, err := nextWithin(t, ctx, l)
	require.NoError(t, err)
	assert.Equal(t, "open notepad", in.Text)
	assert.True(t, in.Activated)
	assert.Equal(t, []time.Duration{10 * time.Second}, s.captureLimits())
}

func TestSilentCommandIsNotUnderstood(t *testing.T) {
	s := &script{steps: []string{"bhai", ""}}
	var hooks []string
	l := newListener(s, &hooks)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go l.Run(ctx)

	_, err := nextWithin(t, ctx, l)
	assert.ErrorIs(t, err, assistant.ErrNotUnderstood)
	assert.Equal(t, []string{"activate", "captured:"}, hooks)
}

func TestInjectedInput(t *testing.T) {
	l := newListener(&script{}, new([]string))
	ctx := context.Background()

	go func() {
		_ = l.Inject(ctx, assistant.Input{Text: "mia bhai hi"})
	}()

	in, err := nextWithin(t, ctx, l)
	require.NoError(t, err)
	assert.Equal(t, assistant.Input{Text: "mia bhai hi"}, in)
	assert.False(t, l.Active())
}

func TestNextHonorsCancel(t *testing.T) {
	l := newListener(&script{}, new([]string))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := l.Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)

	assert.ErrorIs(t, l.Run(ctx), context.Canceled)
}

func TestCleanTranscript(t *testing.T) {
	for in, want := range map[string]string{
		" [BLANK_AUDIO]":                  "",
		"(music) [ Silence ]":             "",
		" Mia bhai,  open the calculator": "Mia bhai, open the calculator",
		"*coughs* bhai":                   "bhai",
		"":                                "",
	} {
		assert.Equal(t, want, cleanTranscript(in), in)
	}
}
