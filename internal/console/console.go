// Package console is the typed-input variant: a prompt loop over a reader
// and a colored line sink.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"mia/internal/assistant"
)

const Prompt = "What to do: "

type Source struct {
	r      *bufio.Reader
	out    io.Writer
	prompt string
}

// NewSource shares r with anything else reading the terminal, such as the
// command confirmation prompt.
func NewSource(r *bufio.Reader, out io.Writer) *Source {
	return &Source{r: r, out: out, prompt: Prompt}
}

// Next blocks until a non-empty line is read. It is not interruptible by
// ctx while waiting on the reader.
func (s *Source) Next(ctx context.Context) (assistant.Input, error) {
	for {
		if err := ctx.Err(); err != nil {
			return assistant.Input{}, err
		}

		fmt.Fprint(s.out, s.prompt)
		line, err := s.r.ReadString('\n')
		text := strings.TrimSpace(line)
		if text != "" {
			return assistant.Input{Text: text}, nil
		}
		if err != nil {
			return assistant.Input{}, err
		}
	}
}

var (
	userColor      = color.New(color.FgBlue)
	assistantColor = color.New(color.FgGreen)
)

// Sink prints lines. In transcript mode every line is stamped and
// attributed, as in the popup's conversation pane.
type Sink struct {
	out        io.Writer
	transcript bool
	now        func() time.Time
}

func NewSink(out io.Writer) *Sink {
	return &Sink{out: out, now: time.Now}
}

func NewTranscript(out io.Writer) *Sink {
	return &Sink{out: out, transcript: true, now: time.Now}
}

func (s *Sink) Say(_ context.Context, text string) error {
	if !s.transcript {
		_, err := assistantColor.Fprintln(s.out, text)
		return err
	}
	_, err := assistantColor.Fprintf(s.out, "[%s] Mia Bhai: %s\n\n", s.now().Format("15:04"), text)
	return err
}

// Heard records what the user said in transcript mode.
func (s *Sink) Heard(text string) {
	if !s.transcript {
		return
	}
	userColor.Fprintf(s.out, "[%s] You: %s\n\n", s.now().Format("15:04"), text)
}
