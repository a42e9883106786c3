package assistant

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"strings"
)

const (
	MsgNotUnderstood  = "I didn't catch that. Please try again."
	MsgNotConfigured  = "API key not configured. Please check your .env file."
	MsgBackendFailure = "Sorry, there was an error processing your request."
)

type Status string

const (
	StatusThinking  Status = "AI is thinking..."
	StatusExecuting Status = "Executing command"
	StatusCompleted Status = "Command completed"
	StatusError     Status = "Error occurred"
)

// Outcome describes what one turn did.
type Outcome struct {
	Result   Classification
	Said     string
	Executed bool
	ExecErr  error
}

type Config struct {
	Classifier Classifier
	Executor   Executor
	Sink       Sink
	Session    *Session

	// OS is the host descriptor embedded in every prompt.
	OS string
	// RequireActivation enables the "mia bhai" gate for inputs that are not
	// pre-activated.
	RequireActivation bool
	// HistoryWindow caps how many log entries are rendered into the prompt.
	// Zero renders the whole log.
	HistoryWindow int

	OnStatus func(Status)
	Logger   *log.Logger
}

type Dispatcher struct {
	cfg Config
	log *log.Logger
}

func NewDispatcher(cfg Config) (*Dispatcher, error) {
	if cfg.Classifier == nil {
		return nil, errors.New("dispatcher: nil classifier")
	}
	if cfg.Executor == nil {
		return nil, errors.New("dispatcher: nil executor")
	}
	if cfg.Sink == nil {
		return nil, errors.New("dispatcher: nil sink")
	}
	if cfg.Session == nil {
		cfg.Session = NewSession()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Dispatcher{
		cfg: cfg,
		log: logger.With("session", cfg.Session.ID.String()),
	}, nil
}

func (d *Dispatcher) Session() *Session { return d.cfg.Session }

// Run processes turns from src until it reports io.EOF or ctx is done.
// Per-turn failures are reported to the sink and never end the loop.
func (d *Dispatcher) Run(ctx context.Context, src Source) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		in, err := src.Next(ctx)
		switch {
		case err == nil:
		case errors.Is(err, io.EOF):
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, ErrNotUnderstood):
			d.log.Info("Input not understood", "err", err)
			d.say(ctx, MsgNotUnderstood)
			continue
		default:
			d.log.Warn("Input source failed", "err", err)
			d.say(ctx, MsgNotUnderstood)
			continue
		}

		if _, err := d.Handle(ctx, in); err != nil {
			d.log.Error("Turn failed", "err", err)
		}
	}
}

// Handle runs one turn: log the input, classify it, then execute or reply.
func (d *Dispatcher) Handle(ctx context.Context, in Input) (Outcome, error) {
	text := strings.TrimSpace(in.Text)
	if text == "" {
		d.say(ctx, MsgNotUnderstood)
		return Outcome{Said: MsgNotUnderstood}, ErrNotUnderstood
	}

	sess := d.cfg.Session
	user := sess.AppendUser(text)
	tlog := d.log.With("turn", user.ID.String())
	tlog.Debug("Turn started", "text", text, "activated", in.Activated)

	gated := d.cfg.RequireActivation && !in.Activated

	var result Classification
	if gated && !HasActivation(text) {
		tlog.Info("Activation phrase missing, redirecting")
		result = Response(RedirectPhrase)
	} else {
		prompt := BuildPrompt(PromptInput{
			Text:            text,
			OS:              d.cfg.OS,
			History:         sess.Window(d.cfg.HistoryWindow),
			RequireActivate: gated,
		})

		d.status(StatusThinking)
		raw, err := d.cfg.Classifier.Classify(ctx, prompt)
		if err != nil {
			sess.AppendFailure(err)
			d.status(StatusError)

			msg := MsgBackendFailure
			if errors.Is(err, ErrUnauthenticated) {
				msg = MsgNotConfigured
			}
			d.say(ctx, msg)
			return Outcome{Said: msg}, fmt.Errorf("classify: %w", err)
		}

		var perr error
		result, perr = ClassifyOrDegrade(raw)
		if perr != nil {
			tlog.Warn("Backend reply is not a valid classification, showing it as text", "err", perr)
		}
	}

	sess.AppendSystem(result)
	tlog.Debug("Classified", "type", result.Type)

	return d.dispatch(ctx, tlog, result), nil
}

func (d *Dispatcher) dispatch(ctx context.Context, tlog *log.Logger, result Classification) Outcome {
	out := Outcome{Result: result}

	if result.Type != KindCommand {
		out.Said = result.Content
		d.say(ctx, result.Content)
		return out
	}

	tlog.Info("Executing", "command", result.Command)
	d.status(StatusExecuting)

	out.Executed = true
	if err := d.cfg.Executor.Run(ctx, result.Command); err != nil {
		tlog.Warn("Command failed", "command", result.Command, "err", err)
		out.ExecErr = err
		out.Said = result.FailMessage
		d.status(StatusError)
		d.say(ctx, result.FailMessage)
		return out
	}

	tlog.Info("Command executed successfully", "command", result.Command)
	d.status(StatusCompleted)
	return out
}

func (d *Dispatcher) say(ctx context.Context, text string) {
	if err := d.cfg.Sink.Say(ctx, text); err != nil {
		d.log.Warn("Output sink failed", "err", err)
	}
}

func (d *Dispatcher) status(s Status) {
	if d.cfg.OnStatus != nil {
		d.cfg.OnStatus(s)
	}
}
