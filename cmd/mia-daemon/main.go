package main

import (
	"context"
	"errors"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	cli "github.com/spf13/pflag"

	"mia/internal/assistant"
	"mia/internal/audio"
	"mia/internal/bus"
	"mia/internal/config"
	"mia/internal/console"
	"mia/internal/ipc"
	"mia/internal/llm"
	"mia/internal/logging"
	"mia/internal/notify"
	"mia/internal/proxy"
	"mia/internal/shell"
	"mia/internal/tts"
	"mia/internal/wake"
	"mia/pkg/audioconv"
	"mia/pkg/stt"
)

const (
	ackPhrase  = "Yes, I'm listening!"
	donePhrase = "Done!"

	duckFactor = 0.3
	duckFade   = 300 * time.Millisecond
)

func main() {
	cfg, err := config.Parse("mia-daemon", os.Args[1:], os.Getenv, true)
	if errors.Is(err, cli.ErrHelp) {
		return
	}
	if err != nil {
		logging.Setup(os.Stderr, "info")
		log.Error("Bad configuration", "err", err)
		os.Exit(1)
	}

	logger := logging.Setup(os.Stderr, cfg.LogLevel)
	log.Info("Booting up", "backend", cfg.Backend, "wake", cfg.Daemon.WakeWords)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, stop, cfg, logger); err != nil {
		log.Error("Stopped", "err", err)
		os.Exit(1)
	}
	log.Info("Bye")
}

func run(ctx context.Context, stop context.CancelFunc, cfg *config.Config, logger *log.Logger) error {
	httpClient, err := proxy.NewHTTPClient(cfg.ProxyAddr)
	if err != nil {
		return err
	}
	log.Debug("Loaded proxy", "proxy", cfg.ProxyAddr)

	client, err := llm.New(ctx, llm.Options{
		Backend:    cfg.Backend,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		HTTPClient: httpClient,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	rec := audio.NewRecorder(audio.DefaultVAD)
	if err := rec.Init(); err != nil {
		return err
	}
	defer rec.Close()
	log.Debug("Loaded recorder")

	whisper, err := stt.NewTranscriber(cfg.Daemon.WhisperModel, stt.Options{
		Language:      cfg.Daemon.Language,
		InitialPrompt: "Mia bhai",
	})
	if err != nil {
		return err
	}
	defer whisper.Close()
	log.Debug("Loaded whisper", "model", cfg.Daemon.WhisperModel)

	var (
		speaker    = tts.NewSpeaker(cfg.Voice)
		beeper     = notify.NewBeeper(cfg.Daemon.BeepPath)
		desktop    = notify.NewDesktop()
		ducker     = audio.NewDucker([]string{"mia-daemon", "espeak"}, 10)
		transcript = console.NewTranscript(os.Stdout)
	)

	voice := func(ctx context.Context, text string) {
		if !cfg.Speak {
			return
		}
		if err := speaker.Say(ctx, text); err != nil {
			log.Warn("Failed to voice out", "err", err)
		}
	}
	notifyAsync := func(body string) {
		go func() {
			if err := desktop.Notify(ctx, body); err != nil {
				log.Debug("Desktop notification failed", "err", err)
			}
		}()
	}

	listener := wake.NewListener(wake.Config{
		Capturer:    rec,
		Transcriber: whisper,
		WakeWords:   cfg.Daemon.WakeWords,
		SnippetMax:  cfg.Daemon.SnippetMax,
		CommandMax:  cfg.Daemon.CommandMax,
		Cooldown:    cfg.Daemon.Cooldown,
		OnActivate: func(ctx context.Context) {
			if err := ducker.Duck(ctx, duckFactor, duckFade); err != nil {
				log.Debug("Ducking failed", "err", err)
			}
			if err := beeper.Beep(); err != nil {
				log.Warn("Failed to beep", "err", err)
			}
			notifyAsync("Listening...")
			voice(ctx, ackPhrase)
		},
		OnCaptured: func(ctx context.Context, text string) {
			if err := ducker.Unduck(ctx, duckFade); err != nil {
				log.Debug("Unducking failed", "err", err)
			}
			if text != "" {
				transcript.Heard(text)
				notifyAsync("Processing...")
			}
		},
	})

	sinks := assistant.MultiSink{transcript}
	if cfg.Speak {
		sinks = append(sinks, speaker)
	}

	if cfg.Daemon.BusURL != "" {
		hub, err := bus.Dial(ctx, cfg.Daemon.BusURL, 2*time.Second)
		if err != nil {
			return err
		}
		defer hub.Close()
		sinks = append(sinks, bus.Sink{Client: hub})

		go func() {
			err := hub.Listen(ctx, func(m bus.Message) {
				go inject(ctx, listener, assistant.Input{Text: m.Content})
			})
			if err != nil && ctx.Err() == nil {
				log.Error("Bus listener stopped", "err", err)
			}
		}()
	}

	sh := shell.New()
	sh.Timeout = cfg.Timeout
	log.Warn("Commands from the model run unrestricted with your privileges")

	d, err := assistant.NewDispatcher(assistant.Config{
		Classifier:        client,
		Executor:          sh,
		Sink:              sinks,
		OS:                shell.Descriptor(),
		RequireActivation: true,
		HistoryWindow:     cfg.HistoryWindow,
		Logger:            logger,
		OnStatus: func(s assistant.Status) {
			notifyAsync(string(s))
			if s == assistant.StatusCompleted {
				log.Info("Command executed successfully")
				voice(ctx, donePhrase)
			}
		},
	})
	if err != nil {
		return err
	}

	srv, err := ipc.StartServer(cfg.Daemon.Socket, func(msg ipc.ControlMessage) {
		switch msg.Cmd {
		case ipc.CmdTrigger:
			listener.Trigger()
		case ipc.CmdSay:
			go inject(ctx, listener, assistant.Input{Text: msg.Arg})
		case ipc.CmdFile:
			go transcribeFile(ctx, listener, whisper, msg.Arg)
		case ipc.CmdStop:
			log.Info("Stop requested")
			stop()
		default:
			log.Warn("Unknown command", "cmd", msg.Cmd)
		}
	})
	if err != nil {
		return err
	}
	defer srv.Close()
	log.Debug("Control socket ready", "path", cfg.Daemon.Socket)

	go func() {
		if err := listener.Run(ctx); err != nil && ctx.Err() == nil {
			log.Error("Wake listener stopped", "err", err)
			stop()
		}
	}()

	log.Info("Boot up - successful")
	err = d.Run(ctx, listener)
	log.Info("Session ended", "turns", d.Session().Len())
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func inject(ctx context.Context, l *wake.Listener, in assistant.Input) {
	if err := l.Inject(ctx, in); err != nil && ctx.Err() == nil {
		log.Warn("Dropped input", "err", err)
	}
}

func transcribeFile(ctx context.Context, l *wake.Listener, tr *stt.Transcriber, path string) {
	pcm, err := audioconv.ConvertFileToPCM16k(ctx, path, audioconv.Options{})
	if err != nil {
		log.Error("Failed to read audio file", "path", path, "err", err)
		return
	}

	tctx, cancel := context.WithTimeout(ctx, 60*time.Second)
	defer cancel()

	text, err := tr.Transcribe(tctx, pcm)
	if err != nil {
		log.Error("Failed to transcribe", "path", path, "err", err)
		return
	}
	log.Info("Transcribed", "path", path, "text", text)

	inject(ctx, l, assistant.Input{Text: text, Activated: true})
}
