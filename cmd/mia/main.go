package main

import (
	"bufio"
	"context"
	"errors"
	log "log/slog"
	"os"
	"os/signal"
	"syscall"

	cli "github.com/spf13/pflag"

	"mia/internal/assistant"
	"mia/internal/config"
	"mia/internal/console"
	"mia/internal/llm"
	"mia/internal/logging"
	"mia/internal/proxy"
	"mia/internal/shell"
	"mia/internal/tts"
)

func main() {
	cfg, err := config.Parse("mia", os.Args[1:], os.Getenv, false)
	if errors.Is(err, cli.ErrHelp) {
		return
	}
	if err != nil {
		logging.Setup(os.Stderr, "info")
		log.Error("Bad configuration", "err", err)
		os.Exit(1)
	}

	logger := logging.Setup(os.Stderr, cfg.LogLevel)
	log.Info("Booting up", "backend", cfg.Backend)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	httpClient, err := proxy.NewHTTPClient(cfg.ProxyAddr)
	if err != nil {
		log.Error("Failed to dial socks proxy", "proxy", cfg.ProxyAddr, "err", err)
		os.Exit(1)
	}

	client, err := llm.New(ctx, llm.Options{
		Backend:    cfg.Backend,
		APIKey:     cfg.APIKey,
		Model:      cfg.Model,
		HTTPClient: httpClient,
	})
	if err != nil {
		log.Error("Failed to create classifier", "err", err)
		os.Exit(1)
	}
	defer client.Close()

	stdin := bufio.NewReader(os.Stdin)

	sinks := assistant.MultiSink{console.NewSink(os.Stdout)}
	if cfg.Speak {
		sinks = append(sinks, tts.NewSpeaker(cfg.Voice))
	}

	sh := shell.New()
	sh.Timeout = cfg.Timeout
	var exec assistant.Executor = sh
	if cfg.Confirm {
		exec = &shell.Confirming{Next: sh, Reader: stdin, Out: os.Stdout}
	} else {
		log.Warn("Commands from the model run unrestricted with your privileges, pass --confirm to review them")
	}

	d, err := assistant.NewDispatcher(assistant.Config{
		Classifier:        client,
		Executor:          exec,
		Sink:              sinks,
		OS:                shell.Descriptor(),
		RequireActivation: true,
		HistoryWindow:     cfg.HistoryWindow,
		Logger:            logger,
	})
	if err != nil {
		log.Error("Failed to create dispatcher", "err", err)
		os.Exit(1)
	}

	// the reader is not interruptible, closing stdin unblocks it
	go func() {
		<-ctx.Done()
		os.Stdin.Close()
	}()

	log.Info("Boot up - successful")
	if err := d.Run(ctx, console.NewSource(stdin, os.Stdout)); err != nil && !errors.Is(err, context.Canceled) {
		log.Error("Stopped", "err", err)
		os.Exit(1)
	}

	log.Info("Bye", "turns", d.Session().Len())
}
