// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Command switchyard-daemon routes chat messages to sandboxed agents.
// It runs the delivery, command-bus, scheduler, approval, and mail
// loops against a single SQLite registry, holding an exclusive lock so
// only one instance serves a data directory.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/switchyard-foundation/switchyard/lib/agent"
	"github.com/switchyard-foundation/switchyard/lib/approval"
	"github.com/switchyard-foundation/switchyard/lib/clock"
	"github.com/switchyard-foundation/switchyard/lib/config"
	"github.com/switchyard-foundation/switchyard/lib/credential"
	"github.com/switchyard-foundation/switchyard/lib/lockfile"
	"github.com/switchyard-foundation/switchyard/lib/mailbox"
	"github.com/switchyard-foundation/switchyard/lib/store"
	"github.com/switchyard-foundation/switchyard/lib/version"
	"github.com/switchyard-foundation/switchyard/messaging"
	"github.com/switchyard-foundation/switchyard/messaging/mail"
	"github.com/switchyard-foundation/switchyard/messaging/matrix"
	"github.com/switchyard-foundation/switchyard/messaging/socket"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "switchyard-daemon:", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "path to the switchyard config file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.Full())
		return nil
	}

	var cfg *config.Config
	var err error
	if *configPath != "" {
		cfg, err = config.LoadFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	bundle, err := credential.LoadFile(cfg.Paths.CredentialBundle, cfg.Paths.IdentityKey)
	if err != nil {
		return err
	}
	if err := doctor(cfg, bundle); err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	lock, err := lockfile.Acquire(cfg.Paths.Lock)
	if err != nil {
		return err
	}
	defer lock.Unlock()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clk := clock.Real()

	registry, err := store.Open(store.Config{Path: cfg.Paths.Database, Logger: logger})
	if err != nil {
		return err
	}
	defer registry.Close()

	queue, err := mailbox.NewFSQueue(cfg.Paths.IPC, clk, logger)
	if err != nil {
		return err
	}

	runner, err := agent.NewSandbox(agent.SandboxConfig{
		Binary:  cfg.Agent.Binary,
		Args:    cfg.Agent.Args,
		Timeout: cfg.Agent.Timeout.Std(),
		Logger:  logger,
	})
	if err != nil {
		return err
	}

	state := &RouterState{
		Config:     cfg,
		Logger:     logger,
		Clock:      clk,
		Registry:   registry,
		Queue:      queue,
		Runner:     runner,
		Adapters:   make(map[string]messaging.Adapter),
		Typers:     make(map[string]*messaging.Typer),
		Normalizer: messaging.NewNormalizer(registry, logger),
		Approvals:  approval.NewManager(runner, clk, logger),
	}

	var wg sync.WaitGroup

	if cfg.Channels.Socket != "" {
		socketClient, err := socket.NewClient(socket.Config{
			Addr:   cfg.Channels.Socket,
			Token:  bundle.SocketToken,
			Logger: logger,
			Clock:  clk,
		})
		if err != nil {
			return err
		}
		state.Adapters[socket.SourceName] = socketClient
		state.Typers[socket.SourceName] = messaging.NewTyper(socketClient, clk, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			socketClient.Run(ctx, state.ingest(ctx))
		}()
	}

	if cfg.Channels.Gateway != "" {
		client, err := matrix.NewClient(matrix.ClientConfig{
			HomeserverURL: cfg.Channels.Gateway,
			Logger:        logger,
		})
		if err != nil {
			return err
		}
		if err := client.Login(ctx, bundle.GatewayUser, bundle.GatewayPassword); err != nil {
			return err
		}
		state.Adapters[matrix.SourceName] = client
		state.Typers[matrix.SourceName] = messaging.NewTyper(client, clk, logger)

		wg.Add(1)
		go func() {
			defer wg.Done()
			client.Sync(ctx, state.ingest(ctx))
		}()
	}

	if cfg.Channels.EmailIMAP != "" && cfg.Channels.EmailSMTP != "" {
		emailClient, err := mail.NewClient(mail.Config{
			IMAPAddr: cfg.Channels.EmailIMAP,
			SMTPAddr: cfg.Channels.EmailSMTP,
			Address:  bundle.EmailAddress,
			Password: bundle.EmailPassword,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		state.Email = emailClient
	}

	groups, err := registry.Groups(ctx)
	if err != nil {
		return err
	}
	state.Approvals.ReportOrphans(cfg.Paths.Groups, groups)

	loops := []func(context.Context){
		state.runRouter,
		state.runBus,
		state.runScheduler,
		state.runApprovals,
	}
	if state.Email != nil {
		loops = append(loops, state.runEmail)
	}
	for _, loop := range loops {
		wg.Add(1)
		go func() {
			defer wg.Done()
			loop(ctx)
		}()
	}

	logger.Info("switchyard daemon running",
		"version", version.Info(),
		"data", cfg.Paths.Data, "groups", len(groups),
		"privileged", cfg.Router.PrivilegedFolder)

	<-ctx.Done()
	logger.Info("shutting down")

	for _, typer := range state.Typers {
		typer.StopAll(context.Background())
	}
	wg.Wait()
	return nil
}

// ingest is the channel delivery callback: normalize the event and
// persist anything routable.
func (s *RouterState) ingest(ctx context.Context) func(messaging.Event) {
	return func(event messaging.Event) {
		message := s.Normalizer.Normalize(ctx, event)
		if message == nil {
			return
		}
		if event.Direct {
			s.autoRegisterDirect(ctx, message.ChatID, event.ChatName)
		}
		if err := s.Registry.SaveMessage(ctx, *message); err != nil {
			s.Logger.Error("persisting inbound message", "chat", message.ChatID, "error", err)
		}
	}
}
