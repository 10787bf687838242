// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/switchyard-foundation/switchyard/lib/agent"
	"github.com/switchyard-foundation/switchyard/lib/approval"
	"github.com/switchyard-foundation/switchyard/lib/clock"
	"github.com/switchyard-foundation/switchyard/lib/config"
	"github.com/switchyard-foundation/switchyard/lib/mailbox"
	"github.com/switchyard-foundation/switchyard/lib/schema"
	"github.com/switchyard-foundation/switchyard/messaging"
)

// Registry is the store surface the daemon loops depend on. *store.Store
// implements it; tests substitute fakes.
type Registry interface {
	messaging.ChatRecorder

	UpsertGroup(ctx context.Context, group schema.RegisteredGroup) error
	GroupByChatID(ctx context.Context, chatID schema.ChatID) (*schema.RegisteredGroup, error)
	GroupByFolder(ctx context.Context, folder string) (*schema.RegisteredGroup, error)
	Groups(ctx context.Context) ([]schema.RegisteredGroup, error)

	SetSession(ctx context.Context, folder, token string, now time.Time) error
	Session(ctx context.Context, folder string) (string, error)

	GlobalWatermark(ctx context.Context) (time.Time, error)
	AdvanceGlobalWatermark(ctx context.Context, ts time.Time) error
	AgentWatermark(ctx context.Context, chatID schema.ChatID) (time.Time, error)
	AdvanceAgentWatermark(ctx context.Context, chatID schema.ChatID, ts time.Time) error

	SaveMessage(ctx context.Context, message schema.Message) error
	MessagesAfter(ctx context.Context, ts time.Time, limit int) ([]schema.Message, error)
	ChatMessagesAfter(ctx context.Context, chatID schema.ChatID, ts time.Time) ([]schema.Message, error)

	CreateTask(ctx context.Context, task schema.Task) error
	TaskByID(ctx context.Context, id string) (*schema.Task, error)
	TasksForGroup(ctx context.Context, folder string) ([]schema.Task, error)
	DueTasks(ctx context.Context, now time.Time) ([]schema.Task, error)
	SetTaskStatus(ctx context.Context, id string, status schema.TaskStatus) error
	SetTaskNextRun(ctx context.Context, id string, next time.Time) error
	DeleteTask(ctx context.Context, id string) error

	ProcessedEmail(ctx context.Context, id string) (*schema.ProcessedEmail, error)
	RecordProcessedEmail(ctx context.Context, record schema.ProcessedEmail) error
	MarkEmailResponded(ctx context.Context, id string) error
	UnrespondedEmails(ctx context.Context) ([]schema.ProcessedEmail, error)
}

// RouterState owns everything the loops share. All mutable routing
// state lives here, injected into each loop; nothing is ambient.
type RouterState struct {
	Config *config.Config
	Logger *slog.Logger
	Clock  clock.Clock

	Registry Registry
	Queue    mailbox.Queue
	Runner   agent.Runner

	// Adapters maps source prefix to chat surface.
	Adapters map[string]messaging.Adapter

	Normalizer *messaging.Normalizer
	Approvals  *approval.Manager

	// Email is the mail surface, nil when no email channel is
	// configured.
	Email EmailClient

	// Typers mirror Adapters, one re-signaling typer per surface.
	Typers map[string]*messaging.Typer
}

// adapterFor resolves the adapter for a chat identity's source prefix.
func (s *RouterState) adapterFor(chatID schema.ChatID) (messaging.Adapter, bool) {
	adapter, ok := s.Adapters[chatID.Source()]
	return adapter, ok
}

// sendChunked delivers text through the chat's adapter, split to the
// configured payload limit. Send failures are logged and swallowed;
// channel errors are never fatal to a loop.
func (s *RouterState) sendChunked(ctx context.Context, chatID schema.ChatID, text string) {
	adapter, ok := s.adapterFor(chatID)
	if !ok {
		s.Logger.Warn("no adapter for chat", "chat", chatID)
		return
	}
	for _, chunk := range messaging.Chunk(text, s.Config.Router.ChunkSize) {
		if err := adapter.SendText(ctx, chatID, chunk); err != nil {
			s.Logger.Warn("send failed", "chat", chatID, "error", err)
			return
		}
	}
}

// typer returns the typing controller for a chat's surface, if any.
func (s *RouterState) typer(chatID schema.ChatID) *messaging.Typer {
	return s.Typers[chatID.Source()]
}

// autoRegisterDirect enrolls a one-on-one conversation on first
// contact. Direct chats get an empty trigger, so the agent answers
// every message without addressing.
func (s *RouterState) autoRegisterDirect(ctx context.Context, chatID schema.ChatID, name string) {
	group, err := s.Registry.GroupByChatID(ctx, chatID)
	if err != nil {
		s.Logger.Warn("direct-chat lookup failed", "chat", chatID, "error", err)
		return
	}
	if group != nil {
		return
	}

	folder := directFolder(chatID)
	if name == "" {
		name = folder
	}
	err = s.Registry.UpsertGroup(ctx, schema.RegisteredGroup{
		ChatID:  chatID,
		Name:    name,
		Folder:  folder,
		AddedAt: s.Clock.Now(),
	})
	if err != nil {
		s.Logger.Error("auto-registering direct chat", "chat", chatID, "error", err)
		return
	}
	s.Logger.Info("direct chat auto-registered", "chat", chatID, "folder", folder)
}

// directFolder derives a stable workspace name from a chat identity.
func directFolder(chatID schema.ChatID) string {
	slug := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			return r
		case r >= 'A' && r <= 'Z':
			return r + ('a' - 'A')
		default:
			return '-'
		}
	}, string(chatID))
	slug = strings.Trim(slug, "-")
	if len(slug) > 48 {
		slug = slug[:48]
	}
	return "dm-" + slug
}
