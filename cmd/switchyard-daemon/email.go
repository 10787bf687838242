// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/switchyard-foundation/switchyard/lib/schema"
)

// EmailClient is the mail surface the email loop polls. Fetch returns
// messages the provider has not marked seen; Reply sends body back on
// the record's thread.
type EmailClient interface {
	Fetch(ctx context.Context) ([]schema.InboundEmail, error)
	Reply(ctx context.Context, record schema.ProcessedEmail, body string) error
}

// runEmail polls the mail surface. Absent an email client the loop
// never starts.
func (s *RouterState) runEmail(ctx context.Context) {
	ticker := s.Clock.NewTicker(s.Config.Router.EmailInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.emailCycle(ctx); err != nil {
				s.Logger.Error("email cycle aborted", "error", err)
			}
		}
	}
}

// emailCycle first retries replies whose send previously failed, then
// processes new messages. The agent runs at most once per provider
// message ID: the result is persisted with responded=false before the
// first send attempt, so retries are send-only.
func (s *RouterState) emailCycle(ctx context.Context) error {
	pending, err := s.Registry.UnrespondedEmails(ctx)
	if err != nil {
		return err
	}
	for _, record := range pending {
		if record.Result == "" {
			continue
		}
		if err := s.Email.Reply(ctx, record, record.Result); err != nil {
			s.Logger.Warn("email reply retry failed", "id", record.ID, "error", err)
			continue
		}
		if err := s.Registry.MarkEmailResponded(ctx, record.ID); err != nil {
			s.Logger.Error("marking email responded", "id", record.ID, "error", err)
		}
	}

	inbound, err := s.Email.Fetch(ctx)
	if err != nil {
		return err
	}
	for _, email := range inbound {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		s.processEmail(ctx, email)
	}
	return nil
}

func (s *RouterState) processEmail(ctx context.Context, email schema.InboundEmail) {
	seen, err := s.Registry.ProcessedEmail(ctx, email.ID)
	if err != nil {
		s.Logger.Warn("email dedup lookup failed", "id", email.ID, "error", err)
		return
	}
	if seen != nil {
		return
	}

	group, err := s.Registry.GroupByFolder(ctx, s.Config.Router.PrivilegedFolder)
	if err != nil || group == nil {
		s.Logger.Warn("email received but no privileged group is registered", "id", email.ID)
		return
	}

	result, err := s.invokeForGroup(ctx, group, buildEmailPrompt(email), invokeOptions{isolated: true})
	if err != nil {
		s.Logger.Warn("email agent run failed; will retry", "id", email.ID, "error", err)
		return
	}

	record := schema.ProcessedEmail{
		ID:          email.ID,
		ThreadID:    email.ThreadID,
		Sender:      email.Sender,
		Subject:     email.Subject,
		ProcessedAt: s.Clock.Now(),
		Responded:   false,
		Result:      result,
	}
	if err := s.Registry.RecordProcessedEmail(ctx, record); err != nil {
		s.Logger.Error("recording processed email", "id", email.ID, "error", err)
		return
	}

	if err := s.Email.Reply(ctx, record, result); err != nil {
		s.Logger.Warn("email reply failed; record kept for retry", "id", email.ID, "error", err)
		return
	}
	if err := s.Registry.MarkEmailResponded(ctx, email.ID); err != nil {
		s.Logger.Error("marking email responded", "id", email.ID, "error", err)
	}
}

// buildEmailPrompt frames one email for the agent in the same escaped
// markup the chat router uses.
func buildEmailPrompt(email schema.InboundEmail) string {
	var b strings.Builder
	b.WriteString("<email>\n")
	fmt.Fprintf(&b, "  <sender>%s</sender>\n", escapeXML(email.Sender))
	fmt.Fprintf(&b, "  <subject>%s</subject>\n", escapeXML(email.Subject))
	fmt.Fprintf(&b, "  <body>%s</body>\n", escapeXML(email.Body))
	b.WriteString("</email>")
	return b.String()
}
