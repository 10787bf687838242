// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package authorization

import (
	"testing"

	"github.com/switchyard-foundation/switchyard/lib/schema"
)

func TestTriggerMatch(t *testing.T) {
	open := &schema.RegisteredGroup{ChatID: "socket:g1", Folder: "g1"}
	triggered := &schema.RegisteredGroup{ChatID: "socket:g2", Folder: "g2", Trigger: "@bot"}

	tests := []struct {
		name  string
		group *schema.RegisteredGroup
		body  string
		want  bool
	}{
		{"nil group", nil, "hello", false},
		{"no trigger accepts all", open, "anything at all", true},
		{"no trigger accepts empty", open, "", true},
		{"exact trigger", triggered, "@bot", true},
		{"trigger with text", triggered, "@bot summarize this", true},
		{"trigger uppercase", triggered, "@BOT help", true},
		{"trigger with punctuation", triggered, "@bot, please", true},
		{"leading whitespace", triggered, "  @bot hi", true},
		{"trigger mid-message", triggered, "hey @bot hi", false},
		{"trigger as prefix of word", triggered, "@bots unite", false},
		{"empty body", triggered, "", false},
		{"unrelated body", triggered, "hello", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TriggerMatch(tt.group, tt.body); got != tt.want {
				t.Errorf("TriggerMatch(%q) = %v, want %v", tt.body, got, tt.want)
			}
		})
	}
}

func TestStripTrigger(t *testing.T) {
	triggered := &schema.RegisteredGroup{ChatID: "socket:g2", Folder: "g2", Trigger: "@bot"}
	open := &schema.RegisteredGroup{ChatID: "socket:g1", Folder: "g1"}

	tests := []struct {
		name  string
		group *schema.RegisteredGroup
		body  string
		want  string
	}{
		{"strips trigger and space", triggered, "@bot summarize", "summarize"},
		{"bare trigger", triggered, "@bot", ""},
		{"case-insensitive strip", triggered, "@BOT do it", "do it"},
		{"non-matching unchanged", triggered, "hello", "hello"},
		{"open group unchanged", open, "anything", "anything"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripTrigger(tt.group, tt.body); got != tt.want {
				t.Errorf("StripTrigger(%q) = %q, want %q", tt.body, got, tt.want)
			}
		})
	}
}

func TestParseApprovalKeyword(t *testing.T) {
	tests := []struct {
		body     string
		wantVerb ApprovalVerb
		wantID   string
		wantOK   bool
	}{
		{"approve", VerbApprove, "", true},
		{"deny", VerbDeny, "", true},
		{"APPROVE", VerbApprove, "", true},
		{"  approve  req-42  ", VerbApprove, "req-42", true},
		{"deny req-7", VerbDeny, "req-7", true},
		{"approve req-1 extra", "", "", false},
		{"approved", "", "", false},
		{"please approve", "", "", false},
		{"", "", "", false},
		{"hello there", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.body, func(t *testing.T) {
			verb, id, ok := ParseApprovalKeyword(tt.body)
			if ok != tt.wantOK || verb != tt.wantVerb || id != tt.wantID {
				t.Errorf("ParseApprovalKeyword(%q) = (%q, %q, %v), want (%q, %q, %v)",
					tt.body, verb, id, ok, tt.wantVerb, tt.wantID, tt.wantOK)
			}
		})
	}
}

func TestAuthorizeCommand(t *testing.T) {
	tests := []struct {
		name       string
		source     string
		owner      string
		privileged string
		want       bool
	}{
		{"own resource", "g1", "g1", "admin", true},
		{"other group's resource", "g1", "g2", "admin", false},
		{"privileged on anything", "admin", "g2", "admin", true},
		{"privileged on own", "admin", "admin", "admin", true},
		{"no privileged configured", "g1", "g2", "", false},
		{"empty source never privileged", "", "g2", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AuthorizeCommand(tt.source, tt.owner, tt.privileged); got != tt.want {
				t.Errorf("AuthorizeCommand(%q, %q, %q) = %v, want %v",
					tt.source, tt.owner, tt.privileged, got, tt.want)
			}
		})
	}
}

func TestRequiredScope(t *testing.T) {
	if RequiredScope(&schema.RegisterGroup{}) != ScopePrivileged {
		t.Error("register_group should require the privileged identity")
	}
	if RequiredScope(&schema.RefreshGroups{}) != ScopePrivileged {
		t.Error("refresh_groups should require the privileged identity")
	}
	if RequiredScope(&schema.DirectMessage{}) != ScopePrivileged {
		t.Error("direct_message should require the privileged identity")
	}
	if RequiredScope(&schema.SendMessage{}) != ScopeOwn {
		t.Error("send_message should be own-scope")
	}
	if RequiredScope(&schema.PauseTask{}) != ScopeOwn {
		t.Error("pause_task should be own-scope")
	}
}
