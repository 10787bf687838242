// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package authorization

import (
	"strings"
	"unicode"

	"github.com/switchyard-foundation/switchyard/lib/schema"
)

// TriggerMatch reports whether a message body satisfies a group's
// trigger. A group with no trigger word accepts every message. With a
// trigger word, the body must start with it (case-insensitive, leading
// whitespace ignored) followed by a word boundary: "@bot" matches
// "@bot help" and "@BOT." but not "@bots".
func TriggerMatch(group *schema.RegisteredGroup, body string) bool {
	if group == nil {
		return false
	}
	if group.Trigger == "" {
		return true
	}
	trimmed := strings.TrimLeftFunc(body, unicode.IsSpace)
	if len(trimmed) < len(group.Trigger) {
		return false
	}
	head := trimmed[:len(group.Trigger)]
	if !strings.EqualFold(head, group.Trigger) {
		return false
	}
	rest := trimmed[len(group.Trigger):]
	if rest == "" {
		return true
	}
	next := []rune(rest)[0]
	return !unicode.IsLetter(next) && !unicode.IsDigit(next)
}

// StripTrigger removes a matched trigger word from the front of a body
// so the agent sees the request, not the addressing. Bodies that do
// not match are returned unchanged.
func StripTrigger(group *schema.RegisteredGroup, body string) string {
	if group == nil || group.Trigger == "" || !TriggerMatch(group, body) {
		return body
	}
	trimmed := strings.TrimLeftFunc(body, unicode.IsSpace)
	return strings.TrimLeftFunc(trimmed[len(group.Trigger):], unicode.IsSpace)
}

// ApprovalVerb is a recognized host-modification resolution keyword.
type ApprovalVerb string

const (
	VerbApprove ApprovalVerb = "approve"
	VerbDeny    ApprovalVerb = "deny"
)

// ParseApprovalKeyword recognizes "approve [id]" and "deny [id]"
// messages (case-insensitive). The optional second token names a
// specific pending request; without it the caller resolves the most
// recent one. Returns ok=false for anything else, including extra
// trailing tokens.
func ParseApprovalKeyword(body string) (verb ApprovalVerb, id string, ok bool) {
	fields := strings.Fields(body)
	if len(fields) == 0 || len(fields) > 2 {
		return "", "", false
	}
	switch strings.ToLower(fields[0]) {
	case string(VerbApprove):
		verb = VerbApprove
	case string(VerbDeny):
		verb = VerbDeny
	default:
		return "", "", false
	}
	if len(fields) == 2 {
		id = fields[1]
	}
	return verb, id, true
}

// CommandScope says whose resources an IPC command touches.
type CommandScope int

const (
	// ScopeOwn means the command only affects the issuing group.
	ScopeOwn CommandScope = iota

	// ScopePrivileged means the command affects another group or
	// router-wide state and requires the privileged identity.
	ScopePrivileged
)

// AuthorizeCommand decides whether the group owning sourceFolder may
// run a command against ownerFolder's resources. The privileged folder
// may act on anything; everyone else only on their own. Source
// identity comes from the command bus directory layout, so a payload
// cannot claim a different issuer.
func AuthorizeCommand(sourceFolder, ownerFolder, privilegedFolder string) bool {
	if privilegedFolder != "" && sourceFolder == privilegedFolder {
		return true
	}
	return sourceFolder == ownerFolder
}

// RequiredScope classifies an IPC command by the identity it needs.
// Commands that create or modify other groups, or reload router-wide
// state, are privileged; everything else acts on the issuer's own
// resources (ownership of specific targets is still checked at
// execution time).
func RequiredScope(cmd schema.Command) CommandScope {
	switch cmd.(type) {
	case *schema.RegisterGroup, *schema.RefreshGroups, *schema.DirectMessage:
		return ScopePrivileged
	default:
		return ScopeOwn
	}
}
