// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
)

// runApprovals scans group workspaces for new host-modification plan
// files and announces each one to its group exactly once. Resolution
// happens inline in the message router when an approval keyword
// arrives.
func (s *RouterState) runApprovals(ctx context.Context) {
	ticker := s.Clock.NewTicker(s.Config.Router.ApprovalInterval.Std())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.approvalCycle(ctx)
		}
	}
}

func (s *RouterState) approvalCycle(ctx context.Context) {
	groups, err := s.Registry.Groups(ctx)
	if err != nil {
		s.Logger.Error("approval scan: listing groups", "error", err)
		return
	}
	for _, announcement := range s.Approvals.Scan(s.Config.Paths.Groups, groups) {
		s.sendChunked(ctx, announcement.ChatID, announcement.Text)
	}
}
