// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/switchyard-foundation/switchyard/lib/config"
	"github.com/switchyard-foundation/switchyard/lib/credential"
)

// doctor runs the startup preconditions that configuration validation
// cannot see: the sandbox binary must exist and be executable, the
// credential files must be readable, and at least one channel must be
// both configured and credentialed. Every failure is reported at once.
func doctor(cfg *config.Config, bundle credential.Bundle) error {
	var errs []error

	info, err := os.Stat(cfg.Agent.Binary)
	switch {
	case err != nil:
		errs = append(errs, fmt.Errorf("agent binary %s: %w", cfg.Agent.Binary, err))
	case info.IsDir():
		errs = append(errs, fmt.Errorf("agent binary %s is a directory", cfg.Agent.Binary))
	case info.Mode().Perm()&0o111 == 0:
		errs = append(errs, fmt.Errorf("agent binary %s is not executable", cfg.Agent.Binary))
	}

	socket := cfg.Channels.Socket != ""
	if socket && bundle.SocketToken == "" {
		errs = append(errs, fmt.Errorf("channels.socket is set but the bundle has no socket token"))
		socket = false
	}

	gateway := cfg.Channels.Gateway != ""
	if gateway && (bundle.GatewayUser == "" || bundle.GatewayPassword == "") {
		errs = append(errs, fmt.Errorf("channels.gateway is set but the bundle has no gateway credentials"))
		gateway = false
	}

	email := cfg.Channels.EmailIMAP != "" && cfg.Channels.EmailSMTP != ""
	if email && (bundle.EmailAddress == "" || bundle.EmailPassword == "") {
		errs = append(errs, fmt.Errorf("email channel is set but the bundle has no email credentials"))
		email = false
	}
	if cfg.Channels.EmailIMAP != "" != (cfg.Channels.EmailSMTP != "") {
		errs = append(errs, fmt.Errorf("email channel needs both channels.email_imap and channels.email_smtp"))
	}

	if !socket && !gateway && !email {
		errs = append(errs, fmt.Errorf("no usable channel: configure channels.socket, channels.gateway, or the email pair with matching credentials"))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}
