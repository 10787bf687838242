// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Command switchyard-credentials manages the age-encrypted channel
// credential bundle the daemon reads at startup.
//
//	switchyard-credentials generate --identity key.txt
//	switchyard-credentials seal --recipient age1... --bundle bundle.age
//	switchyard-credentials inspect --identity key.txt --bundle bundle.age
//
// seal prompts for each credential on the terminal; secrets are read
// with echo disabled and never appear in argv or the environment.
package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/switchyard-foundation/switchyard/lib/credential"
	"github.com/switchyard-foundation/switchyard/lib/version"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, "switchyard-credentials:", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: switchyard-credentials <generate|seal|inspect|version> [flags]")
	}
	switch args[0] {
	case "generate":
		return runGenerate(args[1:])
	case "seal":
		return runSeal(args[1:])
	case "inspect":
		return runInspect(args[1:])
	case "version", "--version":
		fmt.Println(version.Info())
		return nil
	default:
		return fmt.Errorf("unknown subcommand %q", args[0])
	}
}

func runGenerate(args []string) error {
	flags := pflag.NewFlagSet("generate", pflag.ContinueOnError)
	identityPath := flags.String("identity", "", "file to write the identity key to")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *identityPath == "" {
		return fmt.Errorf("--identity is required")
	}

	identity, recipient, err := credential.GenerateKeypair()
	if err != nil {
		return err
	}
	if err := os.WriteFile(*identityPath, []byte(identity+"\n"), 0o600); err != nil {
		return fmt.Errorf("writing identity: %w", err)
	}
	fmt.Printf("identity written to %s\n", *identityPath)
	fmt.Printf("recipient: %s\n", recipient)
	return nil
}

func runSeal(args []string) error {
	flags := pflag.NewFlagSet("seal", pflag.ContinueOnError)
	recipients := flags.StringSlice("recipient", nil, "age recipient to encrypt to (repeatable)")
	bundlePath := flags.String("bundle", "", "file to write the sealed bundle to")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if len(*recipients) == 0 {
		return fmt.Errorf("--recipient is required")
	}
	if *bundlePath == "" {
		return fmt.Errorf("--bundle is required")
	}

	stdin := bufio.NewReader(os.Stdin)
	var bundle credential.Bundle
	var err error
	if bundle.SocketToken, err = promptSecret("socket token (blank to skip)"); err != nil {
		return err
	}
	if bundle.GatewayUser, err = promptLine(stdin, "gateway user (blank to skip)"); err != nil {
		return err
	}
	if bundle.GatewayUser != "" {
		if bundle.GatewayPassword, err = promptSecret("gateway password"); err != nil {
			return err
		}
	}
	if bundle.EmailAddress, err = promptLine(stdin, "email address (blank to skip)"); err != nil {
		return err
	}
	if bundle.EmailAddress != "" {
		if bundle.EmailPassword, err = promptSecret("email password"); err != nil {
			return err
		}
	}

	sealed, err := credential.Seal(bundle, *recipients)
	if err != nil {
		return err
	}
	if err := os.WriteFile(*bundlePath, sealed, 0o600); err != nil {
		return fmt.Errorf("writing bundle: %w", err)
	}
	fmt.Printf("sealed bundle written to %s\n", *bundlePath)
	return nil
}

func runInspect(args []string) error {
	flags := pflag.NewFlagSet("inspect", pflag.ContinueOnError)
	identityPath := flags.String("identity", "", "identity key file")
	bundlePath := flags.String("bundle", "", "sealed bundle file")
	if err := flags.Parse(args); err != nil {
		return err
	}
	if *identityPath == "" || *bundlePath == "" {
		return fmt.Errorf("--identity and --bundle are required")
	}

	bundle, err := credential.LoadFile(*bundlePath, *identityPath)
	if err != nil {
		return err
	}

	// Secrets are shown as presence only.
	fmt.Printf("socket token:     %s\n", presence(bundle.SocketToken))
	fmt.Printf("gateway user:     %s\n", valueOrUnset(bundle.GatewayUser))
	fmt.Printf("gateway password: %s\n", presence(bundle.GatewayPassword))
	fmt.Printf("email address:    %s\n", valueOrUnset(bundle.EmailAddress))
	fmt.Printf("email password:   %s\n", presence(bundle.EmailPassword))
	return nil
}

func promptLine(reader *bufio.Reader, label string) (string, error) {
	fmt.Printf("%s: ", label)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}

func promptSecret(label string) (string, error) {
	fmt.Printf("%s: ", label)
	secret, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Println()
	if err != nil {
		return "", fmt.Errorf("reading secret: %w", err)
	}
	return strings.TrimSpace(string(secret)), nil
}

func presence(secret string) string {
	if secret == "" {
		return "(unset)"
	}
	return "(set)"
}

func valueOrUnset(value string) string {
	if value == "" {
		return "(unset)"
	}
	return value
}
