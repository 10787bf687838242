// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package credential stores channel credentials as an age-encrypted
// bundle on disk. The daemon decrypts the bundle at startup with the
// host identity key; the switchyard-credentials tool creates and
// edits bundles. Plaintext credentials never touch disk.
package credential

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"filippo.io/age"
)

// Bundle holds every channel credential the daemon can use. Empty
// fields disable the corresponding channel.
type Bundle struct {
	// SocketToken authenticates the persistent-connection messaging
	// socket.
	SocketToken string `json:"socket_token,omitempty"`

	// GatewayUser and GatewayPassword authenticate the gateway-based
	// chat service.
	GatewayUser     string `json:"gateway_user,omitempty"`
	GatewayPassword string `json:"gateway_password,omitempty"`

	// EmailAddress and EmailPassword authenticate the polled
	// mailbox.
	EmailAddress  string `json:"email_address,omitempty"`
	EmailPassword string `json:"email_password,omitempty"`
}

// GenerateKeypair returns a new age x25519 identity and its recipient
// (public) form.
func GenerateKeypair() (identity, recipient string, err error) {
	id, err := age.GenerateX25519Identity()
	if err != nil {
		return "", "", fmt.Errorf("credential: generating keypair: %w", err)
	}
	return id.String(), id.Recipient().String(), nil
}

// Seal encrypts a bundle to one or more age recipients.
func Seal(bundle Bundle, recipientKeys []string) ([]byte, error) {
	if len(recipientKeys) == 0 {
		return nil, fmt.Errorf("credential: at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return nil, fmt.Errorf("credential: parsing recipient %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	plaintext, err := json.Marshal(bundle)
	if err != nil {
		return nil, fmt.Errorf("credential: marshaling bundle: %w", err)
	}

	var ciphertext bytes.Buffer
	writer, err := age.Encrypt(&ciphertext, recipients...)
	if err != nil {
		return nil, fmt.Errorf("credential: creating encryptor: %w", err)
	}
	if _, err := writer.Write(plaintext); err != nil {
		return nil, fmt.Errorf("credential: encrypting bundle: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("credential: finalizing encryption: %w", err)
	}
	return ciphertext.Bytes(), nil
}

// Open decrypts a sealed bundle with an age identity string.
func Open(ciphertext []byte, identityKey string) (Bundle, error) {
	identity, err := age.ParseX25519Identity(strings.TrimSpace(identityKey))
	if err != nil {
		return Bundle{}, fmt.Errorf("credential: parsing identity: %w", err)
	}

	reader, err := age.Decrypt(bytes.NewReader(ciphertext), identity)
	if err != nil {
		return Bundle{}, fmt.Errorf("credential: decrypting bundle: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return Bundle{}, fmt.Errorf("credential: reading bundle: %w", err)
	}

	var bundle Bundle
	if err := json.Unmarshal(plaintext, &bundle); err != nil {
		return Bundle{}, fmt.Errorf("credential: unmarshaling bundle: %w", err)
	}
	return bundle, nil
}

// LoadFile decrypts the bundle at bundlePath using the identity stored
// at identityPath (a plain file containing the AGE-SECRET-KEY line).
func LoadFile(bundlePath, identityPath string) (Bundle, error) {
	identityKey, err := os.ReadFile(identityPath)
	if err != nil {
		return Bundle{}, fmt.Errorf("credential: reading identity: %w", err)
	}
	ciphertext, err := os.ReadFile(bundlePath)
	if err != nil {
		return Bundle{}, fmt.Errorf("credential: reading bundle: %w", err)
	}
	return Open(ciphertext, string(identityKey))
}
