// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package mail

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"testing"
)

const rawMessage = "Message-Id: <m1@example.org>\r\n" +
	"From: Alice <alice@example.org>\r\n" +
	"Subject: status?\r\n" +
	"\r\n" +
	"how is the rollout going\r\n"

// fakeIMAP speaks just enough of the protocol for the client: greeting,
// LOGIN, SELECT, UID SEARCH UNSEEN with one hit, UID FETCH with a
// literal, LOGOUT.
func fakeIMAP(t *testing.T, conn net.Conn) {
	t.Helper()
	defer conn.Close()
	reader := bufio.NewReader(conn)

	fmt.Fprintf(conn, "* OK ready\r\n")
	for {
		line, err := reader.ReadString('\n')
		if err != nil {
			return
		}
		fields := strings.Fields(strings.TrimRight(line, "\r\n"))
		if len(fields) < 2 {
			return
		}
		tag := fields[0]
		switch strings.ToUpper(fields[1]) {
		case "LOGIN", "SELECT":
			fmt.Fprintf(conn, "%s OK done\r\n", tag)
		case "UID":
			switch strings.ToUpper(fields[2]) {
			case "SEARCH":
				fmt.Fprintf(conn, "* SEARCH 7\r\n%s OK done\r\n", tag)
			case "FETCH":
				fmt.Fprintf(conn, "* 1 FETCH (UID 7 BODY[] {%d}\r\n", len(rawMessage))
				conn.Write([]byte(rawMessage))
				fmt.Fprintf(conn, ")\r\n%s OK done\r\n", tag)
			}
		case "LOGOUT":
			fmt.Fprintf(conn, "%s OK bye\r\n", tag)
			return
		default:
			fmt.Fprintf(conn, "%s BAD unknown\r\n", tag)
		}
	}
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { listener.Close() })
	go func() {
		for {
			conn, err := listener.Accept()
			if err != nil {
				return
			}
			go fakeIMAP(t, conn)
		}
	}()

	client, err := NewClient(Config{
		IMAPAddr: listener.Addr().String(),
		SMTPAddr: "smtp.example.org:587",
		Address:  "router@example.org",
		Password: "pw",
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	client.dial = func(addr string) (net.Conn, error) {
		return net.Dial("tcp", addr)
	}
	return client
}

func TestFetchUnseen(t *testing.T) {
	client := newTestClient(t)

	inbound, err := client.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(inbound) != 1 {
		t.Fatalf("got %d messages, want 1", len(inbound))
	}
	email := inbound[0]
	if email.ID != "m1@example.org" {
		t.Errorf("ID = %q", email.ID)
	}
	if email.Sender != "alice@example.org" {
		t.Errorf("Sender = %q", email.Sender)
	}
	if email.Subject != "status?" {
		t.Errorf("Subject = %q", email.Subject)
	}
	if email.Body != "how is the rollout going" {
		t.Errorf("Body = %q", email.Body)
	}
	if email.ThreadID != "m1@example.org" {
		t.Errorf("ThreadID should fall back to the message ID, got %q", email.ThreadID)
	}
}

func TestParseInboundThreading(t *testing.T) {
	raw := "Message-Id: <m2@example.org>\r\n" +
		"From: bob@example.org\r\n" +
		"In-Reply-To: <m1@example.org>\r\n" +
		"Subject: =?utf-8?q?r=C3=A9ponse?=\r\n" +
		"\r\n" +
		"ok\r\n"
	email, err := parseInbound([]byte(raw))
	if err != nil {
		t.Fatalf("parseInbound: %v", err)
	}
	if email.ThreadID != "m1@example.org" {
		t.Errorf("ThreadID = %q", email.ThreadID)
	}
	if email.Subject != "réponse" {
		t.Errorf("Subject = %q", email.Subject)
	}
}

func TestParseInboundRequiresMessageID(t *testing.T) {
	if _, err := parseInbound([]byte("From: x@y\r\n\r\nhi\r\n")); err == nil {
		t.Error("expected error for message without Message-Id")
	}
}

func TestLiteralSize(t *testing.T) {
	if n, ok := literalSize("* 1 FETCH (BODY[] {42}"); !ok || n != 42 {
		t.Errorf("literalSize = %d, %v", n, ok)
	}
	if _, ok := literalSize("* 1 FETCH (BODY[] NIL)"); ok {
		t.Error("literalSize should reject lines without a literal")
	}
}

func TestIMAPQuote(t *testing.T) {
	if got := imapQuote(`pa"ss\word`); got != `"pa\"ss\\word"` {
		t.Errorf("imapQuote = %s", got)
	}
}
