// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package mail is the polled-mailbox channel: IMAP for inbound
// messages, SMTP for replies. It covers plain-text mail only; bodies
// are passed through as fetched.
package mail

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net"
	"net/mail"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/switchyard-foundation/switchyard/lib/schema"
)

// sessionTimeout bounds one IMAP session end to end.
const sessionTimeout = 60 * time.Second

// Config holds the parameters for creating a Client.
type Config struct {
	// IMAPAddr is the host:port of the IMAP endpoint (implicit TLS).
	IMAPAddr string

	// SMTPAddr is the host:port of the SMTP submission endpoint.
	SMTPAddr string

	// Address is the account address, used for login and as the
	// reply From.
	Address string

	// Password authenticates both endpoints.
	Password string

	// Logger is used for structured logging. Nil means discard.
	Logger *slog.Logger
}

// Client polls one IMAP mailbox and replies over SMTP.
type Client struct {
	imapAddr string
	smtpAddr string
	address  string
	password string
	logger   *slog.Logger

	// dial opens the IMAP connection. Tests substitute a plaintext
	// dialer.
	dial func(addr string) (net.Conn, error)
}

// NewClient creates a mail client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.IMAPAddr == "" || cfg.SMTPAddr == "" {
		return nil, fmt.Errorf("mail: IMAPAddr and SMTPAddr are required")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("mail: Address is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		imapAddr: cfg.IMAPAddr,
		smtpAddr: cfg.SMTPAddr,
		address:  cfg.Address,
		password: cfg.Password,
		logger:   logger,
		dial: func(addr string) (net.Conn, error) {
			return tls.Dial("tcp", addr, nil)
		},
	}, nil
}

// Fetch opens an IMAP session and returns every unseen message,
// marking each seen as a side effect of the fetch. Dedup across polls
// is the caller's job; the seen flag only keeps the unseen set small.
func (c *Client) Fetch(ctx context.Context) ([]schema.InboundEmail, error) {
	conn, err := c.dial(c.imapAddr)
	if err != nil {
		return nil, fmt.Errorf("mail: dialing %s: %w", c.imapAddr, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(sessionTimeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	conn.SetDeadline(deadline)

	session := &imapSession{conn: conn, reader: bufio.NewReader(conn)}
	if _, err := session.readLine(); err != nil {
		return nil, fmt.Errorf("mail: reading greeting: %w", err)
	}
	if _, err := session.command("LOGIN %s %s", imapQuote(c.address), imapQuote(c.password)); err != nil {
		return nil, fmt.Errorf("mail: login: %w", err)
	}
	if _, err := session.command("SELECT INBOX"); err != nil {
		return nil, fmt.Errorf("mail: select: %w", err)
	}

	uids, err := session.searchUnseen()
	if err != nil {
		return nil, fmt.Errorf("mail: search: %w", err)
	}

	var inbound []schema.InboundEmail
	for _, uid := range uids {
		raw, err := session.fetchBody(uid)
		if err != nil {
			c.logger.Warn("fetch failed; message left unseen", "uid", uid, "error", err)
			continue
		}
		email, err := parseInbound(raw)
		if err != nil {
			c.logger.Warn("unparseable message skipped", "uid", uid, "error", err)
			continue
		}
		inbound = append(inbound, email)
	}

	session.command("LOGOUT")
	return inbound, nil
}

// Reply sends body back to the record's sender on its thread.
func (c *Client) Reply(ctx context.Context, record schema.ProcessedEmail, body string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	to, err := mail.ParseAddress(record.Sender)
	if err != nil {
		return fmt.Errorf("mail: sender address %q: %w", record.Sender, err)
	}

	subject := record.Subject
	if !strings.HasPrefix(strings.ToLower(subject), "re:") {
		subject = "Re: " + subject
	}

	var message bytes.Buffer
	fmt.Fprintf(&message, "From: %s\r\n", c.address)
	fmt.Fprintf(&message, "To: %s\r\n", to.Address)
	fmt.Fprintf(&message, "Subject: %s\r\n", mime.QEncoding.Encode("utf-8", subject))
	fmt.Fprintf(&message, "Date: %s\r\n", time.Now().Format(time.RFC1123Z))
	if record.ThreadID != "" {
		fmt.Fprintf(&message, "In-Reply-To: <%s>\r\n", record.ThreadID)
		fmt.Fprintf(&message, "References: <%s>\r\n", record.ThreadID)
	}
	message.WriteString("MIME-Version: 1.0\r\n")
	message.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	message.WriteString("\r\n")
	message.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))

	host, _, err := net.SplitHostPort(c.smtpAddr)
	if err != nil {
		return fmt.Errorf("mail: SMTP address %q: %w", c.smtpAddr, err)
	}
	auth := smtp.PlainAuth("", c.address, c.password, host)
	if err := smtp.SendMail(c.smtpAddr, auth, c.address, []string{to.Address}, message.Bytes()); err != nil {
		return fmt.Errorf("mail: sending reply to %s: %w", to.Address, err)
	}
	return nil
}

// imapSession is one tagged-command IMAP exchange.
type imapSession struct {
	conn   net.Conn
	reader *bufio.Reader
	seq    int
}

func (s *imapSession) readLine() (string, error) {
	line, err := s.reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// command sends one tagged command and collects untagged response
// lines until the tagged completion arrives.
func (s *imapSession) command(format string, args ...any) ([]string, error) {
	s.seq++
	tag := fmt.Sprintf("sw%d", s.seq)
	if _, err := fmt.Fprintf(s.conn, "%s %s\r\n", tag, fmt.Sprintf(format, args...)); err != nil {
		return nil, err
	}

	var untagged []string
	for {
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		if rest, ok := strings.CutPrefix(line, tag+" "); ok {
			if !strings.HasPrefix(rest, "OK") {
				return nil, fmt.Errorf("server said %q", rest)
			}
			return untagged, nil
		}
		untagged = append(untagged, line)
	}
}

// searchUnseen returns the UIDs of unseen messages.
func (s *imapSession) searchUnseen() ([]string, error) {
	lines, err := s.command("UID SEARCH UNSEEN")
	if err != nil {
		return nil, err
	}
	for _, line := range lines {
		if rest, ok := strings.CutPrefix(line, "* SEARCH"); ok {
			return strings.Fields(rest), nil
		}
	}
	return nil, nil
}

// fetchBody retrieves one full message by UID. The fetch sets the seen
// flag. Literal framing: a response line ending in {N} is followed by
// N raw bytes.
func (s *imapSession) fetchBody(uid string) ([]byte, error) {
	s.seq++
	tag := fmt.Sprintf("sw%d", s.seq)
	if _, err := fmt.Fprintf(s.conn, "%s UID FETCH %s (BODY[])\r\n", tag, uid); err != nil {
		return nil, err
	}

	var body []byte
	for {
		line, err := s.readLine()
		if err != nil {
			return nil, err
		}
		if rest, ok := strings.CutPrefix(line, tag+" "); ok {
			if !strings.HasPrefix(rest, "OK") {
				return nil, fmt.Errorf("server said %q", rest)
			}
			if body == nil {
				return nil, fmt.Errorf("no literal in fetch response for uid %s", uid)
			}
			return body, nil
		}
		if size, ok := literalSize(line); ok {
			body = make([]byte, size)
			if _, err := io.ReadFull(s.reader, body); err != nil {
				return nil, err
			}
		}
	}
}

// literalSize parses a trailing {N} literal marker.
func literalSize(line string) (int, bool) {
	if !strings.HasSuffix(line, "}") {
		return 0, false
	}
	open := strings.LastIndexByte(line, '{')
	if open < 0 {
		return 0, false
	}
	size, err := strconv.Atoi(line[open+1 : len(line)-1])
	if err != nil || size < 0 {
		return 0, false
	}
	return size, true
}

// imapQuote wraps a string in IMAP quoted-string form.
func imapQuote(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `"`, `\"`)
	return `"` + s + `"`
}

// parseInbound maps one raw RFC 822 message onto the inbound schema.
// The thread key is In-Reply-To, then the first References entry, then
// the message's own ID.
func parseInbound(raw []byte) (schema.InboundEmail, error) {
	message, err := mail.ReadMessage(bytes.NewReader(raw))
	if err != nil {
		return schema.InboundEmail{}, err
	}

	id := stripAngles(message.Header.Get("Message-Id"))
	if id == "" {
		return schema.InboundEmail{}, fmt.Errorf("message has no Message-Id")
	}

	sender := message.Header.Get("From")
	if address, err := mail.ParseAddress(sender); err == nil {
		sender = address.Address
	}

	subject := message.Header.Get("Subject")
	decoder := mime.WordDecoder{}
	if decoded, err := decoder.DecodeHeader(subject); err == nil {
		subject = decoded
	}

	thread := stripAngles(message.Header.Get("In-Reply-To"))
	if thread == "" {
		if refs := strings.Fields(message.Header.Get("References")); len(refs) > 0 {
			thread = stripAngles(refs[0])
		}
	}
	if thread == "" {
		thread = id
	}

	body, err := io.ReadAll(message.Body)
	if err != nil {
		return schema.InboundEmail{}, err
	}

	return schema.InboundEmail{
		ID:       id,
		ThreadID: thread,
		Sender:   sender,
		Subject:  subject,
		Body:     strings.TrimSpace(strings.ReplaceAll(string(body), "\r\n", "\n")),
	}, nil
}

func stripAngles(s string) string {
	return strings.Trim(strings.TrimSpace(s), "<>")
}
