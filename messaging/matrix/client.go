// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

// Package matrix is the gateway-chat adapter, speaking the Matrix
// client-server API. Chat identities are "matrix:" plus the room ID.
package matrix

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// maxResponseBytes bounds any single homeserver response read.
const maxResponseBytes = 16 << 20

// ClientConfig holds configuration for creating a Client.
type ClientConfig struct {
	// HomeserverURL is the base URL of the homeserver.
	HomeserverURL string

	// HTTPClient is used for all requests. Nil means
	// http.DefaultClient.
	HTTPClient *http.Client

	// Logger is used for structured logging. Nil means discard.
	Logger *slog.Logger
}

// Client is an authenticated Matrix client for one account.
type Client struct {
	baseURL    string
	httpClient *http.Client
	logger     *slog.Logger

	accessToken string
	userID      string
	txnCounter  uint64
}

// NewClient creates a client. Call Login before anything else.
func NewClient(config ClientConfig) (*Client, error) {
	if config.HomeserverURL == "" {
		return nil, fmt.Errorf("matrix: HomeserverURL is required")
	}
	if _, err := url.Parse(config.HomeserverURL); err != nil {
		return nil, fmt.Errorf("matrix: invalid HomeserverURL %q: %w", config.HomeserverURL, err)
	}
	httpClient := config.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Client{
		baseURL:    strings.TrimRight(config.HomeserverURL, "/"),
		httpClient: httpClient,
		logger:     logger,
	}, nil
}

// MatrixError is the standard error shape every homeserver error
// response uses.
type MatrixError struct {
	Code    string `json:"errcode"`
	Message string `json:"error"`
	Status  int    `json:"-"`
}

func (e *MatrixError) Error() string {
	return fmt.Sprintf("matrix: %s (%s, HTTP %d)", e.Message, e.Code, e.Status)
}

// Login authenticates with username and password and stores the
// access token and user ID on the client.
func (c *Client) Login(ctx context.Context, username, password string) error {
	body, err := c.doRequest(ctx, http.MethodPost, "/_matrix/client/v3/login", map[string]any{
		"type": "m.login.password",
		"identifier": map[string]any{
			"type": "m.id.user",
			"user": username,
		},
		"password": password,
	}, nil)
	if err != nil {
		return fmt.Errorf("matrix: login failed: %w", err)
	}

	var response struct {
		AccessToken string `json:"access_token"`
		UserID      string `json:"user_id"`
	}
	if err := json.Unmarshal(body, &response); err != nil {
		return fmt.Errorf("matrix: parsing login response: %w", err)
	}
	if response.AccessToken == "" {
		return fmt.Errorf("matrix: login response had no access token")
	}
	c.accessToken = response.AccessToken
	c.userID = response.UserID
	c.logger.Info("matrix login succeeded", "user_id", c.userID)
	return nil
}

// UserID returns the logged-in account's Matrix user ID.
func (c *Client) UserID() string { return c.userID }

func (c *Client) doRequest(ctx context.Context, method, path string, requestBody any, query url.Values) ([]byte, error) {
	requestURL := c.baseURL + path
	if query != nil {
		requestURL += "?" + query.Encode()
	}

	var bodyReader io.Reader
	if requestBody != nil {
		encoded, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("matrix: encoding request body: %w", err)
		}
		bodyReader = bytes.NewReader(encoded)
	}

	request, err := http.NewRequestWithContext(ctx, method, requestURL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("matrix: creating request: %w", err)
	}
	if requestBody != nil {
		request.Header.Set("Content-Type", "application/json")
	}
	if c.accessToken != "" {
		request.Header.Set("Authorization", "Bearer "+c.accessToken)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("matrix: %s %s: %w", method, path, err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("matrix: reading response body: %w", err)
	}

	if response.StatusCode >= 200 && response.StatusCode < 300 {
		return responseBody, nil
	}

	matrixErr := &MatrixError{Status: response.StatusCode}
	if jsonErr := json.Unmarshal(responseBody, matrixErr); jsonErr != nil {
		return nil, fmt.Errorf("matrix: HTTP %d from %s %s: %s",
			response.StatusCode, method, path, truncate(string(responseBody), 256))
	}
	return nil, matrixErr
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
