// Copyright 2026 The Switchyard Authors
// SPDX-License-Identifier: Apache-2.0

package matrix

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/switchyard-foundation/switchyard/messaging"
)

// syncTimeout is the long-poll window requested from the homeserver.
const syncTimeout = 30 * time.Second

// syncResponse is the subset of the /sync payload the adapter reads.
type syncResponse struct {
	NextBatch string `json:"next_batch"`
	Rooms     struct {
		Join map[string]struct {
			Timeline struct {
				Events []timelineEvent `json:"events"`
			} `json:"timeline"`
			State struct {
				Events []timelineEvent `json:"events"`
			} `json:"state"`
		} `json:"join"`
	} `json:"rooms"`
}

type timelineEvent struct {
	Type     string          `json:"type"`
	Sender   string          `json:"sender"`
	OriginTS int64           `json:"origin_server_ts"`
	Content  json.RawMessage `json:"content"`
}

type messageContent struct {
	MsgType string `json:"msgtype"`
	Body    string `json:"body"`
}

type nameContent struct {
	Name string `json:"name"`
}

type memberContent struct {
	IsDirect bool `json:"is_direct"`
}

// Sync runs the long-poll loop until ctx is cancelled, handing every
// timeline message to deliver. Transient errors back off and retry;
// the loop only returns on cancellation.
func (c *Client) Sync(ctx context.Context, deliver func(messaging.Event)) error {
	var since string
	roomNames := make(map[string]string)
	directRooms := make(map[string]bool)
	backoff := time.Second

	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		query := url.Values{"timeout": []string{strconv.FormatInt(syncTimeout.Milliseconds(), 10)}}
		if since != "" {
			query.Set("since", since)
		}
		body, err := c.doRequest(ctx, http.MethodGet, "/_matrix/client/v3/sync", nil, query)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			c.logger.Warn("sync request failed; backing off", "error", err, "backoff", backoff)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(backoff):
			}
			if backoff < 30*time.Second {
				backoff *= 2
			}
			continue
		}
		backoff = time.Second

		var response syncResponse
		if err := json.Unmarshal(body, &response); err != nil {
			c.logger.Warn("unparseable sync response", "error", err)
			continue
		}

		// The first sync is a history dump; use it only to seed room
		// names and the since token, never to deliver old messages.
		initial := since == ""
		since = response.NextBatch

		for id, room := range response.Rooms.Join {
			for _, event := range room.State.Events {
				switch event.Type {
				case "m.room.name":
					var content nameContent
					if json.Unmarshal(event.Content, &content) == nil {
						roomNames[id] = content.Name
					}
				case "m.room.member":
					var content memberContent
					if json.Unmarshal(event.Content, &content) == nil && content.IsDirect {
						directRooms[id] = true
					}
				}
			}
			if initial {
				continue
			}
			for _, event := range room.Timeline.Events {
				switch event.Type {
				case "m.room.name":
					var content nameContent
					if json.Unmarshal(event.Content, &content) == nil {
						roomNames[id] = content.Name
					}
					continue
				case "m.room.member":
					var content memberContent
					if json.Unmarshal(event.Content, &content) == nil && content.IsDirect {
						directRooms[id] = true
					}
					continue
				}
				if event.Type != "m.room.message" {
					continue
				}
				var content messageContent
				if err := json.Unmarshal(event.Content, &content); err != nil || content.MsgType != "m.text" {
					continue
				}
				deliver(messaging.Event{
					ChatID:    ChatID(id),
					ChatName:  roomNames[id],
					Sender:    event.Sender,
					FromSelf:  event.Sender == c.userID,
					Direct:    directRooms[id],
					Body:      content.Body,
					Timestamp: time.UnixMilli(event.OriginTS).UTC(),
				})
			}
		}
	}
}
