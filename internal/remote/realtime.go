package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/coder/websocket"
)

// EventType is the kind of change carried by a realtime event.
type EventType string

const (
	// EventInsert indicates a row was created on the remote side.
	EventInsert EventType = "insert"
	// EventUpdate indicates a row was modified on the remote side.
	EventUpdate EventType = "update"
	// EventDelete indicates a row was removed on the remote side.
	EventDelete EventType = "delete"
)

// Event is one incremental change pushed by the remote service. OldRow
// is set for updates and deletes, NewRow for inserts and updates. No
// ordering is guaranteed across events for different records; each is
// applied independently.
type Event struct {
	Table  string         `json:"table"`
	Type   EventType      `json:"type"`
	OldRow map[string]any `json:"old_row,omitempty"`
	NewRow map[string]any `json:"new_row,omitempty"`
}

// Key returns the primary key the event refers to, preferring the new
// row.
func (e *Event) Key() string {
	for _, row := range []map[string]any{e.NewRow, e.OldRow} {
		if row == nil {
			continue
		}
		if id, ok := row["id"].(string); ok {
			return id
		}
	}
	return ""
}

// Subscribe opens the per-user push channel and delivers each incoming
// event to onEvent. It blocks until ctx is cancelled (returning nil) or
// the connection fails (returning the error). The caller owns
// reconnection policy.
func (c *Client) Subscribe(ctx context.Context, userID string, onEvent func(Event)) error {
	wsURL := strings.Replace(c.baseURL, "http", "ws", 1) + "/realtime/v1?user_id=" + userID

	conn, _, err := websocket.Dial(ctx, wsURL, &websocket.DialOptions{
		HTTPHeader: http.Header{
			"apikey":        []string{c.apiKey},
			"Authorization": []string{"Bearer " + c.apiKey},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to dial realtime channel: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	c.logger.Printf("Subscribed to realtime channel for user %s", userID)

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("realtime read failed: %w", err)
		}

		var event Event
		if err := json.Unmarshal(data, &event); err != nil {
			// One malformed frame must not kill the subscription.
			c.logger.Printf("Skipping malformed realtime event: %v", err)
			continue
		}
		onEvent(event)
	}
}
