package remote

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	method string
	path   string
	query  map[string]string
	header http.Header
	body   []byte
}

// newCapturingServer records every request and answers with the given
// status and body.
func newCapturingServer(t *testing.T, status int, body string) (*Client, *[]capturedRequest) {
	t.Helper()
	var captured []capturedRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		query := make(map[string]string)
		for k := range r.URL.Query() {
			query[k] = r.URL.Query().Get(k)
		}
		captured = append(captured, capturedRequest{
			method: r.Method,
			path:   r.URL.Path,
			query:  query,
			header: r.Header.Clone(),
			body:   data,
		})
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(server.Close)

	client := New(Config{
		BaseURL:    server.URL,
		APIKey:     "secret-key",
		HTTPClient: server.Client(),
		Logger:     testLogger(t),
	})
	return client, &captured
}

func testLogger(t *testing.T) *log.Logger {
	t.Helper()
	return log.New(testWriter{t}, "", 0)
}

type testWriter struct{ t *testing.T }

func (w testWriter) Write(p []byte) (int, error) {
	w.t.Logf("%s", p)
	return len(p), nil
}

func TestUpsertRequestShape(t *testing.T) {
	client, captured := newCapturingServer(t, http.StatusCreated, "")

	row := map[string]any{"id": "t1", "user_id": "u1", "title": "Drink water"}
	require.NoError(t, client.Upsert(context.Background(), "tasks", row))

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.Equal(t, http.MethodPost, req.method)
	assert.Equal(t, "/rest/v1/tasks", req.path)
	assert.Equal(t, "resolution=merge-duplicates,return=minimal", req.header.Get("Prefer"))
	assert.Equal(t, "application/json", req.header.Get("Content-Type"))
	assert.Equal(t, "secret-key", req.header.Get("apikey"))
	assert.Equal(t, "Bearer secret-key", req.header.Get("Authorization"))

	var sent []map[string]any
	require.NoError(t, json.Unmarshal(req.body, &sent))
	require.Len(t, sent, 1)
	assert.Equal(t, "t1", sent[0]["id"])
}

func TestDeleteByKeyScopesToUser(t *testing.T) {
	client, captured := newCapturingServer(t, http.StatusNoContent, "")

	require.NoError(t, client.DeleteByKey(context.Background(), "tasks", "t1", "u1"))

	require.Len(t, *captured, 1)
	req := (*captured)[0]
	assert.Equal(t, http.MethodDelete, req.method)
	assert.Equal(t, "/rest/v1/tasks", req.path)
	assert.Equal(t, "eq.t1", req.query["id"])
	assert.Equal(t, "eq.u1", req.query["user_id"])
	assert.Equal(t, "secret-key", req.header.Get("apikey"))
}

func TestSelectAllDecodesRows(t *testing.T) {
	client, captured := newCapturingServer(t, http.StatusOK,
		`[{"id":"t1","title":"One"},{"id":"t2","title":"Two"}]`)

	rows, err := client.SelectAll(context.Background(), "tasks", "u1")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "t1", rows[0]["id"])

	req := (*captured)[0]
	assert.Equal(t, http.MethodGet, req.method)
	assert.Equal(t, "eq.u1", req.query["user_id"])
	assert.Equal(t, "*", req.query["select"])
}

func TestErrorCarriesStatusAndBody(t *testing.T) {
	client, _ := newCapturingServer(t, http.StatusConflict, `{"message":"duplicate key"}`)

	err := client.Upsert(context.Background(), "tasks", map[string]any{"id": "t1"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "409")
	assert.Contains(t, err.Error(), "duplicate key")
}

func TestHealth(t *testing.T) {
	client, captured := newCapturingServer(t, http.StatusOK, "ok")
	require.NoError(t, client.Health(context.Background()))
	assert.Equal(t, "/health", (*captured)[0].path)

	down, _ := newCapturingServer(t, http.StatusServiceUnavailable, "")
	assert.Error(t, down.Health(context.Background()))
}

func TestSubscribeDeliversEvents(t *testing.T) {
	frames := [][]byte{
		[]byte(`{not json`),
		[]byte(`{"table":"tasks","type":"update","new_row":{"id":"t1","title":"Edited"}}`),
	}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/realtime/v1", r.URL.Path)
		assert.Equal(t, "u1", r.URL.Query().Get("user_id"))
		assert.Equal(t, "secret-key", r.Header.Get("apikey"))

		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept failed: %v", err)
			return
		}
		defer conn.CloseNow()
		for _, frame := range frames {
			if err := conn.Write(r.Context(), websocket.MessageText, frame); err != nil {
				return
			}
		}
		<-r.Context().Done()
	}))
	t.Cleanup(server.Close)

	client := New(Config{
		BaseURL: server.URL,
		APIKey:  "secret-key",
		Logger:  testLogger(t),
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	events := make(chan Event, 2)
	done := make(chan error, 1)
	go func() {
		done <- client.Subscribe(ctx, "u1", func(ev Event) { events <- ev })
	}()

	// The malformed frame is skipped; only the valid event arrives.
	select {
	case ev := <-events:
		assert.Equal(t, "tasks", ev.Table)
		assert.Equal(t, EventUpdate, ev.Type)
		assert.Equal(t, "t1", ev.Key())
	case <-ctx.Done():
		t.Fatal("no event delivered")
	}

	cancel()
	require.NoError(t, <-done)
}
