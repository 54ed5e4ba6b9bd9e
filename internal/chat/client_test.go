package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ragbot/docchat/internal/prompt"
	"github.com/ragbot/docchat/internal/session"
)

func chunkEvent(content string) string {
	payload := fmt.Sprintf(
		`{"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":{"content":%q}}]}`,
		content)
	return "data: " + payload + "\n\n"
}

// emptyChoicesEvent is decodable but carries nothing usable.
const emptyChoicesEvent = `data: {"id":"c1","object":"chat.completion.chunk","created":1,"model":"m","choices":[]}` + "\n\n"

const doneEvent = "data: [DONE]\n\n"

func newSSEServer(t *testing.T, handler http.HandlerFunc) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server
}

func newTestClient(t *testing.T, serverURL string, maxMalformed int) *Client {
	t.Helper()
	client, err := NewClient(Config{
		APIKey:                  "test-key",
		BaseURL:                 serverURL,
		Model:                   "test-model",
		MaxConsecutiveMalformed: maxMalformed,
	})
	require.NoError(t, err)
	return client
}

func writeSSE(t *testing.T, w http.ResponseWriter, events ...string) {
	t.Helper()
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	flusher, ok := w.(http.Flusher)
	require.True(t, ok)
	for _, event := range events {
		_, err := io.WriteString(w, event)
		require.NoError(t, err)
		flusher.Flush()
	}
}

func basicRequest() *prompt.GenerationRequest {
	return &prompt.GenerationRequest{
		SystemPreamble: "answer from context",
		Context:        []string{"some context"},
		UserQuery:      "what is x?",
	}
}

func TestGenerate_StreamsFragmentsToCompletion(t *testing.T) {
	server := newSSEServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w,
			chunkEvent("The "),
			chunkEvent("answer "),
			chunkEvent("is 42."),
			doneEvent,
		)
	})

	client := newTestClient(t, server.URL, 0)
	stream, err := client.Generate(context.Background(), basicRequest())
	require.NoError(t, err)
	defer stream.Close()

	var fragments []string
	for stream.Next() {
		fragments = append(fragments, stream.Current())
	}

	require.NoError(t, stream.Err())
	assert.Equal(t, StateCompleted, stream.State())
	assert.Equal(t, []string{"The ", "answer ", "is 42."}, fragments)
}

func TestCollect_ConcatenatesFragments(t *testing.T) {
	server := newSSEServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, chunkEvent("The "), chunkEvent("answer "), chunkEvent("is 42."), doneEvent)
	})

	client := newTestClient(t, server.URL, 0)
	stream, err := client.Generate(context.Background(), basicRequest())
	require.NoError(t, err)
	defer stream.Close()

	answer, err := Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "The answer is 42.", answer)
}

func TestGenerate_TransportFailureMidStream(t *testing.T) {
	server := newSSEServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, chunkEvent("partial "))
		// Drop the connection without terminating the chunked body.
		hijacker, ok := w.(http.Hijacker)
		require.True(t, ok)
		conn, _, err := hijacker.Hijack()
		require.NoError(t, err)
		conn.Close()
	})

	client := newTestClient(t, server.URL, 0)
	stream, err := client.Generate(context.Background(), basicRequest())
	require.NoError(t, err)
	defer stream.Close()

	answer, err := Collect(stream)

	assert.Equal(t, "partial ", answer, "already-yielded fragments remain valid")
	assert.ErrorIs(t, err, ErrStreamFailed)
	assert.Equal(t, StateFailed, stream.State())
	assert.False(t, stream.Next(), "a failed stream yields no further fragments")
}

func TestGenerate_GatewayErrorResponse(t *testing.T) {
	server := newSSEServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		io.WriteString(w, `{"error": {"message": "service unavailable"}}`)
	})

	client := newTestClient(t, server.URL, 0)
	stream, err := client.Generate(context.Background(), basicRequest())
	require.NoError(t, err)
	defer stream.Close()

	assert.False(t, stream.Next())
	assert.ErrorIs(t, stream.Err(), ErrStreamFailed)
	assert.Equal(t, StateFailed, stream.State())
}

func TestGenerate_SkipsIsolatedUnusableEvents(t *testing.T) {
	server := newSSEServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w,
			emptyChoicesEvent,
			chunkEvent("still "),
			emptyChoicesEvent,
			emptyChoicesEvent,
			chunkEvent("fine"),
			doneEvent,
		)
	})

	client := newTestClient(t, server.URL, 5)
	stream, err := client.Generate(context.Background(), basicRequest())
	require.NoError(t, err)
	defer stream.Close()

	answer, err := Collect(stream)
	require.NoError(t, err)
	assert.Equal(t, "still fine", answer)
	assert.Equal(t, StateCompleted, stream.State())
}

func TestGenerate_ConsecutiveUnusableEventsFailTheStream(t *testing.T) {
	server := newSSEServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w,
			chunkEvent("ok "),
			emptyChoicesEvent,
			emptyChoicesEvent,
			emptyChoicesEvent,
			chunkEvent("never reached"),
			doneEvent,
		)
	})

	client := newTestClient(t, server.URL, 3)
	stream, err := client.Generate(context.Background(), basicRequest())
	require.NoError(t, err)
	defer stream.Close()

	answer, err := Collect(stream)
	assert.Equal(t, "ok ", answer)
	assert.ErrorIs(t, err, ErrStreamFailed)
	assert.Equal(t, StateFailed, stream.State())
}

func TestGenerate_CancellationReleasesStream(t *testing.T) {
	release := make(chan struct{})
	server := newSSEServer(t, func(w http.ResponseWriter, r *http.Request) {
		writeSSE(t, w, chunkEvent("first"))
		select {
		case <-r.Context().Done():
		case <-release:
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	client := newTestClient(t, server.URL, 0)
	stream, err := client.Generate(ctx, basicRequest())
	require.NoError(t, err)
	defer stream.Close()

	require.True(t, stream.Next())
	assert.Equal(t, "first", stream.Current())
	assert.Equal(t, StateStreaming, stream.State())

	cancel()

	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.False(t, stream.Next())
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("stream did not unblock after cancellation")
	}

	assert.ErrorIs(t, stream.Err(), ErrStreamFailed)
	assert.Equal(t, StateFailed, stream.State())
}

func TestGenerate_RequestCarriesPreambleHistoryAndContext(t *testing.T) {
	type message struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	var got struct {
		Model    string    `json:"model"`
		Messages []message `json:"messages"`
	}

	server := newSSEServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		writeSSE(t, w, chunkEvent("ok"), doneEvent)
	})

	client := newTestClient(t, server.URL, 0)
	req := &prompt.GenerationRequest{
		SystemPreamble: "ground your answers",
		Context:        []string{"chunk one", "chunk two"},
		History: []session.Turn{
			{Role: session.RoleUser, Content: "earlier question"},
			{Role: session.RoleAssistant, Content: "earlier answer"},
		},
		UserQuery: "what now?",
	}

	stream, err := client.Generate(context.Background(), req)
	require.NoError(t, err)
	defer stream.Close()
	_, err = Collect(stream)
	require.NoError(t, err)

	assert.Equal(t, "test-model", got.Model)
	require.Len(t, got.Messages, 4)
	assert.Equal(t, message{"system", "ground your answers"}, got.Messages[0])
	assert.Equal(t, message{"user", "earlier question"}, got.Messages[1])
	assert.Equal(t, message{"assistant", "earlier answer"}, got.Messages[2])
	assert.Equal(t, "user", got.Messages[3].Role)
	assert.Contains(t, got.Messages[3].Content, "Question: what now?")
	assert.Contains(t, got.Messages[3].Content, "chunk one"+prompt.ContextDelimiter+"chunk two")
}

func TestNewClient_RequiresAPIKey(t *testing.T) {
	_, err := NewClient(Config{})
	assert.Error(t, err)
}
