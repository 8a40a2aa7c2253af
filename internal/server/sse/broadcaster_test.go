package sse

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// plainWriter does not implement http.Flusher.
type plainWriter struct{}

func (plainWriter) Header() http.Header         { return http.Header{} }
func (plainWriter) Write(p []byte) (int, error) { return len(p), nil }
func (plainWriter) WriteHeader(int)             {}

func TestAddAndRemoveClient(t *testing.T) {
	b := NewBroadcaster()

	client, err := b.AddClient(httptest.NewRecorder())
	require.NoError(t, err)
	assert.Equal(t, 1, b.ClientCount())

	b.RemoveClient(client)
	assert.Equal(t, 0, b.ClientCount())

	select {
	case <-client.Done:
	default:
		t.Fatal("Done should be closed after removal")
	}
}

func TestAddClient_RequiresFlusher(t *testing.T) {
	b := NewBroadcaster()

	_, err := b.AddClient(plainWriter{})
	assert.Error(t, err)
}

func TestSessionUpdated_DeliversEvent(t *testing.T) {
	b := NewBroadcaster()
	rec := httptest.NewRecorder()
	_, err := b.AddClient(rec)
	require.NoError(t, err)

	b.SessionUpdated("sess-1", "question_ready")

	body := rec.Body.String()
	assert.Contains(t, body, "event: session\n")
	assert.Contains(t, body, `"session_id":"sess-1"`)
	assert.Contains(t, body, `"event":"question_ready"`)
}

func TestSessionUpdated_MultipleClients(t *testing.T) {
	b := NewBroadcaster()
	first := httptest.NewRecorder()
	second := httptest.NewRecorder()
	_, err := b.AddClient(first)
	require.NoError(t, err)
	_, err = b.AddClient(second)
	require.NoError(t, err)

	b.SessionUpdated("sess-1", "session_complete")

	assert.Contains(t, first.Body.String(), `"session_complete"`)
	assert.Contains(t, second.Body.String(), `"session_complete"`)
}

func TestSessionUpdated_NoClients(t *testing.T) {
	b := NewBroadcaster()

	// Must not panic or block with nobody connected.
	b.SessionUpdated("sess-1", "question_ready")
	assert.Equal(t, 0, b.ClientCount())
}

func TestSessionUpdated_SkipsRemovedClient(t *testing.T) {
	b := NewBroadcaster()
	rec := httptest.NewRecorder()
	client, err := b.AddClient(rec)
	require.NoError(t, err)
	b.RemoveClient(client)

	b.SessionUpdated("sess-1", "question_ready")
	assert.Empty(t, rec.Body.String())
}
