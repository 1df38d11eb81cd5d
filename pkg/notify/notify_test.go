package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/platinummonkey/evalhub/pkg/auth"
	"github.com/platinummonkey/evalhub/pkg/observability"
)

func TestExpirationWarning(t *testing.T) {
	user := &auth.User{ID: 42, Username: "trial", Email: "t@example.com", Role: auth.RoleDemo, ReportCount: 3}

	msg := ExpirationWarning(user, 5, 5)
	assert.Equal(t, "t@example.com", msg.To)
	assert.Equal(t, int64(42), msg.UserID)
	assert.Equal(t, "Your demo account expires in 5 days", msg.Subject)
	assert.Contains(t, msg.Body, "3 of 5 demo reports")

	assert.Equal(t, "Your demo account expires in 1 day", ExpirationWarning(user, 1, 5).Subject)
}

func TestWebhookNotifier_Send(t *testing.T) {
	var (
		body      []byte
		signature string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ = io.ReadAll(r.Body)
		signature = r.Header.Get(SignatureHeader)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "s3cret", time.Second, observability.NewDiscardLogger())
	msg := Message{To: "t@example.com", Subject: "hello", Body: "world", UserID: 7}
	require.NoError(t, n.Send(context.Background(), msg))

	var got Message
	require.NoError(t, json.Unmarshal(body, &got))
	assert.Equal(t, msg, got)
	assert.True(t, VerifySignature(body, signature, "s3cret"))
	assert.False(t, VerifySignature(body, signature, "other"))
}

func TestWebhookNotifier_Unsigned(t *testing.T) {
	var signature string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		signature = r.Header.Get(SignatureHeader)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "", time.Second, observability.NewDiscardLogger())
	require.NoError(t, n.Send(context.Background(), Message{To: "t@example.com"}))
	assert.Empty(t, signature)
}

func TestWebhookNotifier_Failures(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	n := NewWebhookNotifier(server.URL, "", time.Second, observability.NewDiscardLogger())
	err := n.Send(context.Background(), Message{To: "t@example.com"})
	assert.ErrorIs(t, err, ErrNotificationFailed)
	assert.Equal(t, int32(1), calls.Load(), "no retry")

	err = n.Send(context.Background(), Message{})
	assert.ErrorIs(t, err, ErrNotificationFailed)

	server.Close()
	err = n.Send(context.Background(), Message{To: "t@example.com"})
	assert.ErrorIs(t, err, ErrNotificationFailed)
}

func TestLogNotifier(t *testing.T) {
	n := NewLogNotifier(observability.NewDiscardLogger())
	assert.NoError(t, n.Send(context.Background(), Message{To: "t@example.com"}))
	assert.ErrorIs(t, n.Send(context.Background(), Message{}), ErrNotificationFailed)
}
