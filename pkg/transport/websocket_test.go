package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestOriginAllowed(t *testing.T) {
	tests := []struct {
		name    string
		config  *WebSocketConfig
		origin  string
		allowed bool
	}{
		{"same origin", &WebSocketConfig{}, "https://edureg.example", true},
		{"no origin", &WebSocketConfig{}, "", true},
		{"listed origin", &WebSocketConfig{AllowedOrigins: []string{"https://portal.example"}}, "https://portal.example", true},
		{"listed host", &WebSocketConfig{AllowedOrigins: []string{"http://portal.example"}}, "https://portal.example", true},
		{"unlisted origin", &WebSocketConfig{AllowedOrigins: []string{"https://portal.example"}}, "https://attacker.example", false},
		{"wildcard", &WebSocketConfig{AllowedOrigins: []string{"*"}}, "https://any.example", true},
		{"dev mode", &WebSocketConfig{InsecureDevMode: true}, "https://attacker.example", true},
		{"cross origin by default", &WebSocketConfig{}, "https://other.example", false},
		{"garbage origin", &WebSocketConfig{}, "::::", false},
		{"nil config", nil, "https://other.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.allowed, tt.config.OriginAllowed(tt.origin, "edureg.example"))
		})
	}
}

func TestUpgradeRejectsForeignOrigin(t *testing.T) {
	tr := NewWebSocketTransport(nil, nil, nil)

	req := httptest.NewRequest(http.MethodGet, "/live/forms/university", nil)
	req.Host = "edureg.example"
	req.Header.Set("Origin", "https://attacker.example")
	rec := httptest.NewRecorder()

	err := tr.Upgrade(rec, req)
	assert.ErrorIs(t, err, ErrOriginNotAllowed)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.False(t, tr.IsConnected())
}

func TestUnmarshal(t *testing.T) {
	msg, err := Unmarshal([]byte(`{"ref":"3","event":"update_field","payload":{"field":"college","value":"GJU"}}`))
	require.NoError(t, err)
	assert.Equal(t, "3", msg.Ref)
	assert.Equal(t, "GJU", msg.Payload["value"])

	_, err = Unmarshal([]byte(`{"ref":"3"}`))
	assert.ErrorIs(t, err, ErrInvalidMessage)
	_, err = Unmarshal([]byte(`not json`))
	assert.ErrorIs(t, err, ErrInvalidMessage)
}

func TestWebSocketRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	serverDone := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer close(serverDone)

		tr := NewWebSocketTransport(nil, nil, nil)
		if err := tr.Upgrade(w, r); err != nil {
			return
		}
		defer tr.Close()

		for {
			select {
			case msg := <-tr.Receive():
				_ = tr.Send(Message{Ref: msg.Ref, Event: "echo", Payload: msg.Payload})
			case <-tr.Done():
				return
			}
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, err := Dial(ctx, url, nil, nil)
	require.NoError(t, err)

	require.NoError(t, client.Send(Message{Ref: "1", Event: "ping"}))
	require.NoError(t, client.Send(Message{Ref: "2", Event: "next_step", Payload: map[string]any{"n": 1.0}}))

	var got []Message
	for len(got) < 2 {
		select {
		case msg := <-client.Receive():
			got = append(got, msg)
		case <-ctx.Done():
			t.Fatalf("timed out, got %+v", got)
		}
	}
	assert.Equal(t, Message{Ref: "1", Event: "pong"}, got[0])
	assert.Equal(t, "echo", got[1].Event)
	assert.Equal(t, "2", got[1].Ref)
	assert.Equal(t, 1.0, got[1].Payload["n"])

	require.NoError(t, client.Close())
	assert.False(t, client.IsConnected())
	assert.True(t, errors.Is(client.Send(Message{Event: "x"}), ErrNotConnected))

	select {
	case <-serverDone:
	case <-ctx.Done():
		t.Fatal("server side did not notice the close")
	}
}
