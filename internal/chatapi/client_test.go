package chatapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/coworkhq/chatsync/internal/chatsync"
)

func TestSignInReturnsToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/signin" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		var body struct {
			Email    string `json:"email"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Email != "a@b.com" {
			t.Errorf("unexpected sign-in body: %+v (%v)", body, err)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token":"T"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", server.Client())
	resp, err := client.SignIn(context.Background(), "a@b.com", "x")
	if err != nil {
		t.Fatalf("sign-in failed: %v", err)
	}
	if resp.Token != "T" {
		t.Fatalf("expected token T, got %q", resp.Token)
	}
}

func TestSignInMapsRejectionToAuthError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"bad credentials"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", server.Client())
	_, err := client.SignIn(context.Background(), "a@b.com", "wrong")
	if !errors.Is(err, chatsync.ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	var authErr *chatsync.AuthError
	if !errors.As(err, &authErr) || authErr.Message != "bad credentials" {
		t.Fatalf("expected auth error with server message, got %v", err)
	}
}

func TestAuthenticatedCallsCarryBearerTokenAndRequestID(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer T" {
			t.Errorf("expected bearer token, got %q", got)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Errorf("expected a request id header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[{"id":1,"name":"general","type":"group"}]`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", server.Client())
	client.SetToken("T")
	channels, err := client.ListChannels(context.Background())
	if err != nil {
		t.Fatalf("list channels failed: %v", err)
	}
	if len(channels) != 1 || channels[0].Name != "general" {
		t.Fatalf("unexpected channels %+v", channels)
	}
}

func TestTransientFailureIsNotRetried(t *testing.T) {
	var calls int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"code":"unavailable","message":"try later"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "T", server.Client())
	_, err := client.ListUsers(context.Background())
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) || httpErr.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected http 503 error, got %v", err)
	}
	if got := atomic.LoadInt32(&calls); got != 1 {
		t.Fatalf("expected exactly 1 call (no retry), got %d", got)
	}
}

func TestPostMessageReturnsServerRepresentation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chats/5/messages" || r.Method != http.MethodPost {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":42,"channelId":5,"senderName":"Me","text":"hello","timestamp":"2026-08-28T10:00:00Z"}`))
	}))
	defer server.Close()

	client := NewClient(server.URL, "T", server.Client())
	stored, err := client.PostMessage(context.Background(), chatsync.OutgoingMessage{ChannelID: 5, Text: "hello"})
	if err != nil {
		t.Fatalf("post message failed: %v", err)
	}
	if stored.ID != 42 || stored.ChannelID != 5 {
		t.Fatalf("unexpected stored message %+v", stored)
	}
}
