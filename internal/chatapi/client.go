package chatapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coworkhq/chatsync/internal/chatsync"
)

type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// Client talks to the chat service. Requests are never retried here; retry
// policy belongs to the caller.
type Client struct {
	baseURL    string
	httpClient *http.Client

	mu    sync.RWMutex
	token string
}

func NewClient(baseURL, token string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = "http://localhost:6688/api"
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: httpClient,
		token:      strings.TrimSpace(token),
	}
}

func (c *Client) SetToken(token string) {
	c.mu.Lock()
	c.token = strings.TrimSpace(token)
	c.mu.Unlock()
}

func (c *Client) currentToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

func (c *Client) SignIn(ctx context.Context, email, password string) (chatsync.AuthResponse, error) {
	body := map[string]any{
		"email":    email,
		"password": password,
	}
	var out chatsync.AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/signin", body, &out)
	return out, err
}

func (c *Client) SignUp(ctx context.Context, req chatsync.SignUpRequest) (chatsync.AuthResponse, error) {
	var out chatsync.AuthResponse
	err := c.doJSON(ctx, http.MethodPost, "/signup", req, &out)
	return out, err
}

func (c *Client) ListUsers(ctx context.Context) ([]chatsync.User, error) {
	var out []chatsync.User
	err := c.doJSON(ctx, http.MethodGet, "/users", nil, &out)
	return out, err
}

func (c *Client) ListChannels(ctx context.Context) ([]chatsync.Channel, error) {
	var out []chatsync.Channel
	err := c.doJSON(ctx, http.MethodGet, "/chats", nil, &out)
	return out, err
}

func (c *Client) ListChannelMessages(ctx context.Context, channelID int64) ([]chatsync.Message, error) {
	var out []chatsync.Message
	err := c.doJSON(ctx, http.MethodGet, fmt.Sprintf("/chats/%d/messages", channelID), nil, &out)
	return out, err
}

func (c *Client) PostMessage(ctx context.Context, msg chatsync.OutgoingMessage) (chatsync.Message, error) {
	body := map[string]any{
		"text": msg.Text,
	}
	var out chatsync.Message
	err := c.doJSON(ctx, http.MethodPost, fmt.Sprintf("/chats/%d/messages", msg.ChannelID), body, &out)
	return out, err
}

func (c *Client) doJSON(ctx context.Context, method, requestPath string, body, out any) error {
	var bodyReader io.Reader
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return err
		}
		bodyReader = bytes.NewReader(bodyBytes)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
	if err != nil {
		return err
	}
	if token := c.currentToken(); token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("X-Request-Id", uuid.NewString())
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	payloadBytes, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return readErr
	}

	if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
		if out == nil || len(payloadBytes) == 0 {
			return nil
		}
		return json.Unmarshal(payloadBytes, out)
	}

	var errPayload struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(payloadBytes, &errPayload)
	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return &chatsync.AuthError{StatusCode: resp.StatusCode, Message: errPayload.Message}
	}
	return &HTTPError{
		StatusCode: resp.StatusCode,
		Code:       errPayload.Code,
		Message:    errPayload.Message,
	}
}
