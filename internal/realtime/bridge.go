package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v6"
	"nhooyr.io/websocket"

	"github.com/coworkhq/chatsync/internal/chatsync"
)

const messageFrameSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["event", "chatId", "text"],
	"properties": {
		"event": {"type": "string"},
		"id": {"type": "integer"},
		"chatId": {"type": "integer"},
		"senderName": {"type": "string"},
		"text": {"type": "string"},
		"timestamp": {"type": "string"}
	}
}`

const eventNewMessage = "NewMessage"

type State string

const (
	StateClosed    State = "closed"
	StateConnected State = "connected"
)

type Logger interface {
	Printf(format string, args ...any)
}

// MessageSink receives push-delivered messages. The store's AppendMessage
// satisfies it.
type MessageSink interface {
	AppendMessage(channelID int64, msg chatsync.Message)
}

type Options struct {
	EventsURL string
	Token     string
	Sink      MessageSink
	Logger    Logger

	// Reconnect backoff for Run. Zero values get the defaults.
	BaseDelay time.Duration
	MaxDelay  time.Duration
}

// Bridge holds the long-lived push connection for one session. The token is
// part of the connection address, not sent per event, so a new session needs
// a new bridge.
type Bridge struct {
	eventsURL string
	token     string
	sink      MessageSink
	logger    Logger
	schema    *jsonschema.Schema
	baseDelay time.Duration
	maxDelay  time.Duration

	mu    sync.Mutex
	conn  *websocket.Conn
	state State
}

func NewBridge(opts Options) (*Bridge, error) {
	if opts.Sink == nil {
		return nil, fmt.Errorf("sink is required")
	}
	eventsURL := strings.TrimSpace(opts.EventsURL)
	if eventsURL == "" {
		eventsURL = "ws://localhost:6687/events"
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}
	schema, err := compileFrameSchema()
	if err != nil {
		return nil, err
	}
	return &Bridge{
		eventsURL: eventsURL,
		token:     strings.TrimSpace(opts.Token),
		sink:      opts.Sink,
		logger:    logger,
		schema:    schema,
		baseDelay: baseDelay,
		maxDelay:  maxDelay,
		state:     StateClosed,
	}, nil
}

func compileFrameSchema() (*jsonschema.Schema, error) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(messageFrameSchema))
	if err != nil {
		return nil, err
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("new-message.json", doc); err != nil {
		return nil, err
	}
	return compiler.Compile("new-message.json")
}

func (b *Bridge) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Connect opens the push connection and consumes events until the connection
// drops or ctx is canceled. Transport failure closes the bridge and returns;
// it is never escalated past the caller of Connect.
func (b *Bridge) Connect(ctx context.Context) error {
	addr := b.eventsURL
	if b.token != "" {
		separator := "?"
		if strings.Contains(addr, "?") {
			separator = "&"
		}
		addr += separator + "token=" + url.QueryEscape(b.token)
	}
	conn, _, err := websocket.Dial(ctx, addr, nil)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.conn = conn
	b.state = StateConnected
	b.mu.Unlock()

	err = b.readLoop(ctx, conn)
	b.teardown()
	return err
}

func (b *Bridge) readLoop(ctx context.Context, conn *websocket.Conn) error {
	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return err
		}
		b.handleFrame(data)
	}
}

// handleFrame validates the raw frame before anything is committed to the
// store; a frame that fails validation is dropped and logged, never applied.
func (b *Bridge) handleFrame(data []byte) {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(string(data)))
	if err != nil {
		b.logger.Printf("push frame is not valid json: %v", err)
		return
	}
	if err := b.schema.Validate(doc); err != nil {
		b.logger.Printf("push frame failed validation: %v", err)
		return
	}
	var frame struct {
		Event      string `json:"event"`
		ID         int64  `json:"id"`
		ChatID     int64  `json:"chatId"`
		SenderName string `json:"senderName"`
		Text       string `json:"text"`
		Timestamp  string `json:"timestamp"`
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		b.logger.Printf("decode push frame: %v", err)
		return
	}
	if frame.Event != eventNewMessage {
		b.logger.Printf("ignoring push event %q", frame.Event)
		return
	}
	// The event marker is dropped here; only the message record reaches
	// the store.
	b.sink.AppendMessage(frame.ChatID, chatsync.Message{
		ID:         frame.ID,
		ChannelID:  frame.ChatID,
		SenderName: frame.SenderName,
		Text:       frame.Text,
		Timestamp:  frame.Timestamp,
	})
}

func (b *Bridge) teardown() {
	b.mu.Lock()
	conn := b.conn
	b.conn = nil
	b.state = StateClosed
	b.mu.Unlock()
	if conn != nil {
		_ = conn.CloseNow()
	}
}

// Close tears the connection down. Safe to call from another goroutine while
// Connect or Run is blocked in a read.
func (b *Bridge) Close() {
	b.teardown()
}

// Run keeps the bridge connected for the life of ctx, redialing with
// exponential backoff after each drop. The backoff resets once a connection
// delivers without error for longer than the current delay.
func (b *Bridge) Run(ctx context.Context) {
	delay := b.baseDelay
	for {
		started := time.Now()
		err := b.Connect(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			b.logger.Printf("push connection dropped: %v", err)
		}
		if time.Since(started) > delay {
			delay = b.baseDelay
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > b.maxDelay {
			delay = b.maxDelay
		}
	}
}

type noopLogger struct{}

func (noopLogger) Printf(format string, args ...any) {}
