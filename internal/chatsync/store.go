package chatsync

import (
	"context"
	"sync"
)

type Logger interface {
	Printf(format string, args ...any)
}

// Mirror persists state fragments between runs. Load reports false when the
// key is absent or the stored value cannot be decoded.
type Mirror interface {
	Save(key string, value any) error
	Load(key string, out any) bool
	Clear(keys ...string) error
}

type RemoteClient interface {
	SignIn(ctx context.Context, email, password string) (AuthResponse, error)
	SignUp(ctx context.Context, req SignUpRequest) (AuthResponse, error)
	ListUsers(ctx context.Context) ([]User, error)
	ListChannels(ctx context.Context) ([]Channel, error)
	ListChannelMessages(ctx context.Context, channelID int64) ([]Message, error)
	PostMessage(ctx context.Context, msg OutgoingMessage) (Message, error)
	SetToken(token string)
}

// TokenDecoder turns a raw session token into the identity and workspace it
// carries, without a server round trip.
type TokenDecoder interface {
	Establish(token string) (Identity, Workspace, error)
}

type StoreOptions struct {
	Mirror   Mirror
	Client   RemoteClient
	Sessions TokenDecoder
	Logger   Logger
}

// Store owns the composed state tree. All mutations run under the store
// mutex; no caller ever holds a writable reference into the tree.
type Store struct {
	mu       sync.RWMutex
	identity *Identity
	token    string
	work     *Workspace
	channels []Channel
	users    map[int64]User
	messages map[int64][]Message
	fetched  map[int64]bool
	activeID int64

	mirror   Mirror
	client   RemoteClient
	sessions TokenDecoder
	logger   Logger
}

func NewStore(opts StoreOptions) *Store {
	mirror := opts.Mirror
	if mirror == nil {
		mirror = noopMirror{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = noopLogger{}
	}
	return &Store{
		users:    map[int64]User{},
		messages: map[int64][]Message{},
		fetched:  map[int64]bool{},
		mirror:   mirror,
		client:   opts.Client,
		sessions: opts.Sessions,
		logger:   logger,
	}
}

type noopMirror struct{}

func (noopMirror) Save(key string, value any) error { return nil }
func (noopMirror) Load(key string, out any) bool    { return false }
func (noopMirror) Clear(keys ...string) error       { return nil }

type noopLogger struct{}

func (noopLogger) Printf(format string, args ...any) {}

// Mutations. Each writes only the fields it names and mirrors the fragments
// it touched; a failed mirror write is logged, never surfaced.

func (s *Store) SetSession(identity Identity, token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := identity
	s.identity = &id
	s.token = token
	s.saveFragmentLocked(FragmentSessionIdentity, s.identity)
	s.saveFragmentLocked(FragmentSessionToken, s.token)
}

func (s *Store) ClearSession() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.identity = nil
	s.token = ""
	if err := s.mirror.Clear(FragmentSessionIdentity, FragmentSessionToken); err != nil {
		s.logger.Printf("mirror clear session: %v", err)
	}
}

func (s *Store) SetWorkspace(work Workspace) {
	s.mu.Lock()
	defer s.mu.Unlock()
	w := work
	s.work = &w
	s.saveFragmentLocked(FragmentWorkspace, s.work)
}

func (s *Store) SetChannels(channels []Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append([]Channel(nil), channels...)
	for _, ch := range s.channels {
		if _, ok := s.messages[ch.ID]; !ok {
			s.messages[ch.ID] = []Message{}
		}
	}
	s.saveFragmentLocked(FragmentChannelList, s.channels)
	s.saveFragmentLocked(FragmentMessageMap, s.messages)
}

func (s *Store) SetUsers(users map[int64]User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = map[int64]User{}
	for id, user := range users {
		s.users[id] = user
	}
	s.saveFragmentLocked(FragmentUserMap, s.users)
}

func (s *Store) ReplaceChannelMessages(channelID int64, messages []Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[channelID] = append([]Message(nil), messages...)
	s.fetched[channelID] = true
	s.saveFragmentLocked(FragmentMessageMap, s.messages)
}

// AppendMessage creates the channel entry when absent: a push event may
// reference a channel the local channel list has not caught up with yet.
func (s *Store) AppendMessage(channelID int64, msg Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[channelID] = append(s.messages[channelID], msg)
	s.saveFragmentLocked(FragmentMessageMap, s.messages)
}

// AddChannel persists the channel list and message map together: the two
// fragments change at once and a partial write would leave a channel without
// its message entry after a reload.
func (s *Store) AddChannel(ch Channel) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.channels = append(s.channels, ch)
	if _, ok := s.messages[ch.ID]; !ok {
		s.messages[ch.ID] = []Message{}
	}
	s.saveFragmentLocked(FragmentChannelList, s.channels)
	s.saveFragmentLocked(FragmentMessageMap, s.messages)
}

// SetActiveChannel resolves against the current channel list; an unknown id
// leaves no active channel.
func (s *Store) SetActiveChannel(channelID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.activeID = 0
	for _, ch := range s.channels {
		if ch.ID == channelID {
			s.activeID = channelID
			return
		}
	}
}

func (s *Store) saveFragmentLocked(key string, value any) {
	if err := s.mirror.Save(key, value); err != nil {
		s.logger.Printf("mirror save %s: %v", key, err)
	}
}

// Getters. Everything returned is a copy; the tree itself never escapes.

func (s *Store) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token != ""
}

func (s *Store) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Store) CurrentIdentity() *Identity {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.identity == nil {
		return nil
	}
	id := *s.identity
	return &id
}

func (s *Store) CurrentWorkspace() *Workspace {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.work == nil {
		return nil
	}
	w := *s.work
	return &w
}

func (s *Store) Channels() []Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Channel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, s.withRecipientLocked(ch))
	}
	return out
}

func (s *Store) ActiveChannel() *Channel {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.activeID == 0 {
		return nil
	}
	for _, ch := range s.channels {
		if ch.ID == s.activeID {
			resolved := s.withRecipientLocked(ch)
			return &resolved
		}
	}
	return nil
}

func (s *Store) Users() map[int64]User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[int64]User, len(s.users))
	for id, user := range s.users {
		out[id] = user
	}
	return out
}

// ChannelMessages returns nil only when the channel has no entry at all; an
// empty fetched or added channel yields an empty, non-nil list.
func (s *Store) ChannelMessages(channelID int64) []Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	list, ok := s.messages[channelID]
	if !ok {
		return nil
	}
	out := make([]Message, 0, len(list))
	return append(out, list...)
}

// withRecipientLocked attaches the counterpart user to a direct channel: the
// member that is not the current identity.
func (s *Store) withRecipientLocked(ch Channel) Channel {
	out := ch
	out.Members = append([]int64(nil), ch.Members...)
	if ch.Type != ChannelTypeDirect || s.identity == nil {
		return out
	}
	for _, memberID := range ch.Members {
		if memberID == s.identity.ID {
			continue
		}
		if user, ok := s.users[memberID]; ok {
			recipient := user
			out.Recipient = &recipient
		}
		break
	}
	return out
}
