package chatsync

import (
	"context"
	"fmt"
)

// SignIn exchanges credentials for a session token, decodes it locally, and
// bulk-loads the workspace roster and channel list. The whole operation is
// transactional from the caller's view: a failed roster or channel fetch
// rolls the just-committed session back before the error propagates.
func (s *Store) SignIn(ctx context.Context, email, password string) (Identity, error) {
	if s.client == nil || s.sessions == nil {
		return Identity{}, fmt.Errorf("store is not connected to a remote service")
	}
	resp, err := s.client.SignIn(ctx, email, password)
	if err != nil {
		return Identity{}, err
	}
	return s.establish(ctx, resp)
}

func (s *Store) SignUp(ctx context.Context, req SignUpRequest) (Identity, error) {
	if s.client == nil || s.sessions == nil {
		return Identity{}, fmt.Errorf("store is not connected to a remote service")
	}
	resp, err := s.client.SignUp(ctx, req)
	if err != nil {
		return Identity{}, err
	}
	return s.establish(ctx, resp)
}

func (s *Store) establish(ctx context.Context, resp AuthResponse) (Identity, error) {
	identity, work, err := s.sessions.Establish(resp.Token)
	if err != nil {
		return Identity{}, err
	}
	s.SetSession(identity, resp.Token)
	s.SetWorkspace(work)
	s.client.SetToken(resp.Token)

	users, err := s.client.ListUsers(ctx)
	if err != nil {
		s.rollbackSession()
		return Identity{}, &FetchError{Resource: "users", Err: err}
	}
	channels, err := s.client.ListChannels(ctx)
	if err != nil {
		s.rollbackSession()
		return Identity{}, &FetchError{Resource: "channels", Err: err}
	}

	userMap := make(map[int64]User, len(users))
	for _, user := range users {
		userMap[user.ID] = user
	}
	s.SetUsers(userMap)
	s.SetChannels(channels)
	return identity, nil
}

func (s *Store) rollbackSession() {
	s.ClearSession()
	s.mu.Lock()
	s.work = nil
	s.mu.Unlock()
	if err := s.mirror.Clear(FragmentWorkspace); err != nil {
		s.logger.Printf("mirror clear workspace: %v", err)
	}
	s.client.SetToken("")
}

// FetchChannelMessages fills a channel's message list from the remote service
// the first time the channel is visited. A channel that was already fetched,
// even to an empty list, is not fetched again this session. Failure leaves
// the list untouched and is only logged.
func (s *Store) FetchChannelMessages(ctx context.Context, channelID int64) {
	s.mu.RLock()
	done := s.fetched[channelID]
	s.mu.RUnlock()
	if done || s.client == nil {
		return
	}
	messages, err := s.client.ListChannelMessages(ctx, channelID)
	if err != nil {
		s.logger.Printf("fetch messages for channel %d: %v", channelID, err)
		return
	}
	s.ReplaceChannelMessages(channelID, messages)
}

// SendMessage blocks on the remote acknowledgment and appends the server's
// returned representation, never the local payload. A failed send leaves no
// local trace.
func (s *Store) SendMessage(ctx context.Context, msg OutgoingMessage) (Message, error) {
	if s.client == nil {
		return Message{}, fmt.Errorf("store is not connected to a remote service")
	}
	stored, err := s.client.PostMessage(ctx, msg)
	if err != nil {
		return Message{}, &SendError{ChannelID: msg.ChannelID, Err: err}
	}
	s.AppendMessage(msg.ChannelID, stored)
	return stored, nil
}

// Logout resets the tree and removes every persisted fragment.
func (s *Store) Logout() {
	s.mu.Lock()
	s.identity = nil
	s.token = ""
	s.work = nil
	s.channels = nil
	s.users = map[int64]User{}
	s.messages = map[int64][]Message{}
	s.fetched = map[int64]bool{}
	s.activeID = 0
	s.mu.Unlock()
	if err := s.mirror.Clear(AllFragments()...); err != nil {
		s.logger.Printf("mirror clear on logout: %v", err)
	}
	if s.client != nil {
		s.client.SetToken("")
	}
}

// Restore rehydrates the tree from the mirror. Fragments that are absent or
// fail to decode degrade to their empty value. A token without its identity
// is dropped as a whole so the session stays atomic.
func (s *Store) Restore() {
	var (
		identity Identity
		token    string
		work     Workspace
		channels []Channel
		users    map[int64]User
		messages map[int64][]Message
	)
	haveIdentity := s.mirror.Load(FragmentSessionIdentity, &identity)
	haveToken := s.mirror.Load(FragmentSessionToken, &token)
	haveWork := s.mirror.Load(FragmentWorkspace, &work)
	s.mirror.Load(FragmentChannelList, &channels)
	s.mirror.Load(FragmentUserMap, &users)
	s.mirror.Load(FragmentMessageMap, &messages)

	s.mu.Lock()
	if haveIdentity && haveToken && token != "" {
		id := identity
		s.identity = &id
		s.token = token
	}
	if haveWork {
		w := work
		s.work = &w
	}
	s.channels = channels
	if users != nil {
		s.users = users
	}
	if messages != nil {
		s.messages = messages
	}
	for _, ch := range s.channels {
		if _, ok := s.messages[ch.ID]; !ok {
			s.messages[ch.ID] = []Message{}
		}
	}
	for channelID, list := range s.messages {
		if len(list) > 0 {
			s.fetched[channelID] = true
		}
	}
	token = s.token
	s.mu.Unlock()
	if s.client != nil {
		s.client.SetToken(token)
	}
}
