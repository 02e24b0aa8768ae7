package chatsync

import (
	"errors"
	"fmt"
)

var (
	ErrAuth           = errors.New("authentication rejected")
	ErrFetch          = errors.New("fetch failed")
	ErrSend           = errors.New("send failed")
	ErrMalformedToken = errors.New("malformed session token")
)

type AuthError struct {
	StatusCode int
	Message    string
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("authentication rejected (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("authentication rejected (status %d): %s", e.StatusCode, e.Message)
}

func (e *AuthError) Is(target error) bool {
	return target == ErrAuth
}

type FetchError struct {
	Resource string
	Err      error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch %s: %v", e.Resource, e.Err)
}

func (e *FetchError) Is(target error) bool {
	return target == ErrFetch
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type SendError struct {
	ChannelID int64
	Err       error
}

func (e *SendError) Error() string {
	return fmt.Sprintf("send to channel %d: %v", e.ChannelID, e.Err)
}

func (e *SendError) Is(target error) bool {
	return target == ErrSend
}

func (e *SendError) Unwrap() error {
	return e.Err
}
