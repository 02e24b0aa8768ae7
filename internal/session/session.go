package session

import (
	"fmt"
	"strings"

	"github.com/golang-jwt/jwt/v5"

	"github.com/coworkhq/chatsync/internal/chatsync"
)

type sessionClaims struct {
	ID            int64  `json:"id"`
	FullName      string `json:"fullname,omitempty"`
	Email         string `json:"email,omitempty"`
	WorkspaceID   int64  `json:"wsId"`
	WorkspaceName string `json:"wsName"`
	jwt.RegisteredClaims
}

// Manager decodes session tokens issued by the chat service. The token is
// trusted as issued: claims are read without verifying the signature, so no
// key material is needed on the client.
type Manager struct {
	parser *jwt.Parser
}

func NewManager() *Manager {
	return &Manager{parser: jwt.NewParser()}
}

// Establish decodes the raw token into the identity it carries and derives
// the workspace descriptor from the workspace claims. A malformed token is
// an error, never a silent empty identity.
func (m *Manager) Establish(token string) (chatsync.Identity, chatsync.Workspace, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return chatsync.Identity{}, chatsync.Workspace{}, chatsync.ErrMalformedToken
	}
	claims := &sessionClaims{}
	if _, _, err := m.parser.ParseUnverified(token, claims); err != nil {
		return chatsync.Identity{}, chatsync.Workspace{}, fmt.Errorf("%w: %v", chatsync.ErrMalformedToken, err)
	}
	if claims.ID == 0 {
		return chatsync.Identity{}, chatsync.Workspace{}, fmt.Errorf("%w: missing user id claim", chatsync.ErrMalformedToken)
	}
	identity := chatsync.Identity{
		ID:            claims.ID,
		FullName:      claims.FullName,
		Email:         claims.Email,
		WorkspaceID:   claims.WorkspaceID,
		WorkspaceName: claims.WorkspaceName,
	}
	work := chatsync.Workspace{
		ID:   claims.WorkspaceID,
		Name: claims.WorkspaceName,
	}
	return identity, work, nil
}
