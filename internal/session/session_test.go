package session

import (
	"errors"
	"testing"

	"github.com/golang-jwt/jwt/v5"

	"github.com/coworkhq/chatsync/internal/chatsync"
)

func issueToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("server-side-secret"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}
	return token
}

func TestEstablishDecodesIdentityAndWorkspace(t *testing.T) {
	token := issueToken(t, jwt.MapClaims{
		"id":     7,
		"wsId":   1,
		"wsName": "Acme",
	})

	identity, work, err := NewManager().Establish(token)
	if err != nil {
		t.Fatalf("establish failed: %v", err)
	}
	if identity.ID != 7 {
		t.Fatalf("expected identity id 7, got %d", identity.ID)
	}
	if work.ID != 1 || work.Name != "Acme" {
		t.Fatalf("expected workspace {1 Acme}, got %+v", work)
	}
}

func TestEstablishDoesNotRequireKnowingTheSigningKey(t *testing.T) {
	// Signed with a key the client never sees; the claims must still decode.
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"id":     9,
		"wsId":   2,
		"wsName": "Globex",
	}).SignedString([]byte("some-other-secret"))
	if err != nil {
		t.Fatalf("failed to sign test token: %v", err)
	}

	identity, _, decodeErr := NewManager().Establish(token)
	if decodeErr != nil {
		t.Fatalf("establish failed: %v", decodeErr)
	}
	if identity.WorkspaceName != "Globex" {
		t.Fatalf("expected workspace name Globex, got %q", identity.WorkspaceName)
	}
}

func TestEstablishRejectsMalformedToken(t *testing.T) {
	for _, raw := range []string{"", "garbage", "a.b", "not.a.jwt"} {
		if _, _, err := NewManager().Establish(raw); !errors.Is(err, chatsync.ErrMalformedToken) {
			t.Fatalf("expected malformed token error for %q, got %v", raw, err)
		}
	}
}

func TestEstablishRejectsTokenWithoutUserID(t *testing.T) {
	token := issueToken(t, jwt.MapClaims{
		"wsId":   1,
		"wsName": "Acme",
	})
	if _, _, err := NewManager().Establish(token); !errors.Is(err, chatsync.ErrMalformedToken) {
		t.Fatalf("expected malformed token error for missing id claim, got %v", err)
	}
}
