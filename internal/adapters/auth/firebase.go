package auth

import (
	"context"
	"fmt"

	fbauth "firebase.google.com/go/v4/auth"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

// idTokenVerifier is the part of *fbauth.Client the gate needs.
type idTokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*fbauth.Token, error)
}

// FirebaseVerifier checks Firebase ID tokens (expiry, signature, audience)
// and resolves them to the Firebase UID.
type FirebaseVerifier struct {
	client idTokenVerifier
}

var _ domain.TokenVerifier = (*FirebaseVerifier)(nil)

func NewFirebaseVerifier(client *fbauth.Client) *FirebaseVerifier {
	return &FirebaseVerifier{client: client}
}

func (v *FirebaseVerifier) Verify(ctx context.Context, token string) (domain.UserID, error) {
	decoded, err := v.client.VerifyIDToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrUnauthenticated, err)
	}
	if decoded.UID == "" {
		return "", fmt.Errorf("%w: token has no uid", domain.ErrUnauthenticated)
	}
	return domain.UserID(decoded.UID), nil
}
