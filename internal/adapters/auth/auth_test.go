package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	fbauth "firebase.google.com/go/v4/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/PabloGalante/chatrelay/internal/domain"
)

func TestIssuedTokenVerifies(t *testing.T) {
	issuer, err := NewIssuer("s3cret", "chatrelay", time.Minute)
	require.NoError(t, err)
	verifier, err := NewJWTVerifier("s3cret", "chatrelay")
	require.NoError(t, err)

	token, expires, err := issuer.Issue("user-1")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(time.Minute), expires, 5*time.Second)

	userID, err := verifier.Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("user-1"), userID)
}

func TestJWTVerifierRejects(t *testing.T) {
	verifier, err := NewJWTVerifier("s3cret", "chatrelay")
	require.NoError(t, err)

	sign := func(secret string, method jwt.SigningMethod, claims jwt.RegisteredClaims) string {
		t.Helper()
		var key interface{} = []byte(secret)
		if method == jwt.SigningMethodNone {
			key = jwt.UnsafeAllowNoneSignatureType
		}
		s, err := jwt.NewWithClaims(method, claims).SignedString(key)
		require.NoError(t, err)
		return s
	}
	valid := jwt.RegisteredClaims{
		Subject:   "user-1",
		Issuer:    "chatrelay",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}

	expired := valid
	expired.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Hour))
	noExpiry := valid
	noExpiry.ExpiresAt = nil
	wrongIssuer := valid
	wrongIssuer.Issuer = "someone-else"
	noSubject := valid
	noSubject.Subject = ""

	tests := map[string]string{
		"malformed":     "not-a-jwt",
		"wrong secret":  sign("other", jwt.SigningMethodHS256, valid),
		"expired":       sign("s3cret", jwt.SigningMethodHS256, expired),
		"no expiry":     sign("s3cret", jwt.SigningMethodHS256, noExpiry),
		"wrong issuer":  sign("s3cret", jwt.SigningMethodHS256, wrongIssuer),
		"no subject":    sign("s3cret", jwt.SigningMethodHS256, noSubject),
		"alg none":      sign("", jwt.SigningMethodNone, valid),
		"other hs algo": sign("s3cret", jwt.SigningMethodHS512, valid),
	}
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := verifier.Verify(context.Background(), token)
			assert.ErrorIs(t, err, domain.ErrUnauthenticated)
		})
	}
}

func TestNewRequiresSecret(t *testing.T) {
	_, err := NewJWTVerifier("", "x")
	assert.Error(t, err)
	_, err = NewIssuer("", "x", time.Minute)
	assert.Error(t, err)
}

type fakeIDTokens struct {
	token *fbauth.Token
	err   error
}

func (f fakeIDTokens) VerifyIDToken(context.Context, string) (*fbauth.Token, error) {
	return f.token, f.err
}

func TestFirebaseVerifier(t *testing.T) {
	ok := &FirebaseVerifier{client: fakeIDTokens{token: &fbauth.Token{UID: "firebase-uid"}}}
	userID, err := ok.Verify(context.Background(), "id-token")
	require.NoError(t, err)
	assert.Equal(t, domain.UserID("firebase-uid"), userID)

	revoked := &FirebaseVerifier{client: fakeIDTokens{err: errors.New("id token has been revoked")}}
	_, err = revoked.Verify(context.Background(), "id-token")
	assert.ErrorIs(t, err, domain.ErrUnauthenticated)
}
