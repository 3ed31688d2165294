package jwt

import (
	"testing"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateAndValidate(t *testing.T) {
	svc := New("test-secret-123", 15*time.Minute)

	token, expiresAt, err := svc.GenerateToken(42, "customer")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 2*time.Second)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.AccountID)
	assert.Equal(t, "customer", claims.Role)
	assert.Equal(t, "42", claims.Subject)
	assert.NotEmpty(t, claims.ID)
	assert.Equal(t, Issuer, claims.Issuer)
	require.NotNil(t, claims.IssuedAt)
	require.NotNil(t, claims.ExpiresAt)
	assert.Equal(t, expiresAt.Unix(), claims.ExpiresAt.Unix())
}

func TestValidateToken_WrongSecret(t *testing.T) {
	token, _, err := New("secret-a", 15*time.Minute).GenerateToken(1, "customer")
	require.NoError(t, err)

	_, err = New("secret-b", 15*time.Minute).ValidateToken(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_Expired(t *testing.T) {
	past := func() time.Time { return time.Now().Add(-time.Hour) }
	svc := New("secret", 15*time.Minute)

	token, _, err := svc.WithClock(past).GenerateToken(1, "customer")
	require.NoError(t, err)

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, ErrExpiredToken)
}

func TestValidateToken_RejectsOtherAlgorithms(t *testing.T) {
	claims := Claims{
		AccountID: 7,
		Role:      "admin",
		RegisteredClaims: jwtlib.RegisteredClaims{
			ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
			IssuedAt:  jwtlib.NewNumericDate(time.Now()),
		},
	}
	unsigned, err := jwtlib.NewWithClaims(jwtlib.SigningMethodNone, claims).SignedString(jwtlib.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = New("secret", 15*time.Minute).ValidateToken(unsigned)
	assert.ErrorIs(t, err, ErrInvalidToken)

	hs512, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS512, claims).SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = New("secret", 15*time.Minute).ValidateToken(hs512)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateToken_RequiresIssuer(t *testing.T) {
	for name, iss := range map[string]string{"missing": "", "foreign": "someone-else"} {
		t.Run(name, func(t *testing.T) {
			claims := Claims{
				AccountID: 7,
				Role:      "admin",
				RegisteredClaims: jwtlib.RegisteredClaims{
					Issuer:    iss,
					ExpiresAt: jwtlib.NewNumericDate(time.Now().Add(time.Hour)),
					IssuedAt:  jwtlib.NewNumericDate(time.Now()),
				},
			}
			signed, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, claims).SignedString([]byte("secret"))
			require.NoError(t, err)

			_, err = New("secret", 15*time.Minute).ValidateToken(signed)
			assert.ErrorIs(t, err, ErrInvalidToken)
		})
	}
}

func TestValidateToken_Garbage(t *testing.T) {
	_, err := New("secret", 15*time.Minute).ValidateToken("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}
