package utils

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "super-secret"

func TestIssueAndVerify_Success(t *testing.T) {
	t.Parallel()

	tok, err := IssueToken("user-123", testSecret, "1h")
	require.NoError(t, err)
	require.Len(t, strings.Split(tok, "."), 3)

	c, err := VerifyToken(tok, testSecret)
	require.NoError(t, err)
	assert.Equal(t, "user-123", c.Subject)
	assert.Equal(t, time.Hour, c.ExpiresAt.Sub(c.IssuedAt))
}

func TestIssueToken_PayloadHasOnlySubIatExp(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	tok, err := issueTokenAt(now, "u1", testSecret, "60m")
	require.NoError(t, err)

	payload, err := base64.RawURLEncoding.DecodeString(strings.Split(tok, ".")[1])
	require.NoError(t, err)

	var m map[string]any
	require.NoError(t, json.Unmarshal(payload, &m))
	assert.Equal(t, map[string]any{
		"sub": "u1",
		"iat": float64(1_700_000_000),
		"exp": float64(1_700_003_600),
	}, m)
}

func TestIssueToken_InvalidTTL(t *testing.T) {
	t.Parallel()

	for _, ttl := range []string{"", "60", "m", "60x", "1.5h", "abc", "+5m"} {
		_, err := IssueToken("u1", testSecret, ttl)
		assert.ErrorIs(t, err, ErrInvalidTTL, "ttl %q", ttl)
	}
}

func TestIssueToken_EmptySecret(t *testing.T) {
	t.Parallel()

	_, err := IssueToken("u1", "", "1h")
	assert.ErrorIs(t, err, ErrEmptySecret)
}

func TestVerifyToken_Expired(t *testing.T) {
	t.Parallel()

	tok, err := IssueToken("u1", testSecret, "-1m")
	require.NoError(t, err)

	_, err = VerifyToken(tok, testSecret)
	assert.ErrorIs(t, err, ErrTokenExpired)
	assert.NotErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyToken_ZeroTTLExpiresOnceClockAdvances(t *testing.T) {
	t.Parallel()

	now := time.Unix(1_700_000_000, 0)
	tok, err := issueTokenAt(now, "u1", testSecret, "0s")
	require.NoError(t, err)

	_, err = verifyTokenAt(now.Add(2*time.Second), tok, testSecret)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestVerifyToken_WrongSecret(t *testing.T) {
	t.Parallel()

	tok, err := IssueToken("u2", "right-secret", "1h")
	require.NoError(t, err)

	_, err = VerifyToken(tok, "wrong-secret")
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyToken_TamperedSignature(t *testing.T) {
	t.Parallel()

	tok, err := IssueToken("u3", testSecret, "1h")
	require.NoError(t, err)
	parts := strings.Split(tok, ".")

	// Flip every position of the signature in turn; none may verify.
	sig := []byte(parts[2])
	for i := range sig {
		mutated := append([]byte(nil), sig...)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		bad := parts[0] + "." + parts[1] + "." + string(mutated)
		_, err := VerifyToken(bad, testSecret)
		assert.ErrorIs(t, err, ErrTokenMalformed, "position %d", i)
	}
}

func TestVerifyToken_SignaturePaddingBits(t *testing.T) {
	t.Parallel()

	// Flipping the low bit of the last signature character only touches
	// base64 padding bits; the decoded bytes stay the same.
	for i := 0; i < 50; i++ {
		tok, err := IssueToken(fmt.Sprintf("u-pad-%d", i), testSecret, "1h")
		require.NoError(t, err)
		parts := strings.Split(tok, ".")

		sig := []byte(parts[2])
		sig[len(sig)-1] ^= 1
		bad := parts[0] + "." + parts[1] + "." + string(sig)

		_, err = VerifyToken(bad, testSecret)
		assert.ErrorIs(t, err, ErrTokenMalformed, "token %d", i)
	}
}

func TestVerifyToken_TamperedPayload(t *testing.T) {
	t.Parallel()

	tok, err := IssueToken("u4", testSecret, "1h")
	require.NoError(t, err)
	parts := strings.Split(tok, ".")

	forged, _ := json.Marshal(map[string]any{"sub": "admin", "exp": time.Now().Add(time.Hour).Unix()})
	bad := parts[0] + "." + base64.RawURLEncoding.EncodeToString(forged) + "." + parts[2]

	_, err = VerifyToken(bad, testSecret)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyToken_Malformed(t *testing.T) {
	t.Parallel()

	for _, raw := range []string{"", "not.a.jwt", "abc", "a.b.c.d"} {
		_, err := VerifyToken(raw, testSecret)
		assert.ErrorIs(t, err, ErrTokenMalformed, "raw %q", raw)
	}
}

func TestVerifyToken_RejectsOtherAlgorithms(t *testing.T) {
	t.Parallel()

	claims := jwt.RegisteredClaims{Subject: "u5", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))}

	hs512, err := jwt.NewWithClaims(jwt.SigningMethodHS512, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = VerifyToken(hs512, testSecret)
	assert.ErrorIs(t, err, ErrTokenMalformed)

	none, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = VerifyToken(none, testSecret)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}

func TestVerifyToken_MissingClaims(t *testing.T) {
	t.Parallel()

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{Subject: "u6"}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = VerifyToken(noExp, testSecret)
	assert.ErrorIs(t, err, ErrTokenMalformed)

	noSub, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte(testSecret))
	require.NoError(t, err)
	_, err = VerifyToken(noSub, testSecret)
	assert.ErrorIs(t, err, ErrTokenMalformed)
}
