package utils // package utils holds the password and token codecs used by the auth service

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5" // JWT library for creating and verifying signed tokens
)

var (
	// ErrTokenExpired is returned by VerifyToken when the token's exp is in
	// the past. It is kept apart from ErrTokenMalformed so callers can prompt
	// for re-authentication instead of rejecting outright.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenMalformed covers every other verification failure: bad
	// structure, bad signature, wrong algorithm, missing claims.
	ErrTokenMalformed = errors.New("token malformed")
	// ErrEmptySecret is returned when a token is issued with no signing key.
	ErrEmptySecret = errors.New("token signing secret is empty")
)

// Claims is the verified token payload. Timestamps are whole seconds.
type Claims struct {
	Subject   string    // user id
	IssuedAt  time.Time // iat
	ExpiresAt time.Time // exp
}

// IssueToken builds and signs an HS256 JWT for subjectID. ttl is a compact
// duration expression (see ParseTTL); a malformed ttl fails here with
// ErrInvalidTTL instead of silently falling back to a default.
func IssueToken(subjectID, secret, ttl string) (string, error) {
	return issueTokenAt(time.Now(), subjectID, secret, ttl)
}

func issueTokenAt(now time.Time, subjectID, secret, ttl string) (string, error) {
	d, err := ParseTTL(ttl)
	if err != nil {
		return "", err
	}
	if secret == "" {
		return "", ErrEmptySecret
	}

	// Only sub, iat and exp are set; the remaining registered claims are
	// omitted from the encoded payload.
	claims := jwt.RegisteredClaims{
		Subject:   subjectID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(d)),
	}
	t := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := t.SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// VerifyToken validates the signature and expiry of raw and returns its
// claims. It fails with ErrTokenExpired once now is past exp and with
// ErrTokenMalformed for anything else.
func VerifyToken(raw, secret string) (Claims, error) {
	return verifyTokenAt(time.Now(), raw, secret)
}

func verifyTokenAt(now time.Time, raw, secret string) (Claims, error) {
	if secret == "" {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenMalformed, ErrEmptySecret)
	}

	var rc jwt.RegisteredClaims
	tok, err := jwt.ParseWithClaims(raw, &rc,
		func(t *jwt.Token) (interface{}, error) {
			// Reject anything that is not HMAC before handing out the key.
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
			}
			return []byte(secret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		// Non-canonical base64url (stray padding bits) must not verify.
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return Claims{}, ErrTokenExpired
		}
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !tok.Valid || rc.Subject == "" || rc.ExpiresAt == nil {
		return Claims{}, ErrTokenMalformed
	}

	c := Claims{Subject: rc.Subject, ExpiresAt: rc.ExpiresAt.Time}
	if rc.IssuedAt != nil {
		c.IssuedAt = rc.IssuedAt.Time
	}
	return c, nil
}
