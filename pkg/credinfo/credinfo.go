// Package credinfo inspects the payload of an upstream credential
// before it enters the pool. The credential is a JWT issued by the
// provider; its signature cannot be verified without the provider's
// key, so inspection is structural: required claims present, issuer
// and audience match, timestamps plausible.
package credinfo

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	expectedIssuer   = "https://authentication.cursor.sh"
	expectedAudience = "https://cursor.com"

	// randomnessLength is the fixed length of the provider's
	// randomness claim.
	randomnessLength = 18
)

// InvalidCredentialError reports why a credential payload was rejected.
type InvalidCredentialError struct {
	Reason string
}

func (e *InvalidCredentialError) Error() string {
	return "invalid credential payload: " + e.Reason
}

func invalid(format string, args ...any) error {
	return &InvalidCredentialError{Reason: fmt.Sprintf(format, args...)}
}

// Payload is the validated view of a credential's claims.
type Payload struct {
	subject   string
	issuedAt  time.Time
	expiresAt time.Time
}

// Subject returns the provider user id: the segment after the first
// `|` of the sub claim, or the whole claim when it has no separator.
func (p *Payload) Subject() string { return p.subject }

// IssuedTime returns when the credential was issued.
func (p *Payload) IssuedTime() time.Time { return p.issuedAt }

// ExpiresAt returns when the credential expires.
func (p *Payload) ExpiresAt() time.Time { return p.expiresAt }

// Lifetime returns the credential's remaining validity from its issue
// instant.
func (p *Payload) Lifetime() time.Duration {
	return p.expiresAt.Sub(p.issuedAt)
}

// Inspect parses and structurally validates a credential secret.
func Inspect(secret string) (*Payload, error) {
	return inspectAt(secret, time.Now())
}

func inspectAt(secret string, now time.Time) (*Payload, error) {
	if strings.Count(secret, ".") != 2 {
		return nil, invalid("not a three-part JWT")
	}

	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(secret, claims); err != nil {
		return nil, invalid("undecodable payload: %v", err)
	}

	for _, field := range []string{"sub", "exp", "iss", "aud", "randomness", "time"} {
		if _, ok := claims[field]; !ok {
			return nil, invalid("missing claim %q", field)
		}
	}

	randomness, ok := claims["randomness"].(string)
	if !ok || len(randomness) != randomnessLength {
		return nil, invalid("randomness claim must be a %d-char string", randomnessLength)
	}

	issuedRaw, ok := claims["time"].(string)
	if !ok {
		return nil, invalid("time claim must be a string")
	}
	issuedUnix, err := strconv.ParseInt(issuedRaw, 10, 64)
	if err != nil {
		return nil, invalid("time claim is not a unix timestamp")
	}
	issuedAt := time.Unix(issuedUnix, 0)
	if issuedAt.After(now) {
		return nil, invalid("issue time is in the future")
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, invalid("exp claim is not a timestamp")
	}
	if now.After(exp.Time) {
		return nil, invalid("credential is expired")
	}

	issuer, err := claims.GetIssuer()
	if err != nil || issuer != expectedIssuer {
		return nil, invalid("unexpected issuer")
	}

	audience, err := claims.GetAudience()
	if err != nil || len(audience) != 1 || audience[0] != expectedAudience {
		return nil, invalid("unexpected audience")
	}

	subject, err := claims.GetSubject()
	if err != nil || subject == "" {
		return nil, invalid("missing subject")
	}
	if _, after, found := strings.Cut(subject, "|"); found {
		subject = after
	}

	return &Payload{
		subject:   subject,
		issuedAt:  issuedAt,
		expiresAt: exp.Time,
	}, nil
}
