package credinfo

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"testing"
	"time"
)

// buildToken assembles an unsigned JWT from the given claims. The
// signature segment is junk; inspection never verifies it.
func buildToken(t *testing.T, claims map[string]any) string {
	t.Helper()

	header, err := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	payload, err := json.Marshal(claims)
	if err != nil {
		t.Fatalf("marshal claims: %v", err)
	}
	enc := base64.RawURLEncoding
	return enc.EncodeToString(header) + "." + enc.EncodeToString(payload) + "." + enc.EncodeToString([]byte("sig"))
}

func validClaims(now time.Time) map[string]any {
	return map[string]any{
		"sub":        "auth0|user_12345",
		"exp":        now.Add(24 * time.Hour).Unix(),
		"iss":        "https://authentication.cursor.sh",
		"aud":        "https://cursor.com",
		"randomness": "abcdefghij12345678",
		"time":       fmt.Sprintf("%d", now.Add(-time.Hour).Unix()),
	}
}

func TestInspect_Valid(t *testing.T) {
	now := time.Now()
	p, err := inspectAt(buildToken(t, validClaims(now)), now)
	if err != nil {
		t.Fatalf("inspectAt() failed: %v", err)
	}

	if p.Subject() != "user_12345" {
		t.Errorf("subject = %q, want user_12345", p.Subject())
	}
	wantIssued := now.Add(-time.Hour).Unix()
	if p.IssuedTime().Unix() != wantIssued {
		t.Errorf("issued = %v, want unix %d", p.IssuedTime(), wantIssued)
	}
	if p.Lifetime() != 25*time.Hour {
		t.Errorf("lifetime = %v, want 25h", p.Lifetime())
	}
}

func TestInspect_SubjectWithoutSeparator(t *testing.T) {
	now := time.Now()
	claims := validClaims(now)
	claims["sub"] = "plain_subject"

	p, err := inspectAt(buildToken(t, claims), now)
	if err != nil {
		t.Fatalf("inspectAt() failed: %v", err)
	}
	if p.Subject() != "plain_subject" {
		t.Errorf("subject = %q, want plain_subject", p.Subject())
	}
}

func TestInspect_Rejections(t *testing.T) {
	now := time.Now()

	mutate := func(f func(map[string]any)) string {
		claims := validClaims(now)
		f(claims)
		return buildToken(t, claims)
	}

	tests := []struct {
		name  string
		token string
	}{
		{"not a jwt", "just-a-string"},
		{"two parts", "aaaa.bbbb"},
		{"undecodable payload", "aaaa.!!!.cccc"},
		{"missing sub", mutate(func(c map[string]any) { delete(c, "sub") })},
		{"missing exp", mutate(func(c map[string]any) { delete(c, "exp") })},
		{"missing randomness", mutate(func(c map[string]any) { delete(c, "randomness") })},
		{"missing time", mutate(func(c map[string]any) { delete(c, "time") })},
		{"short randomness", mutate(func(c map[string]any) { c["randomness"] = "short" })},
		{"numeric time claim", mutate(func(c map[string]any) { c["time"] = 12345 })},
		{"future issue time", mutate(func(c map[string]any) {
			c["time"] = fmt.Sprintf("%d", now.Add(time.Hour).Unix())
		})},
		{"expired", mutate(func(c map[string]any) { c["exp"] = now.Add(-time.Minute).Unix() })},
		{"wrong issuer", mutate(func(c map[string]any) { c["iss"] = "https://evil.example" })},
		{"wrong audience", mutate(func(c map[string]any) { c["aud"] = "https://evil.example" })},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := inspectAt(tt.token, now)
			if err == nil {
				t.Fatal("inspectAt() accepted an invalid credential")
			}
			if _, ok := err.(*InvalidCredentialError); !ok {
				t.Errorf("error type = %T, want *InvalidCredentialError", err)
			}
		})
	}
}
