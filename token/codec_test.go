package token

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var testSecret = []byte("0123456789abcdef0123456789abcdef")

func fixedTime() time.Time {
	return time.Unix(1_700_000_000, 0)
}

func newTestCodec(t *testing.T, cfg Config) *Codec {
	t.Helper()

	keys, err := NewKeyring(testSecret)
	if err != nil {
		t.Fatalf("NewKeyring failed: %v", err)
	}
	c, err := NewCodec(keys, cfg)
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}
	return c
}

func testClaims(kind Kind, exp time.Time) *Claims {
	return &Claims{
		Username: "alice",
		Kind:     kind,
		Roles:    []string{"admin"},
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "7",
			Issuer:    "tokencore",
			IssuedAt:  jwt.NewNumericDate(fixedTime()),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        "jti-1",
		},
	}
}

func TestCodecRoundTrip(t *testing.T) {
	c := newTestCodec(t, Config{Issuer: "tokencore", TimeFunc: fixedTime})

	signed, err := c.Encode(testClaims(KindAccess, fixedTime().Add(time.Hour)))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	claims, err := c.Decode(signed)
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	if claims.Subject != "7" {
		t.Fatalf("expected subject 7, got %q", claims.Subject)
	}
	if claims.Username != "alice" {
		t.Fatalf("expected username alice, got %q", claims.Username)
	}
	if claims.Kind != KindAccess {
		t.Fatalf("expected access kind, got %q", claims.Kind)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "admin" {
		t.Fatalf("unexpected roles: %v", claims.Roles)
	}
	if claims.ID != "jti-1" {
		t.Fatalf("unexpected jti: %q", claims.ID)
	}
}

func TestCodecEncodeDeterministic(t *testing.T) {
	c := newTestCodec(t, Config{TimeFunc: fixedTime})

	a, err := c.Encode(testClaims(KindRefresh, fixedTime().Add(time.Hour)))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	b, err := c.Encode(testClaims(KindRefresh, fixedTime().Add(time.Hour)))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if a != b {
		t.Fatal("identical claims and key produced different tokens")
	}
}

func TestCodecEncodeRejectsIncompleteClaims(t *testing.T) {
	c := newTestCodec(t, Config{TimeFunc: fixedTime})

	missingID := testClaims(KindAccess, fixedTime().Add(time.Hour))
	missingID.ID = ""
	if _, err := c.Encode(missingID); err == nil {
		t.Fatal("expected error for claims without jti")
	}

	missingKind := testClaims(KindAccess, fixedTime().Add(time.Hour))
	missingKind.Kind = ""
	if _, err := c.Encode(missingKind); err == nil {
		t.Fatal("expected error for claims without kind")
	}
}

func TestCodecDecodeMalformed(t *testing.T) {
	c := newTestCodec(t, Config{TimeFunc: fixedTime})

	for _, input := range []string{
		"",
		"garbage",
		"a.b",
		"a.b.c",
	} {
		if _, err := c.Decode(input); !errors.Is(err, ErrMalformed) {
			t.Fatalf("input %q: expected ErrMalformed, got %v", input, err)
		}
	}
}

func TestCodecDecodeSignatureMismatch(t *testing.T) {
	c := newTestCodec(t, Config{TimeFunc: fixedTime})

	otherKeys, err := NewKeyring([]byte("another-secret-another-secret-32"))
	if err != nil {
		t.Fatalf("NewKeyring failed: %v", err)
	}
	other, err := NewCodec(otherKeys, Config{TimeFunc: fixedTime})
	if err != nil {
		t.Fatalf("NewCodec failed: %v", err)
	}

	signed, err := other.Encode(testClaims(KindAccess, fixedTime().Add(time.Hour)))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := c.Decode(signed); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestCodecDecodeTamperedPayload(t *testing.T) {
	c := newTestCodec(t, Config{TimeFunc: fixedTime})

	signed, err := c.Encode(testClaims(KindAccess, fixedTime().Add(time.Hour)))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	parts := strings.Split(signed, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected token shape: %q", signed)
	}
	// Re-sign nothing, just swap the payload for a different valid one.
	forged, err := c.Encode(testClaims(KindRefresh, fixedTime().Add(time.Hour)))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	forgedParts := strings.Split(forged, ".")
	tampered := parts[0] + "." + forgedParts[1] + "." + parts[2]

	if _, err := c.Decode(tampered); !errors.Is(err, ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
}

func TestCodecDecodeExpiryBoundaryInclusive(t *testing.T) {
	c := newTestCodec(t, Config{TimeFunc: fixedTime})

	// exp equal to the validation instant is already expired.
	atBoundary, err := c.Encode(testClaims(KindAccess, fixedTime()))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := c.Decode(atBoundary); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired at boundary, got %v", err)
	}

	// One second of remaining life is still valid.
	justInside, err := c.Encode(testClaims(KindAccess, fixedTime().Add(time.Second)))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}
	if _, err := c.Decode(justInside); err != nil {
		t.Fatalf("expected valid token, got %v", err)
	}
}

func TestCodecDecodeLeeway(t *testing.T) {
	strict := newTestCodec(t, Config{TimeFunc: fixedTime})
	lenient := newTestCodec(t, Config{TimeFunc: fixedTime, Leeway: time.Minute})

	signed, err := strict.Encode(testClaims(KindAccess, fixedTime().Add(-30*time.Second)))
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := strict.Decode(signed); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired without leeway, got %v", err)
	}
	if _, err := lenient.Decode(signed); err != nil {
		t.Fatalf("expected leeway to accept token, got %v", err)
	}
}

func TestCodecDecodeIssuerEnforced(t *testing.T) {
	c := newTestCodec(t, Config{Issuer: "tokencore", TimeFunc: fixedTime})

	claims := testClaims(KindAccess, fixedTime().Add(time.Hour))
	claims.Issuer = "someone-else"
	signed, err := c.Encode(claims)
	if err != nil {
		t.Fatalf("Encode failed: %v", err)
	}

	if _, err := c.Decode(signed); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for issuer mismatch, got %v", err)
	}
}

func TestCodecDecodeRejectsMissingKind(t *testing.T) {
	c := newTestCodec(t, Config{TimeFunc: fixedTime})

	// Sign a structurally valid token without a kind claim, bypassing Encode.
	raw := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(fixedTime().Add(time.Hour)),
		ID:        "jti-1",
	})
	signed, err := raw.SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}

	if _, err := c.Decode(signed); !errors.Is(err, ErrMalformed) {
		t.Fatalf("expected ErrMalformed for missing kind, got %v", err)
	}
}

func TestCodecRejectsWrongSigningAlg(t *testing.T) {
	c := newTestCodec(t, Config{TimeFunc: fixedTime})

	raw := jwt.NewWithClaims(jwt.SigningMethodHS256, testClaims(KindAccess, fixedTime().Add(time.Hour)))
	signed, err := raw.SignedString(testSecret)
	if err != nil {
		t.Fatalf("SignedString failed: %v", err)
	}

	if _, err := c.Decode(signed); err == nil {
		t.Fatal("expected error for HS256-signed token")
	}

	if _, err := c.Decode("eyJhbGciOiJub25lIn0.eyJzdWIiOiI3In0."); err == nil {
		t.Fatal("expected error for unsigned token")
	}
}

func TestKeyringRejectsShortSecret(t *testing.T) {
	if _, err := NewKeyring([]byte("too-short")); !errors.Is(err, ErrSecretTooShort) {
		t.Fatalf("expected ErrSecretTooShort, got %v", err)
	}
}

func TestKeyringCopiesSecret(t *testing.T) {
	secret := make([]byte, MinSecretSize)
	copy(secret, testSecret)

	keys, err := NewKeyring(secret)
	if err != nil {
		t.Fatalf("NewKeyring failed: %v", err)
	}

	secret[0] ^= 0xFF
	if keys.SigningKey()[0] == secret[0] {
		t.Fatal("keyring shares memory with the caller's secret")
	}
}

func TestCodecLeewayBounds(t *testing.T) {
	keys, err := NewKeyring(testSecret)
	if err != nil {
		t.Fatalf("NewKeyring failed: %v", err)
	}

	if _, err := NewCodec(keys, Config{Leeway: -time.Second}); err == nil {
		t.Fatal("expected error for negative leeway")
	}
	if _, err := NewCodec(keys, Config{Leeway: 10 * time.Minute}); err == nil {
		t.Fatal("expected error for oversized leeway")
	}
}

func TestClaimsRemaining(t *testing.T) {
	claims := testClaims(KindAccess, fixedTime().Add(time.Hour))

	if got := claims.Remaining(fixedTime()); got != time.Hour {
		t.Fatalf("expected 1h remaining, got %v", got)
	}
	if got := claims.Remaining(fixedTime().Add(2 * time.Hour)); got > 0 {
		t.Fatalf("expected non-positive remaining, got %v", got)
	}
}
