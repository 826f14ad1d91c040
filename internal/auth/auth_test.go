package auth

import (
	"testing"

	"github.com/google/uuid"

	"github.com/coinduel/backend/internal/config"
)

func TestPasswordHashRoundTrip(t *testing.T) {
	hash, err := HashPassword("correct horse battery staple")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if !CheckPassword(hash, "correct horse battery staple") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "wrong password") {
		t.Error("wrong password accepted")
	}
}

func TestTokenRoundTrip(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret", SessionTimeoutMin: 60}
	userID := uuid.New()

	token, _, err := IssueToken(cfg, userID, "alice")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	gotID, gotName, err := ParseToken(cfg, token)
	if err != nil {
		t.Fatalf("ParseToken failed: %v", err)
	}
	if gotID != userID {
		t.Errorf("user id = %s, want %s", gotID, userID)
	}
	if gotName != "alice" {
		t.Errorf("username = %s, want alice", gotName)
	}
}

func TestTokenRejectsWrongSecret(t *testing.T) {
	cfg := &config.Config{JWTSecret: "secret-a", SessionTimeoutMin: 60}
	token, _, err := IssueToken(cfg, uuid.New(), "bob")
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	other := &config.Config{JWTSecret: "secret-b"}
	if _, _, err := ParseToken(other, token); err == nil {
		t.Error("token signed with different secret accepted")
	}
}

func TestTokenRejectsGarbage(t *testing.T) {
	cfg := &config.Config{JWTSecret: "test-secret"}
	if _, _, err := ParseToken(cfg, "not.a.token"); err == nil {
		t.Error("garbage token accepted")
	}
}

func TestGenerateReferralCode(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 100; i++ {
		code := GenerateReferralCode()
		if len(code) != 11 || code[:3] != "REF" {
			t.Fatalf("unexpected code format %q", code)
		}
		seen[code] = true
	}
	if len(seen) < 100 {
		t.Errorf("referral codes collided: %d unique of 100", len(seen))
	}
}
