package security

import (
	"strings"
	"testing"
	"time"
)

func TestIssueAndValidateAccess(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}

	roles := []string{"coach"}
	perms := []string{"workout:read", "workout:write"}
	token, expiresAt, err := p.IssueAccess("sess-1", "id-1", "a@b.com", roles, perms)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Fatal("expiresAt should be in the future")
	}

	claims, err := p.ValidateAccess(token)
	if err != nil {
		t.Fatalf("ValidateAccess: %v", err)
	}
	if claims.SessionID() != "sess-1" {
		t.Errorf("session id: want sess-1, got %q", claims.SessionID())
	}
	if claims.Subject != "id-1" {
		t.Errorf("subject: want id-1, got %q", claims.Subject)
	}
	if claims.Email != "a@b.com" {
		t.Errorf("email: want a@b.com, got %q", claims.Email)
	}
	if len(claims.Roles) != 1 || claims.Roles[0] != "coach" {
		t.Errorf("roles: want [coach], got %v", claims.Roles)
	}
	if len(claims.Permissions) != 2 {
		t.Errorf("permissions: want 2, got %v", claims.Permissions)
	}
}

func TestValidateAccessExpired(t *testing.T) {
	signer, err := ParsePrivateKey(testPrivateKeyPEM)
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	pub, err := ParsePublicKey(testPublicKeyPEM)
	if err != nil {
		t.Fatalf("ParsePublicKey: %v", err)
	}
	p := NewTokenProvider(signer, pub, "fitstack-auth", "fitstack-api", -time.Minute)

	token, _, err := p.IssueAccess("sess-1", "id-1", "a@b.com", nil, nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := p.ValidateAccess(token); err != ErrTokenExpired {
		t.Errorf("want ErrTokenExpired, got %v", err)
	}
}

func TestValidateAccessTampered(t *testing.T) {
	p, err := NewTestTokenProvider()
	if err != nil {
		t.Fatalf("NewTestTokenProvider: %v", err)
	}
	token, _, err := p.IssueAccess("sess-1", "id-1", "a@b.com", nil, nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}

	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		t.Fatalf("unexpected JWT shape: %d parts", len(parts))
	}
	tampered := parts[0] + "." + parts[1] + "." + "AAAA" + parts[2][4:]
	if _, err := p.ValidateAccess(tampered); err == nil {
		t.Fatal("tampered token should not validate")
	}

	if _, err := p.ValidateAccess("not-a-token"); err != ErrTokenMalformed {
		t.Errorf("garbage token: want ErrTokenMalformed, got %v", err)
	}
}

func TestValidateAccessWrongIssuerAudience(t *testing.T) {
	signer, _ := ParsePrivateKey(testPrivateKeyPEM)
	pub, _ := ParsePublicKey(testPublicKeyPEM)
	issuing := NewTokenProvider(signer, pub, "other-issuer", "fitstack-api", time.Minute)
	validating := NewTokenProvider(signer, pub, "fitstack-auth", "fitstack-api", time.Minute)

	token, _, err := issuing.IssueAccess("sess-1", "id-1", "a@b.com", nil, nil)
	if err != nil {
		t.Fatalf("IssueAccess: %v", err)
	}
	if _, err := validating.ValidateAccess(token); err == nil {
		t.Fatal("token with wrong issuer should not validate")
	}
}
