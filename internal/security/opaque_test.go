package security

import "testing"

func TestNewOpaqueToken(t *testing.T) {
	a, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	b, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	if a == b {
		t.Fatal("two tokens should not collide")
	}
	// 32 bytes base64url without padding is 43 characters.
	if len(a) != 43 {
		t.Errorf("token length: want 43, got %d", len(a))
	}
}

func TestHashToken(t *testing.T) {
	raw, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("NewOpaqueToken: %v", err)
	}
	stored := HashToken(raw)
	if HashToken(raw) != stored {
		t.Error("HashToken must be deterministic")
	}
	if HashToken(raw+"x") == stored {
		t.Error("different token should hash differently")
	}
	// sha256 hex is 64 characters.
	if len(stored) != 64 {
		t.Errorf("hash length: want 64, got %d", len(stored))
	}
}
