package security

import "testing"

func TestHasherHashAndCompare(t *testing.T) {
	h := NewHasher(4) // min cost for test speed
	hash, err := h.Hash([]byte("correct horse battery staple"))
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if err := h.Compare(hash, []byte("correct horse battery staple")); err != nil {
		t.Errorf("Compare matching password: %v", err)
	}
	if err := h.Compare(hash, []byte("wrong password")); err == nil {
		t.Error("Compare wrong password should fail")
	}
}

func TestNewHasherClampsCost(t *testing.T) {
	if h := NewHasher(0); h.Cost <= 0 {
		t.Errorf("zero cost should default, got %d", h.Cost)
	}
	if h := NewHasher(100); h.Cost > 31 {
		t.Errorf("cost should clamp to max, got %d", h.Cost)
	}
}

func TestDummyCompareHashIsValidBcrypt(t *testing.T) {
	h := NewHasher(12)
	// Must parse as bcrypt and fail the match, never error out in a way that
	// would make the unknown-email path observably different.
	if err := h.Compare(DummyCompareHash, []byte("any password")); err == nil {
		t.Error("dummy hash should not match any password")
	}
}
