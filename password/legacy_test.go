package password

import "testing"

func TestIsHashed(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("some-long-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	if !IsHashed(hash) {
		t.Fatal("PHC hash not recognized as hashed")
	}
	if IsHashed("hunter2-plaintext") {
		t.Fatal("plaintext recognized as hashed")
	}
	if IsHashed("") {
		t.Fatal("empty value recognized as hashed")
	}
}

func TestVerifyLegacy(t *testing.T) {
	if !VerifyLegacy("hunter2-plaintext", "hunter2-plaintext") {
		t.Fatal("matching plaintext rejected")
	}
	if VerifyLegacy("wrong", "hunter2-plaintext") {
		t.Fatal("mismatched plaintext accepted")
	}
	if VerifyLegacy("anything", "") {
		t.Fatal("empty stored value accepted")
	}
}

func TestVerifyLegacyNeverMatchesHashes(t *testing.T) {
	hasher, err := NewArgon2(secureConfig())
	if err != nil {
		t.Fatalf("NewArgon2 error: %v", err)
	}

	hash, err := hasher.Hash("some-long-password")
	if err != nil {
		t.Fatalf("Hash error: %v", err)
	}

	// A stored hash must never be treated as a plaintext credential, even
	// if the attacker submits the hash string itself.
	if VerifyLegacy(hash, hash) {
		t.Fatal("hash string accepted as legacy plaintext")
	}
}
