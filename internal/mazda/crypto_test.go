package mazda

import (
	"strings"
	"testing"
)

func TestPayloadEncryptRoundTrip(t *testing.T) {
	key := "0123456789abcdef"
	cases := []string{
		`{"internaluserid":"100000"}`,
		"",
		strings.Repeat("x", 16),
		strings.Repeat("y", 17),
		`{"unicode":"日本語"}`,
	}
	for _, plaintext := range cases {
		enc, err := encryptPayload(plaintext, key)
		if err != nil {
			t.Fatalf("encrypt %q: %v", plaintext, err)
		}
		dec, err := decryptPayload(enc, key)
		if err != nil {
			t.Fatalf("decrypt %q: %v", plaintext, err)
		}
		if dec != plaintext {
			t.Fatalf("round trip mismatch: got %q want %q", dec, plaintext)
		}
	}
}

func TestDecryptPayloadRejectsGarbage(t *testing.T) {
	key := "0123456789abcdef"
	if _, err := decryptPayload("not base64 !!!", key); err == nil {
		t.Fatal("expected base64 error")
	}
	if _, err := decryptPayload("YWJj", key); err == nil {
		t.Fatal("expected block size error")
	}
}

func TestDecryptionKeyFromAppCode(t *testing.T) {
	key := decryptionKeyFromAppCode("202007270941270111799")
	if len(key) != 16 {
		t.Fatalf("expected 16-byte AES key, got %d bytes", len(key))
	}
	if key != decryptionKeyFromAppCode("202007270941270111799") {
		t.Fatal("derivation must be deterministic")
	}
	if key == decryptionKeyFromAppCode("202008100250281064816") {
		t.Fatal("different app codes must derive different keys")
	}
}

func TestTemporarySignKey(t *testing.T) {
	key := temporarySignKey("202007270941270111799")
	if len(key) != 24 {
		t.Fatalf("expected 24-char sign key, got %d", len(key))
	}
	if key != strings.ToLower(key) {
		t.Fatal("sign key must be lowercase hex")
	}
	if key == temporarySignKey("202008100250281064816") {
		t.Fatal("different app codes must derive different keys")
	}
}

func TestSignTimestampDeterministic(t *testing.T) {
	ts := "1700000000000"
	a := signTimestamp(ts, "202007270941270111799")
	if a != signTimestamp(ts, "202007270941270111799") {
		t.Fatal("signature must be deterministic")
	}
	if len(a) != 64 {
		t.Fatalf("expected sha256 hex, got %d chars", len(a))
	}
}

func TestSignPayloadDeterministic(t *testing.T) {
	ts := "1700000000000"
	a := signPayload("ZW5jcnlwdGVk", ts, "signkey")
	b := signPayload("ZW5jcnlwdGVk", ts, "signkey")
	if a != b {
		t.Fatal("signature must be deterministic")
	}
	if len(a) != 64 || a != strings.ToUpper(a) {
		t.Fatalf("expected uppercase sha256 hex, got %q", a)
	}
	if a == signPayload("ZW5jcnlwdGVk", ts, "otherkey") {
		t.Fatal("different keys must produce different signatures")
	}
}

func TestUUIDFromSeed(t *testing.T) {
	id := uuidFromSeed("user@example.com")
	parts := strings.Split(id, "-")
	if len(parts) != 5 {
		t.Fatalf("expected 5 UUID groups, got %d (%s)", len(parts), id)
	}
	for i, want := range []int{8, 4, 4, 4, 12} {
		if len(parts[i]) != want {
			t.Fatalf("group %d: expected %d chars, got %q", i, want, parts[i])
		}
	}
	if id != uuidFromSeed("user@example.com") {
		t.Fatal("device id must be stable across calls")
	}
}

func TestUsherDeviceIDFromSeed(t *testing.T) {
	id := usherDeviceIDFromSeed("user@example.com")
	if !strings.HasPrefix(id, "ACCT") {
		t.Fatalf("expected ACCT prefix, got %q", id)
	}
	if id != usherDeviceIDFromSeed("user@example.com") {
		t.Fatal("device id must be stable across calls")
	}
}
