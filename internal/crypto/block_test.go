package crypto

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		t.Fatalf("key: %v", err)
	}

	block := make([]byte, 1<<20)
	if _, err := rand.Read(block); err != nil {
		t.Fatalf("block: %v", err)
	}

	ct, err := EncryptBlock(key, block)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if bytes.Equal(ct, block) {
		t.Fatalf("ciphertext equals plaintext")
	}

	pt, err := DecryptBlock(key, ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	if !bytes.Equal(pt, block) {
		t.Fatalf("round trip mismatch")
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	key1 := bytes.Repeat([]byte{1}, KeySize)
	key2 := bytes.Repeat([]byte{2}, KeySize)

	ct, err := EncryptBlock(key1, []byte("hello"))
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if _, err := DecryptBlock(key2, ct); err == nil {
		t.Fatalf("expected decryption failure with wrong key")
	}
}
