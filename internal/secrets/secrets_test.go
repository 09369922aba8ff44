package secrets

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestOpenGeneratesKeyOnFirstUse(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "secret.key")

	box, err := Open(keyPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	info, err := os.Stat(keyPath)
	if err != nil {
		t.Fatalf("key file not written: %v", err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("key file mode = %o, want 600", perm)
	}

	tok, err := box.Encrypt("hunter2")
	if err != nil {
		t.Fatalf("Encrypt: %v", err)
	}
	if strings.Contains(tok, "hunter2") {
		t.Error("token contains plaintext")
	}

	got, err := box.Decrypt(tok)
	if err != nil {
		t.Fatalf("Decrypt: %v", err)
	}
	if got != "hunter2" {
		t.Errorf("Decrypt = %q", got)
	}
}

func TestOpenReloadsSameKey(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "secret.key")

	first, err := Open(keyPath)
	if err != nil {
		t.Fatal(err)
	}
	tok, err := first.Encrypt("payload")
	if err != nil {
		t.Fatal(err)
	}

	// A second Open must read the persisted key, not generate a new one.
	second, err := Open(keyPath)
	if err != nil {
		t.Fatal(err)
	}
	got, err := second.Decrypt(tok)
	if err != nil {
		t.Fatalf("token from first box must verify under reloaded key: %v", err)
	}
	if got != "payload" {
		t.Errorf("Decrypt = %q", got)
	}
}

func TestDecryptRejectsForeignToken(t *testing.T) {
	dir := t.TempDir()
	a, err := Open(filepath.Join(dir, "a.key"))
	if err != nil {
		t.Fatal(err)
	}
	b, err := Open(filepath.Join(dir, "b.key"))
	if err != nil {
		t.Fatal(err)
	}

	tok, err := a.Encrypt("payload")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := b.Decrypt(tok); err == nil {
		t.Error("token from another key must not verify")
	}
	if _, err := b.Decrypt("not-a-token"); err == nil {
		t.Error("garbage token must not verify")
	}
}

func TestOpenRejectsCorruptKeyFile(t *testing.T) {
	keyPath := filepath.Join(t.TempDir(), "secret.key")
	if err := os.WriteFile(keyPath, []byte("definitely not a fernet key"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := Open(keyPath); err == nil {
		t.Error("corrupt key file must be an error, not silently regenerated")
	}
}

func TestMask(t *testing.T) {
	tests := []struct{ in, want string }{
		{"", ""},
		{"ab", "****"},
		{"abcd", "****"},
		{"supersecret", "****cret"},
	}
	for _, tt := range tests {
		if got := Mask(tt.in); got != tt.want {
			t.Errorf("Mask(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
