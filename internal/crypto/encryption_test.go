package crypto

import (
	"bytes"
	"errors"
	"testing"
)

func TestGenerateMasterKey(t *testing.T) {
	key, err := GenerateMasterKey()
	if err != nil {
		t.Fatalf("Failed to generate master key: %v", err)
	}
	if key == "" {
		t.Fatal("Generated key is empty")
	}

	key2, err := GenerateMasterKey()
	if err != nil {
		t.Fatalf("Failed to generate second master key: %v", err)
	}
	if key == key2 {
		t.Fatal("Generated keys should be unique")
	}
}

func TestSecretRoundTrip(t *testing.T) {
	masterKey, err := GenerateMasterKey()
	if err != nil {
		t.Fatalf("Failed to generate master key: %v", err)
	}

	testCases := []struct {
		name      string
		plaintext string
	}{
		{"SMTP password", "app-pass-1234"},
		{"MinIO secret", "Abcd1234!@#$%^&*()"},
		{"Unicode", "🔐 Unicode 密码"},
		{"Empty string", ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			encrypted, err := EncryptSecret(tc.plaintext, masterKey)
			if err != nil {
				t.Fatalf("Encryption failed: %v", err)
			}
			if tc.plaintext == "" {
				if encrypted != "" {
					t.Fatal("Empty plaintext should stay empty")
				}
				return
			}
			if !IsEncrypted(encrypted) {
				t.Fatalf("missing prefix: %q", encrypted)
			}

			decrypted, err := ResolveSecret(encrypted, masterKey)
			if err != nil {
				t.Fatalf("Decryption failed: %v", err)
			}
			if decrypted != tc.plaintext {
				t.Fatalf("Decrypted text doesn't match. Expected %q, got %q", tc.plaintext, decrypted)
			}
		})
	}
}

func TestResolveSecretPlainPassthrough(t *testing.T) {
	got, err := ResolveSecret("not-secret", "")
	if err != nil || got != "not-secret" {
		t.Fatalf("got %q, %v", got, err)
	}
}

func TestResolveSecretWithoutKey(t *testing.T) {
	if _, err := ResolveSecret(SecretPrefix+"AAAA", ""); !errors.Is(err, ErrNoMasterKey) {
		t.Fatalf("got %v, want ErrNoMasterKey", err)
	}
}

func TestWrongKeyFails(t *testing.T) {
	k1, _ := GenerateMasterKey()
	k2, _ := GenerateMasterKey()

	encrypted, err := EncryptSecret("secret", k1)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ResolveSecret(encrypted, k2); err == nil {
		t.Fatal("decryption with the wrong key should fail")
	}
}

func TestSealOpen(t *testing.T) {
	key, _ := GenerateMasterKey()
	data := []byte(`{"access_token":"x"}`)

	sealed, err := Seal(data, key)
	if err != nil {
		t.Fatal(err)
	}
	opened, err := Open(sealed, key)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(opened, data) {
		t.Fatalf("opened %q", opened)
	}
	if _, err := Open([]byte{1, 2}, key); !errors.Is(err, ErrShortData) {
		t.Fatalf("got %v, want ErrShortData", err)
	}
}

func TestInvalidMasterKey(t *testing.T) {
	if _, err := Seal([]byte("x"), "not base64!"); err == nil {
		t.Fatal("expected error for invalid key")
	}
}
