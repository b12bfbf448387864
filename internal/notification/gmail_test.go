package notification

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"golang.org/x/oauth2"

	"github.com/mikeyg42/plantwatch/internal/crypto"
)

func TestTokenRoundTrip(t *testing.T) {
	key, err := crypto.GenerateMasterKey()
	if err != nil {
		t.Fatalf("GenerateMasterKey: %v", err)
	}
	path := filepath.Join(t.TempDir(), "gmail-token.enc")
	tok := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Now().Add(time.Hour).Truncate(time.Second),
	}

	if err := saveToken(path, tok, key); err != nil {
		t.Fatalf("saveToken: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if strings.Contains(string(raw), "refresh") {
		t.Error("token stored in plaintext")
	}

	got, err := loadToken(path, key)
	if err != nil {
		t.Fatalf("loadToken: %v", err)
	}
	if got.AccessToken != tok.AccessToken || got.RefreshToken != tok.RefreshToken {
		t.Errorf("token = %+v", got)
	}

	other, _ := crypto.GenerateMasterKey()
	if _, err := loadToken(path, other); err == nil {
		t.Error("loadToken accepted the wrong key")
	}
}

func TestLoadTokenMissing(t *testing.T) {
	_, err := loadToken(filepath.Join(t.TempDir(), "absent"), "unused")
	if !errors.Is(err, ErrNoToken) {
		t.Errorf("err = %v, want ErrNoToken", err)
	}
}

func TestOAuthConfigDefaults(t *testing.T) {
	cfg := GmailConfig{ClientID: "id", ClientSecret: "secret"}
	oc := cfg.oauthConfig()
	if oc.RedirectURL != defaultRedirectURL {
		t.Errorf("RedirectURL = %q", oc.RedirectURL)
	}
	if len(oc.Scopes) != 1 || !strings.Contains(oc.Scopes[0], "gmail.send") {
		t.Errorf("Scopes = %v", oc.Scopes)
	}
}
