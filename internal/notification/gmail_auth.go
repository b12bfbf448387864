package notification

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gmail "google.golang.org/api/gmail/v1"

	"github.com/mikeyg42/plantwatch/internal/crypto"
)

const (
	defaultOAuthTimeout = 5 * time.Minute
	defaultCallbackPath = "/oauth2/callback"
	defaultRedirectURL  = "http://127.0.0.1:8787" + defaultCallbackPath
	tokenFilePerms      = 0o600
)

// ErrNoToken means Gmail has not been authorized on this machine yet.
var ErrNoToken = errors.New("no stored Gmail token; run `plantwatch gmail-auth`")

// GmailConfig holds OAuth2 client credentials and token storage.
type GmailConfig struct {
	ClientID       string
	ClientSecret   string
	RedirectURL    string
	TokenStorePath string
	// MasterKey seals the stored token (base64, see crypto.GenerateMasterKey).
	MasterKey  string
	From       string
	SystemName string
}

func (c *GmailConfig) oauthConfig() *oauth2.Config {
	redirect := c.RedirectURL
	if redirect == "" {
		redirect = defaultRedirectURL
	}
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		Endpoint:     google.Endpoint,
		RedirectURL:  redirect,
		Scopes:       []string{gmail.GmailSendScope},
	}
}

type tokenData struct {
	Token     *oauth2.Token `json:"token"`
	CreatedAt time.Time     `json:"created_at"`
	Checksum  string        `json:"checksum"`
}

func loadToken(path, masterKey string) (*oauth2.Token, error) {
	sealed, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNoToken
		}
		return nil, fmt.Errorf("failed to read token file: %w", err)
	}
	plain, err := crypto.Open(sealed, masterKey)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt token: %w", err)
	}

	var data tokenData
	if err := json.Unmarshal(plain, &data); err != nil {
		return nil, fmt.Errorf("failed to parse token data: %w", err)
	}
	if data.Token == nil || checksum(data.Token) != data.Checksum {
		return nil, fmt.Errorf("token integrity check failed")
	}
	return data.Token, nil
}

func saveToken(path string, token *oauth2.Token, masterKey string) error {
	plain, err := json.Marshal(tokenData{
		Token:     token,
		CreatedAt: time.Now(),
		Checksum:  checksum(token),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	sealed, err := crypto.Seal(plain, masterKey)
	if err != nil {
		return fmt.Errorf("failed to encrypt token: %w", err)
	}
	if err := os.WriteFile(path, sealed, tokenFilePerms); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

func checksum(token *oauth2.Token) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s:%s:%s:%d",
		token.AccessToken, token.RefreshToken, token.TokenType, token.Expiry.Unix())))
	return hex.EncodeToString(sum[:])
}

// AuthorizeGmail runs the browser consent flow and stores the sealed token.
// authURL receives the consent URL to show or open.
func AuthorizeGmail(ctx context.Context, cfg GmailConfig, authURL func(string)) error {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return fmt.Errorf("gmail client id and secret are required")
	}
	if cfg.MasterKey == "" {
		return fmt.Errorf("a master key is required to store the Gmail token")
	}
	logger := zap.L().Named("gmail-auth")
	oauthCfg := cfg.oauthConfig()

	redirect, err := url.Parse(oauthCfg.RedirectURL)
	if err != nil {
		return fmt.Errorf("invalid redirect URL: %w", err)
	}
	listener, err := net.Listen("tcp", redirect.Host)
	if err != nil {
		return fmt.Errorf("failed to bind OAuth callback listener on %s: %w", redirect.Host, err)
	}
	defer listener.Close()

	stateBytes := make([]byte, 32)
	if _, err := rand.Read(stateBytes); err != nil {
		return fmt.Errorf("failed to generate state token: %w", err)
	}
	state := base64.URLEncoding.EncodeToString(stateBytes)

	authURL(oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce))

	codeCh := make(chan string, 1)
	errCh := make(chan error, 1)
	srv := &http.Server{
		Handler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != defaultCallbackPath {
				http.NotFound(w, r)
				return
			}
			if r.FormValue("state") != state {
				http.Error(w, "Invalid state parameter", http.StatusBadRequest)
				errCh <- fmt.Errorf("OAuth state mismatch")
				return
			}
			if msg := r.FormValue("error"); msg != "" {
				http.Error(w, "Authorization failed: "+msg, http.StatusBadRequest)
				errCh <- fmt.Errorf("OAuth provider error: %s", msg)
				return
			}
			code := r.FormValue("code")
			if code == "" {
				http.Error(w, "Missing authorization code", http.StatusBadRequest)
				errCh <- fmt.Errorf("missing OAuth authorization code")
				return
			}
			w.Header().Set("Content-Type", "text/html")
			fmt.Fprint(w, `<html><body><h1>Authorization Successful</h1><p>You can close this window.</p></body></html>`)
			codeCh <- code
		}),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
	}
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Warn("OAuth callback server error", zap.Error(err))
		}
	}()
	defer srv.Close()

	waitCtx, cancel := context.WithTimeout(ctx, defaultOAuthTimeout)
	defer cancel()

	var code string
	select {
	case <-waitCtx.Done():
		return fmt.Errorf("OAuth authorization timeout")
	case err := <-errCh:
		return err
	case code = <-codeCh:
	}

	tok, err := oauthCfg.Exchange(ctx, code)
	if err != nil {
		return fmt.Errorf("token exchange failed: %w", err)
	}
	if err := saveToken(cfg.TokenStorePath, tok, cfg.MasterKey); err != nil {
		return err
	}
	logger.Info("Gmail authorized", zap.String("token_path", cfg.TokenStorePath))
	return nil
}
