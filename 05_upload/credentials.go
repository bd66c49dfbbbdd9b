package upload

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/synapsedaili/youtube-automation/config"
	"github.com/synapsedaili/youtube-automation/state"
	"github.com/synapsedaili/youtube-automation/types"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/youtube/v3"
)

var scopes = []string{youtube.YoutubeUploadScope, youtube.YoutubeScope}

// CredentialProvider supplies the OAuth2 token source for the upload API.
type CredentialProvider interface {
	TokenSource(ctx context.Context) (oauth2.TokenSource, error)
}

// NewCredentialProvider picks the credential flow named in config.
func NewCredentialProvider(cfg config.UploadConfig) (CredentialProvider, error) {
	switch cfg.Credentials {
	case "inline":
		return &InlineToken{
			JSON:        os.Getenv("YOUTUBE_TOKEN_JSON"),
			Base64:      os.Getenv("YOUTUBE_TOKEN_BASE64"),
			SecretsFile: cfg.ClientSecretsFile,
		}, nil
	case "interactive":
		return &InteractiveConsent{
			SecretsFile: cfg.ClientSecretsFile,
			TokenFile:   cfg.TokenFile,
			In:          os.Stdin,
			Out:         os.Stderr,
		}, nil
	case "", "refresh":
		return &RefreshFlow{
			ClientID:     os.Getenv("YOUTUBE_CLIENT_ID"),
			ClientSecret: os.Getenv("YOUTUBE_CLIENT_SECRET"),
			RefreshToken: os.Getenv("YOUTUBE_REFRESH_TOKEN"),
		}, nil
	}
	return nil, fmt.Errorf("%w: unknown credential flow %q", types.ErrConfiguration, cfg.Credentials)
}

// RefreshFlow exchanges a long-lived refresh token from the environment.
type RefreshFlow struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
}

func (r *RefreshFlow) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	if r.ClientID == "" || r.ClientSecret == "" || r.RefreshToken == "" {
		return nil, fmt.Errorf("%w: YOUTUBE_CLIENT_ID, YOUTUBE_CLIENT_SECRET, or YOUTUBE_REFRESH_TOKEN not set", types.ErrConfiguration)
	}
	conf := &oauth2.Config{
		ClientID:     r.ClientID,
		ClientSecret: r.ClientSecret,
		Endpoint:     google.Endpoint,
		Scopes:       scopes,
	}
	token := &oauth2.Token{
		RefreshToken: r.RefreshToken,
		Expiry:       time.Now().Add(-time.Hour), // force refresh
	}
	return conf.TokenSource(ctx, token), nil
}

// InlineToken reads a JSON-encoded oauth2 token from the environment, either
// raw or base64. The token refreshes itself when a client secrets file or
// YOUTUBE_CLIENT_ID/SECRET are available; otherwise it is used as-is.
type InlineToken struct {
	JSON        string
	Base64      string
	SecretsFile string
}

func (t *InlineToken) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	raw := []byte(t.JSON)
	if len(raw) == 0 && t.Base64 != "" {
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimSpace(t.Base64))
		if err != nil {
			return nil, fmt.Errorf("%w: decode YOUTUBE_TOKEN_BASE64: %w", types.ErrConfiguration, err)
		}
		raw = decoded
	}
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: YOUTUBE_TOKEN_JSON or YOUTUBE_TOKEN_BASE64 not set", types.ErrConfiguration)
	}

	var tok oauth2.Token
	if err := json.Unmarshal(raw, &tok); err != nil {
		return nil, fmt.Errorf("%w: parse inline token: %w", types.ErrConfiguration, err)
	}
	if tok.AccessToken == "" && tok.RefreshToken == "" {
		return nil, fmt.Errorf("%w: inline token has neither access nor refresh token", types.ErrConfiguration)
	}

	conf, err := t.oauthConfig()
	if err != nil {
		return nil, err
	}
	if conf == nil || tok.RefreshToken == "" {
		return oauth2.StaticTokenSource(&tok), nil
	}
	return conf.TokenSource(ctx, &tok), nil
}

func (t *InlineToken) oauthConfig() (*oauth2.Config, error) {
	if id, secret := os.Getenv("YOUTUBE_CLIENT_ID"), os.Getenv("YOUTUBE_CLIENT_SECRET"); id != "" && secret != "" {
		return &oauth2.Config{ClientID: id, ClientSecret: secret, Endpoint: google.Endpoint, Scopes: scopes}, nil
	}
	if t.SecretsFile == "" {
		return nil, nil
	}
	data, err := os.ReadFile(t.SecretsFile)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %w", types.ErrConfiguration, t.SecretsFile, err)
	}
	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", types.ErrConfiguration, t.SecretsFile, err)
	}
	return conf, nil
}

// InteractiveConsent runs the installed-app consent flow once and caches the
// token on disk. Later runs reuse the cached token.
type InteractiveConsent struct {
	SecretsFile string
	TokenFile   string
	In          io.Reader
	Out         io.Writer
}

func (c *InteractiveConsent) config() (*oauth2.Config, error) {
	data, err := os.ReadFile(c.SecretsFile)
	if err != nil {
		return nil, fmt.Errorf("%w: read client secrets %s: %w", types.ErrConfiguration, c.SecretsFile, err)
	}
	conf, err := google.ConfigFromJSON(data, scopes...)
	if err != nil {
		return nil, fmt.Errorf("%w: parse client secrets: %w", types.ErrConfiguration, err)
	}
	return conf, nil
}

func (c *InteractiveConsent) TokenSource(ctx context.Context) (oauth2.TokenSource, error) {
	conf, err := c.config()
	if err != nil {
		return nil, err
	}
	tok, err := c.cachedToken()
	if errors.Is(err, fs.ErrNotExist) {
		if tok, err = c.consent(ctx, conf); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	}
	return conf.TokenSource(ctx, tok), nil
}

// Authorize always runs the consent flow and overwrites the cached token.
func (c *InteractiveConsent) Authorize(ctx context.Context) (*oauth2.Token, error) {
	conf, err := c.config()
	if err != nil {
		return nil, err
	}
	return c.consent(ctx, conf)
}

func (c *InteractiveConsent) cachedToken() (*oauth2.Token, error) {
	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		return nil, err
	}
	var tok oauth2.Token
	if err := json.Unmarshal(data, &tok); err != nil {
		return nil, fmt.Errorf("%w: parse token cache %s: %w", types.ErrConfiguration, c.TokenFile, err)
	}
	return &tok, nil
}

func (c *InteractiveConsent) consent(ctx context.Context, conf *oauth2.Config) (*oauth2.Token, error) {
	url := conf.AuthCodeURL("synapse-daily", oauth2.AccessTypeOffline, oauth2.ApprovalForce)
	fmt.Fprintf(c.Out, "Open this URL in a browser and authorise the channel:\n\n  %s\n\nPaste the authorisation code: ", url)

	code, err := bufio.NewReader(c.In).ReadString('\n')
	if err != nil && code == "" {
		return nil, fmt.Errorf("%w: read authorisation code: %w", types.ErrConfiguration, err)
	}
	tok, err := conf.Exchange(ctx, strings.TrimSpace(code))
	if err != nil {
		return nil, fmt.Errorf("%w: exchange authorisation code: %w", types.ErrPublish, err)
	}

	data, err := json.MarshalIndent(tok, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := state.WriteFileAtomic(c.TokenFile, data, 0600); err != nil {
		return nil, fmt.Errorf("save token: %w", err)
	}
	return tok, nil
}
