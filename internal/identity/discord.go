// Package identity wraps the Discord OAuth exchange. The rest of the
// system treats it as an opaque resolver from a one-time code to a stable
// external identity.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTokenURL = "https://discord.com/api/oauth2/token"
	defaultAPIBase  = "https://discord.com/api"
	cdnBase         = "https://cdn.discordapp.com"
)

// ErrNoCode rejects an exchange before any I/O happens.
var ErrNoCode = errors.New("identity: no authorization code provided")

type Config struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

// User is the resolved external identity.
type User struct {
	DiscordID     string `json:"discord_id"`
	Username      string `json:"username"`
	Discriminator string `json:"discriminator"`
	AvatarURL     string `json:"avatar_url"`
}

type Token struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	RefreshToken string `json:"refresh_token"`
	Scope        string `json:"scope"`
}

type Exchanger struct {
	cfg      Config
	client   *http.Client
	tokenURL string
	apiBase  string
	logger   *slog.Logger
}

func NewExchanger(cfg Config, logger *slog.Logger) *Exchanger {
	return &Exchanger{
		cfg:      cfg,
		client:   &http.Client{Timeout: 10 * time.Second},
		tokenURL: defaultTokenURL,
		apiBase:  defaultAPIBase,
		logger:   logger,
	}
}

// NewExchangerWithBase points the exchanger at a test server.
func NewExchangerWithBase(cfg Config, logger *slog.Logger, tokenURL, apiBase string) *Exchanger {
	e := NewExchanger(cfg, logger)
	e.tokenURL = tokenURL
	e.apiBase = apiBase
	return e
}

// Exchange trades a one-time authorization code for a token.
func (e *Exchanger) Exchange(ctx context.Context, code string) (Token, error) {
	if code == "" {
		return Token{}, ErrNoCode
	}

	form := url.Values{
		"client_id":     {e.cfg.ClientID},
		"client_secret": {e.cfg.ClientSecret},
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"redirect_uri":  {e.cfg.RedirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Token{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := e.client.Do(req)
	if err != nil {
		return Token{}, fmt.Errorf("token exchange: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		e.logger.Error("discord token exchange failed", "status", resp.StatusCode, "body", string(body))
		return Token{}, fmt.Errorf("token exchange: discord returned %d", resp.StatusCode)
	}

	var tok Token
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return Token{}, fmt.Errorf("decode token: %w", err)
	}
	if tok.AccessToken == "" {
		return Token{}, errors.New("identity: token response missing access_token")
	}
	return tok, nil
}

// FetchUser resolves the identity behind an access token.
func (e *Exchanger) FetchUser(ctx context.Context, accessToken string) (User, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.apiBase+"/users/@me", nil)
	if err != nil {
		return User{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := e.client.Do(req)
	if err != nil {
		return User{}, fmt.Errorf("fetch user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("fetch user: discord returned %d", resp.StatusCode)
	}

	var raw struct {
		ID            string `json:"id"`
		Username      string `json:"username"`
		Discriminator string `json:"discriminator"`
		Avatar        string `json:"avatar"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return User{}, fmt.Errorf("decode user: %w", err)
	}

	return User{
		DiscordID:     raw.ID,
		Username:      raw.Username,
		Discriminator: raw.Discriminator,
		AvatarURL:     AvatarURL(raw.ID, raw.Discriminator, raw.Avatar),
	}, nil
}

// AvatarURL derives the CDN avatar address. Identities with an explicit
// asset get a hash-keyed URL (gif when the hash carries the animated a_
// prefix); the rest fall back to the small default set, indexed by
// (id >> 22) mod 6 for migrated identities or discriminator mod 5 for
// legacy ones.
func AvatarURL(id, discriminator, avatarHash string) string {
	if avatarHash != "" {
		ext := "png"
		if strings.HasPrefix(avatarHash, "a_") {
			ext = "gif"
		}
		return fmt.Sprintf("%s/avatars/%s/%s.%s", cdnBase, id, avatarHash, ext)
	}

	var index uint64
	if discriminator == "0" {
		numericID, err := strconv.ParseUint(id, 10, 64)
		if err == nil {
			index = (numericID >> 22) % 6
		}
	} else {
		disc, err := strconv.ParseUint(discriminator, 10, 64)
		if err == nil {
			index = disc % 5
		}
	}
	return fmt.Sprintf("%s/embed/avatars/%d.png", cdnBase, index)
}
