package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

// Provider is an identity provider with an authorization code flow.
type Provider interface {
	Name() string
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (User, error)
}

const googleUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"

// GoogleProvider signs users in with Google OpenID Connect.
type GoogleProvider struct {
	cfg         *oauth2.Config
	userInfoURL string
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		cfg: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Endpoint:     google.Endpoint,
			Scopes:       []string{"openid", "email", "profile"},
		},
		userInfoURL: googleUserInfoURL,
	}
}

func (p *GoogleProvider) Name() string { return "google" }

func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.cfg.AuthCodeURL(state, oauth2.SetAuthURLParam("prompt", "select_account"))
}

type googleUserInfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// Exchange trades code for a token and fetches the profile.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (User, error) {
	tok, err := p.cfg.Exchange(ctx, code)
	if err != nil {
		return User{}, fmt.Errorf("token exchange: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return User{}, err
	}
	resp, err := p.cfg.Client(ctx, tok).Do(req)
	if err != nil {
		return User{}, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return User{}, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return User{}, fmt.Errorf("decode userinfo: %w", err)
	}
	if info.Sub == "" {
		return User{}, errors.New("userinfo without subject")
	}
	if info.Email != "" && !info.EmailVerified {
		return User{}, errors.New("email not verified")
	}
	return User{ID: "google:" + info.Sub, Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}

// DevProvider signs everyone in as one local user. Development only.
type DevProvider struct {
	callback string
}

func NewDevProvider(callbackPath string) *DevProvider {
	return &DevProvider{callback: callbackPath}
}

func (p *DevProvider) Name() string { return "dev" }

func (p *DevProvider) AuthCodeURL(state string) string {
	q := url.Values{"state": {state}, "code": {"dev"}}
	return p.callback + "?" + q.Encode()
}

func (p *DevProvider) Exchange(_ context.Context, code string) (User, error) {
	if code != "dev" {
		return User{}, errors.New("unexpected dev code")
	}
	return User{ID: "dev:local", Email: "dev@localhost", Name: "Developer"}, nil
}
