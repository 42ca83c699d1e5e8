package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"golang.org/x/oauth2"

	"github.com/helios-portal/helios-portal/internal/shared"
)

const discordAPIBase = "https://discord.com/api"

var discordEndpoint = oauth2.Endpoint{
	AuthURL:  "https://discord.com/oauth2/authorize",
	TokenURL: "https://discord.com/api/oauth2/token",
}

// DiscordProfile is the identity pair consumed from the OAuth provider.
type DiscordProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// DiscordOAuth performs the authorization-code exchange and profile fetch.
type DiscordOAuth struct {
	conf    *oauth2.Config
	apiBase string
	client  *http.Client
}

// NewDiscordOAuth constructs the OAuth helper.
func NewDiscordOAuth(clientID, clientSecret, redirectURL string) *DiscordOAuth {
	return &DiscordOAuth{
		conf: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"identify"},
			Endpoint:     discordEndpoint,
		},
		apiBase: discordAPIBase,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// AuthURL builds the provider authorization URL for the given state.
func (d *DiscordOAuth) AuthURL(state string) string {
	return d.conf.AuthCodeURL(state)
}

// Exchange trades the authorization code for a provider token and fetches
// the profile it belongs to.
func (d *DiscordOAuth) Exchange(ctx context.Context, code string) (*DiscordProfile, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, d.client)
	token, err := d.conf.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("auth: discord exchange: %w", shared.ErrExternalService)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.apiBase+"/users/@me", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token.AccessToken)
	resp, err := d.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("auth: discord profile: %w", shared.ErrExternalService)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("auth: discord profile status %d: %w", resp.StatusCode, shared.ErrExternalService)
	}
	var profile DiscordProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// NewState produces an unguessable state parameter for the login redirect.
func NewState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}
