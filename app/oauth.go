package app

import (
	"context"

	"golang.org/x/oauth2"

	"github.com/megabytemb/messenger-link/graph"
)

// OAuthScopes granted during the authorization code flow.
var OAuthScopes = []string{
	// https://developers.facebook.com/docs/permissions/reference/pages_messaging
	"pages_messaging", // POST /{page}/messages (Send API)
	// https://developers.facebook.com/docs/permissions/reference/pages_manage_metadata
	"pages_manage_metadata", // GET|POST /{page}/subscribed_apps
	"email",
}

// OAuthConfig for the Facebook App's authorization code flow.
func OAuthConfig(clientID, clientSecret, redirectURL, version string) oauth2.Config {
	if version == "" {
		version = graph.DefaultVersion
	}
	return oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint:     graph.Endpoint(version),
		RedirectURL:  redirectURL,
		Scopes:       OAuthScopes,
	}
}

// AuthCodeURL the user is sent to to grant page access.
func (c *Manager) AuthCodeURL(state string) string {
	return c.Graph.Config.AuthCodeURL(
		state,
		oauth2.SetAuthURLParam("display", "popup"),
	)
}

// CompleteOAuth resolves the authorization code to a user token.
func (c *Manager) CompleteOAuth(ctx context.Context, code string) (*oauth2.Token, error) {
	return c.Graph.Config.Exchange(
		context.WithValue(ctx, oauth2.HTTPClient, c.Graph.HTTP),
		code,
	)
}
