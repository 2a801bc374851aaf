package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"path"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
)

const (
	// DefaultVersion of the Graph API
	DefaultVersion = "v17.0"
	// DefaultBaseURL of the Graph API
	DefaultBaseURL = "https://graph.facebook.com"
)

// Endpoint returns the Facebook OAuth2 endpoint for the given API version.
func Endpoint(version string) oauth2.Endpoint {
	return oauth2.Endpoint{
		AuthURL:   "https://www.facebook.com" + path.Join("/", version, "/dialog/oauth"),
		TokenURL:  "https://graph.facebook.com" + path.Join("/", version, "/oauth/access_token"),
		AuthStyle: oauth2.AuthStyleInParams,
	}
}

// Client of the Facebook Graph API.
//
// Exactly one access credential is armed per outbound call via
// User(), App() or Page(); the call consumes it. See tokenContext.
type Client struct {
	oauth2.Config // app client_id/client_secret + endpoint

	Version string // "v17.0"
	HTTP    *http.Client
	Log     zerolog.Logger

	baseURL   string
	clock     func() time.Time
	proofSkew time.Duration

	userToken string
	pageMu    sync.Mutex
	pageToken string

	creds tokenContext
}

// An Option configures the Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP transport.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) { c.HTTP = httpClient }
}

// WithBaseURL overrides the Graph API base URL. Tests mostly.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

// WithVersion overrides the Graph API version path component.
func WithVersion(version string) Option {
	return func(c *Client) { c.Version = version }
}

// WithLogger sets the client logger.
func WithLogger(log zerolog.Logger) Option {
	return func(c *Client) { c.Log = log }
}

// WithClock injects the proof timestamp source.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.clock = now }
}

// WithProofSkew overrides the appsecret_time backdate amount.
func WithProofSkew(skew time.Duration) Option {
	return func(c *Client) { c.proofSkew = skew }
}

// WithUserToken seeds the user access token, normally the one
// resolved by the completed OAuth2 authorization code flow.
func WithUserToken(token string) Option {
	return func(c *Client) { c.userToken = token }
}

// WithPageToken seeds the page access token assigned at setup time.
func WithPageToken(token string) Option {
	return func(c *Client) { c.pageToken = token }
}

// New Graph API client for the Facebook App identified by config.
func New(config oauth2.Config, opts ...Option) *Client {

	c := &Client{
		Config:    config,
		Version:   DefaultVersion,
		HTTP:      http.DefaultClient,
		Log:       zerolog.Nop(),
		baseURL:   DefaultBaseURL,
		clock:     time.Now,
		proofSkew: DefaultProofSkew,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// authorize consumes the armed credential and attaches
// access_token, appsecret_proof and appsecret_time parameters.
func (c *Client) authorize(params url.Values) (url.Values, error) {

	token, err := c.creds.use()
	if err != nil {
		return nil, err
	}

	if params == nil {
		params = url.Values{}
	}
	params.Set(ParamAccessToken, token)

	if secret := c.Config.ClientSecret; secret != "" {
		proof, timestamp := SecretProofAt(
			token, secret, c.clock(), c.proofSkew,
		)
		params.Set(ParamSecretProof, proof)
		params.Set(ParamSecretTime, strconv.FormatInt(timestamp, 10))
	}

	return params, nil
}

// do issues one authorized Graph API call. No retries: transient
// failures propagate to the caller, who decides.
func (c *Client) do(ctx context.Context, method, relURI string, params url.Values, body, res interface{}) error {

	params, err := c.authorize(params)
	if err != nil {
		return err
	}

	href := c.baseURL + path.Join("/", c.Version, relURI) +
		"?" + params.Encode()

	var content io.Reader
	if body != nil {
		jsonb, err := json.Marshal(body)
		if err != nil {
			return err
		}
		content = bytes.NewReader(jsonb)
	}

	req, err := http.NewRequestWithContext(ctx, method, href, content)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	rsp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer rsp.Body.Close()

	data, err := io.ReadAll(rsp.Body)
	if err != nil {
		return err
	}

	if rsp.StatusCode < 200 || rsp.StatusCode > 299 {
		re := &APIError{
			Status: rsp.StatusCode,
			Body:   string(data),
		}
		var detail struct {
			Error *Error `json:"error,omitempty"`
		}
		if err := json.Unmarshal(data, &detail); err == nil {
			re.Detail = detail.Error
		}
		c.Log.Error().
			Str("method", method).
			Str("uri", relURI).
			Int("code", rsp.StatusCode).
			Msg("GRAPH: REQUEST")
		return re
	}

	if res == nil {
		return nil
	}
	return json.Unmarshal(data, res)
}

// ListPages returns the pages the armed (user) credential has a role on.
//
// GET /me/accounts
func (c *Client) ListPages(ctx context.Context) ([]*Page, error) {

	var (
		pages []*Page
		res   = Result{
			Data: &pages,
		}
	)
	err := c.do(ctx, http.MethodGet, "/me/accounts", nil, nil, &res)
	if err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return pages, nil
}

// GetPage returns the page's public profile.
//
// GET /{page-id}?fields=link,name,id,app_id,followers_count
func (c *Client) GetPage(ctx context.Context, pageID string) (*Page, error) {

	params := url.Values{
		"fields": {"link,name,id,app_id,followers_count"},
	}
	var page Page
	err := c.do(ctx, http.MethodGet, "/"+pageID, params, nil, &page)
	if err != nil {
		return nil, err
	}
	return &page, nil
}

// GetAppInfo returns the application's public profile.
//
// GET /{app-id}?fields=link,name,id,photo_url,weekly_active_users
func (c *Client) GetAppInfo(ctx context.Context, appID string) (*App, error) {

	params := url.Values{
		"fields": {"link,name,id,photo_url,weekly_active_users"},
	}
	var app App
	err := c.do(ctx, http.MethodGet, "/"+appID, params, nil, &app)
	if err != nil {
		return nil, err
	}
	return &app, nil
}

// SubscribePage installs the app on the page's "messages" webhook field.
//
// POST /{page-id}/subscribed_apps
// https://developers.facebook.com/docs/graph-api/reference/page/subscribed_apps/#Creating
func (c *Client) SubscribePage(ctx context.Context, pageID string) error {

	params := url.Values{
		"subscribed_fields": {"messages"},
	}
	var res Success
	err := c.do(ctx, http.MethodPost,
		path.Join("/", pageID, "subscribed_apps"), params, nil, &res,
	)
	if err != nil {
		return err
	}
	if !res.Ok {
		c.Log.Warn().
			Str("page-id", pageID).
			Msg("SUBSCRIBE: PAGE NOT CONFIRMED")
	}
	return nil
}

// Message content of an outbound Send API call.
type Message struct {
	// Message text. Must be UTF-8, 2000 character limit.
	Text string `json:"text,omitempty"`
	// Optional raw attachment payload.
	Attachment json.RawMessage `json:"attachment,omitempty"`
}

// sendRequest is the POST /{page}/messages body.
// https://developers.facebook.com/docs/messenger-platform/reference/send-api#request
type sendRequest struct {
	Recipient struct {
		ID string `json:"id"`
	} `json:"recipient"`
	Message       *Message `json:"message"`
	MessagingType string   `json:"messaging_type,omitempty"`
	Tag           string   `json:"tag,omitempty"`
}

// SendMessage delivers message to the recipient PSID on behalf of the page.
// Sent as MESSAGE_TAG/ACCOUNT_UPDATE so delivery works outside
// the standard 24-hour messaging window.
//
// POST /{page-id}/messages
func (c *Client) SendMessage(ctx context.Context, pageID, recipientID string, message *Message) (*SendResult, error) {

	body := sendRequest{
		Message:       message,
		MessagingType: "MESSAGE_TAG",
		Tag:           "ACCOUNT_UPDATE",
	}
	body.Recipient.ID = recipientID

	var sent SendResult
	err := c.do(ctx, http.MethodPost,
		path.Join("/", pageID, "messages"), nil, &body, &sent,
	)
	if err != nil {
		return nil, err
	}
	return &sent, nil
}

// appSubscription is the POST /{app}/subscriptions body.
// https://developers.facebook.com/docs/graph-api/reference/app/subscriptions
type appSubscription struct {
	Object        string   `json:"object"`
	CallbackURL   string   `json:"callback_url"`
	Fields        []string `json:"fields"`
	IncludeValues bool     `json:"include_values"`
	VerifyToken   string   `json:"verify_token"`
}

// SubscribeApp registers callbackURL as the app-level "page" webhook for the
// "messages" field. The Graph API will issue the GET handshake against
// callbackURL with verifyToken before confirming.
//
// POST /{app-id}/subscriptions
func (c *Client) SubscribeApp(ctx context.Context, appID, callbackURL, verifyToken string) error {

	body := appSubscription{
		Object:        "page",
		CallbackURL:   callbackURL,
		Fields:        []string{"messages"},
		IncludeValues: true,
		VerifyToken:   verifyToken,
	}

	var res Success
	err := c.do(ctx, http.MethodPost,
		path.Join("/", appID, "subscriptions"), nil, &body, &res,
	)
	if err != nil {
		return err
	}
	if !res.Ok {
		c.Log.Warn().
			Str("app-id", appID).
			Msg("SUBSCRIBE: APP NOT CONFIRMED")
	}
	return nil
}

// IDsForApps resolves the person's IDs scoped to other apps
// owned by the same business.
//
// GET /{user-psid}/ids_for_apps
func (c *Client) IDsForApps(ctx context.Context, userPSID string) ([]*ScopedID, error) {

	var (
		ids []*ScopedID
		res = Result{
			Data: &ids,
		}
	)
	err := c.do(ctx, http.MethodGet,
		path.Join("/", userPSID, "ids_for_apps"), nil, nil, &res,
	)
	if err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return ids, nil
}

// IDsForPages resolves the person's IDs scoped to other pages
// owned by the same business. pageID optionally filters the edge
// down to a single page.
//
// GET /{user-asid}/ids_for_pages
func (c *Client) IDsForPages(ctx context.Context, userASID, pageID string) ([]*ScopedID, error) {

	var params url.Values
	if pageID != "" {
		params = url.Values{
			"page": {pageID},
		}
	}
	var (
		ids []*ScopedID
		res = Result{
			Data: &ids,
		}
	)
	err := c.do(ctx, http.MethodGet,
		path.Join("/", userASID, "ids_for_pages"), params, nil, &res,
	)
	if err != nil {
		return nil, err
	}
	if res.Error != nil {
		return nil, res.Error
	}
	return ids, nil
}
