package graph

// Data is an envelope for any result structures
type Data interface{}

// A cursor refers to a random string of characters which marks a specific
// item in a list of data. Your app shouldn't store cursors or assume
// that they will be valid in the future.
type Cursors struct {
	// This is the cursor that points to the start of the page of data that has been returned.
	Before string `json:"before,omitempty"`
	// This is the cursor that points to the end of the page of data that has been returned.
	After string `json:"after,omitempty"`
}

type Paging struct {
	// Cursors
	Cursors *Cursors `json:"cursors,omitempty"`
	// The Graph API endpoint that will return the next page of data.
	// If not included, this is the last page of data.
	Next string `json:"next,omitempty"`
	// The Graph API endpoint that will return the previous page of data.
	// If not included, this is the first page of data.
	Previous string `json:"previous,omitempty"`
}

func (c *Paging) More() bool {
	return c != nil && c.Next != ""
}

// Success result envelope
type Success struct {
	Ok bool `json:"success,omitempty"`
}

// Result structure
type Result struct {
	// Data envelope; mostly this is an array
	Data   `json:"data,omitempty"`
	Paging *Paging `json:"paging,omitempty"`
	Error  *Error  `json:"error,omitempty"`
}

// Page represents a Facebook Page.
type Page struct {
	// The ID representing a Facebook Page. (numeric string)
	ID string `json:"id,omitempty"`
	// The name of the Page.
	Name string `json:"name,omitempty"`
	// The URL of the Page.
	Link string `json:"link,omitempty"`
	// The app ID the Page is linked to.
	AppID string `json:"app_id,omitempty"`
	// Number of page followers.
	FollowersCount int64 `json:"followers_count,omitempty"`
	// The Page's access token. Only returned if the User making the request
	// has a role (other than Live Contributor) on the Page.
	AccessToken string `json:"access_token,omitempty"`
}

// App represents a Facebook Application.
// https://developers.facebook.com/docs/graph-api/reference/application/
type App struct {
	// The app ID. (numeric string)
	ID string `json:"id,omitempty"`
	// The name of the app.
	Name string `json:"name,omitempty"`
	// A link to the app on Facebook.
	Link string `json:"link,omitempty"`
	// The URL of the app's logo image.
	PhotoURL string `json:"photo_url,omitempty"`
	// Weekly active users of the app.
	WeeklyActiveUsers int64 `json:"weekly_active_users,omitempty"`
}

// ScopedID is one entry of an /ids_for_apps or /ids_for_pages edge:
// the same person's identifier scoped to a sibling app or page.
// https://developers.facebook.com/docs/messenger-platform/identity/id-matching
type ScopedID struct {
	// The user's ID, scoped to .App or .Page.
	ID string `json:"id,omitempty"`
	// The owning application; /ids_for_apps only.
	App *App `json:"app,omitempty"`
	// The owning page; /ids_for_pages only.
	Page *Page `json:"page,omitempty"`
}

// SendResult is the POST /{page}/messages result.
// https://developers.facebook.com/docs/messenger-platform/reference/send-api#response
type SendResult struct {
	// Unique ID for the message.
	MessageID string `json:"message_id,omitempty"`
	// The recipient's PSID.
	RecipientID string `json:"recipient_id,omitempty"`
}
