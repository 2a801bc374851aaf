package webhooks

// https://developers.facebook.com/docs/graph-api/webhooks/getting-started#event-notifications
type Event struct {
	// The object's type (e.g., user, page, etc.)
	Object string `json:"object,omitempty"`
	// An array containing an object describing the changes.
	// Multiple changes from different objects that are of the same type
	// may be batched together.
	Entry []*Entry `json:"entry,omitempty"`
}

// Entry is one per-page batch of events within a delivery.
// https://developers.facebook.com/docs/messenger-platform/reference/webhook-events#entry
type Entry struct {
	// The object's ID. For object=page this is the Page ID.
	ID string `json:"id,omitempty"`
	// A UNIX timestamp (milliseconds) indicating when the Event
	// Notification was sent, not when the change occurred.
	Time int64 `json:"time,omitempty"`
	// Array containing one messaging object.
	// Note that even though this is an array,
	// it will only contain one messaging object.
	Messaging []*Messaging `json:"messaging,omitempty"`
}

type Messaging struct {
	// Sender user ID. sender.id: <PSID>
	// The PSID of the user that triggered the webhook event.
	Sender *Account `json:"sender,omitempty"`
	// Recipient user ID. recipient.id: <PAGE_ID>
	Recipient *Account `json:"recipient,omitempty"`
	// Timestamp (epoch time in milliseconds)
	Timestamp int64 `json:"timestamp,omitempty"`
	// messages. Message has been sent to the Page.
	// https://developers.facebook.com/docs/messenger-platform/reference/webhook-events/messages
	Message *Message `json:"message,omitempty"`
	// messaging_postbacks. Postback button, Get Started button,
	// or persistent menu item is tapped.
	Postback *Postback `json:"postback,omitempty"`
}

type Account struct {
	// The PSID of the user that triggered the webhook event.
	ID string `json:"id,omitempty"`
}

// Message callback will occur when a message has been sent to the Page.
type Message struct {
	// Message ID
	ID string `json:"mid,omitempty"`
	// Text of message
	Text string `json:"text,omitempty"`
	// Included when the business sends a message to the customer
	IsEcho bool `json:"is_echo,omitempty"`
}

// Postbacks occur when a postback button, Get Started button,
// or persistent menu item is tapped.
type Postback struct {
	// Message ID
	MessageID string `json:"mid,omitempty"`
	// Title for the CTA that was clicked on.
	Title string `json:"title,omitempty"`
	// Payload parameter that was defined with the button.
	Payload string `json:"payload,omitempty"`
}
