package graph

import "fmt"

// An Error is a Graph API Error
// https://developers.facebook.com/docs/graph-api/guides/error-handling#handling-errors
type Error struct {
	// An error code.
	Code int `json:"code,omitempty"`
	// An error type.
	Type string `json:"type,omitempty"`
	// A human-readable description of the error.
	Message string `json:"message,omitempty"`
	// Additional information about the error.
	SubCode int `json:"error_subcode,omitempty"`
	// The title of the dialog, if shown.
	UserTitle string `json:"error_user_title,omitempty"`
	// The message to display to the user.
	UserMessage string `json:"error_user_msg,omitempty"`
	// Internal support identifier. When reporting a bug related to a Graph
	// API call, include the fbtrace_id to help us find log data for debugging.
	FBTraceID string `json:"fbtrace_id,omitempty"`
}

// Error message
func (err *Error) Error() string {
	return err.Message
}

// APIError is any non-2xx Graph API response.
// The raw body is preserved next to the decoded detail, if any;
// callers decide whether to retry or abort.
type APIError struct {
	// HTTP status code of the response.
	Status int
	// Raw response body bytes, as received.
	Body string
	// Decoded Graph error detail; nil when the body was not parseable.
	Detail *Error
}

func (err *APIError) Error() string {
	if err.Detail != nil && err.Detail.Message != "" {
		return fmt.Sprintf("graph: (%d) %s", err.Status, err.Detail.Message)
	}
	return fmt.Sprintf("graph: (%d) %s", err.Status, err.Body)
}

func (err *APIError) Unwrap() error {
	if err.Detail != nil {
		return err.Detail
	}
	return nil
}
