package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"

	"github.com/rs/zerolog"
)

// Dispatcher is the HTTP-facing side of the shared webhook endpoint: the GET
// subscription handshake and the POST delivery ingestion, fanned out to the
// owning subscriptions through the injected Registry.
//
// A delivery batch is signature-checked once, with the app secret of the
// first recognized entry; the verdict is reused for the rest of the batch.
// Entries for pages under a different app secret within one delivery are an
// unmodeled case: the platform posts one app's events per callback URL.
type Dispatcher struct {
	Registry *Registry
	Log      zerolog.Logger

	// StrictSignatures rejects deliveries with a missing or mismatched
	// X-Hub-Signature-256 header (401) instead of the legacy warn-and-process.
	StrictSignatures bool

	tasks sync.WaitGroup
}

func NewDispatcher(registry *Registry, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		Registry: registry,
		Log:      log,
	}
}

func (c *Dispatcher) ServeHTTP(rsp http.ResponseWriter, req *http.Request) {
	switch req.Method {
	case http.MethodGet:
		c.Verification(rsp, req)
	case http.MethodPost:
		c.Event(rsp, req)
	default:
		http.Error(rsp, "webhook: method not allowed", http.StatusMethodNotAllowed)
	}
}

// Verification handles the GET subscription handshake.
// https://developers.facebook.com/docs/messenger-platform/webhooks#verification-requests
func (c *Dispatcher) Verification(rsp http.ResponseWriter, req *http.Request) {

	query := req.URL.Query()
	mode := query.Get("hub.mode")
	token := query.Get("hub.verify_token")

	if mode == "" || token == "" {
		http.Error(rsp,
			"webhook: hub.mode or hub.verify_token is missing",
			http.StatusBadRequest,
		)
		return // 400 Bad Request
	}

	if mode == "subscribe" && c.Registry.VerifyToken(token) {
		rsp.WriteHeader(http.StatusOK)
		_, _ = rsp.Write([]byte(query.Get("hub.challenge")))

		c.Log.Info().Msg("WEBHOOK: VERIFIED")
		return // 200 OK
	}

	http.Error(rsp,
		"webhook: verify token is invalid",
		http.StatusForbidden,
	)
	c.Log.Warn().
		Str("error", "verify token is invalid").
		Msg("WEBHOOK: NOT VERIFIED")
	// 403 Forbidden
}

// Event handles the POST delivery. The endpoint answers 200 right after the
// fan-out is scheduled: the platform redelivers when it does not see 200
// quickly, so entry handling must never block the response. Per-entry
// handler failures are logged, not surfaced.
func (c *Dispatcher) Event(rsp http.ResponseWriter, req *http.Request) {

	defer req.Body.Close()
	body, err := io.ReadAll(req.Body)
	if err != nil {
		http.Error(rsp, "webhook: failed to read event", http.StatusBadRequest)
		c.Log.Err(err).Msg("WEBHOOK: EVENT")
		return // 400 Bad Request
	}

	var event Event
	if err = json.Unmarshal(body, &event); err != nil {
		http.Error(rsp, "webhook: failed to decode event", http.StatusBadRequest)
		c.Log.Err(err).Msg("WEBHOOK: EVENT")
		return // 400 Bad Request
	}

	header := req.Header.Get(SignatureHeader)
	verified := false

	for _, entry := range event.Entry {

		sub := c.Registry.Lookup(entry.ID)
		if sub == nil {
			// Not a page this instance is configured for; expected, not an error.
			c.Log.Debug().
				Str("page-id", entry.ID).
				Msg("WEBHOOK: PAGE UNKNOWN")
			continue
		}

		if !verified {
			// Signature covers the whole batch, not per-entry.
			if !c.checkSignature(rsp, body, header, sub) {
				return // 401 Unauthorized (strict mode only)
			}
			verified = true
		}

		c.dispatch(sub, event.Object, entry)
	}

	rsp.WriteHeader(http.StatusOK)
}

// checkSignature applies the configured signature policy. The legacy policy
// logs and processes anyway; strict mode answers 401 and reports false.
func (c *Dispatcher) checkSignature(rsp http.ResponseWriter, body []byte, header string, sub *Subscription) bool {

	if header == "" {
		if c.StrictSignatures {
			http.Error(rsp, "webhook: signature is missing", http.StatusUnauthorized)
			return false
		}
		c.Log.Warn().
			Str("page-id", sub.PageID).
			Msgf("WEBHOOK: %s header is missing", SignatureHeader)
		return true
	}

	if !VerifySignature(body, header, []byte(sub.AppSecret)) {
		if c.StrictSignatures {
			http.Error(rsp, "webhook: signature is invalid", http.StatusUnauthorized)
			return false
		}
		c.Log.Warn().
			Str("page-id", sub.PageID).
			Msg("WEBHOOK: SIGNATURE MISMATCH")
		return true
	}

	c.Log.Debug().Msg("WEBHOOK: SIGNATURE VERIFIED")
	return true
}

// dispatch schedules the entry hand-off; fire-and-forget.
func (c *Dispatcher) dispatch(sub *Subscription, object string, entry *Entry) {

	c.tasks.Add(1)
	go func() {
		defer c.tasks.Done()

		err := sub.Handler.HandleEntry(context.Background(), object, entry)
		if err != nil {
			c.Log.Err(err).
				Str("page-id", sub.PageID).
				Str("page", sub.PageName).
				Msg("WEBHOOK: ENTRY")
		}
	}()
}

// Wait blocks until all scheduled entry hand-offs finished.
// Graceful shutdown and tests.
func (c *Dispatcher) Wait() {
	c.tasks.Wait()
}
