package main

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/micro/micro/v3/service/errors"
	"github.com/rs/zerolog"

	"github.com/megabytemb/messenger-link/app"
	"github.com/megabytemb/messenger-link/graph"
	"github.com/megabytemb/messenger-link/webhooks"
)

// Server is the HTTP surface: the shared Messenger webhook endpoint plus a
// small management API the host platform drives page setup through.
type Server struct {
	mgr  *app.Manager
	hook *webhooks.Dispatcher
	log  zerolog.Logger
}

func NewServer(mgr *app.Manager, hook *webhooks.Dispatcher, log zerolog.Logger) *Server {
	return &Server{
		mgr:  mgr,
		hook: hook,
		log:  log,
	}
}

func (srv *Server) Router() *mux.Router {

	r := mux.NewRouter()
	r.Handle("/api/messenger/webhook", srv.hook).
		Methods(http.MethodGet, http.MethodPost)

	r.HandleFunc("/api/pages", srv.listPages).Methods(http.MethodGet)
	r.HandleFunc("/api/pages", srv.setupPage).Methods(http.MethodPost)
	r.HandleFunc("/api/pages/{id}", srv.removePage).Methods(http.MethodDelete)
	r.HandleFunc("/api/pages/{id}/challenge", srv.createChallenge).Methods(http.MethodPost)
	r.HandleFunc("/api/pages/{id}/messages", srv.sendMessage).Methods(http.MethodPost)

	return r
}

// pageView is the management API's rendering of one configured page.
type pageView struct {
	PageID         string `json:"page_id"`
	PageName       string `json:"page_name,omitempty"`
	PageURL        string `json:"page_url,omitempty"`
	AppID          string `json:"app_id,omitempty"`
	FollowersCount int64  `json:"followers_count,omitempty"`
}

func renderPage(sub *app.Subscription) *pageView {
	return &pageView{
		PageID:         sub.PageID,
		PageName:       sub.PageName(),
		PageURL:        sub.PageURL(),
		AppID:          sub.AppID,
		FollowersCount: sub.FollowersCount(),
	}
}

func (srv *Server) listPages(rsp http.ResponseWriter, req *http.Request) {

	subs := srv.mgr.Subscriptions()
	pages := make([]*pageView, 0, len(subs))
	for _, sub := range subs {
		pages = append(pages, renderPage(sub))
	}
	srv.respond(rsp, http.StatusOK, pages)
}

func (srv *Server) setupPage(rsp http.ResponseWriter, req *http.Request) {

	var form struct {
		UserToken string `json:"user_token"`
		PageID    string `json:"page_id"`
	}
	if err := json.NewDecoder(req.Body).Decode(&form); err != nil {
		srv.fail(rsp, errors.BadRequest(
			"messenger.setup.request", "setup: invalid request body",
		))
		return
	}
	if form.UserToken == "" || form.PageID == "" {
		srv.fail(rsp, errors.BadRequest(
			"messenger.setup.request", "setup: user_token and page_id are required",
		))
		return
	}

	sub, err := srv.mgr.Setup(req.Context(), form.UserToken, form.PageID)
	if err != nil {
		srv.fail(rsp, err)
		return
	}
	srv.respond(rsp, http.StatusCreated, renderPage(sub))
}

func (srv *Server) removePage(rsp http.ResponseWriter, req *http.Request) {

	srv.mgr.Remove(mux.Vars(req)["id"])
	rsp.WriteHeader(http.StatusNoContent)
}

func (srv *Server) createChallenge(rsp http.ResponseWriter, req *http.Request) {

	code, err := srv.mgr.CreateChallenge(req.Context(), mux.Vars(req)["id"])
	if err != nil {
		srv.fail(rsp, err)
		return
	}
	srv.respond(rsp, http.StatusCreated, map[string]string{
		"code": code,
	})
}

func (srv *Server) sendMessage(rsp http.ResponseWriter, req *http.Request) {

	var form struct {
		RecipientID string `json:"recipient_id"`
		Text        string `json:"text"`
	}
	if err := json.NewDecoder(req.Body).Decode(&form); err != nil {
		srv.fail(rsp, errors.BadRequest(
			"messenger.send.request", "send: invalid request body",
		))
		return
	}
	if form.RecipientID == "" || form.Text == "" {
		srv.fail(rsp, errors.BadRequest(
			"messenger.send.request", "send: recipient_id and text are required",
		))
		return
	}

	sent, err := srv.mgr.SendMessage(
		req.Context(), mux.Vars(req)["id"], form.RecipientID, form.Text,
	)
	if err != nil {
		srv.fail(rsp, err)
		return
	}
	srv.respond(rsp, http.StatusOK, sent)
}

func (srv *Server) respond(rsp http.ResponseWriter, code int, body interface{}) {
	rsp.Header().Set("Content-Type", "application/json")
	rsp.WriteHeader(code)
	if err := json.NewEncoder(rsp).Encode(body); err != nil {
		srv.log.Err(err).Msg("API: RESPOND")
	}
}

// fail maps service errors onto HTTP status codes: coded errors carry their
// own status, Graph API failures pass theirs through, the rest is a 500.
func (srv *Server) fail(rsp http.ResponseWriter, err error) {

	code := http.StatusInternalServerError
	switch e := err.(type) {
	case *errors.Error:
		if e.Code >= 400 && e.Code < 600 {
			code = int(e.Code)
		}
	case *graph.APIError:
		code = http.StatusBadGateway
	}

	srv.respond(rsp, code, map[string]string{
		"error": err.Error(),
	})
}
