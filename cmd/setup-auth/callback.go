package main

import (
	"context"
	"errors"
	"fmt"
	"html"
	"net/http"

	"github.com/sirupsen/logrus"
)

// codeExchanger redeems an authorization code and persists the result
type codeExchanger interface {
	ExchangeCode(ctx context.Context, code string) error
}

// callbackHandler receives the identity platform redirect. The first
// terminal outcome (success or failure) is sent on done.
type callbackHandler struct {
	exchanger codeExchanger
	state     string
	logger    *logrus.Logger
	done      chan error
}

func newCallbackHandler(exchanger codeExchanger, state string, logger *logrus.Logger) *callbackHandler {
	return &callbackHandler{
		exchanger: exchanger,
		state:     state,
		logger:    logger,
		done:      make(chan error, 1),
	}
}

func (h *callbackHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	vals := r.URL.Query()

	if authErr := vals.Get("error"); authErr != "" {
		msg := authErr
		if desc := vals.Get("error_description"); desc != "" {
			msg = authErr + ": " + desc
		}
		h.fail(w, http.StatusBadRequest, fmt.Errorf("authorization error: %s", msg))
		return
	}

	code := vals.Get("code")
	if code == "" {
		// Not a redirect from the identity platform; keep waiting
		http.Error(w, "no code in request", http.StatusBadRequest)
		return
	}

	if vals.Get("state") != h.state {
		h.fail(w, http.StatusBadRequest, errors.New("state mismatch; restart setup-auth and use the new link"))
		return
	}

	if err := h.exchanger.ExchangeCode(r.Context(), code); err != nil {
		h.fail(w, http.StatusInternalServerError, fmt.Errorf("token exchange failed: %w", err))
		return
	}

	h.logger.Info("Authorization completed, credential cache saved")
	writePage(w, http.StatusOK, "Authentication successful",
		"The mail server credentials are saved. You can close this window and return to the terminal.")
	h.finish(nil)
}

func (h *callbackHandler) fail(w http.ResponseWriter, status int, err error) {
	h.logger.WithError(err).Error("Authorization failed")
	writePage(w, status, "Authentication failed", err.Error())
	h.finish(err)
}

func (h *callbackHandler) finish(err error) {
	select {
	case h.done <- err:
	default:
	}
}

func writePage(w http.ResponseWriter, status int, title, message string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	fmt.Fprintf(w, "<!DOCTYPE html><html><head><title>%s</title></head><body><h1>%s</h1><p>%s</p></body></html>\n",
		html.EscapeString(title), html.EscapeString(title), html.EscapeString(message))
}
