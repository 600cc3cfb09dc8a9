package main

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeExchanger struct {
	codes []string
	err   error
}

func (f *fakeExchanger) ExchangeCode(ctx context.Context, code string) error {
	f.codes = append(f.codes, code)
	return f.err
}

func newTestHandler(ex codeExchanger) *callbackHandler {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return newCallbackHandler(ex, "state-1", logger)
}

func callback(h http.Handler, query string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/callback?"+query, nil))
	return rec
}

func outcome(t *testing.T, h *callbackHandler) error {
	t.Helper()
	select {
	case err := <-h.done:
		return err
	default:
		t.Fatal("no outcome reported")
		return nil
	}
}

func TestCallback_Success(t *testing.T) {
	ex := &fakeExchanger{}
	h := newTestHandler(ex)

	rec := callback(h, "code=abc&state=state-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authentication successful")
	assert.Equal(t, []string{"abc"}, ex.codes)
	assert.NoError(t, outcome(t, h))
}

func TestCallback_ProviderError(t *testing.T) {
	ex := &fakeExchanger{}
	h := newTestHandler(ex)

	rec := callback(h, url.Values{
		"error":             {"access_denied"},
		"error_description": {"<script>user said no</script>"},
	}.Encode())

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Authentication failed")
	assert.NotContains(t, rec.Body.String(), "<script>")
	assert.Contains(t, rec.Body.String(), "&lt;script&gt;")
	assert.Empty(t, ex.codes)

	err := outcome(t, h)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access_denied")
}

func TestCallback_ExchangeFailure(t *testing.T) {
	ex := &fakeExchanger{err: errors.New("AADSTS54005: code already redeemed")}
	h := newTestHandler(ex)

	rec := callback(h, "code=used&state=state-1")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Contains(t, rec.Body.String(), "AADSTS54005")
	assert.ErrorContains(t, outcome(t, h), "token exchange failed")
}

func TestCallback_StateMismatch(t *testing.T) {
	ex := &fakeExchanger{}
	h := newTestHandler(ex)

	rec := callback(h, "code=abc&state=forged")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Empty(t, ex.codes)
	assert.ErrorContains(t, outcome(t, h), "state mismatch")
}

func TestCallback_MissingCodeKeepsWaiting(t *testing.T) {
	h := newTestHandler(&fakeExchanger{})

	rec := callback(h, "")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	select {
	case err := <-h.done:
		t.Fatalf("unexpected outcome: %v", err)
	default:
	}
}

func TestCallback_OnlyFirstOutcomeReported(t *testing.T) {
	h := newTestHandler(&fakeExchanger{})

	callback(h, "code=a&state=state-1")
	callback(h, "error=late")

	assert.NoError(t, outcome(t, h))
}

func TestListenAddr(t *testing.T) {
	tests := map[string]string{
		"http://localhost:53847/callback": "localhost:53847",
		"http://127.0.0.1/cb":             "127.0.0.1:80",
		"https://example.com/cb":          "example.com:443",
	}
	for raw, want := range tests {
		u, err := url.Parse(raw)
		require.NoError(t, err)
		assert.Equal(t, want, listenAddr(u), raw)
	}
	u, _ := url.Parse("http://localhost:1")
	assert.Equal(t, "/", callbackPath(u))
}
