package httpserver

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	clientAddr      = "1.2.3.4:1234"
	otherClientAddr = "5.6.7.8:5678"
	sessionA        = "7d1c1f0e-4a7b-4a53-9a35-0f2b8f1b6a01"
	sessionB        = "0b6e4d56-8f0a-4c11-b7a4-6b0f7f0d9c22"
)

// limitedRequest runs one request through a limiter that already knows the
// request's session, the way requireSession leaves it.
func limitedRequest(t *testing.T, handler echo.HandlerFunc, addr, session string, isNew bool) int {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.RemoteAddr = addr
	rec := httptest.NewRecorder()
	c := echo.New().NewContext(req, rec)
	if session != "" {
		c.Set(contextKeySessionID, session)
	}
	if isNew {
		c.Set(contextKeyNewSession, true)
	}
	require.NoError(t, handler(c))
	return rec.Code
}

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func TestRateLimiter_AllowsBurstPerSession(t *testing.T) {
	handler := newRateLimiter(10, 3)(okHandler)

	for range 3 {
		assert.Equal(t, http.StatusOK, limitedRequest(t, handler, clientAddr, sessionA, false))
	}
}

func TestRateLimiter_SessionsBehindOneAddressAreIndependent(t *testing.T) {
	handler := newRateLimiter(0.01, 1)(okHandler)

	assert.Equal(t, http.StatusOK, limitedRequest(t, handler, clientAddr, sessionA, false))
	assert.Equal(t, http.StatusOK, limitedRequest(t, handler, clientAddr, sessionB, false))
	assert.Equal(t, http.StatusTooManyRequests, limitedRequest(t, handler, clientAddr, sessionA, false))
}

func TestRateLimiter_SessionKeepsItsBucketAcrossAddresses(t *testing.T) {
	handler := newRateLimiter(0.01, 1)(okHandler)

	assert.Equal(t, http.StatusOK, limitedRequest(t, handler, clientAddr, sessionA, false))
	assert.Equal(t, http.StatusTooManyRequests, limitedRequest(t, handler, otherClientAddr, sessionA, false))
}

func TestRateLimiter_NewSessionsShareTheAddressBucket(t *testing.T) {
	handler := newRateLimiter(0.01, 1)(okHandler)

	assert.Equal(t, http.StatusOK, limitedRequest(t, handler, clientAddr, sessionA, true))
	assert.Equal(t, http.StatusTooManyRequests, limitedRequest(t, handler, clientAddr, sessionB, true))
	assert.Equal(t, http.StatusOK, limitedRequest(t, handler, otherClientAddr, sessionB, true))
}

func TestRateLimiter_DeniedResponse(t *testing.T) {
	handler := newRateLimiter(0.01, 1)(okHandler)
	limitedRequest(t, handler, clientAddr, "", false)

	req := httptest.NewRequest(http.MethodGet, "/api/data", nil)
	req.RemoteAddr = clientAddr
	rec := httptest.NewRecorder()
	require.NoError(t, handler(echo.New().NewContext(req, rec)))

	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	var resp map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "rate limit exceeded", resp["error"])
}

func TestRateLimiter_CookielessClientIsLimited(t *testing.T) {
	srv := newTestServer(t, &mockAppService{}, func(s *Server) {
		s.config.RateLimitPerSecond = 0.01
		s.config.RateLimitBurst = 1
	})

	first := httptest.NewRequest(http.MethodGet, "/api/indicators", nil)
	first.RemoteAddr = clientAddr
	require.Equal(t, http.StatusOK, serve(srv, first).Code)

	second := httptest.NewRequest(http.MethodGet, "/api/indicators", nil)
	second.RemoteAddr = clientAddr
	assert.Equal(t, http.StatusTooManyRequests, serve(srv, second).Code)
}

func TestRateLimiter_EstablishedSessionIsNotLimitedByAddress(t *testing.T) {
	srv := newTestServer(t, &mockAppService{}, func(s *Server) {
		s.config.RateLimitPerSecond = 0.01
		s.config.RateLimitBurst = 1
	})

	first := httptest.NewRequest(http.MethodGet, "/api/indicators", nil)
	first.RemoteAddr = clientAddr
	rec := serve(srv, first)
	require.Equal(t, http.StatusOK, rec.Code)

	next := withCookies(httptest.NewRequest(http.MethodGet, "/api/indicators", nil), rec)
	next.RemoteAddr = clientAddr
	assert.Equal(t, http.StatusOK, serve(srv, next).Code)
}
