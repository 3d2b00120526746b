package transport

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/launchdarkly/go-test-helpers/v3/httphelpers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testHeaders() http.Header {
	return DefaultHeaders("org-1", "key-1", "native/1.0.0")
}

func TestDefaultHeadersContract(t *testing.T) {
	h := testHeaders()
	assert.Equal(t, "org-1", h.Get(ClientIDHeader))
	assert.Equal(t, "key-1", h.Get(APIKeyHeader))
	assert.Equal(t, "key-1", h.Get("Authorization"))
	assert.Equal(t, "native/1.0.0", h.Get(SDKInfoHeader))
}

func TestSenderPostsJSONWithHeaders(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(
		httphelpers.HandlerWithJSONResponse(map[string]interface{}{"ok": true}, nil),
	)
	httphelpers.WithServer(handler, func(ts *httptest.Server) {
		s := NewHTTPSender(nil, ts.URL, testHeaders(), ldlog.NewDisabledLoggers())

		respBody, err := s.PostJSON("/collect-events", []byte(`{"events":[]}`))
		require.NoError(t, err)
		assert.JSONEq(t, `{"ok":true}`, string(respBody))

		req := <-requestsCh
		assert.Equal(t, "POST", req.Request.Method)
		assert.Equal(t, "/collect-events", req.Request.URL.Path)
		assert.Equal(t, "org-1", req.Request.Header.Get(ClientIDHeader))
		assert.Equal(t, "key-1", req.Request.Header.Get(APIKeyHeader))
		assert.Equal(t, "key-1", req.Request.Header.Get("Authorization"))
		assert.Equal(t, "native/1.0.0", req.Request.Header.Get(SDKInfoHeader))
		assert.Contains(t, req.Request.Header.Get("Content-Type"), "application/json")
		assert.NotEmpty(t, req.Request.Header.Get(payloadIDHeader))
		assert.Equal(t, `{"events":[]}`, string(req.Body))
	})
}

func TestSenderGeneratesFreshPayloadIDPerRequest(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(200))
	httphelpers.WithServer(handler, func(ts *httptest.Server) {
		s := NewHTTPSender(nil, ts.URL, testHeaders(), ldlog.NewDisabledLoggers())

		_, err := s.PostJSON("/collect-events", nil)
		require.NoError(t, err)
		_, err = s.PutJSON("/collect-events", nil)
		require.NoError(t, err)

		first := (<-requestsCh).Request.Header.Get(payloadIDHeader)
		second := (<-requestsCh).Request.Header.Get(payloadIDHeader)
		assert.NotEmpty(t, first)
		assert.NotEqual(t, first, second)
	})
}

func TestSenderReturnsStatusErrors(t *testing.T) {
	for _, status := range []int{400, 500} {
		handler := httphelpers.HandlerWithStatus(status)
		httphelpers.WithServer(handler, func(ts *httptest.Server) {
			s := NewHTTPSender(nil, ts.URL, testHeaders(), ldlog.NewDisabledLoggers())

			_, err := s.PostJSON("/collect-events", nil)
			require.Error(t, err)
			assert.Equal(t, status, StatusCode(err))
		})
	}
}

func TestSenderReportsInvalidKeyOnAuthFailures(t *testing.T) {
	for _, status := range []int{401, 403} {
		handler := httphelpers.HandlerWithStatus(status)
		httphelpers.WithServer(handler, func(ts *httptest.Server) {
			s := NewHTTPSender(nil, ts.URL, testHeaders(), ldlog.NewDisabledLoggers())

			_, err := s.PostJSON("/collect-events", nil)
			require.Error(t, err)
			assert.Equal(t, status, StatusCode(err))
			assert.Contains(t, err.Error(), "Invalid API key")
		})
	}
}

func TestSenderStatusCodeIsZeroForNetworkErrors(t *testing.T) {
	s := NewHTTPSender(nil, "http://127.0.0.1:1", testHeaders(), ldlog.NewDisabledLoggers())

	_, err := s.PostJSON("/collect-events", nil)
	require.Error(t, err)
	assert.Equal(t, 0, StatusCode(err))
}

func TestSenderBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	handler, requestsCh := httphelpers.RecordingHandler(httphelpers.HandlerWithStatus(500))
	httphelpers.WithServer(handler, func(ts *httptest.Server) {
		s := NewHTTPSender(nil, ts.URL, testHeaders(), ldlog.NewDisabledLoggers())

		for i := 0; i < breakerConsecutiveFailures; i++ {
			_, err := s.PostJSON("/collect-events", nil)
			require.Error(t, err)
			<-requestsCh
		}

		// The breaker is now open: the request fails without reaching the
		// server.
		_, err := s.PostJSON("/collect-events", nil)
		require.Error(t, err)
		select {
		case <-requestsCh:
			require.Fail(t, "request should not have reached the server")
		default:
		}
	})
}
