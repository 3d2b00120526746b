// Package transport implements the signed HTTP request primitive used by all
// SDK network operations. It owns request headers, response status handling,
// and a circuit breaker that sheds outbound traffic during sustained backend
// failure.
package transport

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/launchdarkly/go-sdk-common/v3/ldlog"
	"github.com/sony/gobreaker"
)

// Header names of the Blux API contract.
const (
	SDKInfoHeader  = "X-BLUX-SDK-INFO"
	ClientIDHeader = "X-BLUX-CLIENT-ID"
	APIKeyHeader   = "X-BLUX-API-KEY"

	payloadIDHeader = "X-BLUX-PAYLOAD-ID"
)

const (
	breakerOpenTimeout          = 30 * time.Second
	breakerConsecutiveFailures  = 5
	defaultRequestTimeoutSecond = 60
)

// Sender delivers one JSON request to the backend and returns the raw
// response body. Implementations absorb no errors: every transport or server
// failure is returned to the caller, which decides between retry scheduling
// and silent drop.
type Sender interface {
	PostJSON(path string, body []byte) ([]byte, error)
	PutJSON(path string, body []byte) ([]byte, error)
}

// HTTPSender is the production Sender.
type HTTPSender struct {
	httpClient *http.Client
	baseURI    string
	headers    http.Header
	breaker    *gobreaker.CircuitBreaker
	loggers    ldlog.Loggers
}

// DefaultHeaders builds the standard header set sent with every request.
// The API key doubles as the Authorization value; the legacy HMAC scheme is
// deprecated and not emitted.
func DefaultHeaders(clientID, apiKey, sdkInfo string) http.Header {
	h := make(http.Header)
	h.Set(SDKInfoHeader, sdkInfo)
	h.Set(ClientIDHeader, clientID)
	h.Set(APIKeyHeader, apiKey)
	h.Set("Authorization", apiKey)
	return h
}

// NewHTTPSender creates an HTTPSender. A nil httpClient gets a default client
// with the standard request timeout.
func NewHTTPSender(httpClient *http.Client, baseURI string, headers http.Header, loggers ldlog.Loggers) *HTTPSender {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultRequestTimeoutSecond * time.Second}
	}
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    "blux-transport",
		Timeout: breakerOpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= breakerConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			loggers.Warnf("Transport circuit breaker changed state from %s to %s", from, to)
		},
	})
	return &HTTPSender{
		httpClient: httpClient,
		baseURI:    baseURI,
		headers:    headers,
		breaker:    breaker,
		loggers:    loggers,
	}
}

// PostJSON implements Sender.
func (s *HTTPSender) PostJSON(path string, body []byte) ([]byte, error) {
	return s.doJSON(http.MethodPost, path, body)
}

// PutJSON implements Sender.
func (s *HTTPSender) PutJSON(path string, body []byte) ([]byte, error) {
	return s.doJSON(http.MethodPut, path, body)
}

func (s *HTTPSender) doJSON(method, path string, body []byte) ([]byte, error) {
	result, err := s.breaker.Execute(func() (interface{}, error) {
		return s.send(method, path, body)
	})
	if err != nil {
		return nil, err
	}
	respBody, _ := result.([]byte)
	return respBody, nil
}

func (s *HTTPSender) send(method, path string, body []byte) ([]byte, error) {
	url := s.baseURI + path
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	for k, vv := range s.headers {
		req.Header[k] = vv
	}
	req.Header.Set("Content-Type", "application/json; charset=UTF-8")
	req.Header.Set("Accept", "application/json")
	payloadUUID, _ := uuid.NewRandom()
	req.Header.Set(payloadIDHeader, payloadUUID.String())

	if s.loggers.IsDebugEnabled() {
		s.loggers.Debugf("%s %s: %s", method, path, body)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if err := checkForHTTPError(resp.StatusCode, url); err != nil {
		return nil, err
	}
	return respBody, nil
}

type httpStatusError struct {
	Message string
	Code    int
}

func (e httpStatusError) Error() string {
	return e.Message
}

func checkForHTTPError(statusCode int, url string) error {
	if statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden {
		return httpStatusError{
			Message: fmt.Sprintf("Invalid API key when accessing URL: %s. Verify that your client ID and API key are correct.", url),
			Code:    statusCode,
		}
	}
	if statusCode/100 != 2 {
		return httpStatusError{
			Message: fmt.Sprintf("Unexpected response code: %d when accessing URL: %s", statusCode, url),
			Code:    statusCode,
		}
	}
	return nil
}

// StatusCode extracts the HTTP status from an error returned by a Sender, or
// 0 for network-level failures.
func StatusCode(err error) int {
	if hse, ok := err.(httpStatusError); ok {
		return hse.Code
	}
	return 0
}
