package transport

import (
	"net/http"
	"net/http/httputil"
	"regexp"

	"github.com/bincrafters/envy/internal/logging"
)

var authorizationLine = regexp.MustCompile(`(?mi)^(Authorization:)[^\r\n]*`)

// LoggingTransport is an http.RoundTripper that logs requests and responses
// at debug level. Authorization headers are redacted.
type LoggingTransport struct {
	Transport http.RoundTripper
	Logger    *logging.Logger
}

// NewLoggingTransport creates a new LoggingTransport. If transport is nil,
// http.DefaultTransport is used.
func NewLoggingTransport(transport http.RoundTripper, logger *logging.Logger) *LoggingTransport {
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &LoggingTransport{
		Transport: transport,
		Logger:    logger,
	}
}

// RoundTrip executes a single HTTP transaction, logging the request and response.
func (t *LoggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	reqDump, err := httputil.DumpRequestOut(req, true)
	if err != nil {
		t.Logger.Debugf("Error dumping request: %v", err)
	} else {
		t.Logger.Debugf("Request:\n%s", redact(reqDump))
	}

	resp, err := t.Transport.RoundTrip(req)
	if err != nil {
		t.Logger.Debugf("Error making request: %v", err)
		return resp, err // Return the response and error, even if the response is nil.
	}

	respDump, err := httputil.DumpResponse(resp, true)
	if err != nil {
		t.Logger.Debugf("Error dumping response: %v", err)
	} else {
		t.Logger.Debugf("Response:\n%s", respDump)
	}

	return resp, nil
}

func redact(dump []byte) []byte {
	return authorizationLine.ReplaceAll(dump, []byte("$1 REDACTED"))
}
