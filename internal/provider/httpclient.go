package provider

import (
	"net/http"
	"time"
)

const (
	defaultHTTPTimeout = 120 * time.Second
	maxRetries         = 3
)

// newHTTPClient builds the client used for non-streaming calls. Streaming
// requests use a transport without an overall timeout and rely on context
// cancellation instead.
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: defaultHTTPTimeout}
}

func newStreamingClient() *http.Client {
	return &http.Client{}
}
