package httpx

import (
	"net/http"
	"time"
)

const DefaultTimeout = 15 * time.Second

//go:generate mockery --name=Client --dir=. --output=./mocks --filename=http_client_mock.go --case=underscore --with-expecter

// Client abstracts the HTTP transport used by scorer and platform clients.
type Client interface {
	Do(req *http.Request) (*http.Response, error)
}

// NewDefaultClient returns a plain net/http client with a bounded timeout.
func NewDefaultClient() *http.Client {
	return &http.Client{Timeout: DefaultTimeout}
}
