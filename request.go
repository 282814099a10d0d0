package paywall

import (
	"bytes"
	"io"
	"net/http"
)

// CachableRequest wraps an http.Request so its body can be read more than
// once. Fingerprint policies that digest the body consume the stream; the
// wrapped request replays the cached bytes to the downstream handler.
type CachableRequest struct {
	*http.Request
	body []byte
	read bool
}

// NewCachableRequest wraps r. The body is not read until first requested.
func NewCachableRequest(r *http.Request) *CachableRequest {
	return &CachableRequest{Request: r}
}

// CachedBody reads and caches the full request body. Subsequent calls return
// the cached bytes. After the first call r.Body is replaced with a fresh
// reader over the cache, so downstream handlers see the original content.
func (c *CachableRequest) CachedBody() ([]byte, error) {
	if c.read {
		return c.body, nil
	}
	if c.Request.Body == nil {
		c.read = true
		return nil, nil
	}
	body, err := io.ReadAll(c.Request.Body)
	c.Request.Body.Close()
	if err != nil {
		return nil, err
	}
	c.body = body
	c.read = true
	c.Request.Body = io.NopCloser(bytes.NewReader(body))
	return body, nil
}

// Rewind resets the wrapped request's body reader to the start of the cached
// content. Calling it before the body was cached is a no-op.
func (c *CachableRequest) Rewind() {
	if c.read {
		c.Request.Body = io.NopCloser(bytes.NewReader(c.body))
	}
}
