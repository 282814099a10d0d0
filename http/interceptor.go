package http

import (
	"bufio"
	"errors"
	"net"
	"net/http"
)

// executionInterceptor wraps the ResponseWriter to intercept the moment of
// commitment. The pay-per-request payment is consumed only when the handler
// commits a success status; error responses pass through unconsumed.
type executionInterceptor struct {
	w http.ResponseWriter
	// markExecuted consumes the payment, reporting whether the response may
	// proceed
	markExecuted func() bool
	// onFailure is an internal logging callback
	onFailure func(statusCode int)
	committed bool
	hijacked  bool
}

func (i *executionInterceptor) Header() http.Header {
	return i.w.Header()
}

func (i *executionInterceptor) Write(b []byte) (int, error) {
	// A Write without WriteHeader implies 200 OK, so the executed check
	// runs now.
	if !i.committed {
		i.WriteHeader(http.StatusOK)
	}

	// When marking failed the error response was already written; the
	// handler's payload is silently discarded to avoid a mixed response.
	if i.hijacked {
		return len(b), nil
	}

	return i.w.Write(b)
}

func (i *executionInterceptor) WriteHeader(statusCode int) {
	if i.committed {
		return
	}
	i.committed = true

	// Error responses pass through untouched and leave the payment
	// claimable.
	if statusCode >= 400 {
		if i.onFailure != nil {
			i.onFailure(statusCode)
		}
		i.w.WriteHeader(statusCode)
		return
	}

	if !i.markExecuted() {
		i.hijacked = true
		return
	}

	i.w.WriteHeader(statusCode)
}

// Flush implements http.Flusher to support streaming responses.
func (i *executionInterceptor) Flush() {
	if flusher, ok := i.w.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack implements http.Hijacker to support connection hijacking.
func (i *executionInterceptor) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := i.w.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, errors.New("hijacking not supported")
}

// Push implements http.Pusher to support HTTP/2 server push.
func (i *executionInterceptor) Push(target string, opts *http.PushOptions) error {
	if pusher, ok := i.w.(http.Pusher); ok {
		return pusher.Push(target, opts)
	}
	return http.ErrNotSupported
}
