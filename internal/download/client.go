package download

import (
	"context"
	"io"
	"net"
	"net/http"
	"sync"
	"time"
)

const (
	defaultIdleConnTimeout       = 30 * time.Second
	defaultExpectContinueTimeout = 1 * time.Second
)

// NewClient returns an HTTP client whose dial, TLS handshake and response
// header waits are bounded by timeout. There is no overall deadline; the body
// is guarded by an idle read timer instead. Compression stays off so the
// body length is the one the server declared.
func NewClient(timeout time.Duration) *http.Client {
	return &http.Client{
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           (&net.Dialer{Timeout: timeout, KeepAlive: 30 * time.Second}).DialContext,
			ForceAttemptHTTP2:     true,
			DisableCompression:    true,
			MaxIdleConns:          4,
			IdleConnTimeout:       defaultIdleConnTimeout,
			TLSHandshakeTimeout:   timeout,
			ResponseHeaderTimeout: timeout,
			ExpectContinueTimeout: defaultExpectContinueTimeout,
		},
	}
}

// idleReader cancels the request when no Read completes within timeout.
type idleReader struct {
	r       io.Reader
	timer   *time.Timer
	timeout time.Duration

	mu      sync.Mutex
	expired bool
}

func newIdleReader(r io.Reader, timeout time.Duration, cancel context.CancelFunc) *idleReader {
	ir := &idleReader{r: r, timeout: timeout}
	ir.timer = time.AfterFunc(timeout, func() {
		ir.mu.Lock()
		ir.expired = true
		ir.mu.Unlock()
		cancel()
	})
	return ir
}

func (ir *idleReader) Read(p []byte) (int, error) {
	n, err := ir.r.Read(p)
	if n > 0 {
		ir.timer.Reset(ir.timeout)
	}
	if err != nil && err != io.EOF && ir.Expired() {
		return n, errIdleTimeout
	}
	return n, err
}

// Expired reports whether the idle timer fired.
func (ir *idleReader) Expired() bool {
	ir.mu.Lock()
	defer ir.mu.Unlock()
	return ir.expired
}

func (ir *idleReader) Stop() {
	ir.timer.Stop()
}
