package client

import (
	"context"
	"errors"
	"math/rand"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	utls "github.com/refraction-networking/utls"
)

// RotatingClient wraps an http.Client and decorates outgoing requests with
// rotating browser-like headers. When fingerprinting is enabled it performs
// the TLS handshake through utls so the ClientHello matches Chrome's, which
// the vendor API expects from its own mobile web views.
type RotatingClient struct {
	client      *http.Client
	userAgents  []string
	langs       []string
	rng         *rand.Rand
	mu          sync.Mutex
	defaultUA   string
	defaultLang string
}

// NewRotatingClient builds the shared HTTP transport for all API clients.
// fingerprint enables the utls handshake; timeout bounds whole requests.
func NewRotatingClient(fingerprint bool, timeout time.Duration) *RotatingClient {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	client := &http.Client{
		Timeout:   timeout,
		Transport: newTransport(fingerprint),
	}

	return &RotatingClient{
		client: client,
		userAgents: []string{
			"Mozilla/5.0 (Linux; Android 13; SM-A525F) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
			"Mozilla/5.0 (Linux; Android 14; Pixel 7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/121.0.0.0 Mobile Safari/537.36",
			"Mozilla/5.0 (iPhone; CPU iPhone OS 17_3 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.3 Mobile/15E148 Safari/604.1",
			"Mozilla/5.0 (Linux; Android 13; 2201116SG) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
		},
		langs:       []string{"id-ID,id;q=0.9,en;q=0.8", "en-US,en;q=0.9,id;q=0.8", "id,en-US;q=0.9"},
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
		defaultUA:   "Mozilla/5.0 (Linux; Android 13; SM-A525F) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Mobile Safari/537.36",
		defaultLang: "id-ID,id;q=0.9,en;q=0.8",
	}
}

// Do sends the request with rotated headers applied.
func (rc *RotatingClient) Do(req *http.Request) (*http.Response, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}
	rc.applyHeaders(req)
	return rc.client.Do(req)
}

func (rc *RotatingClient) applyHeaders(req *http.Request) {
	rc.mu.Lock()
	defer rc.mu.Unlock()

	ua := rc.defaultUA
	lang := rc.defaultLang
	if len(rc.userAgents) > 0 {
		ua = rc.userAgents[rc.rng.Intn(len(rc.userAgents))]
	}
	if len(rc.langs) > 0 {
		lang = rc.langs[rc.rng.Intn(len(rc.langs))]
	}

	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", ua)
	}
	if req.Header.Get("Accept-Language") == "" {
		req.Header.Set("Accept-Language", lang)
	}
	if req.Header.Get("Accept") == "" {
		req.Header.Set("Accept", "application/json, text/plain, */*")
	}
}

func newTransport(fingerprint bool) http.RoundTripper {
	if !fingerprint {
		return &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			TLSHandshakeTimeout: 10 * time.Second,
			MaxIdleConns:        100,
			IdleConnTimeout:     90 * time.Second,
		}
	}

	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialTLSContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
			dialer := &net.Dialer{Timeout: 10 * time.Second}
			rawConn, err := dialer.DialContext(ctx, network, addr)
			if err != nil {
				return nil, err
			}
			host := addr
			if strings.Contains(addr, ":") {
				host, _, _ = net.SplitHostPort(addr)
			}
			config := &utls.Config{
				ServerName: host,
				NextProtos: []string{"h2", "http/1.1"},
			}
			uconn := utls.UClient(rawConn, config, utls.HelloChrome_120)
			if err := uconn.Handshake(); err != nil {
				_ = rawConn.Close()
				return nil, err
			}
			return uconn, nil
		},
		TLSHandshakeTimeout: 10 * time.Second,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
	}
}
