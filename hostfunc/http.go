package hostfunc

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"github.com/caffeineduck/hotrun/internal/ctxlog"
)

// Limits applied when HTTPConfig leaves them zero.
const (
	DefaultMaxURLLength = 8192
	DefaultMaxBodySize  = 1 << 20
	DefaultHTTPTimeout  = 30 * time.Second
)

var (
	ErrHTTPDisabled   = errors.New("http: no hosts are allowed")
	ErrHostNotAllowed = errors.New("http: host not allowed")
)

// HTTPConfig bounds the http library. An empty AllowedHosts disables it.
type HTTPConfig struct {
	AllowedHosts []string
	MaxURLLength int
	MaxBodySize  int64 // request and response bodies
	Timeout      time.Duration
}

// HTTP performs outbound requests restricted to an allow-list of hosts.
type HTTP struct {
	cfg    HTTPConfig
	client *http.Client
}

func NewHTTP(cfg HTTPConfig) *HTTP {
	if cfg.MaxURLLength == 0 {
		cfg.MaxURLLength = DefaultMaxURLLength
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultHTTPTimeout
	}
	return &HTTP{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

// Library exposes the client as the "http" library.
func (h *HTTP) Library() Library {
	return Library{
		Name: LibHTTP,
		Funcs: map[string]Func{
			"request": h.Request,
			"get":     h.Get,
		},
	}
}

// Get is Request with the method forced to GET. The url may be positional.
func (h *HTTP) Get(ctx context.Context, args map[string]any) (any, error) {
	req := map[string]any{"method": http.MethodGet}
	if u, ok := stringArg(args, "url", 0); ok {
		req["url"] = u
	}
	if headers, ok := args["headers"]; ok {
		req["headers"] = headers
	}
	return h.Request(ctx, req)
}

// outbound is a validated request.
type outbound struct {
	method  string
	url     *url.URL
	body    string
	headers map[string]string
}

// prepare checks args against the method list, the URL limits and the
// allow-list before anything touches the network.
func (h *HTTP) prepare(args map[string]any) (*outbound, error) {
	out := &outbound{method: http.MethodGet, headers: map[string]string{}}
	if m, _ := args["method"].(string); m != "" {
		out.method = strings.ToUpper(m)
	}
	switch out.method {
	case http.MethodGet, http.MethodHead, http.MethodPost, http.MethodPut,
		http.MethodPatch, http.MethodDelete, http.MethodOptions:
	default:
		return nil, fmt.Errorf("http: method %s is not supported", out.method)
	}

	raw, _ := args["url"].(string)
	switch {
	case raw == "":
		return nil, errors.New("http: url is required")
	case len(raw) > h.cfg.MaxURLLength:
		return nil, fmt.Errorf("http: url is longer than %d bytes", h.cfg.MaxURLLength)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("http: malformed url %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("http: scheme %q is not http or https", u.Scheme)
	}
	out.url = u

	if len(h.cfg.AllowedHosts) == 0 {
		return nil, ErrHTTPDisabled
	}
	if !h.allows(u.Hostname()) {
		return nil, fmt.Errorf("%w: %s", ErrHostNotAllowed, u.Hostname())
	}

	if body, _ := args["body"].(string); body != "" {
		if int64(len(body)) > h.cfg.MaxBodySize {
			return nil, fmt.Errorf("http: request body is larger than %d bytes", h.cfg.MaxBodySize)
		}
		out.body = body
	}
	if headers, ok := args["headers"].(map[string]any); ok {
		for k, v := range headers {
			if s, ok := v.(string); ok {
				out.headers[k] = s
			}
		}
	}
	return out, nil
}

// Request sends {method, url, body, headers} and returns {status, body,
// headers}. Only the first value of each response header is kept and the
// body is cut at MaxBodySize.
func (h *HTTP) Request(ctx context.Context, args map[string]any) (any, error) {
	o, err := h.prepare(args)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if o.body != "" {
		body = strings.NewReader(o.body)
	}
	req, err := http.NewRequestWithContext(ctx, o.method, o.url.String(), body)
	if err != nil {
		return nil, fmt.Errorf("http: build request: %w", err)
	}
	for k, v := range o.headers {
		req.Header.Set(k, v)
	}

	ctxlog.FromContext(ctx).Debug("http request", "method", o.method, "host", o.url.Hostname())

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http: %s %s: %w", o.method, o.url.Redacted(), err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.cfg.MaxBodySize))
	if err != nil {
		return nil, fmt.Errorf("http: read response: %w", err)
	}

	headers := make(map[string]string, len(resp.Header))
	for k, v := range resp.Header {
		if len(v) > 0 {
			headers[k] = v[0]
		}
	}
	return map[string]any{
		"status":  resp.StatusCode,
		"body":    string(data),
		"headers": headers,
	}, nil
}

// allows matches IP literals by address and names by exact match or
// subdomain suffix. IP literals never match through the suffix rule.
func (h *HTTP) allows(host string) bool {
	addr, hostErr := netip.ParseAddr(host)
	for _, allowed := range h.cfg.AllowedHosts {
		allowedAddr, allowedErr := netip.ParseAddr(allowed)
		switch {
		case hostErr == nil && allowedErr == nil:
			if addr.Unmap() == allowedAddr.Unmap() {
				return true
			}
		case hostErr == nil || allowedErr == nil:
			continue
		case host == allowed || strings.HasSuffix(host, "."+allowed):
			return true
		}
	}
	return false
}
