package authclient

import (
	"context"
	"fmt"
	"strings"
)

// Logger is the minimal logging surface the package needs. Arguments are
// alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type defLogger struct{}

func (d defLogger) Debug(msg string, args ...any) { d.print("DBG", msg, args) }
func (d defLogger) Info(msg string, args ...any)  { d.print("INF", msg, args) }
func (d defLogger) Warn(msg string, args ...any)  { d.print("WRN", msg, args) }
func (d defLogger) Error(msg string, args ...any) { d.print("ERR", msg, args) }

func (defLogger) print(level, msg string, args []any) {
	var sb strings.Builder
	fmt.Fprintf(&sb, "[%s] AUTHCLIENT %s", level, msg)
	for i := 0; i+1 < len(args); i += 2 {
		fmt.Fprintf(&sb, " %v=%v", args[i], args[i+1])
	}
	fmt.Println(sb.String())
}

// Request is an outgoing call to the backend. Headers and body are owned by
// the caller until the request is handed to a Transport.
type Request struct {
	Method  string
	Path    string
	Headers map[string]string
	Body    []byte
}

// Response is what a Transport produced for a Request. A non-2xx status is
// not an error at this level; classification happens in the request pipeline.
type Response struct {
	StatusCode int
	Headers    map[string]string
	Body       []byte
}

// Transport sends requests to the backend. Implementations decide the actual
// wire mechanics (net/http, fetch, a test double).
type Transport interface {
	RoundTrip(ctx context.Context, req *Request) (*Response, error)
}

// TransportFunc adapts a function to the Transport interface.
type TransportFunc func(ctx context.Context, req *Request) (*Response, error)

// RoundTrip implements Transport.
func (f TransportFunc) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	return f(ctx, req)
}

// Storage is the durable key/value collaborator backing session persistence.
// Get returns found=false for missing keys; Remove on a missing key is a
// no-op.
type Storage interface {
	Get(key string) (value string, found bool, err error)
	Set(key, value string) error
	Remove(key string) error
}

func cloneHeaders(h map[string]string) map[string]string {
	out := make(map[string]string, len(h)+1)
	for k, v := range h {
		out[k] = v
	}
	return out
}

func cloneRequest(req *Request) *Request {
	out := &Request{
		Method:  req.Method,
		Path:    req.Path,
		Headers: cloneHeaders(req.Headers),
	}
	if req.Body != nil {
		out.Body = append([]byte(nil), req.Body...)
	}
	return out
}
