package llm

import (
	"context"
	"sync"
)

// FakeClient is a scriptable Client for tests. Responses are consumed in
// order; Script functions can inspect the request to branch. When the
// script is exhausted, Default is returned.
type FakeClient struct {
	mu     sync.Mutex
	Script []func(req *Request) (*Response, error)
	// Default is returned once the script is exhausted.
	Default *Response
	// Requests records every call for assertions.
	Requests []*Request
}

var _ Client = (*FakeClient)(nil)

func (f *FakeClient) Generate(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Requests = append(f.Requests, req)
	if len(f.Script) > 0 {
		fn := f.Script[0]
		f.Script = f.Script[1:]
		return fn(req)
	}
	if f.Default != nil {
		return f.Default, nil
	}
	return &Response{Content: "ok"}, nil
}

// Respond is a convenience script step returning fixed content.
func Respond(content string) func(*Request) (*Response, error) {
	return func(*Request) (*Response, error) {
		return &Response{Content: content}, nil
	}
}
