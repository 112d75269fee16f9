package pagebridge

import "context"

// LocalTransport serves requests in-process through a Dispatcher.
type LocalTransport struct {
	dispatcher *Dispatcher
}

func NewLocalTransport(d *Dispatcher) *LocalTransport {
	return &LocalTransport{dispatcher: d}
}

// RoundTrip runs the request on its own goroutine so a stuck page cannot
// outlive ctx.
func (t *LocalTransport) RoundTrip(ctx context.Context, req *Request) (*Response, error) {
	done := make(chan *Response, 1)
	go func() {
		done <- t.dispatcher.Handle(ctx, req)
	}()
	select {
	case resp := <-done:
		return resp, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
