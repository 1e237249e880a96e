package services

import (
	"context"
	"sync"
)

// APICall is a reusable handle on one backend endpoint that tracks whether a
// send is in flight.
type APICall struct {
	client   *APIClient
	method   string
	endpoint string

	mu       sync.Mutex
	inFlight int
}

// NewAPICall binds method and endpoint on client.
func NewAPICall(client *APIClient, method, endpoint string) *APICall {
	return &APICall{client: client, method: method, endpoint: endpoint}
}

// Send issues the call. suffix is appended to the endpoint path; body may be
// a JSON-encodable value or a *Multipart.
func (a *APICall) Send(ctx context.Context, token, suffix string, body any) (*APIResponse, error) {
	a.mu.Lock()
	a.inFlight++
	a.mu.Unlock()

	defer func() {
		a.mu.Lock()
		a.inFlight--
		a.mu.Unlock()
	}()

	req := APIRequest{Method: a.method, Path: a.endpoint + suffix, Token: token}
	if form, ok := body.(*Multipart); ok {
		req.Form = form
	} else {
		req.Body = body
	}
	return a.client.Do(ctx, req)
}

// Loading reports whether a send is in flight.
func (a *APICall) Loading() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.inFlight > 0
}
