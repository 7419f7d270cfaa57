// Package backend implements the exchange contract spoken to a model
// server: one JSON object per line on the child's stdin, one JSON
// object per line back on its stdout.
package backend

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/medlocal/assistant/internal/models"
)

// ErrExchange covers every way a single request/response round trip can
// fail: timeout, closed pipe, malformed or error-carrying response.
var ErrExchange = errors.New("backend exchange failed")

// Request is the structured object sent to a backend for one query.
type Request struct {
	Message     string              `json:"message"`
	History     []models.Message    `json:"history"`
	Attachments []models.Attachment `json:"attachments,omitempty"`
}

// Response is the structured reply a backend must produce.
type Response struct {
	Content string `json:"content"`
	Error   string `json:"error,omitempty"`
}

const maxResponseSize = 4 * 1024 * 1024

// Conn is the process-scoped channel to one running backend. Exchanges
// are serialized so a response is always matched to its request.
type Conn struct {
	mu      sync.Mutex
	name    string
	stdin   io.Writer
	scanner *bufio.Scanner
}

func NewConn(name string, stdin io.Writer, stdout io.Reader) *Conn {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 64*1024), maxResponseSize)
	return &Conn{
		name:    name,
		stdin:   stdin,
		scanner: scanner,
	}
}

func (c *Conn) Name() string { return c.name }

// Exchange sends one request and waits for one response, bounded by the
// context deadline. A dead or silent child surfaces as ErrExchange, not
// a hang.
func (c *Conn) Exchange(ctx context.Context, req *Request) (*Response, error) {
	type outcome struct {
		resp *Response
		err  error
	}
	done := make(chan outcome, 1)

	go func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		resp, err := c.roundTrip(req)
		done <- outcome{resp, err}
	}()

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %s: %v", ErrExchange, c.name, ctx.Err())
	case out := <-done:
		return out.resp, out.err
	}
}

func (c *Conn) roundTrip(req *Request) (*Response, error) {
	payload, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: encode request: %v", ErrExchange, c.name, err)
	}
	payload = append(payload, '\n')

	if _, err := c.stdin.Write(payload); err != nil {
		return nil, fmt.Errorf("%w: %s: write request: %v", ErrExchange, c.name, err)
	}

	if !c.scanner.Scan() {
		if err := c.scanner.Err(); err != nil {
			return nil, fmt.Errorf("%w: %s: read response: %v", ErrExchange, c.name, err)
		}
		// EOF means the child exited mid-exchange.
		return nil, fmt.Errorf("%w: %s: channel closed", ErrExchange, c.name)
	}

	var resp Response
	if err := json.Unmarshal(c.scanner.Bytes(), &resp); err != nil {
		return nil, fmt.Errorf("%w: %s: malformed response: %v", ErrExchange, c.name, err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("%w: %s: %s", ErrExchange, c.name, resp.Error)
	}
	if resp.Content == "" {
		return nil, fmt.Errorf("%w: %s: response missing content", ErrExchange, c.name)
	}
	return &resp, nil
}
