// Package client implements the callback channel the server dials back to a
// client's advertised endpoint.
//
// A channel is opened per operation and closed before the operation returns;
// channels are never shared across operations. Messages travel as JSON text
// frames; file content travels as a single binary websocket message, streamed
// so sizes are unbounded.
package client

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/cenk/backoff"
	"github.com/coder/websocket"

	"github.com/repokit/repokit/internal/errors"
	"github.com/repokit/repokit/internal/protocol"
)

// Channel is a connected client endpoint the server can post messages to,
// push files to, and pull files from.
type Channel interface {
	// Post sends a message to the client.
	Post(ctx context.Context, msg protocol.Message) error
	// SendFile announces filename and streams the file bytes to the client.
	SendFile(ctx context.Context, filename string, r io.Reader) error
	// FetchFile asks the client for the file at its local path and returns
	// the byte stream.
	FetchFile(ctx context.Context, clientPath string) (io.ReadCloser, error)
	// Close shuts the channel down.
	Close() error
}

// Options configures channel dialing.
type Options struct {
	// Attempts bounds how many times dialing is tried before giving up.
	Attempts uint64
	// InitialInterval seeds the exponential backoff between attempts.
	InitialInterval time.Duration
}

// DefaultOptions mirrors the historical behavior of retrying channel
// creation three times.
func DefaultOptions() *Options {
	return &Options{
		Attempts:        3,
		InitialInterval: 100 * time.Millisecond,
	}
}

// Dial connects to a client's callback endpoint with bounded exponential
// retry. Exhausting the attempts yields a connect error.
func Dial(ctx context.Context, endpoint string, opts *Options) (Channel, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	attempts := opts.Attempts
	if attempts == 0 {
		// zero would underflow the retry bound below into unbounded retrying
		attempts = 1
	}

	var conn *websocket.Conn
	operation := func() error {
		c, _, err := websocket.Dial(ctx, endpoint, nil)
		if err != nil {
			return err
		}
		conn = c
		return nil
	}

	expBackoff := backoff.NewExponentialBackOff()
	expBackoff.InitialInterval = opts.InitialInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(expBackoff, attempts-1), ctx)

	if err := backoff.Retry(operation, policy); err != nil {
		return nil, errors.NewConnectError("dial_failed",
			fmt.Sprintf("could not reach client endpoint %s", endpoint), err)
	}

	// file transfers are unbounded; do not keep the default message ceiling
	conn.SetReadLimit(-1)

	return &wsChannel{conn: conn, endpoint: endpoint}, nil
}

type wsChannel struct {
	conn     *websocket.Conn
	endpoint string
}

func (c *wsChannel) Post(ctx context.Context, msg protocol.Message) error {
	data, err := msg.Encode()
	if err != nil {
		return err
	}
	if err := c.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return errors.NewTransportError("post_failed", "failed to post message to client", err).
			WithContext("endpoint", c.endpoint)
	}
	return nil
}

func (c *wsChannel) SendFile(ctx context.Context, filename string, r io.Reader) error {
	header := protocol.Message{Command: protocol.CommandFileTransfer, Text: filename}
	if err := c.Post(ctx, header); err != nil {
		return err
	}

	w, err := c.conn.Writer(ctx, websocket.MessageBinary)
	if err != nil {
		return errors.NewTransportError("send_file", "failed to open file stream to client", err).
			WithContext("filename", filename)
	}
	if _, err := io.Copy(w, r); err != nil {
		w.Close()
		return errors.NewTransportError("send_file", "failed to stream file to client", err).
			WithContext("filename", filename)
	}
	if err := w.Close(); err != nil {
		return errors.NewTransportError("send_file", "failed to finish file stream", err).
			WithContext("filename", filename)
	}
	return nil
}

func (c *wsChannel) FetchFile(ctx context.Context, clientPath string) (io.ReadCloser, error) {
	request := protocol.Message{Command: protocol.CommandFileRequest, Text: clientPath}
	if err := c.Post(ctx, request); err != nil {
		return nil, err
	}

	typ, r, err := c.conn.Reader(ctx)
	if err != nil {
		return nil, errors.NewTransportError("fetch_file", "client did not serve the requested file", err).
			WithContext("filepath", clientPath)
	}
	if typ != websocket.MessageBinary {
		return nil, errors.NewTransportError("fetch_file",
			fmt.Sprintf("expected a binary file frame, got %v", typ), nil).
			WithContext("filepath", clientPath)
	}

	return io.NopCloser(r), nil
}

func (c *wsChannel) Close() error {
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
