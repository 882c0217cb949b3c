package client

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/repokit/repokit/internal/errors"
	"github.com/repokit/repokit/internal/protocol"
)

// startPeer runs a websocket endpoint playing the client collaborator role.
func startPeer(t *testing.T, handler func(ctx context.Context, conn *websocket.Conn)) string {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		handler(r.Context(), conn)
	}))
	t.Cleanup(srv.Close)

	return "ws" + strings.TrimPrefix(srv.URL, "http")
}

func testOptions() *Options {
	return &Options{Attempts: 2, InitialInterval: time.Millisecond}
}

func TestDialAndPost(t *testing.T) {
	received := make(chan protocol.Message, 1)
	endpoint := startPeer(t, func(ctx context.Context, conn *websocket.Conn) {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		msg, err := protocol.DecodeMessage(data)
		if err != nil {
			return
		}
		received <- msg
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := Dial(ctx, endpoint, testOptions())
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.Post(ctx, protocol.StatusMessage("package checked in as open")))

	select {
	case msg := <-received:
		assert.Equal(t, protocol.CommandStatusmsg, msg.Command)
		assert.Equal(t, "package checked in as open", msg.Text)
	case <-time.After(5 * time.Second):
		t.Fatal("peer never received the message")
	}
}

func TestDialExhaustionIsConnectError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// nothing listens here
	_, err := Dial(ctx, "ws://127.0.0.1:1", testOptions())
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConnect))
}

func TestDialZeroAttemptsStillTerminates(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Attempts zero is treated as one attempt, not unbounded retrying
	_, err := Dial(ctx, "ws://127.0.0.1:1", &Options{Attempts: 0, InitialInterval: time.Millisecond})
	require.Error(t, err)
	assert.True(t, errors.IsKind(err, errors.KindConnect))
}

func TestSendFile(t *testing.T) {
	type transfer struct {
		header protocol.Message
		body   []byte
	}
	received := make(chan transfer, 1)

	endpoint := startPeer(t, func(ctx context.Context, conn *websocket.Conn) {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		header, err := protocol.DecodeMessage(data)
		if err != nil {
			return
		}
		typ, body, err := conn.Read(ctx)
		if err != nil || typ != websocket.MessageBinary {
			return
		}
		received <- transfer{header: header, body: body}
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := Dial(ctx, endpoint, testOptions())
	require.NoError(t, err)
	defer ch.Close()

	require.NoError(t, ch.SendFile(ctx, "widget.cs", strings.NewReader("class Widget {}")))

	select {
	case got := <-received:
		assert.Equal(t, protocol.CommandFileTransfer, got.header.Command)
		assert.Equal(t, "widget.cs", got.header.Text)
		assert.Equal(t, "class Widget {}", string(got.body))
	case <-time.After(5 * time.Second):
		t.Fatal("peer never received the file")
	}
}

func TestFetchFile(t *testing.T) {
	endpoint := startPeer(t, func(ctx context.Context, conn *websocket.Conn) {
		_, data, err := conn.Read(ctx)
		if err != nil {
			return
		}
		request, err := protocol.DecodeMessage(data)
		if err != nil || request.Command != protocol.CommandFileRequest {
			return
		}
		// serve the requested file back as one binary message
		conn.Write(ctx, websocket.MessageBinary, []byte("content of "+request.Text))
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := Dial(ctx, endpoint, testOptions())
	require.NoError(t, err)
	defer ch.Close()

	r, err := ch.FetchFile(ctx, "/home/alice/widget.cs")
	require.NoError(t, err)
	defer r.Close()

	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "content of /home/alice/widget.cs", string(data))
}
