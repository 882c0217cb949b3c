package server

import (
	"context"
	"sync"

	"github.com/repokit/repokit/internal/client"
	"github.com/repokit/repokit/internal/config"
	"github.com/repokit/repokit/internal/errors"
	"github.com/repokit/repokit/internal/logging"
	"github.com/repokit/repokit/internal/manifest"
	"github.com/repokit/repokit/internal/protocol"
)

// DialFunc opens a callback channel to a client endpoint.
type DialFunc func(ctx context.Context, endpoint string) (client.Channel, error)

// Service owns the inbound message queue and dispatches its messages.
//
// Producers are the transport handlers, one per inbound request; the single
// consumer goroutine started by Run pops messages in FIFO order. Commands
// that touch the manifest store (CheckIn, FileRequest, Extraction,
// PackageList, CancelCheckin) execute synchronously on the consumer
// goroutine, serializing every store access without a lock. LogIn and
// Connect only call back into the client, so each runs on its own goroutine
// and cannot stall the dispatch loop.
type Service struct {
	queue    chan protocol.Message
	store    *manifest.Manager
	logger   logging.Logger
	callback config.CallbackConfig
	dial     DialFunc
	async    sync.WaitGroup
}

// NewService builds the dispatcher over the given store.
func NewService(store *manifest.Manager, logger logging.Logger, callback config.CallbackConfig, queueSize int) *Service {
	s := &Service{
		queue:    make(chan protocol.Message, queueSize),
		store:    store,
		logger:   logger.WithComponent("dispatcher"),
		callback: callback,
	}
	s.dial = func(ctx context.Context, endpoint string) (client.Channel, error) {
		return client.Dial(ctx, endpoint, &client.Options{
			Attempts:        uint64(callback.DialAttempts),
			InitialInterval: callback.DialBackoff,
		})
	}
	return s
}

// Post enqueues a message for the dispatcher. It blocks while the queue is
// full, which is the blocking-queue contract producers rely on.
func (s *Service) Post(msg protocol.Message) {
	s.queue <- msg
}

// Run consumes the queue until the context is cancelled. A failure while
// handling one message never terminates the loop.
func (s *Service) Run(ctx context.Context) {
	s.logger.Info(ctx, "dispatcher started", "queue_size", cap(s.queue))
	for {
		select {
		case <-ctx.Done():
			s.async.Wait()
			s.logger.Info(ctx, "dispatcher stopped")
			return
		case msg := <-s.queue:
			s.dispatch(ctx, msg)
		}
	}
}

func (s *Service) dispatch(ctx context.Context, msg protocol.Message) {
	s.logger.Debug(ctx, "message dequeued", "command", string(msg.Command), "user", msg.User)

	switch msg.Command {
	case protocol.CommandLogIn:
		s.spawn(ctx, msg, s.handleLogin)
	case protocol.CommandConnect:
		s.spawn(ctx, msg, s.handleConnect)
	case protocol.CommandLogout:
		s.spawn(ctx, msg, s.handleLogout)
	case protocol.CommandCheckIn, protocol.CommandFileRequest, protocol.CommandExtraction,
		protocol.CommandPackageList, protocol.CommandCancelCheckin:
		s.safely(ctx, msg, s.handleSerial)
	default:
		s.logger.Warn(ctx, nil, "message with unroutable command dropped",
			"command", string(msg.Command))
	}
}

// spawn runs a handler on its own goroutine, fire-and-forget.
func (s *Service) spawn(ctx context.Context, msg protocol.Message, handler func(context.Context, protocol.Message)) {
	s.async.Add(1)
	go func() {
		defer s.async.Done()
		s.safely(ctx, msg, handler)
	}()
}

// safely shields the dispatch loop from a panicking handler.
func (s *Service) safely(ctx context.Context, msg protocol.Message, handler func(context.Context, protocol.Message)) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error(ctx, nil, "handler panicked",
				"command", string(msg.Command), "panic", r)
		}
	}()
	handler(ctx, msg)
}

// handleSerial executes one store-touching command on the dispatcher
// goroutine. The callback channel is opened for this operation only and
// closed before returning; the operation timeout bounds a stuck client so
// it cannot stall the queue forever.
func (s *Service) handleSerial(ctx context.Context, msg protocol.Message) {
	opCtx, cancel := context.WithTimeout(ctx, s.callback.OperationTimeout)
	defer cancel()

	ch, err := s.dial(opCtx, msg.Endpoint)
	if err != nil {
		// no channel, so no way to notify the client; log and move on
		s.logger.Error(opCtx, err, "callback channel unavailable",
			"command", string(msg.Command), "endpoint", msg.Endpoint)
		return
	}
	defer ch.Close()

	proc := NewProc(s.store, ch, s.logger.WithComponent("proc"))

	switch msg.Command {
	case protocol.CommandCheckIn:
		err = proc.Checkin(opCtx, msg)
	case protocol.CommandFileRequest:
		err = proc.FileRequest(opCtx, msg.Text)
	case protocol.CommandExtraction:
		err = proc.Extract(opCtx, msg.Text)
	case protocol.CommandPackageList:
		err = proc.PublishList(opCtx)
	case protocol.CommandCancelCheckin:
		err = proc.Cancel(opCtx, msg.Text, msg.User)
	}

	if err != nil {
		s.report(opCtx, ch, msg, err)
	}
}

// report surfaces a failed operation to the requesting client as a status
// message instead of dropping it.
func (s *Service) report(ctx context.Context, ch client.Channel, msg protocol.Message, err error) {
	re := errors.AsRepoError(err)
	s.logger.Error(ctx, err, "operation failed",
		"command", string(msg.Command), "user", msg.User, "kind", string(re.Kind))

	if postErr := ch.Post(ctx, protocol.StatusMessage(re.UserMessage())); postErr != nil {
		s.logger.Error(ctx, postErr, "could not deliver failure status",
			"command", string(msg.Command), "endpoint", msg.Endpoint)
	}
}

// handleLogin acknowledges a login over the client's callback channel.
// Authentication is a simple username match: a request naming no user is
// rejected.
func (s *Service) handleLogin(ctx context.Context, msg protocol.Message) {
	opCtx, cancel := context.WithTimeout(ctx, s.callback.OperationTimeout)
	defer cancel()

	ch, err := s.dial(opCtx, msg.Endpoint)
	if err != nil {
		s.logger.Error(opCtx, err, "callback channel unavailable for login",
			"endpoint", msg.Endpoint)
		return
	}
	defer ch.Close()

	if msg.User == "" {
		if err := ch.Post(opCtx, protocol.StatusMessage("login rejected: no user supplied")); err != nil {
			s.logger.Error(opCtx, err, "could not deliver login rejection")
		}
		return
	}

	reply := protocol.Message{Command: protocol.CommandLogIn, User: msg.User, Text: "login successful"}
	if err := ch.Post(opCtx, reply); err != nil {
		s.logger.Error(opCtx, err, "could not deliver login acknowledgment", "user", msg.User)
		return
	}
	s.logger.Info(opCtx, "user logged in", "user", msg.User)
}

// handleLogout acknowledges a logout. No session state exists server-side,
// so there is nothing to tear down beyond telling the client goodbye.
func (s *Service) handleLogout(ctx context.Context, msg protocol.Message) {
	opCtx, cancel := context.WithTimeout(ctx, s.callback.OperationTimeout)
	defer cancel()

	s.logger.Info(opCtx, "user logged out", "user", msg.User)

	ch, err := s.dial(opCtx, msg.Endpoint)
	if err != nil {
		s.logger.Error(opCtx, err, "callback channel unavailable for logout",
			"endpoint", msg.Endpoint)
		return
	}
	defer ch.Close()

	if err := ch.Post(opCtx, protocol.StatusMessage("logout acknowledged")); err != nil {
		s.logger.Error(opCtx, err, "could not deliver logout acknowledgment", "user", msg.User)
	}
}

// handleConnect echoes the connect command so the client knows the server
// can reach its callback endpoint.
func (s *Service) handleConnect(ctx context.Context, msg protocol.Message) {
	opCtx, cancel := context.WithTimeout(ctx, s.callback.OperationTimeout)
	defer cancel()

	ch, err := s.dial(opCtx, msg.Endpoint)
	if err != nil {
		s.logger.Error(opCtx, err, "callback channel unavailable for connect",
			"endpoint", msg.Endpoint)
		return
	}
	defer ch.Close()

	if err := ch.Post(opCtx, protocol.Message{Command: protocol.CommandConnect}); err != nil {
		s.logger.Error(opCtx, err, "could not deliver connect acknowledgment",
			"endpoint", msg.Endpoint)
	}
}
