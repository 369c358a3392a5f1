// Package relay provides a local endpoint for the stream backend. It accepts
// protocol requests on a unix or tcp socket, checks the optional user tokens
// and hands every received message to a delivery callback.
package relay

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"

	"github.com/mfulz/linegeist/internal/config"
	"github.com/mfulz/linegeist/internal/logging"
	"github.com/mfulz/linegeist/protocol"
)

// DeliverFunc receives every accepted message.
type DeliverFunc func(ctx context.Context, msg *protocol.Message) error

// HandlerFunc answers one request type.
type HandlerFunc func(ctx context.Context, req *protocol.Request) *protocol.Response

// Server answers protocol requests until its context is cancelled.
type Server struct {
	name     string
	users    map[string]string
	deliver  DeliverFunc
	handlers map[string]HandlerFunc
	wg       sync.WaitGroup
}

// NewServer builds a relay with the message.send and system.ping handlers.
func NewServer(cfg config.RelayConfig, deliver DeliverFunc) *Server {
	s := &Server{
		name:    "linegeist-relay",
		users:   cfg.Users,
		deliver: deliver,
	}
	s.handlers = map[string]HandlerFunc{
		protocol.TypeMessageSend: s.handleMessageSend,
		protocol.TypePing:        s.handlePing,
	}
	return s
}

// Listen binds the configured socket. A stale unix socket file is removed
// first.
func Listen(cfg config.RelayConfig) (net.Listener, error) {
	if cfg.Network == "unix" {
		if _, err := os.Stat(cfg.Address); err == nil {
			_ = os.Remove(cfg.Address)
		}
	}
	ln, err := net.Listen(cfg.Network, cfg.Address)
	if err != nil {
		return nil, fmt.Errorf("failed to bind %s socket: %w", cfg.Network, err)
	}
	logging.Log.Infof("[relay] Listening on %s://%s", cfg.Network, ln.Addr())
	return ln, nil
}

// Serve accepts connections on ln until ctx is done, then closes ln and waits
// for open connections to finish.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	stop := context.AfterFunc(ctx, func() { _ = ln.Close() })
	defer stop()

	defer s.wg.Wait()
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			logging.Log.Warnf("[relay] Accept error: %v", err)
			continue
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			s.handleConn(ctx, conn)
		}()
	}
}

// handleConn answers requests on one connection until EOF. Malformed lines
// get an error response and the connection stays open.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer conn.Close()
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stop()

	reader := bufio.NewReader(conn)
	for {
		req, err := protocol.ReadRequest(reader)
		if err != nil {
			if errors.Is(err, protocol.ErrMalformed) {
				logging.Log.Debugf("[relay] %v", err)
				if werr := protocol.WriteResponse(conn, errorResponse("malformed request")); werr != nil {
					return
				}
				continue
			}
			if !errors.Is(err, io.EOF) && ctx.Err() == nil {
				logging.Log.Warnf("[relay] Failed to read: %v", err)
			}
			return
		}

		if err := protocol.WriteResponse(conn, s.Handle(ctx, req)); err != nil {
			logging.Log.Warnf("[relay] Failed to write response: %v", err)
			return
		}
	}
}

// Handle routes a single request to its handler.
func (s *Server) Handle(ctx context.Context, req *protocol.Request) *protocol.Response {
	handler, ok := s.handlers[req.Type]
	if !ok {
		return errorResponse("unknown request type")
	}
	if !s.authorized(req.Auth) {
		logging.Log.Warnf("[relay] rejected %s from %s", req.Type, extractUser(req))
		return errorResponse("not allowed")
	}
	return handler(ctx, req)
}

func (s *Server) handleMessageSend(ctx context.Context, req *protocol.Request) *protocol.Response {
	var msg protocol.Message
	if err := protocol.DecodeData(req.Data, &msg); err != nil {
		return errorResponse(err.Error())
	}
	if msg.ID == "" {
		return errorResponse("message id is required")
	}
	if err := s.deliver(ctx, &msg); err != nil {
		return errorResponse(err.Error())
	}
	return &protocol.Response{Status: protocol.StatusOK, Data: map[string]string{"id": msg.ID}}
}

func (s *Server) handlePing(_ context.Context, _ *protocol.Request) *protocol.Response {
	return &protocol.Response{Status: protocol.StatusOK, Data: protocol.PingResponse{Server: s.name}}
}

func errorResponse(msg string) *protocol.Response {
	return &protocol.Response{Status: protocol.StatusError, Error: msg}
}
