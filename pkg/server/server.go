// Package server exposes the allocation engine over a Unix domain socket
// with line-delimited JSON requests and responses. It is the transport
// collaborator: ticket intake dispatches through it, the presence feed
// pushes availability updates, and the configuration UI drives rule
// administration. The engine core stays transport-free.
package server

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net"
	"os"
	"sync"

	"github.com/google/uuid"

	"triage/pkg/engine"
	"triage/pkg/registry"
)

// PresenceRecorder receives presence changes for the audit log. Optional.
type PresenceRecorder interface {
	RecordPresence(ctx context.Context, executorID, change string) error
}

// Config holds Server configuration.
type Config struct {
	SocketPath string // UDS socket path
}

// Server accepts engine operations over a UDS socket.
type Server struct {
	cfg      Config
	engine   *engine.Dispatcher
	presence PresenceRecorder // may be nil

	mu       sync.Mutex
	listener net.Listener
}

// New creates a Server. It does not start listening; call Run.
func New(cfg Config, eng *engine.Dispatcher, presence PresenceRecorder) *Server {
	return &Server{cfg: cfg, engine: eng, presence: presence}
}

// Run listens on the socket and serves until ctx is cancelled. A stale
// socket file from an unclean shutdown is removed before binding.
func (s *Server) Run(ctx context.Context) error {
	if err := removeStaleSocket(s.cfg.SocketPath); err != nil {
		return err
	}

	ln, err := net.Listen("unix", s.cfg.SocketPath) //nolint:noctx // UDS bind is instant
	if err != nil {
		return fmt.Errorf("listen unix %s: %w", s.cfg.SocketPath, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go s.acceptLoop(ctx, ln)

	<-ctx.Done()
	_ = ln.Close()
	_ = os.Remove(s.cfg.SocketPath)
	return nil
}

// removeStaleSocket deletes a leftover socket file nothing is listening on.
// A live listener makes the dial succeed, which means another instance owns
// the socket.
func removeStaleSocket(path string) error {
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	conn, err := net.Dial("unix", path)
	if err == nil {
		_ = conn.Close()
		return fmt.Errorf("socket %s already in use", path)
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("remove stale socket %s: %w", path, err)
	}
	return nil
}

// acceptLoop accepts client connections until the listener closes.
func (s *Server) acceptLoop(ctx context.Context, ln net.Listener) {
	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			// Listener closed or transient accept failure.
			if errors.Is(err, net.ErrClosed) {
				return
			}
			continue
		}
		go s.handleConn(ctx, conn)
	}
}

// handleConn serves one client: each input line is a Request, each output
// line the matching Response. Malformed lines get an error response rather
// than killing the connection.
func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	defer func() { _ = conn.Close() }()

	scanner := bufio.NewScanner(conn)
	encoder := json.NewEncoder(conn)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		var req Request
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			if err := encoder.Encode(Response{Error: "malformed request: " + err.Error()}); err != nil {
				return
			}
			continue
		}
		resp := s.handle(ctx, req)
		if err := encoder.Encode(resp); err != nil {
			log.Printf("server: write response: %v", err)
			return
		}
	}
}

// handle routes one request to the engine.
func (s *Server) handle(ctx context.Context, req Request) Response {
	switch req.Op {
	case OpDispatch:
		return s.handleDispatch(ctx, req)
	case OpRelease:
		if err := s.engine.Release(ctx, req.AssignmentID); err != nil {
			return errResponse(err)
		}
		return Response{OK: true}
	case OpSetAvailability:
		return s.handleSetAvailability(ctx, req)
	case OpSetMaxLoad:
		return s.handleSetMaxLoad(ctx, req)
	case OpRulesList:
		return Response{OK: true, Rules: s.engine.Rules().Rules()}
	case OpRuleActivate:
		if err := s.engine.Rules().SetActive(req.RuleID, true); err != nil {
			return errResponse(err)
		}
		return Response{OK: true}
	case OpRuleDeactivate:
		if err := s.engine.Rules().SetActive(req.RuleID, false); err != nil {
			return errResponse(err)
		}
		return Response{OK: true}
	case OpRuleReorder:
		if err := s.engine.Rules().Reorder(req.RuleID, req.Order); err != nil {
			return errResponse(err)
		}
		return Response{OK: true}
	case OpRuleSetPool:
		if err := s.engine.Rules().SetPool(req.RuleID, req.Pool); err != nil {
			return errResponse(err)
		}
		return Response{OK: true}
	case OpStatus:
		return Response{
			OK:          true,
			Executors:   s.engine.Registry().Snapshot(),
			Rules:       s.engine.Rules().Rules(),
			Assignments: s.engine.ActiveAssignments(),
		}
	default:
		return Response{Error: fmt.Sprintf("unknown op %q", req.Op)}
	}
}

func (s *Server) handleDispatch(ctx context.Context, req Request) Response {
	if req.Ticket == nil {
		return Response{Error: "dispatch requires a ticket"}
	}
	tk := *req.Ticket
	if tk.ID == "" {
		tk.ID = uuid.New().String()
	}
	res := s.engine.Dispatch(ctx, tk)
	return Response{OK: true, Result: &res}
}

func (s *Server) handleSetAvailability(ctx context.Context, req Request) Response {
	state, ok := registry.ParseAvailability(req.Availability)
	if !ok {
		return Response{Error: fmt.Sprintf("unknown availability %q", req.Availability)}
	}
	if err := s.engine.Registry().SetAvailability(req.ExecutorID, state); err != nil {
		return errResponse(err)
	}
	if s.presence != nil {
		_ = s.presence.RecordPresence(ctx, req.ExecutorID, "availability="+string(state))
	}
	return Response{OK: true}
}

func (s *Server) handleSetMaxLoad(ctx context.Context, req Request) Response {
	if err := s.engine.Registry().SetMaxLoad(req.ExecutorID, req.MaxLoad); err != nil {
		return errResponse(err)
	}
	if s.presence != nil {
		_ = s.presence.RecordPresence(ctx, req.ExecutorID, fmt.Sprintf("max_load=%d", req.MaxLoad))
	}
	return Response{OK: true}
}

func errResponse(err error) Response {
	return Response{Error: err.Error()}
}
