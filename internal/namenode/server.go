package namenode

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/docspp/cluster/internal/logger"
	"github.com/docspp/cluster/pkg/clustererr"
	"github.com/docspp/cluster/pkg/metrics"
	"github.com/docspp/cluster/pkg/wireproto"
)

// Server is the Name Node's control-connection listener. One persistent
// connection per client or Storage Node carries every request for that
// peer's lifetime (spec.md §4.1: "all over the control connection").
// Grounded on an accept-loop/graceful-shutdown shape common across the
// retrieval pack's network adapters, simplified to a single listener
// with no connection cap.
type Server struct {
	addr        string
	coordinator *Coordinator
	readTimeout time.Duration
	metrics     metrics.ClusterMetrics

	mu       sync.Mutex
	listener net.Listener

	activeConns sync.WaitGroup
	conns       sync.Map // net.Conn -> struct{}

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// NewServer creates a control-connection server bound to addr.
func NewServer(addr string, coordinator *Coordinator, readTimeout time.Duration) *Server {
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	return &Server{
		addr:        addr,
		coordinator: coordinator,
		readTimeout: readTimeout,
		shutdownCh:  make(chan struct{}),
	}
}

// WithMetrics attaches m so every dispatched request and lock-contention
// response is recorded. m may be nil, which disables recording.
func (s *Server) WithMetrics(m metrics.ClusterMetrics) *Server {
	s.metrics = m
	return s
}

// Serve listens and dispatches connections until ctx is cancelled or Stop
// is called, then drains in-flight connections before returning.
func (s *Server) Serve(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("namenode: listen %s: %w", s.addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	logger.Info("name node control listener started", "addr", s.addr)

	go func() {
		select {
		case <-ctx.Done():
			_ = s.closeListener()
		case <-s.shutdownCh:
		}
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdownCh:
				return nil
			case <-ctx.Done():
				return nil
			default:
				logger.Warn("name node accept error", "error", err)
				continue
			}
		}

		s.conns.Store(conn, struct{}{})
		s.activeConns.Add(1)
		go func() {
			defer s.activeConns.Done()
			defer s.conns.Delete(conn)
			defer conn.Close()
			s.handleConn(ctx, conn)
		}()
	}
}

func (s *Server) closeListener() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Close()
	}
	return nil
}

// Stop initiates graceful shutdown: stop accepting, wait for in-flight
// connections up to ctx's deadline, then force-close stragglers.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	_ = s.closeListener()

	done := make(chan struct{})
	go func() {
		s.activeConns.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		s.conns.Range(func(key, _ any) bool {
			if c, ok := key.(net.Conn); ok {
				c.Close()
			}
			return true
		})
		return ctx.Err()
	}
}

func (s *Server) handleConn(ctx context.Context, conn net.Conn) {
	reader := bufio.NewReader(conn)
	peerAddr := conn.RemoteAddr().String()

	req, err := s.readRequest(conn, reader)
	if err != nil {
		return
	}

	switch req.Verb {
	case wireproto.VerbClientRegister:
		s.serveClient(ctx, conn, reader, peerAddr, req)
	case wireproto.VerbSSRegister:
		s.serveSN(ctx, conn, reader, peerAddr, req)
	default:
		_ = wireproto.WriteError(conn, clustererr.Unauthorized)
	}
}

func (s *Server) readRequest(conn net.Conn, reader *bufio.Reader) (*wireproto.Request, error) {
	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	return wireproto.ReadRequest(reader)
}

func (s *Server) serveClient(ctx context.Context, conn net.Conn, reader *bufio.Reader, peerAddr string, reg *wireproto.Request) {
	username := reg.Get("USERNAME")
	if username == "" {
		_ = wireproto.WriteError(conn, clustererr.InvalidCommand)
		return
	}

	holder, err := s.coordinator.RegisterClient(username, peerAddr)
	if err != nil {
		_ = wireproto.WriteError(conn, clustererr.CodeOf(err))
		return
	}
	defer s.coordinator.DisconnectClient(holder)

	_ = wireproto.WriteSuccess(conn, map[string]string{"HOLDER": holder})

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		req, err := s.readRequest(conn, reader)
		if err != nil {
			return
		}

		start := time.Now()
		resp := s.dispatchClientVerb(req, username)
		s.recordMetrics(string(req.Verb), resp, time.Since(start))
		if err := s.writeResponse(conn, resp); err != nil {
			return
		}
	}
}

// recordMetrics records one completed client request, including lock
// contention, when metrics are enabled.
func (s *Server) recordMetrics(verb string, resp clientResponse, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	code := string(clustererr.Success)
	if resp.err != nil {
		code = string(clustererr.CodeOf(resp.err))
	}
	s.metrics.RecordRequest(verb, code, duration)
	if clustererr.CodeOf(resp.err) == clustererr.FileLocked {
		s.metrics.RecordLockContention(verb)
	}
}

func (s *Server) dispatchClientVerb(req *wireproto.Request, username string) clientResponse {
	if wireproto.ReservedVerbs[req.Verb] {
		return clientResponse{err: clustererr.NewInvalidOperation(string(req.Verb))}
	}

	switch req.Verb {
	case wireproto.VerbRead:
		route, err := s.coordinator.Read(req.Get("PATH"), username)
		return routeResponse(route, err)
	case wireproto.VerbWrite:
		route, err := s.coordinator.Write(req.Get("PATH"), username)
		return routeResponse(route, err)
	case wireproto.VerbCreate:
		route, _, err := s.coordinator.Create(req.Get("PATH"), username)
		return routeResponse(route, err)
	case wireproto.VerbDelete:
		route, err := s.coordinator.Delete(req.Get("PATH"), username)
		return routeResponse(route, err)
	case wireproto.VerbAddAccess:
		canRead := req.Get("CAN_READ") == "1"
		canWrite := req.Get("CAN_WRITE") == "1"
		err := s.coordinator.AddAccess(req.Get("PATH"), username, req.Get("USER"), canRead, canWrite)
		return clientResponse{err: err}
	case wireproto.VerbRemAccess:
		err := s.coordinator.RemoveAccess(req.Get("PATH"), username, req.Get("USER"))
		return clientResponse{err: err}
	case wireproto.VerbInfo:
		meta, err := s.coordinator.Info(req.Get("PATH"))
		if err != nil {
			return clientResponse{err: err}
		}
		return clientResponse{fields: map[string]string{
			"OWNER":          meta.Owner,
			"SIZE":           strconv.FormatInt(meta.Size, 10),
			"SENTENCE_COUNT": strconv.Itoa(meta.SentenceCount),
		}}
	default:
		return clientResponse{err: clustererr.NewInvalidCommand("unknown verb: " + string(req.Verb))}
	}
}

type clientResponse struct {
	fields map[string]string
	err    error
}

func routeResponse(route Route, err error) clientResponse {
	if err != nil {
		return clientResponse{err: err}
	}
	return clientResponse{fields: map[string]string{
		"SS_IP":   route.SNAddress,
		"SS_PORT": strconv.Itoa(route.SNClientPort),
	}}
}

func (s *Server) writeResponse(conn net.Conn, resp clientResponse) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.readTimeout))
	if resp.err != nil {
		return wireproto.WriteError(conn, clustererr.CodeOf(resp.err))
	}
	return wireproto.WriteSuccess(conn, resp.fields)
}

func (s *Server) serveSN(ctx context.Context, conn net.Conn, reader *bufio.Reader, peerAddr string, reg *wireproto.Request) {
	id, err := strconv.Atoi(reg.Get("SN_ID"))
	if err != nil {
		_ = wireproto.WriteError(conn, clustererr.InvalidCommand)
		return
	}

	host, _, _ := net.SplitHostPort(peerAddr)
	clientPort, _ := strconv.Atoi(reg.Get("CLIENT_PORT"))
	nnPort, _ := strconv.Atoi(reg.Get("NN_PORT"))
	ssPort, _ := strconv.Atoi(reg.Get("SS_PORT"))

	files := parseInitialFiles(reg.Get("FILES"))
	if err := s.coordinator.RegisterSN(id, host, clientPort, nnPort, ssPort, files); err != nil {
		_ = wireproto.WriteError(conn, clustererr.CodeOf(err))
		return
	}
	_ = wireproto.WriteSuccess(conn, nil)
	if s.metrics != nil {
		s.metrics.SetSNLive(id, true)
		s.metrics.SetHeartbeatAge(id, 0)
		defer s.metrics.SetSNLive(id, false)
	}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		req, err := s.readRequest(conn, reader)
		if err != nil {
			return
		}

		if req.Verb != wireproto.VerbHeartbeat {
			_ = wireproto.WriteError(conn, clustererr.InvalidCommand)
			continue
		}
		if err := s.coordinator.Heartbeat(id); err != nil {
			_ = wireproto.WriteError(conn, clustererr.CodeOf(err))
			continue
		}
		for _, f := range parseInitialFiles(req.Get("DIRTY")) {
			s.coordinator.ReportMutation(f.Path, f.Size, f.SentenceCount)
		}
		_ = wireproto.WriteSuccess(conn, nil)
		if s.metrics != nil {
			s.metrics.SetSNLive(id, true)
			s.metrics.SetHeartbeatAge(id, 0)
		}
	}
}

// parseInitialFiles decodes a "path:size:sentences,path:size:sentences"
// FILES field. Directories are listed with a trailing "/" path suffix.
func parseInitialFiles(raw string) []InitialFileEntry {
	if raw == "" {
		return nil
	}
	parts := strings.Split(raw, ",")
	out := make([]InitialFileEntry, 0, len(parts))
	for _, p := range parts {
		fields := strings.Split(p, ":")
		if len(fields) != 3 {
			continue
		}
		size, _ := strconv.ParseInt(fields[1], 10, 64)
		sentences, _ := strconv.Atoi(fields[2])
		isDir := strings.HasSuffix(fields[0], "/")
		out = append(out, InitialFileEntry{Path: fields[0], IsDirectory: isDir, Size: size, SentenceCount: sentences})
	}
	return out
}
