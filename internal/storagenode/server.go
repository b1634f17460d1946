package storagenode

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/docspp/cluster/internal/logger"
	"github.com/docspp/cluster/pkg/clustererr"
	"github.com/docspp/cluster/pkg/metrics"
	"github.com/docspp/cluster/pkg/wireproto"
	"github.com/google/uuid"
)

// Server runs a Storage Node's three listeners: the data channel that
// clients are redirected to for READ/WRITE, the NN-control channel that
// the Name Node dials to deliver CREATE/DELETE/COPY directives, and the
// ss_port that peer Storage Nodes dial to stream a copy's bytes in,
// kept off the client_port so a large copy never head-of-line blocks
// client traffic (SPEC_FULL §C.4 "a dedicated port... distinct from
// client_port"). Grounded on
// namenode.Server's accept-loop/graceful-shutdown shape.
type Server struct {
	dataAddr    string
	controlAddr string
	ssAddr      string
	node        *Node
	readTimeout time.Duration
	metrics     metrics.ClusterMetrics

	mu          sync.Mutex
	dataLn      net.Listener
	controlLn   net.Listener
	ssLn        net.Listener
	activeConns sync.WaitGroup
	conns       sync.Map // net.Conn -> struct{}

	shutdownOnce sync.Once
	shutdownCh   chan struct{}
}

// NewServer creates a Server for node, listening for client data-channel
// traffic on dataAddr, NN directives on controlAddr, and SN-to-SN copy
// streams on ssAddr.
func NewServer(dataAddr, controlAddr, ssAddr string, node *Node, readTimeout time.Duration) *Server {
	if readTimeout <= 0 {
		readTimeout = 30 * time.Second
	}
	return &Server{
		dataAddr:    dataAddr,
		controlAddr: controlAddr,
		ssAddr:      ssAddr,
		node:        node,
		readTimeout: readTimeout,
		shutdownCh:  make(chan struct{}),
	}
}

// WithMetrics attaches m so every data and control request is recorded.
// m may be nil, which disables recording.
func (s *Server) WithMetrics(m metrics.ClusterMetrics) *Server {
	s.metrics = m
	return s
}

// Serve listens on all three addresses and dispatches connections until
// ctx is cancelled or Stop is called, then drains in-flight connections.
func (s *Server) Serve(ctx context.Context) error {
	dataLn, err := net.Listen("tcp", s.dataAddr)
	if err != nil {
		return fmt.Errorf("storagenode: listen data %s: %w", s.dataAddr, err)
	}
	controlLn, err := net.Listen("tcp", s.controlAddr)
	if err != nil {
		_ = dataLn.Close()
		return fmt.Errorf("storagenode: listen control %s: %w", s.controlAddr, err)
	}
	ssLn, err := net.Listen("tcp", s.ssAddr)
	if err != nil {
		_ = dataLn.Close()
		_ = controlLn.Close()
		return fmt.Errorf("storagenode: listen ss %s: %w", s.ssAddr, err)
	}

	s.mu.Lock()
	s.dataLn = dataLn
	s.controlLn = controlLn
	s.ssLn = ssLn
	s.mu.Unlock()

	logger.Info("storage node listeners started", "sn_id", s.node.ID,
		"data_addr", s.dataAddr, "control_addr", s.controlAddr, "ss_addr", s.ssAddr)

	go func() {
		select {
		case <-ctx.Done():
			_ = s.closeListeners()
		case <-s.shutdownCh:
		}
	}()

	errCh := make(chan error, 3)
	go func() { errCh <- s.acceptLoop(ctx, dataLn, s.handleDataConn) }()
	go func() { errCh <- s.acceptLoop(ctx, controlLn, s.handleControlConn) }()
	go func() { errCh <- s.acceptLoop(ctx, ssLn, s.handleSSConn) }()

	for i := 0; i < 3; i++ {
		if err := <-errCh; err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) acceptLoop(ctx context.Context, ln net.Listener, handle func(context.Context, net.Conn)) error {
	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-s.shutdownCh:
				return nil
			case <-ctx.Done():
				return nil
			default:
				logger.Warn("storage node accept error", "error", err)
				continue
			}
		}

		s.conns.Store(conn, struct{}{})
		s.activeConns.Add(1)
		go func() {
			defer s.activeConns.Done()
			defer s.conns.Delete(conn)
			defer conn.Close()
			handle(ctx, conn)
		}()
	}
}

func (s *Server) closeListeners() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dataLn != nil {
		_ = s.dataLn.Close()
	}
	if s.controlLn != nil {
		_ = s.controlLn.Close()
	}
	if s.ssLn != nil {
		_ = s.ssLn.Close()
	}
	return nil
}

// Stop initiates graceful shutdown: stop accepting, wait for in-flight
// connections up to ctx's deadline, then force-close stragglers.
func (s *Server) Stop(ctx context.Context) error {
	s.shutdownOnce.Do(func() { close(s.shutdownCh) })
	_ = s.closeListeners()

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

// handleDataConn serves READ/WRITE requests on one client data-channel
// connection. Each connection is its own lock holder, so every sentence
// lock it acquired is released once the client disconnects (spec.md §3
// invariant 3).
func (s *Server) handleDataConn(ctx context.Context, conn net.Conn) {
	holder := uuid.NewString()
	defer s.node.ReleaseAll(holder)

	reader := bufio.NewReader(conn)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
		req, err := wireproto.ReadDataRequest(reader)
		if err != nil {
			return
		}

		_ = conn.SetWriteDeadline(time.Now().Add(s.readTimeout))
		start := time.Now()
		var verbErr error
		switch req.Verb {
		case wireproto.VerbRead:
			verbErr = s.handleRead(conn, req, holder)
		case wireproto.VerbWrite:
			verbErr = s.handleWrite(conn, req, holder)
		default:
			verbErr = clustererr.NewInvalidCommand("unknown verb: " + string(req.Verb))
			_ = wireproto.WriteDataError(conn, clustererr.InvalidCommand)
		}
		s.recordMetrics(string(req.Verb), verbErr, time.Since(start))
	}
}

// recordMetrics records one completed data or control request, including
// lock contention, when metrics are enabled.
func (s *Server) recordMetrics(verb string, err error, duration time.Duration) {
	if s.metrics == nil {
		return
	}
	code := string(clustererr.Success)
	if err != nil {
		code = string(clustererr.CodeOf(err))
	}
	s.metrics.RecordRequest(verb, code, duration)
	if clustererr.CodeOf(err) == clustererr.FileLocked {
		s.metrics.RecordLockContention(verb)
	}
}

func (s *Server) handleRead(conn net.Conn, req *wireproto.DataRequest, holder string) error {
	if req.SentenceIdx < 0 {
		return s.handleWholeRead(conn, req)
	}

	content, err := s.node.ReadSentence(req.Path, req.SentenceIdx, holder)
	if err != nil {
		_ = wireproto.WriteDataError(conn, clustererr.CodeOf(err))
		return err
	}
	_ = wireproto.WriteDataSuccess(conn, content)
	return nil
}

// handleWholeRead answers a whole-file read with a pooled buffer instead
// of a fresh allocation per request, releasing it back to pkg/bufpool
// only once the response has been fully written to conn.
func (s *Server) handleWholeRead(conn net.Conn, req *wireproto.DataRequest) error {
	content, release, err := s.node.ReadWholePooled(req.Path)
	if err != nil {
		_ = wireproto.WriteDataError(conn, clustererr.CodeOf(err))
		return err
	}
	defer release()

	return wireproto.WriteDataSuccess(conn, content)
}

func (s *Server) handleWrite(conn net.Conn, req *wireproto.DataRequest, holder string) error {
	entry, err := s.node.WriteSentence(req.Path, req.SentenceIdx, req.Content, holder)
	if err != nil {
		_ = wireproto.WriteDataError(conn, clustererr.CodeOf(err))
		return err
	}
	_ = wireproto.WriteDataSuccess(conn, []byte(strconv.FormatInt(entry.Size, 10)))
	return nil
}

// handleSSConn ingests one inter-SN copy stream: a peer Storage Node
// connects, sends the file's full content, and this SN creates (or
// overwrites) the local file from it (spec.md §4.2 copy: "the
// destination SN, which creates the file and ingests the stream").
func (s *Server) handleSSConn(ctx context.Context, conn net.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	req, err := wireproto.ReadDataRequest(bufio.NewReader(conn))
	if err != nil || req.Verb != wireproto.VerbWrite {
		_ = wireproto.WriteDataError(conn, clustererr.InvalidCommand)
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.readTimeout))
	if err := s.node.IngestCopy(req.Path, req.Content); err != nil {
		_ = wireproto.WriteDataError(conn, clustererr.CodeOf(err))
		return
	}
	_ = wireproto.WriteDataSuccess(conn, nil)
}

// handleControlConn serves one NN-issued directive: CREATE, DELETE, or
// COPY (spec.md §4.1: "forward a create(path) directive to the chosen
// SN and await success"; §4.2 copy).
func (s *Server) handleControlConn(ctx context.Context, conn net.Conn) {
	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	req, err := wireproto.ReadRequest(bufio.NewReader(conn))
	if err != nil {
		return
	}

	_ = conn.SetWriteDeadline(time.Now().Add(s.readTimeout))
	start := time.Now()
	var verbErr error
	switch req.Verb {
	case wireproto.VerbCreate:
		_, verbErr = s.node.Create(req.Get("PATH"))
		if verbErr != nil {
			_ = wireproto.WriteError(conn, clustererr.CodeOf(verbErr))
			break
		}
		_ = wireproto.WriteSuccess(conn, nil)
	case wireproto.VerbDelete:
		verbErr = s.node.Delete(req.Get("PATH"))
		if verbErr != nil {
			_ = wireproto.WriteError(conn, clustererr.CodeOf(verbErr))
			break
		}
		_ = wireproto.WriteSuccess(conn, nil)
	case wireproto.VerbCopy:
		destPort, _ := strconv.Atoi(req.Get("DEST_SS_PORT"))
		verbErr = s.node.Copy(req.Get("PATH"), req.Get("DEST_IP"), destPort)
		if verbErr != nil {
			_ = wireproto.WriteError(conn, clustererr.CodeOf(verbErr))
			break
		}
		_ = wireproto.WriteSuccess(conn, nil)
	default:
		verbErr = clustererr.NewInvalidOperation(string(req.Verb))
		_ = wireproto.WriteError(conn, clustererr.CodeOf(verbErr))
	}
	s.recordMetrics(string(req.Verb), verbErr, time.Since(start))
}
