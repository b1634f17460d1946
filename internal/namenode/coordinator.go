// Package namenode implements the Name Node: the cluster's single
// coordinator. It holds the SN registry, the client registry, and the
// file table/ACL, and answers the control-protocol verbs defined in
// spec.md §4.1 by composing the three.
package namenode

import (
	"context"
	"time"

	"github.com/docspp/cluster/internal/logger"
	"github.com/docspp/cluster/pkg/clustererr"
	"github.com/docspp/cluster/pkg/metrics"
	"github.com/docspp/cluster/pkg/registry"
	"github.com/google/uuid"
)

// Config carries the Name Node's tunables (spec.md §6 Configuration).
type Config struct {
	MaxSN      int
	MaxClients int
	MaxFiles   int
	TBeat      time.Duration
	TDead      time.Duration
}

// Coordinator is the Name Node's core: registries plus the router
// algorithm (lookup → permission → liveness → respond, spec.md §4.1).
// Every exported method is safe for concurrent use. Each registry and the
// file table take and release their own lock per call, so no Coordinator
// method holds two of these locks at once and the lock ordering
// SN → client → files (spec.md §5) is never exercised.
type Coordinator struct {
	cfg      Config
	sns      *registry.SNRegistry
	clients  *registry.ClientRegistry
	files    *FileTable
	director Director
	metrics  metrics.ClusterMetrics
}

// New creates a Coordinator from cfg, forwarding create/delete
// directives over real TCP connections.
func New(cfg Config) *Coordinator {
	return NewWithDirector(cfg, NewNetDirector(5*time.Second))
}

// NewWithDirector creates a Coordinator using a caller-supplied Director,
// for tests that stub out the SN-facing network calls.
func NewWithDirector(cfg Config, director Director) *Coordinator {
	return &Coordinator{
		cfg:      cfg,
		sns:      registry.NewSNRegistry(cfg.MaxSN),
		clients:  registry.NewClientRegistry(cfg.MaxClients),
		files:    NewFileTable(cfg.MaxFiles),
		director: director,
	}
}

// WithMetrics attaches m so the heartbeat sweep records SN liveness. m may
// be nil, which disables recording.
func (c *Coordinator) WithMetrics(m metrics.ClusterMetrics) *Coordinator {
	c.metrics = m
	return c
}

// SNRegistry exposes the SN registry for introspection (admin API, tests).
func (c *Coordinator) SNRegistry() *registry.SNRegistry { return c.sns }

// ClientRegistry exposes the client registry for introspection.
func (c *Coordinator) ClientRegistry() *registry.ClientRegistry { return c.clients }

// FileTable exposes the file table for introspection.
func (c *Coordinator) FileTable() *FileTable { return c.files }

// RegisterClient admits a session for username, returning its holder
// token (spec.md §4.1 register_client).
func (c *Coordinator) RegisterClient(username, peerAddr string) (string, error) {
	holder := uuid.NewString()
	if _, err := c.clients.Register(holder, username, peerAddr); err != nil {
		return "", clustererr.NewCapacity("client registry full")
	}
	return holder, nil
}

// DisconnectClient removes a client's session. Release of that client's
// sentence locks is the owning SN's responsibility (spec.md §3 invariant
// 3); the NN only forgets the session.
func (c *Coordinator) DisconnectClient(holder string) {
	c.clients.Remove(holder)
}

// InitialFileEntry describes one file an SN reports at registration time.
type InitialFileEntry struct {
	Path          string
	IsDirectory   bool
	Size          int64
	SentenceCount int
}

// RegisterSN admits or re-registers Storage Node id and ingests its
// initial file list (spec.md §4.1 register_sn).
func (c *Coordinator) RegisterSN(id int, address string, clientPort, nnPort, ssPort int, files []InitialFileEntry) error {
	if _, err := c.sns.Register(id, address, clientPort, nnPort, ssPort); err != nil {
		return clustererr.NewCapacity("storage node registry full")
	}

	for _, f := range files {
		if err := c.files.IngestFromSN(f.Path, id, f.IsDirectory, f.Size, f.SentenceCount); err != nil {
			logger.Warn("file path conflict during SN registration",
				"path", f.Path, "sn_id", id, "error", err)
		}
	}
	c.sns.SetFileCount(id, len(files))
	return nil
}

// Heartbeat refreshes SN id's liveness.
func (c *Coordinator) Heartbeat(id int) error {
	if !c.sns.Heartbeat(id) {
		return clustererr.NewSNUnavailable("")
	}
	return nil
}

// Route is the result of a successful read/write lookup: where the
// client should open its data connection.
type Route struct {
	SNAddress    string
	SNClientPort int
}

// Read resolves path for a read by username: existence, ACL, liveness,
// in that order (spec.md §4.1 Router algorithm).
func (c *Coordinator) Read(path, username string) (Route, error) {
	return c.route(path, username, false)
}

// Write resolves path for a write by username.
func (c *Coordinator) Write(path, username string) (Route, error) {
	return c.route(path, username, true)
}

func (c *Coordinator) route(path, username string, forWrite bool) (Route, error) {
	meta, ok := c.files.Get(path)
	if !ok {
		return Route{}, clustererr.NewFileNotFound(path)
	}

	allowed := meta.CanRead(username)
	if forWrite {
		allowed = meta.CanWrite(username)
	}
	if !allowed {
		return Route{}, clustererr.NewPermissionDenied(path)
	}

	sn, ok := c.sns.Get(meta.SNID)
	if !ok || !sn.Alive {
		return Route{}, clustererr.NewSNUnavailable(path)
	}

	return Route{SNAddress: sn.Address, SNClientPort: sn.ClientPort}, nil
}

// Create selects a live SN round-robin, inserts file metadata owned by
// username, forwards the create directive to that SN over its
// NN-control port, and rolls back the metadata insert if the SN rejects
// or cannot be reached (spec.md §4.1: "On SN failure during creation,
// roll back the metadata insert").
func (c *Coordinator) Create(path, username string) (Route, int, error) {
	if _, exists := c.files.Get(path); exists {
		return Route{}, 0, clustererr.NewFileExists(path)
	}

	sn, ok := c.sns.NextForCreate()
	if !ok {
		return Route{}, 0, clustererr.NewSNUnavailable(path)
	}

	if _, err := c.files.Insert(path, username, sn.ID); err != nil {
		return Route{}, 0, err
	}

	if err := c.director.Create(sn.Address, sn.NNPort, path); err != nil {
		c.files.Rollback(path)
		return Route{}, 0, err
	}

	return Route{SNAddress: sn.Address, SNClientPort: sn.ClientPort}, sn.ID, nil
}

// RollbackCreate undoes the metadata insert performed by Create. Exposed
// for callers that forward the create directive themselves (e.g. a
// synchronous control-connection handler that wants its own retry logic).
func (c *Coordinator) RollbackCreate(path string) {
	c.files.Rollback(path)
}

// Delete removes path's metadata if username is the owner and the
// owning SN is alive, forwarding the delete directive to that SN.
// Per spec.md §4.1: "If the SN is dead, retain the metadata and return
// SN_UNAVAILABLE; do not partially commit" — so the metadata is removed
// only after the SN confirms.
func (c *Coordinator) Delete(path, username string) (Route, error) {
	meta, ok := c.files.Get(path)
	if !ok {
		return Route{}, clustererr.NewFileNotFound(path)
	}
	if meta.Owner != username {
		return Route{}, clustererr.NewPermissionDenied(path)
	}

	sn, ok := c.sns.Get(meta.SNID)
	if !ok || !sn.Alive {
		return Route{}, clustererr.NewSNUnavailable(path)
	}

	if err := c.director.Delete(sn.Address, sn.NNPort, path); err != nil {
		return Route{}, clustererr.NewSNUnavailable(path)
	}

	if err := c.files.Delete(path, username); err != nil {
		return Route{}, err
	}
	return Route{SNAddress: sn.Address, SNClientPort: sn.ClientPort}, nil
}

// AddAccess grants user read/write capability on path. Owner-only.
func (c *Coordinator) AddAccess(path, requester, user string, canRead, canWrite bool) error {
	return c.files.AddAccess(path, requester, user, canRead, canWrite)
}

// RemoveAccess revokes user's access to path. Owner-only.
func (c *Coordinator) RemoveAccess(path, requester, user string) error {
	return c.files.RemoveAccess(path, requester, user)
}

// Info returns path's mirrored metadata for the INFO verb.
func (c *Coordinator) Info(path string) (*FileMeta, error) {
	meta, ok := c.files.Get(path)
	if !ok {
		return nil, clustererr.NewFileNotFound(path)
	}
	return meta, nil
}

// ReportMutation records the size/sentence-count an SN reported after a
// successful write, used by the asynchronous metadata-sync path
// (spec.md §2 step 6).
func (c *Coordinator) ReportMutation(path string, size int64, sentenceCount int) {
	c.files.Touch(path, size, sentenceCount)
}

// RunHeartbeatMonitor sweeps the SN registry for dead nodes every
// cfg.TBeat until ctx is cancelled (spec.md §5 Heartbeat).
func (c *Coordinator) RunHeartbeatMonitor(ctx context.Context) {
	interval := c.cfg.TBeat
	if interval <= 0 {
		interval = 30 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range c.sns.SweepDead(c.cfg.TDead) {
				logger.Warn("storage node marked dead", "sn_id", id, "t_dead", c.cfg.TDead)
				if c.metrics != nil {
					c.metrics.SetSNLive(id, false)
				}
			}
		}
	}
}
