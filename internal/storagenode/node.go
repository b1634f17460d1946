package storagenode

import (
	"bufio"
	"net"
	"strconv"
	"sync"
	"time"

	"github.com/docspp/cluster/pkg/bufpool"
	"github.com/docspp/cluster/pkg/clustererr"
	"github.com/docspp/cluster/pkg/locktable"
	"github.com/docspp/cluster/pkg/sentence"
	"github.com/docspp/cluster/pkg/wireproto"
)

// Node is one Storage Node: a file registry plus the sentence lock
// table that guards mutation of individual sentences (spec.md §4.2 and
// §4.3). ID is reported to the Name Node at registration. dirty tracks
// paths mutated since the last heartbeat, so the Name Node's mirrored
// metadata can be refreshed asynchronously (spec.md §2 step 6).
type Node struct {
	ID       int
	files    *FileRegistry
	locks    *locktable.Table
	dialTime time.Duration

	dirtyMu sync.Mutex
	dirty   map[string]struct{}
}

// NewNode creates a Node backed by registry.
func NewNode(id int, registry *FileRegistry) *Node {
	return &Node{ID: id, files: registry, locks: locktable.New(), dialTime: 5 * time.Second, dirty: make(map[string]struct{})}
}

// Files exposes the file registry for introspection and the accept
// loops built on top of Node.
func (n *Node) Files() *FileRegistry { return n.files }

// ReadWhole streams path's entire current content, taking no lock
// (spec.md §4.2 read).
func (n *Node) ReadWhole(path string) ([]byte, error) {
	return n.files.ReadContent(path)
}

// ReadWholePooled behaves like ReadWhole but draws its buffer from
// pkg/bufpool, for the data-channel whole-file read path. The caller
// must invoke the returned release func once the content has been
// fully written to the connection.
func (n *Node) ReadWholePooled(path string) (content []byte, release func(), err error) {
	return n.files.ReadContentPooled(path)
}

// ReadSentence acquires a shared lock on (path, idx), reads the sentence,
// and releases it before returning (spec.md §4.2 read_sentence).
func (n *Node) ReadSentence(path string, idx int, holder string) ([]byte, error) {
	content, err := n.files.ReadContent(path)
	if err != nil {
		return nil, err
	}

	key := locktable.Key{Path: path, SentenceIdx: idx}
	if !n.locks.AcquireShared(key, holder) {
		return nil, clustererr.NewFileLocked(path, idx)
	}
	defer n.locks.Release(key, holder)

	span, ok := sentence.Read(content, idx)
	if !ok {
		return nil, clustererr.NewFileNotFound(path)
	}
	return span, nil
}

// WriteSentence acquires an exclusive lock on (path, idx), splices in
// content, truncate-rewrites the file, and releases the lock before
// returning (spec.md §4.2 write_sentence / "Write execution"). Both the
// pre-splice read and the spliced output are drawn from pkg/bufpool:
// the read buffer is returned as soon as sentence.ReplaceInto has
// copied out of it, and the splice buffer as soon as it has been
// written to disk.
func (n *Node) WriteSentence(path string, idx int, content []byte, holder string) (*FileEntry, error) {
	key := locktable.Key{Path: path, SentenceIdx: idx}
	if !n.locks.AcquireExclusive(key, holder) {
		return nil, clustererr.NewFileLocked(path, idx)
	}
	defer n.locks.Release(key, holder)

	current, releaseCurrent, err := n.files.ReadContentPooled(path)
	if err != nil {
		return nil, err
	}

	spliceBuf := bufpool.Get(len(current) + len(content))
	spliced, ok := sentence.ReplaceInto(spliceBuf, current, idx, content)
	releaseCurrent()
	if !ok {
		bufpool.Put(spliceBuf)
		return nil, clustererr.NewFileNotFound(path)
	}

	entry, err := n.files.ReplaceContent(path, spliced)
	bufpool.Put(spliceBuf)
	if err == nil {
		n.markDirty(path)
	}
	return entry, err
}

// markDirty records path as mutated since the last DrainDirty call.
func (n *Node) markDirty(path string) {
	n.dirtyMu.Lock()
	defer n.dirtyMu.Unlock()
	n.dirty[path] = struct{}{}
}

// DrainDirty returns every path mutated since the last call and clears
// the set, for the heartbeat client to report to the Name Node
// (spec.md §2 step 6: "the NN is informed asynchronously"). Paths are
// not added back if the report fails to reach the Name Node; the next
// mutation (or a future reconciliation pass) will catch up the mirror.
func (n *Node) DrainDirty() []string {
	n.dirtyMu.Lock()
	defer n.dirtyMu.Unlock()
	if len(n.dirty) == 0 {
		return nil
	}
	out := make([]string, 0, len(n.dirty))
	for path := range n.dirty {
		out = append(out, path)
	}
	n.dirty = make(map[string]struct{})
	return out
}

// Create adds a brand-new empty file (spec.md §4.2 create).
func (n *Node) Create(path string) (*FileEntry, error) {
	return n.files.Create(path)
}

// Delete removes path, rejecting it while any sentence lock on the file
// is held (spec.md §4.2: "delete is rejected with LOCKED if any active
// lock references the file").
func (n *Node) Delete(path string) error {
	if n.locks.HasAnyLock(path) {
		return clustererr.NewFileLocked(path, -1)
	}
	return n.files.Delete(path)
}

// Info returns path's cached metadata fields (spec.md §4.2 info).
func (n *Node) Info(path string) (*FileEntry, error) {
	entry, ok := n.files.Get(path)
	if !ok {
		return nil, clustererr.NewFileNotFound(path)
	}
	return entry, nil
}

// ReleaseAll releases every sentence lock held by holder, for use on
// client disconnect (spec.md §3 invariant 3).
func (n *Node) ReleaseAll(holder string) int {
	return n.locks.ReleaseAll(holder)
}

// Copy streams path's content to destAddr's ss_port, which creates the
// file there and ingests the stream (spec.md §4.2 copy). The dedicated
// ss_port keeps this off the destination's client_port and nn_port
// (SPEC_FULL §C.4).
func (n *Node) Copy(path, destAddr string, destSSPort int) error {
	content, err := n.files.ReadContent(path)
	if err != nil {
		return err
	}

	conn, err := net.DialTimeout("tcp", net.JoinHostPort(destAddr, strconv.Itoa(destSSPort)), n.dialTime)
	if err != nil {
		return clustererr.NewConnectionFailed("dial destination SN: " + err.Error())
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(n.dialTime))
	if err := wireproto.WriteWriteRequest(conn, path, -1, content); err != nil {
		return clustererr.NewConnectionFailed("send copy stream: " + err.Error())
	}

	resp, err := wireproto.ReadDataResponse(bufio.NewReader(conn))
	if err != nil {
		return clustererr.NewConnectionFailed("copy response: " + err.Error())
	}
	if !resp.OK {
		return &clustererr.ClusterError{Code: resp.Code, Message: "destination rejected copy", Path: path}
	}
	return nil
}

// IngestCopy is the destination side of Copy: it creates path (if
// absent) and writes content verbatim.
func (n *Node) IngestCopy(path string, content []byte) error {
	if _, exists := n.files.Get(path); !exists {
		if _, err := n.files.Create(path); err != nil && clustererr.CodeOf(err) != clustererr.FileExists {
			return err
		}
	}
	_, err := n.files.ReplaceContent(path, content)
	return err
}
