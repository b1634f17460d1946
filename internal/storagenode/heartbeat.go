package storagenode

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/docspp/cluster/internal/logger"
	"github.com/docspp/cluster/pkg/wireproto"
)

// RegistrationInfo is what a Storage Node reports about itself when it
// first joins the cluster (spec.md §4.1 register_sn).
type RegistrationInfo struct {
	ID         int
	ClientPort int
	NNPort     int
	SSPort     int
}

// Client is the outbound connection a Storage Node keeps open to the
// Name Node: one SS_REGISTER handshake followed by a HEARTBEAT every
// beatInterval (spec.md §4.2: "emits a heartbeat to the NN every
// T_beat"). Grounded on original_source's register_with_name_server and
// a reconnect-on-failure client pattern common in the retrieval pack.
type Client struct {
	nnAddr       string
	info         RegistrationInfo
	node         *Node
	beatInterval time.Duration
	dialTimeout  time.Duration
}

// NewClient creates a heartbeat Client for node, dialing the Name Node
// at nnAddr.
func NewClient(nnAddr string, info RegistrationInfo, node *Node, beatInterval time.Duration) *Client {
	if beatInterval <= 0 {
		beatInterval = 5 * time.Second
	}
	return &Client{nnAddr: nnAddr, info: info, node: node, beatInterval: beatInterval, dialTimeout: 5 * time.Second}
}

// Run registers with the Name Node and then sends heartbeats until ctx
// is cancelled, reconnecting (with a fresh registration) whenever the
// connection drops.
func (c *Client) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if err := c.registerAndBeat(ctx); err != nil {
			logger.Warn("storage node lost connection to name node, retrying", "sn_id", c.info.ID, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(c.beatInterval):
		}
	}
}

func (c *Client) registerAndBeat(ctx context.Context) error {
	conn, err := net.DialTimeout("tcp", c.nnAddr, c.dialTimeout)
	if err != nil {
		return fmt.Errorf("dial name node: %w", err)
	}
	defer conn.Close()

	req := wireproto.NewRequest(wireproto.VerbSSRegister,
		"SN_ID", strconv.Itoa(c.info.ID),
		"CLIENT_PORT", strconv.Itoa(c.info.ClientPort),
		"NN_PORT", strconv.Itoa(c.info.NNPort),
		"SS_PORT", strconv.Itoa(c.info.SSPort),
		"FILES", encodeFiles(c.node.Files().List()),
	)
	_ = conn.SetDeadline(time.Now().Add(c.dialTimeout))
	if err := req.WriteTo(conn); err != nil {
		return fmt.Errorf("send registration: %w", err)
	}

	reader := bufio.NewReader(conn)
	resp, err := wireproto.ReadResponse(reader)
	if err != nil {
		return fmt.Errorf("read registration response: %w", err)
	}
	if !resp.OK {
		return fmt.Errorf("name node rejected registration: %s", resp.Code)
	}
	logger.Info("storage node registered with name node",
		"sn_id", c.info.ID, "files", c.node.Files().Count(),
		"next_heartbeat", humanize.Time(time.Now().Add(c.beatInterval)))

	ticker := time.NewTicker(c.beatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			fields := c.dirtyFields()
			hb := wireproto.NewRequest(wireproto.VerbHeartbeat, fields...)
			_ = conn.SetDeadline(time.Now().Add(c.dialTimeout))
			if err := hb.WriteTo(conn); err != nil {
				return fmt.Errorf("send heartbeat: %w", err)
			}
			resp, err := wireproto.ReadResponse(reader)
			if err != nil {
				return fmt.Errorf("read heartbeat response: %w", err)
			}
			if !resp.OK {
				return fmt.Errorf("name node rejected heartbeat: %s", resp.Code)
			}
		}
	}
}

// dirtyFields drains the node's pending mutations and, if any exist,
// returns a "DIRTY" key/value pair encoding them in the same
// "path:size:sentences,..." shape as the registration FILES field, for
// the Name Node to mirror into its file table (spec.md §2 step 6).
// Paths deleted since being marked dirty are silently dropped; INFO on
// a deleted path already answers FILE_NOT_FOUND regardless of what the
// mirror holds.
func (c *Client) dirtyFields() []string {
	paths := c.node.DrainDirty()
	if len(paths) == 0 {
		return nil
	}

	entries := make([]*FileEntry, 0, len(paths))
	for _, p := range paths {
		if e, ok := c.node.Files().Get(p); ok {
			entries = append(entries, e)
		}
	}
	if len(entries) == 0 {
		return nil
	}
	return []string{"DIRTY", encodeFiles(entries)}
}

// encodeFiles renders a file listing as the "path:size:sentences,..."
// FILES field parsed by namenode.parseInitialFiles. Directories are
// suffixed with "/".
func encodeFiles(entries []*FileEntry) string {
	parts := make([]string, 0, len(entries))
	for _, e := range entries {
		path := e.Path
		if e.IsDirectory {
			path += "/"
		}
		parts = append(parts, fmt.Sprintf("%s:%d:%d", path, e.Size, e.SentenceCount))
	}
	return strings.Join(parts, ",")
}
