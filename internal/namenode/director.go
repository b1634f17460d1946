package namenode

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/docspp/cluster/pkg/clustererr"
	"github.com/docspp/cluster/pkg/wireproto"
)

// Director forwards create/delete directives from the Name Node to the
// Storage Node that owns a path, over that SN's NN-control port (spec.md
// §4.1: "forward a create(path) directive to the chosen SN and await
// success", "instruct the SN to delete"). The NN never relays file
// content through this channel, only control verbs.
type Director interface {
	Create(address string, nnPort int, path string) error
	Delete(address string, nnPort int, path string) error
}

// netDirector is the production Director: one short-lived TCP connection
// per directive.
type netDirector struct {
	dialTimeout time.Duration
}

// NewNetDirector creates a Director that dials the SN's NN-control port
// directly.
func NewNetDirector(dialTimeout time.Duration) Director {
	if dialTimeout <= 0 {
		dialTimeout = 5 * time.Second
	}
	return &netDirector{dialTimeout: dialTimeout}
}

func (d *netDirector) Create(address string, nnPort int, path string) error {
	return d.send(address, nnPort, wireproto.NewRequest(wireproto.VerbCreate, "PATH", path))
}

func (d *netDirector) Delete(address string, nnPort int, path string) error {
	return d.send(address, nnPort, wireproto.NewRequest(wireproto.VerbDelete, "PATH", path))
}

func (d *netDirector) send(address string, nnPort int, req *wireproto.Request) error {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(address, strconv.Itoa(nnPort)), d.dialTimeout)
	if err != nil {
		return clustererr.NewSNUnavailable(req.Get("PATH"))
	}
	defer conn.Close()

	_ = conn.SetDeadline(time.Now().Add(d.dialTimeout))
	if err := req.WriteTo(conn); err != nil {
		return clustererr.NewConnectionFailed(fmt.Sprintf("writing directive: %v", err))
	}

	resp, err := wireproto.ReadResponse(bufio.NewReader(conn))
	if err != nil {
		return clustererr.NewConnectionFailed(fmt.Sprintf("reading directive response: %v", err))
	}
	if !resp.OK {
		return &clustererr.ClusterError{Code: resp.Code, Message: "storage node rejected directive", Path: req.Get("PATH")}
	}
	return nil
}
