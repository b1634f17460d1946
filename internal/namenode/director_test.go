package namenode

import (
	"bufio"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/docspp/cluster/pkg/clustererr"
	"github.com/docspp/cluster/pkg/wireproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeSN answers exactly one directive connection with a canned response,
// standing in for a Storage Node's NN-control listener.
func fakeSN(t *testing.T, respond func(req *wireproto.Request) error) (string, int) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		req, err := wireproto.ReadRequest(bufio.NewReader(conn))
		if err != nil {
			return
		}
		if err := respond(req); err != nil {
			_ = wireproto.WriteError(conn, clustererr.CodeOf(err))
			return
		}
		_ = wireproto.WriteSuccess(conn, nil)
	}()

	host, portStr, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	port, err := strconv.Atoi(portStr)
	require.NoError(t, err)

	t.Cleanup(func() { ln.Close() })
	return host, port
}

func TestNetDirectorCreateSuccess(t *testing.T) {
	host, port := fakeSN(t, func(req *wireproto.Request) error {
		assert.Equal(t, wireproto.VerbCreate, req.Verb)
		assert.Equal(t, "notes.txt", req.Get("PATH"))
		return nil
	})

	d := NewNetDirector(time.Second)
	assert.NoError(t, d.Create(host, port, "notes.txt"))
}

func TestNetDirectorCreateRejected(t *testing.T) {
	host, port := fakeSN(t, func(req *wireproto.Request) error {
		return clustererr.NewCapacity("notes.txt")
	})

	d := NewNetDirector(time.Second)
	err := d.Create(host, port, "notes.txt")
	assert.ErrorIs(t, err, clustererr.NewCapacity("notes.txt"))
}

func TestNetDirectorUnreachableReturnsUnavailable(t *testing.T) {
	d := NewNetDirector(100 * time.Millisecond)
	err := d.Create("127.0.0.1", 1, "notes.txt")
	assert.ErrorIs(t, err, clustererr.NewSNUnavailable("notes.txt"))
}
