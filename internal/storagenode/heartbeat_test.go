package storagenode

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/docspp/cluster/pkg/wireproto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeNameNode accepts one connection, records the registration request,
// then answers every subsequent request with SUCCESS until closed.
func fakeNameNode(t *testing.T) (addr string, registrations chan *wireproto.Request, heartbeats chan *wireproto.Request) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	registrations = make(chan *wireproto.Request, 4)
	heartbeats = make(chan *wireproto.Request, 16)

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go func() {
				defer conn.Close()
				reader := bufio.NewReader(conn)
				req, err := wireproto.ReadRequest(reader)
				if err != nil {
					return
				}
				registrations <- req
				_ = wireproto.WriteSuccess(conn, nil)

				for {
					req, err := wireproto.ReadRequest(reader)
					if err != nil {
						return
					}
					heartbeats <- req
					_ = wireproto.WriteSuccess(conn, nil)
				}
			}()
		}
	}()

	t.Cleanup(func() { ln.Close() })
	return ln.Addr().String(), registrations, heartbeats
}

func TestClientRegistersAndSendsHeartbeats(t *testing.T) {
	nnAddr, registrations, heartbeats := fakeNameNode(t)

	node := NewNode(3, NewFileRegistry(t.TempDir(), 0))
	_, err := node.Create("a.txt")
	require.NoError(t, err)

	info := RegistrationInfo{ID: 3, ClientPort: 9001, NNPort: 8001, SSPort: 9101}
	client := NewClient(nnAddr, info, node, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()
	client.Run(ctx)

	select {
	case req := <-registrations:
		assert.Equal(t, wireproto.VerbSSRegister, req.Verb)
		assert.Equal(t, strconv.Itoa(3), req.Get("SN_ID"))
		assert.Contains(t, req.Get("FILES"), "a.txt:0:0")
	default:
		t.Fatal("expected a registration request")
	}

	assert.NotEmpty(t, heartbeats)
	for req := range drain(heartbeats) {
		assert.Equal(t, wireproto.VerbHeartbeat, req.Verb)
	}
}

func TestClientHeartbeatCarriesDirtyField(t *testing.T) {
	nnAddr, _, heartbeats := fakeNameNode(t)

	node := NewNode(3, NewFileRegistry(t.TempDir(), 0))
	_, err := node.Create("a.txt")
	require.NoError(t, err)
	_, err = node.WriteSentence("a.txt", 0, []byte("Hello."), "alice")
	require.NoError(t, err)

	info := RegistrationInfo{ID: 3, ClientPort: 9001, NNPort: 8001, SSPort: 9101}
	client := NewClient(nnAddr, info, node, 20*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	client.Run(ctx)

	req := <-heartbeats
	assert.Contains(t, req.Get("DIRTY"), "a.txt:6:1")

	// The dirty set was drained by the first heartbeat; a later one with
	// no intervening write carries nothing.
	select {
	case req := <-heartbeats:
		assert.Empty(t, req.Get("DIRTY"))
	default:
	}
}

func drain(ch chan *wireproto.Request) chan *wireproto.Request {
	out := make(chan *wireproto.Request, len(ch))
	for {
		select {
		case req := <-ch:
			out <- req
		default:
			close(out)
			return out
		}
	}
}

func TestEncodeFilesFormatsDirectoriesWithTrailingSlash(t *testing.T) {
	entries := []*FileEntry{
		{Path: "notes.txt", Size: 12, SentenceCount: 2},
		{Path: "docs", IsDirectory: true},
	}
	encoded := encodeFiles(entries)
	assert.Contains(t, encoded, "notes.txt:12:2")
	assert.Contains(t, encoded, "docs/:0:0")
}
