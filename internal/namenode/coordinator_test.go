package namenode

import (
	"context"
	"testing"
	"time"

	"github.com/docspp/cluster/pkg/clustererr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	return Config{MaxSN: 0, MaxClients: 0, MaxFiles: 0, TBeat: 10 * time.Millisecond, TDead: 30 * time.Millisecond}
}

// fakeDirector always succeeds, so unit tests can exercise Coordinator's
// registry/file-table logic without a real Storage Node listening.
type fakeDirector struct {
	failCreate bool
	failDelete bool
}

func (f *fakeDirector) Create(address string, nnPort int, path string) error {
	if f.failCreate {
		return assertionError{"create rejected"}
	}
	return nil
}

func (f *fakeDirector) Delete(address string, nnPort int, path string) error {
	if f.failDelete {
		return assertionError{"delete rejected"}
	}
	return nil
}

type assertionError struct{ msg string }

func (e assertionError) Error() string { return e.msg }

func newTestCoordinator() *Coordinator {
	return NewWithDirector(testConfig(), &fakeDirector{})
}

func TestCoordinatorRegisterClient(t *testing.T) {
	c := newTestCoordinator()
	holder, err := c.RegisterClient("alice", "127.0.0.1:5000")
	require.NoError(t, err)
	assert.NotEmpty(t, holder)
	assert.Equal(t, 1, c.ClientRegistry().Count())

	c.DisconnectClient(holder)
	assert.Equal(t, 0, c.ClientRegistry().Count())
}

func TestCoordinatorRegisterSNIngestsFiles(t *testing.T) {
	c := newTestCoordinator()
	err := c.RegisterSN(1, "10.0.0.1", 9000, 8000, 9100, []InitialFileEntry{
		{Path: "a.txt", Size: 10, SentenceCount: 2},
		{Path: "b.txt", Size: 20, SentenceCount: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, c.FileTable().Count())
}

func TestCoordinatorCreateThenReadWrite(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.RegisterSN(1, "10.0.0.1", 9000, 8000, 9100, nil))

	route, snID, err := c.Create("notes.txt", "alice")
	require.NoError(t, err)
	assert.Equal(t, 1, snID)
	assert.Equal(t, "10.0.0.1", route.SNAddress)

	_, err = c.Read("notes.txt", "alice")
	require.NoError(t, err)

	_, err = c.Write("notes.txt", "alice")
	require.NoError(t, err)

	_, err = c.Read("notes.txt", "bob")
	assert.ErrorIs(t, err, clustererr.NewPermissionDenied("notes.txt"))

	require.NoError(t, c.AddAccess("notes.txt", "alice", "bob", true, false))
	_, err = c.Read("notes.txt", "bob")
	require.NoError(t, err)

	_, err = c.Write("notes.txt", "bob")
	assert.ErrorIs(t, err, clustererr.NewPermissionDenied("notes.txt"))
}

func TestCoordinatorCreateDuplicateFails(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.RegisterSN(1, "a", 1, 1, 1, nil))

	_, _, err := c.Create("notes.txt", "alice")
	require.NoError(t, err)

	_, _, err = c.Create("notes.txt", "bob")
	assert.ErrorIs(t, err, clustererr.NewFileExists("notes.txt"))
}

func TestCoordinatorCreateNoLiveSN(t *testing.T) {
	c := newTestCoordinator()
	_, _, err := c.Create("notes.txt", "alice")
	assert.ErrorIs(t, err, clustererr.NewSNUnavailable("notes.txt"))
}

func TestCoordinatorRollbackCreate(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.RegisterSN(1, "a", 1, 1, 1, nil))
	_, _, err := c.Create("notes.txt", "alice")
	require.NoError(t, err)

	c.RollbackCreate("notes.txt")
	_, err = c.Read("notes.txt", "alice")
	assert.ErrorIs(t, err, clustererr.NewFileNotFound("notes.txt"))
}

func TestCoordinatorReadWriteSNDownReturnsUnavailable(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.RegisterSN(2, "a", 1, 1, 1, nil))
	_, _, err := c.Create("f.txt", "alice")
	require.NoError(t, err)

	c.sns.SweepDead(0) // forces the registered SN dead by zero threshold against any positive elapsed time
	time.Sleep(time.Millisecond)
	c.sns.SweepDead(0)

	_, err = c.Read("f.txt", "alice")
	assert.ErrorIs(t, err, clustererr.NewSNUnavailable("f.txt"))
}

func TestCoordinatorDeleteOwnerOnly(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.RegisterSN(1, "a", 1, 1, 1, nil))
	_, _, err := c.Create("f.txt", "alice")
	require.NoError(t, err)

	_, err = c.Delete("f.txt", "bob")
	assert.ErrorIs(t, err, clustererr.NewPermissionDenied("f.txt"))

	_, err = c.Delete("f.txt", "alice")
	require.NoError(t, err)

	_, err = c.Read("f.txt", "alice")
	assert.ErrorIs(t, err, clustererr.NewFileNotFound("f.txt"))
}

func TestCoordinatorHeartbeatUnknownSN(t *testing.T) {
	c := newTestCoordinator()
	err := c.Heartbeat(99)
	assert.ErrorIs(t, err, clustererr.NewSNUnavailable(""))
}

func TestCoordinatorHeartbeatMonitorMarksDead(t *testing.T) {
	c := New(Config{TBeat: 5 * time.Millisecond, TDead: 10 * time.Millisecond})
	require.NoError(t, c.RegisterSN(1, "a", 1, 1, 1, nil))

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Millisecond)
	defer cancel()
	c.RunHeartbeatMonitor(ctx)

	info, ok := c.SNRegistry().Get(1)
	require.True(t, ok)
	assert.False(t, info.Alive)
}

func TestCoordinatorInfoReturnsOwnedCopy(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.RegisterSN(1, "a", 1, 1, 1, nil))
	_, _, err := c.Create("f.txt", "alice")
	require.NoError(t, err)

	meta, err := c.Info("f.txt")
	require.NoError(t, err)
	assert.Equal(t, "alice", meta.Owner)
}

func TestCoordinatorReportMutationUpdatesFileTable(t *testing.T) {
	c := newTestCoordinator()
	require.NoError(t, c.RegisterSN(1, "a", 1, 1, 1, nil))
	_, _, err := c.Create("f.txt", "alice")
	require.NoError(t, err)

	c.ReportMutation("f.txt", 100, 4)
	meta, _ := c.Info("f.txt")
	assert.EqualValues(t, 100, meta.Size)
	assert.Equal(t, 4, meta.SentenceCount)
}
