package wireproto

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/docspp/cluster/pkg/clustererr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestRoundTrip(t *testing.T) {
	req := NewRequest(VerbRead, "PATH", "notes.txt", "SENTENCE_IDX", "2")

	var buf bytes.Buffer
	require.NoError(t, req.WriteTo(&buf))

	got, err := ReadRequest(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, VerbRead, got.Verb)
	assert.Equal(t, "notes.txt", got.Get("PATH"))
	assert.Equal(t, "2", got.Get("SENTENCE_IDX"))
}

func TestReadRequestUnknownVerbStillParses(t *testing.T) {
	raw := "BOGUS\nFOO:bar\n\n"
	req, err := ReadRequest(bufio.NewReader(bytes.NewBufferString(raw)))
	require.NoError(t, err)
	assert.Equal(t, Verb("BOGUS"), req.Verb)
	assert.Equal(t, "bar", req.Get("FOO"))
}

func TestReadRequestEmptyLineFails(t *testing.T) {
	_, err := ReadRequest(bufio.NewReader(bytes.NewBufferString("\n")))
	assert.Error(t, err)
}

func TestReservedVerbsRecognized(t *testing.T) {
	assert.True(t, ReservedVerbs[VerbView])
	assert.False(t, ReservedVerbs[VerbRead])
}

func TestWriteSuccessAndReadResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteSuccess(&buf, map[string]string{"SN_ID": "3", "ADDR": "10.0.0.5:9000"}))

	resp, err := ReadResponse(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, clustererr.Success, resp.Code)
	assert.Equal(t, "3", resp.Get("SN_ID"))
	assert.Equal(t, "10.0.0.5:9000", resp.Get("ADDR"))
}

func TestWriteErrorAndReadResponse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteError(&buf, clustererr.FileLocked))

	resp, err := ReadResponse(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, clustererr.FileLocked, resp.Code)
}

func TestReadResponseMalformedStatus(t *testing.T) {
	_, err := ReadResponse(bufio.NewReader(bytes.NewBufferString("NOPE\n\n")))
	assert.Error(t, err)
}
