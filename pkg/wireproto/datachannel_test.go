package wireproto

import (
	"bufio"
	"bytes"
	"testing"

	"github.com/docspp/cluster/pkg/clustererr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteReadRequestAndParse(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteReadRequest(&buf, "notes.txt", 4))

	req, err := ReadDataRequest(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, VerbRead, req.Verb)
	assert.Equal(t, "notes.txt", req.Path)
	assert.Equal(t, 4, req.SentenceIdx)
	assert.Nil(t, req.Content)
}

func TestWriteWriteRequestAndParse(t *testing.T) {
	content := []byte("Replaced sentence.")
	var buf bytes.Buffer
	require.NoError(t, WriteWriteRequest(&buf, "notes.txt", 1, content))

	req, err := ReadDataRequest(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.Equal(t, VerbWrite, req.Verb)
	assert.Equal(t, "notes.txt", req.Path)
	assert.Equal(t, 1, req.SentenceIdx)
	assert.Equal(t, content, req.Content)
}

func TestReadDataRequestMalformedLine(t *testing.T) {
	_, err := ReadDataRequest(bufio.NewReader(bytes.NewBufferString("READ onlyonefield\n")))
	assert.Error(t, err)
}

func TestReadDataRequestBadIndex(t *testing.T) {
	_, err := ReadDataRequest(bufio.NewReader(bytes.NewBufferString("READ notes.txt abc\n")))
	assert.Error(t, err)
}

func TestDataSuccessRoundTrip(t *testing.T) {
	content := []byte("Hello world.")
	var buf bytes.Buffer
	require.NoError(t, WriteDataSuccess(&buf, content))

	resp, err := ReadDataResponse(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.True(t, resp.OK)
	assert.Equal(t, content, resp.Content)
}

func TestDataErrorRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteDataError(&buf, clustererr.FileNotFound))

	resp, err := ReadDataResponse(bufio.NewReader(&buf))
	require.NoError(t, err)
	assert.False(t, resp.OK)
	assert.Equal(t, clustererr.FileNotFound, resp.Code)
}

func TestReadDataResponseTruncatedBodyErrors(t *testing.T) {
	raw := "SUCCESS\nSIZE:10\nshort\n"
	_, err := ReadDataResponse(bufio.NewReader(bytes.NewBufferString(raw)))
	assert.Error(t, err)
}
