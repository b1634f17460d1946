package wireproto

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/docspp/cluster/pkg/clustererr"
)

// Data-channel framing: the simpler request/response shape used once the
// Name Node has redirected a client straight to the owning Storage Node.
// A read request is one line; a write request carries a content-length
// prefix so the receiver knows exactly how many bytes of sentence content
// follow.

// DataRequest is a parsed data-channel request.
type DataRequest struct {
	Verb        Verb // VerbRead or VerbWrite
	Path        string
	SentenceIdx int
	Content     []byte // populated for VerbWrite only
}

// WriteReadRequest writes "READ <path> <idx>\n".
func WriteReadRequest(w io.Writer, path string, idx int) error {
	_, err := fmt.Fprintf(w, "READ %s %d\n", path, idx)
	return err
}

// WriteWriteRequest writes "WRITE <path> <idx>\n<len>\n<content bytes>".
func WriteWriteRequest(w io.Writer, path string, idx int, content []byte) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "WRITE %s %d\n%d\n", path, idx, len(content)); err != nil {
		return err
	}
	if _, err := bw.Write(content); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadDataRequest parses a data-channel request line and, for WRITE, the
// content-length-prefixed body that follows it.
func ReadDataRequest(r *bufio.Reader) (*DataRequest, error) {
	line, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	fields := strings.Fields(line)
	if len(fields) != 3 {
		return nil, clustererr.NewInvalidCommand("malformed data request: " + strings.TrimSpace(line))
	}

	verb := Verb(strings.ToUpper(fields[0]))
	idx, err := strconv.Atoi(fields[2])
	if err != nil {
		return nil, clustererr.NewInvalidCommand("malformed sentence index: " + fields[2])
	}

	req := &DataRequest{Verb: verb, Path: fields[1], SentenceIdx: idx}

	switch verb {
	case VerbRead:
		return req, nil
	case VerbWrite:
		lengthLine, err := r.ReadString('\n')
		if err != nil {
			return nil, err
		}
		length, err := strconv.Atoi(strings.TrimSpace(lengthLine))
		if err != nil || length < 0 {
			return nil, clustererr.NewInvalidCommand("malformed content length: " + strings.TrimSpace(lengthLine))
		}
		content := make([]byte, length)
		if _, err := io.ReadFull(r, content); err != nil {
			return nil, err
		}
		req.Content = content
		return req, nil
	default:
		return nil, clustererr.NewInvalidCommand("unsupported data verb: " + fields[0])
	}
}

// DataResponse is a parsed data-channel response.
type DataResponse struct {
	OK      bool
	Code    clustererr.Code
	Content []byte
}

// WriteDataSuccess writes "SUCCESS\nSIZE:<n>\n<bytes>".
func WriteDataSuccess(w io.Writer, content []byte) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "SUCCESS\nSIZE:%d\n", len(content)); err != nil {
		return err
	}
	if _, err := bw.Write(content); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteDataError writes "ERROR:<code>\n".
func WriteDataError(w io.Writer, code clustererr.Code) error {
	_, err := fmt.Fprintf(w, "ERROR:%s\n", code)
	return err
}

// ReadDataResponse parses a data-channel response.
func ReadDataResponse(r *bufio.Reader) (*DataResponse, error) {
	statusLine, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	statusLine = strings.TrimSpace(statusLine)

	if strings.HasPrefix(statusLine, "ERROR:") {
		return &DataResponse{OK: false, Code: clustererr.Code(strings.TrimPrefix(statusLine, "ERROR:"))}, nil
	}
	if statusLine != "SUCCESS" {
		return nil, clustererr.NewInvalidCommand("malformed data response status: " + statusLine)
	}

	sizeLine, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	sizeLine = strings.TrimSpace(sizeLine)
	if !strings.HasPrefix(sizeLine, "SIZE:") {
		return nil, clustererr.NewInvalidCommand("malformed data response size line: " + sizeLine)
	}
	size, err := strconv.Atoi(strings.TrimPrefix(sizeLine, "SIZE:"))
	if err != nil || size < 0 {
		return nil, clustererr.NewInvalidCommand("malformed data response size: " + sizeLine)
	}

	content := make([]byte, size)
	if _, err := io.ReadFull(r, content); err != nil {
		return nil, err
	}

	return &DataResponse{OK: true, Code: clustererr.Success, Content: content}, nil
}
