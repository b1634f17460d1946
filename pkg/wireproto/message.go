// Package wireproto implements the cluster's line-oriented ASCII control
// protocol shared by the Name Node and every Storage Node: a verb line
// followed by zero or more `KEY:VALUE` field lines, terminated by a blank
// line. Responses begin with SUCCESS or ERROR:<code>.
//
// Framing reuses net/textproto's MIME-header reader, which already
// implements exactly this "headers terminated by a blank line" shape;
// nothing in the verb/field vocabulary below is protocol specific.
package wireproto

import (
	"bufio"
	"fmt"
	"io"
	"net/textproto"
	"strings"

	"github.com/docspp/cluster/pkg/clustererr"
)

// Verb identifies a control-protocol request.
type Verb string

const (
	VerbClientRegister Verb = "CLIENT_REGISTER"
	VerbSSRegister     Verb = "SS_REGISTER"
	VerbRead           Verb = "READ"
	VerbWrite          Verb = "WRITE"
	VerbCreate         Verb = "CREATE"
	VerbDelete         Verb = "DELETE"
	VerbInfo           Verb = "INFO"
	VerbAddAccess      Verb = "ADDACCESS"
	VerbRemAccess      Verb = "REMACCESS"
	VerbCopy           Verb = "COPY"
	VerbHeartbeat      Verb = "HEARTBEAT"

	// Reserved verbs: recognized but not implemented. Handlers must
	// respond INVALID_OPERATION rather than fall through to the
	// unknown-verb INVALID_COMMAND path.
	VerbView   Verb = "VIEW"
	VerbStream Verb = "STREAM"
	VerbExec   Verb = "EXEC"
	VerbUndo   Verb = "UNDO"
	VerbList   Verb = "LIST"
)

// ReservedVerbs are parsed successfully but always answered with
// INVALID_OPERATION.
var ReservedVerbs = map[Verb]bool{
	VerbView:   true,
	VerbStream: true,
	VerbExec:   true,
	VerbUndo:   true,
	VerbList:   true,
}

// Request is a parsed control-protocol request: a verb plus its fields.
type Request struct {
	Verb   Verb
	Fields map[string]string
}

// Get returns a field value, or "" if absent.
func (r *Request) Get(key string) string {
	return r.Fields[key]
}

// NewRequest builds a Request from a verb and an even number of
// key/value strings.
func NewRequest(verb Verb, kv ...string) *Request {
	fields := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[kv[i]] = kv[i+1]
	}
	return &Request{Verb: verb, Fields: fields}
}

// ReadRequest parses one request from r: a verb line, then KEY:VALUE
// lines up to a blank line.
func ReadRequest(r *bufio.Reader) (*Request, error) {
	verbLine, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	verb := strings.TrimSpace(verbLine)
	if verb == "" {
		return nil, clustererr.NewInvalidCommand("empty request line")
	}

	tp := textproto.NewReader(r)
	header, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, clustererr.NewInvalidCommand("malformed request fields: " + err.Error())
	}

	fields := make(map[string]string, len(header))
	for k, v := range header {
		if len(v) > 0 {
			fields[strings.ToUpper(k)] = v[0]
		}
	}

	return &Request{Verb: Verb(strings.ToUpper(verb)), Fields: fields}, nil
}

// WriteTo serializes the request as VERB\nKEY:VALUE\n...\n\n.
func (r *Request) WriteTo(w io.Writer) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "%s\n", r.Verb); err != nil {
		return err
	}
	for k, v := range r.Fields {
		if _, err := fmt.Fprintf(bw, "%s:%s\n", k, v); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// Response is a parsed control-protocol response.
type Response struct {
	OK     bool
	Code   clustererr.Code
	Fields map[string]string
}

// Get returns a field value, or "" if absent.
func (r *Response) Get(key string) string {
	return r.Fields[key]
}

// WriteSuccess writes a SUCCESS response with the given fields.
func WriteSuccess(w io.Writer, fields map[string]string) error {
	bw := bufio.NewWriter(w)
	if _, err := bw.WriteString("SUCCESS\n"); err != nil {
		return err
	}
	for k, v := range fields {
		if _, err := fmt.Fprintf(bw, "%s:%s\n", k, v); err != nil {
			return err
		}
	}
	if _, err := bw.WriteString("\n"); err != nil {
		return err
	}
	return bw.Flush()
}

// WriteError writes an ERROR:<code> response.
func WriteError(w io.Writer, code clustererr.Code) error {
	bw := bufio.NewWriter(w)
	if _, err := fmt.Fprintf(bw, "ERROR:%s\n\n", code); err != nil {
		return err
	}
	return bw.Flush()
}

// ReadResponse parses a response: SUCCESS or ERROR:<code>, then optional
// KEY:VALUE fields up to a blank line.
func ReadResponse(r *bufio.Reader) (*Response, error) {
	statusLine, err := r.ReadString('\n')
	if err != nil {
		return nil, err
	}
	statusLine = strings.TrimSpace(statusLine)

	resp := &Response{}
	switch {
	case statusLine == "SUCCESS":
		resp.OK = true
		resp.Code = clustererr.Success
	case strings.HasPrefix(statusLine, "ERROR:"):
		resp.OK = false
		resp.Code = clustererr.Code(strings.TrimPrefix(statusLine, "ERROR:"))
	default:
		return nil, clustererr.NewInvalidCommand("malformed response status: " + statusLine)
	}

	tp := textproto.NewReader(r)
	header, err := tp.ReadMIMEHeader()
	if err != nil && err != io.EOF {
		return nil, clustererr.NewInvalidCommand("malformed response fields: " + err.Error())
	}

	resp.Fields = make(map[string]string, len(header))
	for k, v := range header {
		if len(v) > 0 {
			resp.Fields[strings.ToUpper(k)] = v[0]
		}
	}

	return resp, nil
}
