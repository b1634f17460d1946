package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/docspp/cluster/pkg/clustererr"
)

// decodeJSONBody decodes a JSON request body into the provided pointer.
// Returns true if successful, false if decoding fails (error response is written automatically).
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		BadRequest(w, "Invalid request body")
		return false
	}
	return true
}

// MapClusterError maps a cluster domain error to an HTTP status code and
// message, for admin API endpoints that surface Name Node state (files,
// clients, Storage Nodes) backed by the same error taxonomy the wire
// protocol uses.
func MapClusterError(err error) (int, string) {
	ce, ok := err.(*clustererr.ClusterError)
	if !ok {
		return http.StatusInternalServerError, "Internal server error"
	}

	switch ce.Code {
	case clustererr.FileNotFound:
		return http.StatusNotFound, "File not found"
	case clustererr.FileExists:
		return http.StatusConflict, "File already exists"
	case clustererr.FileLocked:
		return http.StatusConflict, "File is locked"
	case clustererr.Unauthorized:
		return http.StatusUnauthorized, ce.Message
	case clustererr.PermissionDenied:
		return http.StatusForbidden, "Permission denied"
	case clustererr.SNUnavailable:
		return http.StatusServiceUnavailable, "Storage node unavailable"
	case clustererr.Capacity:
		return http.StatusInsufficientStorage, "Storage node at capacity"
	case clustererr.InvalidCommand, clustererr.InvalidOperation:
		return http.StatusBadRequest, ce.Message
	case clustererr.ConnectionFailed:
		return http.StatusBadGateway, ce.Message
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}

// HandleClusterError maps a cluster error to an HTTP response and writes it.
func HandleClusterError(w http.ResponseWriter, err error) {
	status, msg := MapClusterError(err)
	WriteProblem(w, status, http.StatusText(status), msg)
}
