package common

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	pkgerrors "kgraph/pkg/errors"
)

// MaxBodyBytes bounds request bodies
const MaxBodyBytes = 1 << 20

// MutationResponse is returned by every write endpoint. Warning carries a
// non-fatal failure, such as a search index that could not be updated.
type MutationResponse struct {
	Success bool   `json:"success"`
	ID      *int64 `json:"id,omitempty"`
	Warning string `json:"warning,omitempty"`
}

// RespondJSON sends a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// Mutation builds the response for a write that succeeded, possibly with a
// non-fatal error attached
func Mutation(id *int64, nonFatal error) MutationResponse {
	resp := MutationResponse{Success: true, ID: id}
	if nonFatal != nil {
		resp.Warning = nonFatal.Error()
		if appErr := pkgerrors.GetAppError(nonFatal); appErr != nil {
			resp.Warning = appErr.Message
		}
	}
	return resp
}

// ParseJSONBody decodes a JSON request body with a size limit. Unknown
// fields are rejected. An empty body decodes to the zero value.
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return pkgerrors.NewInvalidArgumentError(fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}
