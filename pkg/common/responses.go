// Package common holds the JSON response and query helpers shared by HTTP handlers.
package common

import (
	"encoding/json"
	"fmt"
	"net/http"

	pkgerrors "ontology/pkg/errors"
)

// MaxBodyBytes bounds request bodies read by ParseJSONBody.
const MaxBodyBytes = 1 << 20

// RespondJSON sends data as a JSON response
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// ParseJSONBody decodes the request body into v. Malformed bodies are reported as
// validation errors.
func ParseJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, MaxBodyBytes)

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(v); err != nil {
		return pkgerrors.NewValidationError(fmt.Sprintf("Invalid request body: %v", err)).
			WithCode("INVALID_BODY")
	}
	return nil
}

// WithMetadata encodes items as a JSON array and adds a "_metadata" member to the
// last object. An empty slice encodes as [].
func WithMetadata[T any](items []T, metadata interface{}) ([]json.RawMessage, error) {
	out := make([]json.RawMessage, 0, len(items))
	for i, item := range items {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, err
		}
		if i == len(items)-1 {
			var fields map[string]json.RawMessage
			if err := json.Unmarshal(data, &fields); err != nil {
				return nil, err
			}
			meta, err := json.Marshal(metadata)
			if err != nil {
				return nil, err
			}
			fields["_metadata"] = meta
			if data, err = json.Marshal(fields); err != nil {
				return nil, err
			}
		}
		out = append(out, data)
	}
	return out, nil
}
