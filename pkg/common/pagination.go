package common

import (
	"fmt"
	"net/http"
	"strconv"

	pkgerrors "ontology/pkg/errors"
)

// PaginationParams represents limit/offset pagination parameters. A zero Limit
// lets the service apply its default.
type PaginationParams struct {
	Limit  int
	Offset int
}

// ExtractPaginationParams reads limit and offset from the query string
func ExtractPaginationParams(r *http.Request) (PaginationParams, error) {
	var params PaginationParams
	var err error

	if params.Limit, err = queryInt(r, "limit"); err != nil {
		return params, err
	}
	if params.Offset, err = queryInt(r, "offset"); err != nil {
		return params, err
	}
	return params, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 0 {
		return 0, pkgerrors.NewValidationError(fmt.Sprintf("%s must be a non-negative integer", name))
	}
	return n, nil
}
