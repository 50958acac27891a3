package api

import (
	"net/http"
	"strconv"

	"github.com/phrazzld/fare-enricher/internal/domain"
)

// queryInt reads an integer query parameter. A missing parameter yields zero.
func queryInt(r *http.Request, name string) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, domain.NewValidationError(name, "must be an integer", domain.ErrValidation)
	}
	return n, nil
}
