package handler

import (
	"encoding/json"
	"net/http"

	apperrors "github.com/ideahub/session-server-go/internal/errors"
	"github.com/ideahub/session-server-go/internal/httputil"
)

func writeSuccess(w http.ResponseWriter, status int, data any) {
	httputil.WriteSuccess(w, status, data)
}

func writeError(w http.ResponseWriter, err error) {
	httputil.WriteError(w, err)
}

// decodeJSON decodes a request body, mapping malformed input to VALIDATION.
// Fields absent from the target type are silently dropped, which is how
// immutable session fields are stripped from update payloads.
func decodeJSON(r *http.Request, dest any) error {
	if err := json.NewDecoder(r.Body).Decode(dest); err != nil {
		return apperrors.ValidationError("Invalid request body").WithCause(err)
	}
	return nil
}
