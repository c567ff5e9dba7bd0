package httpapi

import (
	"errors"
	"net/http"

	"github.com/mesh-intelligence/tablestore/pkg/types"
)

// errorBody is the JSON document returned with every error response.
type errorBody struct {
	Error   string `json:"error"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// errUnauthorized is returned by the auth middleware.
var errUnauthorized = errors.New("unauthorized")

// errorKinds maps error sentinels to their wire kind and status. Order
// matters only for errors that wrap more than one sentinel.
var errorKinds = []struct {
	err    error
	kind   string
	status int
}{
	{types.ErrColumnsLocked, "columns_locked", http.StatusConflict},
	{types.ErrTableImmutable, "table_immutable", http.StatusConflict},
	{types.ErrUnsupportedType, "unsupported_type", http.StatusBadRequest},
	{types.ErrMissingDefault, "missing_default", http.StatusBadRequest},
	{types.ErrMissingEnumFields, "missing_enum_fields", http.StatusBadRequest},
	{types.ErrTypeMismatch, "type_mismatch", http.StatusBadRequest},
	{types.ErrNotInEnum, "not_in_enum", http.StatusBadRequest},
	{types.ErrColumnCountMismatch, "column_count_mismatch", http.StatusBadRequest},
	{types.ErrUnknownColumnForRow, "unknown_column_for_row", http.StatusBadRequest},
	{types.ErrDuplicateName, "unique_constraint_violation", http.StatusBadRequest},
	{types.ErrInvalidName, "invalid_name", http.StatusBadRequest},
	{types.ErrInvalidID, "invalid_id", http.StatusBadRequest},
	{types.ErrInvalidData, "invalid_data", http.StatusBadRequest},
	{types.ErrNotFound, "not_found", http.StatusNotFound},
	{types.ErrDetached, "unavailable", http.StatusServiceUnavailable},
	{errUnauthorized, "unauthorized", http.StatusUnauthorized},
}

// classifyError returns the wire kind and HTTP status for err.
func classifyError(err error) (string, int) {
	for _, k := range errorKinds {
		if errors.Is(err, k.err) {
			return k.kind, k.status
		}
	}
	return "internal", http.StatusInternalServerError
}

// writeError writes err as a JSON error body. Unclassified errors are logged
// and reported without their text.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind, status := classifyError(err)
	body := errorBody{
		Error:   kind,
		Field:   types.FieldOf(err),
		Message: err.Error(),
	}
	if status == http.StatusInternalServerError {
		s.logger.Errorw("request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		body.Message = "internal error"
	}
	writeJSON(w, status, body)
}
