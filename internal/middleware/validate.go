package middleware

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/taskflow/backend/internal/respond"
	"github.com/taskflow/backend/internal/services"
)

const maxBodyBytes = 1 << 20

// BodyValidator checks a raw JSON body against a named schema.
type BodyValidator interface {
	Validate(schema string, body []byte) error
}

// ValidateBody rejects requests whose body does not match schema before the
// handler runs. Bodies naming any of the immutable fields fail with
// ImmutableField rather than a generic schema error. The body is restored so
// the handler can decode it.
func ValidateBody(v BodyValidator, schema string, immutable ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
			r.Body.Close()
			if err != nil {
				respond.Fail(w, services.KindInvalidInput, "failed to read body")
				return
			}
			// Restore body for the handler.
			r.Body = io.NopCloser(bytes.NewReader(bodyBytes))

			if len(immutable) > 0 {
				var peek map[string]json.RawMessage
				if json.Unmarshal(bodyBytes, &peek) == nil {
					for _, field := range immutable {
						if _, ok := peek[field]; ok {
							respond.Fail(w, services.KindImmutableField, services.ErrImmutableField.Error())
							return
						}
					}
				}
			}

			if err := v.Validate(schema, bodyBytes); err != nil {
				if services.KindOf(err) == services.KindInternal {
					respond.Error(w, slog.Default(), err, "schema", schema)
					return
				}
				respond.Fail(w, services.KindInvalidInput, strings.TrimPrefix(err.Error(), services.ErrValidation.Error()+": "))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
