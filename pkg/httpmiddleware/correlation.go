package httpmiddleware

import (
	"net/http"

	"github.com/lewisedginton/triage_assistant/pkg/logger"
)

// CorrelationID makes sure every request carries a correlation ID in its header,
// its context and the response. A client supplied ID is kept only if it is a UUID.
func CorrelationID() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r, id := logger.EnsureHTTPCorrelationID(r)
			w.Header().Set(logger.CorrelationIDHeader, id)
			next.ServeHTTP(w, r)
		})
	}
}
