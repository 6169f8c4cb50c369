package api

import (
	"fmt"
	"net/http"
)

// recovered turns a value caught by recover into an error.
func recovered(v any) error {
	if err, ok := v.(error); ok {
		return err
	}
	return fmt.Errorf("%v", v)
}

// errorHandler answers a panicking handler with a JSON 500 and drops the
// connection.
func (s *WhiteboardApp) errorHandler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			v := recover()
			if v == nil {
				return
			}

			err := recovered(v)
			s.log.Printf("panic serving %s %s: %v", r.Method, r.URL.Path, err)

			w.Header().Set("Connection", "close")
			s.writeError(w, NewInternalServerError(err))
		}()

		next.ServeHTTP(w, r)
	})
}

// noStore keeps room lookups out of shared caches.
func (s *WhiteboardApp) noStore(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store, no-cache, must-revalidate, private")
		next(w, r)
	}
}
