package server

import (
	"fmt"
	"net/http"

	"github.com/goto/salt/log"

	"github.com/goto/pipewatch/internal/errors"
	"github.com/goto/pipewatch/internal/httpapi"
	"github.com/goto/pipewatch/internal/telemetry"
)

const entityServer = "server"

// recoverPanic turns a panic in a handler into a 500 and counts it
func recoverPanic(l log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				telemetry.LogPanic(entityServer, r.Method)
				err := errors.InternalError(entityServer, "unexpected error while serving request", fmt.Errorf("%v", rec))
				httpapi.WriteError(w, l, err, "panic recovered")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
