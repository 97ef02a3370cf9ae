package v1

import (
	"net/http"

	"github.com/goto/salt/log"

	"github.com/goto/pipewatch/internal/httpapi"
)

type VersionHandler struct {
	l       log.Logger
	version string
}

type versionResponse struct {
	Server string `json:"server"`
}

func (h *VersionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/version", h.Version)
}

func (h *VersionHandler) Version(w http.ResponseWriter, r *http.Request) {
	if client := r.URL.Query().Get("client"); client != "" {
		h.l.Info("client with version %s requested server version", client)
	}
	httpapi.WriteJSON(w, http.StatusOK, versionResponse{Server: h.version})
}

func NewVersionHandler(l log.Logger, version string) *VersionHandler {
	return &VersionHandler{
		l:       l,
		version: version,
	}
}
