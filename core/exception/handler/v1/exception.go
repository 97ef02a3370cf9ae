package v1

import (
	"net/http"

	"github.com/goto/salt/log"

	"github.com/goto/pipewatch/core/exception"
	"github.com/goto/pipewatch/internal/errors"
	"github.com/goto/pipewatch/internal/httpapi"
)

type Catalog interface {
	Definitions() []*exception.Definition
	Definition(code exception.Code) (*exception.Definition, error)
	SOP(code exception.Code) (*exception.SOP, error)
}

type definitionResponse struct {
	Code              string `json:"code"`
	Type              string `json:"type"`
	Cause             string `json:"cause"`
	DetectionPoint    string `json:"detection_point"`
	ExampleMessage    string `json:"example_message"`
	Severity          string `json:"severity"`
	Retryable         bool   `json:"retryable"`
	RecommendedAction string `json:"recommended_action"`
}

type sopResponse struct {
	Title               string   `json:"title"`
	Preconditions       []string `json:"preconditions"`
	Steps               []string `json:"steps"`
	PermissionsRequired []string `json:"permissions_required"`
	RollbackActions     []string `json:"rollback_actions"`
	PostConditions      []string `json:"post_conditions"`
}

type ExceptionHandler struct {
	l       log.Logger
	catalog Catalog
}

func (h *ExceptionHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/exceptions", h.ListExceptions)
	mux.HandleFunc("GET /api/v1/exceptions/{code}", h.GetException)
}

func (h *ExceptionHandler) ListExceptions(w http.ResponseWriter, _ *http.Request) {
	defs := h.catalog.Definitions()
	resp := make([]definitionResponse, len(defs))
	for i, def := range defs {
		resp[i] = toDefinitionResponse(def)
	}
	httpapi.WriteJSON(w, http.StatusOK, map[string]any{"exceptions": resp})
}

// GetException returns the definition with its SOP, the sop is null for codes without a playbook
func (h *ExceptionHandler) GetException(w http.ResponseWriter, r *http.Request) {
	code := exception.Code(r.PathValue("code"))
	def, err := h.catalog.Definition(code)
	if err != nil {
		httpapi.WriteError(w, h.l, err, "unable to get exception "+code.String())
		return
	}

	var sop *sopResponse
	s, err := h.catalog.SOP(code)
	switch {
	case err == nil:
		sop = toSOPResponse(s)
	case !errors.IsErrorType(err, errors.ErrNotFound):
		httpapi.WriteError(w, h.l, err, "unable to get sop of "+code.String())
		return
	}

	httpapi.WriteJSON(w, http.StatusOK, map[string]any{
		"exception": toDefinitionResponse(def),
		"sop":       sop,
	})
}

func toDefinitionResponse(def *exception.Definition) definitionResponse {
	return definitionResponse{
		Code:              def.Code.String(),
		Type:              def.Type.String(),
		Cause:             def.Cause,
		DetectionPoint:    def.DetectionPoint,
		ExampleMessage:    def.ExampleMessage,
		Severity:          string(def.Severity),
		Retryable:         def.Retryable,
		RecommendedAction: def.RecommendedAction,
	}
}

func toSOPResponse(sop *exception.SOP) *sopResponse {
	roles := make([]string, len(sop.PermissionsRequired))
	for i, role := range sop.PermissionsRequired {
		roles[i] = role.String()
	}
	return &sopResponse{
		Title:               sop.Title,
		Preconditions:       sop.Preconditions,
		Steps:               sop.Steps,
		PermissionsRequired: roles,
		RollbackActions:     sop.RollbackActions,
		PostConditions:      sop.PostConditions,
	}
}

func NewExceptionHandler(l log.Logger, catalog Catalog) *ExceptionHandler {
	return &ExceptionHandler{
		l:       l,
		catalog: catalog,
	}
}
