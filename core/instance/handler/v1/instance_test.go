package v1_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goto/salt/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/goto/pipewatch/core/access"
	"github.com/goto/pipewatch/core/exception"
	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/core/instance"
	v1 "github.com/goto/pipewatch/core/instance/handler/v1"
	"github.com/goto/pipewatch/core/instance/service"
	"github.com/goto/pipewatch/core/tenant"
	"github.com/goto/pipewatch/internal/errors"
	"github.com/goto/pipewatch/internal/httpapi"
	"github.com/goto/pipewatch/internal/utils/filter"
)

func TestInstanceHandler(t *testing.T) {
	logger := log.NewNoop()
	startedAt := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	tnnt, _ := tenant.NewTenant("acme", "ap-southeast")
	inst, _ := instance.New(tnnt, "billing", "invoices.csv", []string{"extract", "load"}, instance.ImpactHigh, startedAt)

	saasHeaders := map[string]string{
		httpapi.HeaderUserID:     "u-1",
		httpapi.HeaderUserRole:   "saas_sre",
		httpapi.HeaderUserTenant: "acme",
	}

	serve := func(svc v1.InstanceService, method, target, body string, headers map[string]string) *httptest.ResponseRecorder {
		mux := http.NewServeMux()
		v1.NewInstanceHandler(logger, svc).RegisterRoutes(mux)

		req := httptest.NewRequest(method, target, strings.NewReader(body))
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		return rec
	}

	t.Run("ListInstances", func(t *testing.T) {
		t.Run("returns 400 when identity headers are missing", func(t *testing.T) {
			svc := new(InstanceService)
			defer svc.AssertExpectations(t)

			rec := serve(svc, http.MethodGet, "/api/v1/instances", "", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
		t.Run("passes query filters to the service", func(t *testing.T) {
			svc := new(InstanceService)
			defer svc.AssertExpectations(t)

			svc.On("List", mock.Anything, mock.MatchedBy(func(u identity.User) bool {
				return u.ID == "u-1" && u.IsSaaSSRE()
			}), mock.Anything).Return([]*instance.AppInstance{inst}, nil).Run(func(args mock.Arguments) {
				f := filter.NewFilter(args.Get(2).([]filter.FilterOpt)...)
				assert.Equal(t, "billing", f.GetStringValue(filter.Application))
				assert.Equal(t, []string{"Failed", "InProgress"}, f.GetStringArrayValue(filter.Statuses))
				assert.Equal(t, "invoice", f.GetStringValue(filter.Query))
			})

			rec := serve(svc, http.MethodGet, "/api/v1/instances?application=billing&status=Failed,InProgress&q=invoice", "", saasHeaders)
			assert.Equal(t, http.StatusOK, rec.Code)

			var resp struct {
				Instances []struct {
					ID     string `json:"id"`
					Tenant string `json:"tenant"`
					Status string `json:"status"`
				} `json:"instances"`
			}
			assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Len(t, resp.Instances, 1)
			assert.Equal(t, inst.ID.String(), resp.Instances[0].ID)
			assert.Equal(t, "acme", resp.Instances[0].Tenant)
			assert.Equal(t, "Pending", resp.Instances[0].Status)
		})
	})
	t.Run("GetInstance", func(t *testing.T) {
		t.Run("maps forbidden to 403 with the reason", func(t *testing.T) {
			svc := new(InstanceService)
			defer svc.AssertExpectations(t)

			svc.On("Get", mock.Anything, mock.Anything, inst.ID).
				Return(nil, errors.Forbidden(instance.EntityInstance, "instance belongs to another tenant"))

			rec := serve(svc, http.MethodGet, "/api/v1/instances/"+inst.ID.String(), "", saasHeaders)
			assert.Equal(t, http.StatusForbidden, rec.Code)

			var resp httpapi.ErrorResponse
			assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, "instance belongs to another tenant", resp.Message)
			assert.Equal(t, errors.ErrForbidden.String(), resp.Code)
		})
		t.Run("maps not found to 404", func(t *testing.T) {
			svc := new(InstanceService)
			defer svc.AssertExpectations(t)

			svc.On("Get", mock.Anything, mock.Anything, instance.ID("missing")).
				Return(nil, errors.NotFound(instance.EntityInstance, "no instance missing"))

			rec := serve(svc, http.MethodGet, "/api/v1/instances/missing", "", saasHeaders)
			assert.Equal(t, http.StatusNotFound, rec.Code)
		})
	})
	t.Run("GetAuditTrail", func(t *testing.T) {
		svc := new(InstanceService)
		defer svc.AssertExpectations(t)

		events := []*instance.AuditEvent{{
			ID: "a-1", Action: instance.ActionNotify, Actor: "u-1", ActorRole: identity.RoleSaaSSRE,
			Timestamp: startedAt, Reason: "escalating",
		}}
		svc.On("GetAuditTrail", mock.Anything, mock.Anything, inst.ID).Return(events, nil)

		rec := serve(svc, http.MethodGet, "/api/v1/instances/"+inst.ID.String()+"/audit", "", saasHeaders)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"action":"Notify"`)
		assert.Contains(t, rec.Body.String(), `"reason":"escalating"`)
	})
	t.Run("GetPermissions", func(t *testing.T) {
		svc := new(InstanceService)
		defer svc.AssertExpectations(t)

		svc.On("Permissions", mock.Anything, mock.Anything, inst.ID).Return(map[instance.Action]access.Decision{
			instance.ActionCancel: {Allowed: false, Reason: access.MsgPlatformBusiness, Kind: access.KindExceptionOwnership},
		}, nil)

		rec := serve(svc, http.MethodGet, "/api/v1/instances/"+inst.ID.String()+"/permissions", "", saasHeaders)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), `"Cancel":{"allowed":false,"reason":"Platform SREs cannot take action on Business Exceptions","kind":"exception_ownership"}`)
	})
	t.Run("SubmitInstance", func(t *testing.T) {
		t.Run("returns 400 on malformed body", func(t *testing.T) {
			svc := new(InstanceService)
			defer svc.AssertExpectations(t)

			rec := serve(svc, http.MethodPost, "/api/v1/instances", "{", nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
		t.Run("creates the instance", func(t *testing.T) {
			svc := new(InstanceService)
			defer svc.AssertExpectations(t)

			svc.On("Submit", mock.Anything, service.Submission{
				Tenant: "acme", Zone: "ap-southeast", Application: "billing", FileName: "invoices.csv",
				Tasks: []string{"extract", "load"}, ImpactTier: "High",
			}).Return(inst, nil)

			body := `{"tenant":"acme","zone":"ap-southeast","application":"billing","file_name":"invoices.csv","tasks":["extract","load"],"impact_tier":"High"}`
			rec := serve(svc, http.MethodPost, "/api/v1/instances", body, nil)
			assert.Equal(t, http.StatusCreated, rec.Code)
			assert.Contains(t, rec.Body.String(), `"file_name":"invoices.csv"`)
		})
	})
	t.Run("ApplyTaskOutcome", func(t *testing.T) {
		t.Run("returns 400 on unknown status", func(t *testing.T) {
			svc := new(InstanceService)
			defer svc.AssertExpectations(t)

			rec := serve(svc, http.MethodPost, "/api/v1/instances/"+inst.ID.String()+"/tasks/t-1/outcome", `{"status":"Exploded"}`, nil)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
		t.Run("applies the outcome to the task", func(t *testing.T) {
			svc := new(InstanceService)
			defer svc.AssertExpectations(t)

			svc.On("ApplyTaskOutcome", mock.Anything, inst.ID, "t-1", instance.Outcome{
				Status:        instance.StatusFailed,
				ErrorCode:     exception.Code("SFTP_TIMEOUT"),
				ErrorMessage:  "connection timed out",
				ExceptionType: exception.TypeSystem,
			}).Return(inst, nil)

			body := `{"status":"failed","error_code":"SFTP_TIMEOUT","error_message":"connection timed out","exception_type":"system"}`
			rec := serve(svc, http.MethodPost, "/api/v1/instances/"+inst.ID.String()+"/tasks/t-1/outcome", body, nil)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
	})
	t.Run("ExecuteAction", func(t *testing.T) {
		t.Run("returns 400 on unknown action", func(t *testing.T) {
			svc := new(InstanceService)
			defer svc.AssertExpectations(t)

			rec := serve(svc, http.MethodPost, "/api/v1/instances/"+inst.ID.String()+"/actions", `{"action":"Delete"}`, saasHeaders)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
		t.Run("builds the command from headers, path and body", func(t *testing.T) {
			svc := new(InstanceService)
			defer svc.AssertExpectations(t)

			svc.On("Execute", mock.Anything, mock.MatchedBy(func(cmd service.Command) bool {
				return cmd.Action == instance.ActionSkip && cmd.InstanceID == inst.ID && cmd.TaskID == "t-2" &&
					cmd.SkipCount == 2 && cmd.ExpectedVersion == 3 && cmd.User.ID == "u-1"
			})).Return(inst, nil)

			body := `{"action":"skip","task_id":"t-2","reason":"bad rows","skip_count":2,"expected_version":3}`
			rec := serve(svc, http.MethodPost, "/api/v1/instances/"+inst.ID.String()+"/actions", body, saasHeaders)
			assert.Equal(t, http.StatusOK, rec.Code)
		})
		t.Run("maps conflict to 409 and failed precondition to 422", func(t *testing.T) {
			svc := new(InstanceService)
			defer svc.AssertExpectations(t)

			svc.On("Execute", mock.Anything, mock.MatchedBy(func(cmd service.Command) bool {
				return cmd.Action == instance.ActionCancel
			})).Return(nil, errors.Conflict(instance.EntityInstance, "instance changed since it was read")).Once()
			svc.On("Execute", mock.Anything, mock.MatchedBy(func(cmd service.Command) bool {
				return cmd.Action == instance.ActionResume
			})).Return(nil, errors.FailedPrecondition(access.EntityAccess, "instance is not failed")).Once()

			rec := serve(svc, http.MethodPost, "/api/v1/instances/"+inst.ID.String()+"/actions", `{"action":"Cancel","reason":"dup"}`, saasHeaders)
			assert.Equal(t, http.StatusConflict, rec.Code)

			rec = serve(svc, http.MethodPost, "/api/v1/instances/"+inst.ID.String()+"/actions", `{"action":"Resume"}`, saasHeaders)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		})
	})
}

type InstanceService struct {
	mock.Mock
}

func (m *InstanceService) List(ctx context.Context, user identity.User, filters ...filter.FilterOpt) ([]*instance.AppInstance, error) {
	ret := m.Called(ctx, user, filters)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).([]*instance.AppInstance), ret.Error(1)
}

func (m *InstanceService) Get(ctx context.Context, user identity.User, id instance.ID) (*instance.AppInstance, error) {
	ret := m.Called(ctx, user, id)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*instance.AppInstance), ret.Error(1)
}

func (m *InstanceService) GetAuditTrail(ctx context.Context, user identity.User, id instance.ID) ([]*instance.AuditEvent, error) {
	ret := m.Called(ctx, user, id)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).([]*instance.AuditEvent), ret.Error(1)
}

func (m *InstanceService) Permissions(ctx context.Context, user identity.User, id instance.ID) (map[instance.Action]access.Decision, error) {
	ret := m.Called(ctx, user, id)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(map[instance.Action]access.Decision), ret.Error(1)
}

func (m *InstanceService) Submit(ctx context.Context, sub service.Submission) (*instance.AppInstance, error) {
	ret := m.Called(ctx, sub)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*instance.AppInstance), ret.Error(1)
}

func (m *InstanceService) ApplyTaskOutcome(ctx context.Context, id instance.ID, taskID string, outcome instance.Outcome) (*instance.AppInstance, error) {
	ret := m.Called(ctx, id, taskID, outcome)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*instance.AppInstance), ret.Error(1)
}

func (m *InstanceService) Execute(ctx context.Context, cmd service.Command) (*instance.AppInstance, error) {
	ret := m.Called(ctx, cmd)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*instance.AppInstance), ret.Error(1)
}
