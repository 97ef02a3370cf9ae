package service

import (
	"context"
	"io"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/goto/salt/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/goto/pipewatch/core/access"
	"github.com/goto/pipewatch/core/event"
	"github.com/goto/pipewatch/core/event/moderator"
	"github.com/goto/pipewatch/core/identity"
	"github.com/goto/pipewatch/core/instance"
	"github.com/goto/pipewatch/core/tenant"
	"github.com/goto/pipewatch/internal/errors"
	"github.com/goto/pipewatch/internal/utils/filter"
)

const (
	outcomeApplied  = "applied"
	outcomeNoop     = "noop"
	outcomeDenied   = "denied"
	outcomeInvalid  = "invalid"
	outcomeConflict = "conflict"
	outcomeFailed   = "failed"

	SourceSubmission = "submission"
	SourceSchedule   = "schedule"
)

var remediationActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "pipewatch_remediation_actions_total",
	Help: "remediation actions received, by action and outcome",
}, []string{"action", "outcome"})

type InstanceRepository interface {
	Create(ctx context.Context, inst *instance.AppInstance) error
	Get(ctx context.Context, id instance.ID) (*instance.AppInstance, error)
	GetAll(ctx context.Context) ([]*instance.AppInstance, error)
	Update(ctx context.Context, inst *instance.AppInstance, baseVersion int64) error
}

type Authorizer interface {
	CanPerform(user identity.User, inst *instance.AppInstance, action instance.Action) access.Decision
	Permissions(user identity.User, inst *instance.AppInstance) map[instance.Action]access.Decision
}

type EventHandler interface {
	HandleEvent(moderator.Event)
}

type Notifier interface {
	io.Closer
	Notify(ctx context.Context, esc instance.Escalation) error
}

type InstanceService struct {
	repo           InstanceRepository
	catalog        instance.Classifier
	authorizer     Authorizer
	eventHandler   EventHandler
	notifyChannels map[string]Notifier

	now func() time.Time
	l   log.Logger
}

// Command is one remediation action request
type Command struct {
	Action     instance.Action `json:"action"`
	InstanceID instance.ID     `json:"instance_id"`
	TaskID     string          `json:"task_id"`
	User       identity.User   `json:"-"`
	Reason     string          `json:"reason"`
	SkipCount  int             `json:"skip_count"`
	// ExpectedVersion is the version the caller based its decision on, zero skips the check
	ExpectedVersion int64 `json:"expected_version"`
}

func (c Command) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Action, validation.Required,
			validation.In(instance.ActionResume, instance.ActionCancel, instance.ActionSkip, instance.ActionNotify)),
		validation.Field(&c.InstanceID, validation.Required),
		validation.Field(&c.Reason, validation.When(c.Action == instance.ActionCancel, validation.Required)),
		validation.Field(&c.SkipCount, validation.When(c.Action == instance.ActionSkip, validation.Required, validation.Min(1))),
		validation.Field(&c.ExpectedVersion, validation.Min(int64(0))),
	)
}

type Submission struct {
	Tenant      string   `json:"tenant"`
	Zone        string   `json:"zone"`
	Application string   `json:"application"`
	FileName    string   `json:"file_name"`
	Tasks       []string `json:"tasks"`
	ImpactTier  string   `json:"impact_tier"`
}

func (s Submission) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Tenant, validation.Required),
		validation.Field(&s.Zone, validation.Required),
		validation.Field(&s.Application, validation.Required),
		validation.Field(&s.FileName, validation.Required),
		validation.Field(&s.Tasks, validation.Required, validation.Each(validation.Required)),
	)
}

func (s *InstanceService) List(ctx context.Context, user identity.User, filters ...filter.FilterOpt) ([]*instance.AppInstance, error) {
	f := filter.NewFilter(filters...)
	if user.IsSaaSSRE() {
		f.Set(filter.WithString(filter.Tenant, user.Tenant.String()))
	}

	all, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, err
	}

	var result []*instance.AppInstance
	for _, inst := range all {
		if matches(inst, f) {
			result = append(result, inst)
		}
	}
	return result, nil
}

func containsStatus(statuses []string, status instance.Status) bool {
	for _, s := range statuses {
		if parsed, err := instance.StatusFrom(s); err == nil && parsed == status {
			return true
		}
	}
	return false
}

type listFilter interface {
	Contains(operands ...filter.Operand) bool
	GetStringValue(operand filter.Operand) string
	GetStringArrayValue(operand filter.Operand) []string
}

func matches(inst *instance.AppInstance, f listFilter) bool {
	has, value, values := f.Contains, f.GetStringValue, f.GetStringArrayValue

	if has(filter.Tenant) && inst.Tenant.Name().String() != value(filter.Tenant) {
		return false
	}
	if has(filter.Zone) && !strings.EqualFold(inst.Tenant.Zone().String(), value(filter.Zone)) {
		return false
	}
	if has(filter.Status) {
		status, err := instance.StatusFrom(value(filter.Status))
		if err != nil || inst.Status != status {
			return false
		}
	}
	if has(filter.Statuses) && !containsStatus(values(filter.Statuses), inst.Status) {
		return false
	}
	if has(filter.ExceptionType) {
		if inst.Exception == nil || !strings.EqualFold(inst.Exception.Type.String(), value(filter.ExceptionType)) {
			return false
		}
	}
	if has(filter.Application) && !strings.EqualFold(inst.Application, value(filter.Application)) {
		return false
	}
	if has(filter.Query) {
		query := strings.ToLower(value(filter.Query))
		if !strings.Contains(strings.ToLower(inst.FileName), query) && !strings.Contains(strings.ToLower(inst.ID.String()), query) {
			return false
		}
	}
	return true
}

func (s *InstanceService) Get(ctx context.Context, user identity.User, id instance.ID) (*instance.AppInstance, error) {
	inst, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.IsSaaSSRE() && inst.Tenant.Name() != user.Tenant {
		return nil, errors.Forbidden(instance.EntityInstance, "instance "+id.String()+" belongs to another tenant")
	}
	return inst, nil
}

func (s *InstanceService) GetAuditTrail(ctx context.Context, user identity.User, id instance.ID) ([]*instance.AuditEvent, error) {
	inst, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return inst.AuditTrail, nil
}

// Permissions explains, per remediation action, whether the user may perform it right now
func (s *InstanceService) Permissions(ctx context.Context, user identity.User, id instance.ID) (map[instance.Action]access.Decision, error) {
	inst, err := s.Get(ctx, user, id)
	if err != nil {
		return nil, err
	}
	return s.authorizer.Permissions(user, inst), nil
}

// Submit creates a Pending instance from an external submission
func (s *InstanceService) Submit(ctx context.Context, sub Submission) (*instance.AppInstance, error) {
	if err := sub.Validate(); err != nil {
		return nil, errors.InvalidArgument(instance.EntityInstance, err.Error())
	}
	tnnt, err := tenant.NewTenant(sub.Tenant, sub.Zone)
	if err != nil {
		return nil, err
	}
	tier, err := instance.ImpactTierFrom(sub.ImpactTier)
	if err != nil {
		return nil, err
	}

	inst, err := instance.New(tnnt, sub.Application, sub.FileName, sub.Tasks, tier, s.now())
	if err != nil {
		return nil, err
	}
	if err := s.Create(ctx, inst, SourceSubmission); err != nil {
		return nil, err
	}
	return inst, nil
}

// Create stores a new instance and announces it
func (s *InstanceService) Create(ctx context.Context, inst *instance.AppInstance, source string) error {
	if err := s.repo.Create(ctx, inst); err != nil {
		s.l.Error("error creating instance [%s]: %s", inst.ID, err)
		return err
	}
	s.l.Info("instance [%s] created for %s/%s from %s", inst.ID, inst.Tenant, inst.Application, source)
	s.eventHandler.HandleEvent(event.NewInstanceCreatedEvent(inst, source))
	return nil
}

func (s *InstanceService) ApplyTaskOutcome(ctx context.Context, id instance.ID, taskID string, outcome instance.Outcome) (*instance.AppInstance, error) {
	stored, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if outcome.At.IsZero() {
		outcome.At = s.now()
	}

	updated, err := instance.ApplyTaskOutcome(stored, taskID, outcome, s.catalog)
	if err != nil {
		return nil, err
	}
	if err := updated.Validate(); err != nil {
		return nil, errors.InternalError(instance.EntityInstance, "task outcome breaks instance invariants", err)
	}
	if err := s.repo.Update(ctx, updated, stored.Version); err != nil {
		return nil, err
	}

	task, _ := updated.Task(taskID)
	s.l.Debug("task [%s] of instance [%s] is now %s, instance is %s", task.Name, id, task.Status, updated.Status)
	s.eventHandler.HandleEvent(event.NewTaskOutcomeEvent(updated, task.ID))
	return updated, nil
}

// Execute authorizes and applies a remediation action. The change is applied to a copy
// and committed only when the stored version is still the one it was based on.
func (s *InstanceService) Execute(ctx context.Context, cmd Command) (*instance.AppInstance, error) {
	cmd.Reason = strings.TrimSpace(cmd.Reason)
	if err := cmd.Validate(); err != nil {
		remediationActionsTotal.WithLabelValues(cmd.Action.String(), outcomeInvalid).Inc()
		return nil, errors.InvalidArgument(instance.EntityInstance, err.Error())
	}

	stored, err := s.repo.Get(ctx, cmd.InstanceID)
	if err != nil {
		remediationActionsTotal.WithLabelValues(cmd.Action.String(), outcomeFailed).Inc()
		return nil, err
	}
	if cmd.ExpectedVersion != 0 && cmd.ExpectedVersion != stored.Version {
		remediationActionsTotal.WithLabelValues(cmd.Action.String(), outcomeConflict).Inc()
		return nil, errors.Conflict(instance.EntityInstance, "instance "+stored.ID.String()+" changed since it was read, reload and retry")
	}

	decision := s.authorizer.CanPerform(cmd.User, stored, cmd.Action)
	if !decision.Allowed {
		remediationActionsTotal.WithLabelValues(cmd.Action.String(), outcomeDenied).Inc()
		s.l.Info("%s on instance [%s] denied for %s: %s", cmd.Action, stored.ID, cmd.User.ID, decision.Reason)
		return nil, decision.Err()
	}

	updated := stored.Clone()
	at := s.now()
	switch cmd.Action {
	case instance.ActionResume:
		err = updated.Resume(cmd.TaskID, cmd.User, cmd.Reason, at)
	case instance.ActionCancel:
		err = updated.Cancel(cmd.User, cmd.Reason, at)
	case instance.ActionSkip:
		err = updated.Skip(cmd.TaskID, cmd.User, cmd.Reason, cmd.SkipCount, at)
	case instance.ActionNotify:
		if !updated.Notify(cmd.User, cmd.Reason, at) {
			remediationActionsTotal.WithLabelValues(cmd.Action.String(), outcomeNoop).Inc()
			return stored, nil
		}
	}
	if err != nil {
		remediationActionsTotal.WithLabelValues(cmd.Action.String(), outcomeInvalid).Inc()
		return nil, err
	}

	if err := updated.Validate(); err != nil {
		remediationActionsTotal.WithLabelValues(cmd.Action.String(), outcomeFailed).Inc()
		return nil, errors.InternalError(instance.EntityInstance, cmd.Action.String()+" breaks instance invariants", err)
	}
	if err := s.repo.Update(ctx, updated, stored.Version); err != nil {
		outcome := outcomeFailed
		if errors.IsErrorType(err, errors.ErrConflict) {
			outcome = outcomeConflict
		}
		remediationActionsTotal.WithLabelValues(cmd.Action.String(), outcome).Inc()
		return nil, err
	}

	remediationActionsTotal.WithLabelValues(cmd.Action.String(), outcomeApplied).Inc()
	s.l.Info("%s applied on instance [%s] by %s", cmd.Action, updated.ID, cmd.User.ID)
	s.eventHandler.HandleEvent(event.NewInstanceActionedEvent(updated, updated.LastAudit()))

	if cmd.Action == instance.ActionNotify {
		if err := s.escalate(ctx, instance.NewEscalation(updated, cmd.User, cmd.Reason, at)); err != nil {
			// the notification is recorded, delivery failures are reported out of band
			s.l.Error("error escalating instance [%s]: %s", updated.ID, err)
		}
	}
	return updated, nil
}

func (s *InstanceService) escalate(ctx context.Context, esc instance.Escalation) error {
	me := errors.NewMultiError("errors in escalation")
	for name, channel := range s.notifyChannels {
		if err := channel.Notify(ctx, esc); err != nil {
			me.Append(errors.Wrap(instance.EntityInstance, "escalation through "+name+" failed", err))
		}
	}
	return me.ToErr()
}

func (s *InstanceService) Close() error {
	me := errors.NewMultiError("errors closing notifiers")
	for _, channel := range s.notifyChannels {
		me.Append(channel.Close())
	}
	return me.ToErr()
}

func NewInstanceService(logger log.Logger, repo InstanceRepository, catalog instance.Classifier, authorizer Authorizer,
	eventHandler EventHandler, notifyChannels map[string]Notifier,
) *InstanceService {
	return &InstanceService{
		repo:           repo,
		catalog:        catalog,
		authorizer:     authorizer,
		eventHandler:   eventHandler,
		notifyChannels: notifyChannels,
		now:            time.Now,
		l:              logger,
	}
}
