package attendance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"checkpoint/internal/attendance/metrics"
	"checkpoint/internal/audit"
	"checkpoint/internal/integrity"
	"checkpoint/internal/motion"
	"checkpoint/internal/policy"
	"checkpoint/internal/ratelimit"
	id "checkpoint/pkg/domain"
	"checkpoint/pkg/platform/sentinel"
	"checkpoint/pkg/requestcontext"
)

// Collaborator ports, defined here so tests can stub each stage.
type (
	// RateLimiter admits or rejects an attempt for an identity.
	RateLimiter interface {
		Allow(ctx context.Context, identity string, now time.Time) ratelimit.Result
	}

	// DeviceVerifier runs the device trust verification.
	DeviceVerifier interface {
		Verify(ctx context.Context, req *integrity.VerifyRequest) (*integrity.IntegrityContext, error)
	}

	// MotionGuard judges movement plausibility between two samples.
	MotionGuard interface {
		Check(prev *motion.Sample, cur motion.Sample) motion.Result
	}

	// PolicyResolver resolves the governing policy for an office.
	PolicyResolver interface {
		ResolveForOffice(ctx context.Context, officeID *id.OfficeID) (*policy.Policy, error)
	}

	// PolicyEvaluator applies a policy to an evaluation context.
	PolicyEvaluator interface {
		Evaluate(ctx context.Context, pol *policy.Policy, ec *policy.EvaluationContext) *policy.Evaluation
	}

	// Signer signs the persisted verdict record.
	Signer interface {
		Sign(payload any) (string, error)
	}
)

// Config tunes the pipeline.
type Config struct {
	// Timeout bounds the whole pipeline; on expiry nothing is persisted
	// and no signature is issued.
	Timeout time.Duration
	// TrustRejectBelow rejects attempts whose device trust score falls
	// below this threshold.
	TrustRejectBelow float64
}

// Fixed score weights. Preserved from the original scoring contract; see
// DESIGN.md for the recorded gap.
const (
	weightPolicy = 0.50
	weightMotion = 0.20
	weightDevice = 0.20
	weightRate   = 0.10
)

// Service runs the check-in integrity pipeline.
type Service struct {
	limiter   RateLimiter
	devices   DeviceVerifier
	guard     MotionGuard
	samples   motion.SampleStore
	policies  PolicyResolver
	evaluator PolicyEvaluator
	signer    Signer
	store     Store
	cfg       Config

	auditor *audit.Publisher
	hooks   []AlertHook
	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  trace.Tracer
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithMetrics sets the service metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithAuditor sets the audit publisher.
func WithAuditor(p *audit.Publisher) Option {
	return func(s *Service) { s.auditor = p }
}

// WithAlertHooks registers review/rejection alert hooks.
func WithAlertHooks(hooks ...AlertHook) Option {
	return func(s *Service) { s.hooks = append(s.hooks, hooks...) }
}

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs the pipeline service.
func New(
	limiter RateLimiter,
	devices DeviceVerifier,
	guard MotionGuard,
	samples motion.SampleStore,
	policies PolicyResolver,
	evaluator PolicyEvaluator,
	signer Signer,
	store Store,
	cfg Config,
	opts ...Option,
) *Service {
	s := &Service{
		limiter:   limiter,
		devices:   devices,
		guard:     guard,
		samples:   samples,
		policies:  policies,
		evaluator: evaluator,
		signer:    signer,
		store:     store,
		cfg:       cfg,
		tracer:    otel.Tracer("checkpoint/attendance"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CheckIn runs the full pipeline for one attempt. Rejections short-circuit
// later stages; audit and metrics are emitted on every path.
func (s *Service) CheckIn(ctx context.Context, req *CheckInRequest) (*IntegrityVerdict, error) {
	start := s.now()

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	ctx, span := s.tracer.Start(ctx, "attendance.check_in", trace.WithAttributes(
		attribute.String("user_id", req.UserID.String()),
		attribute.String("kind", req.Kind.String()),
	))
	defer span.End()

	if req.Timestamp.IsZero() {
		req.Timestamp = s.now()
	}

	verdict := &IntegrityVerdict{
		SchemaVersion: VerdictSchemaVersion,
		ID:            id.NewAttendanceID(),
		UserID:        req.UserID,
		DeviceID:      req.DeviceID,
		OfficeID:      req.OfficeID,
		Kind:          req.Kind,
		Timestamp:     req.Timestamp,
	}

	identity := req.UserID.String() + ":" + req.DeviceID.String()

	// Stage 1: rate limiting.
	rl := s.limiter.Allow(ctx, identity, req.Timestamp)
	verdict.RateLimit = &rl
	if !rl.Allowed {
		verdict.Decision = id.DecisionRejected
		verdict.ReasonCode = ReasonRateLimitExceeded
		verdict.Rationale = fmt.Sprintf("attempt limit reached, resets at %s", rl.ResetAt.Format(time.RFC3339))
		s.finish(ctx, verdict, start)
		return verdict, nil
	}

	// Stage 2: device trust.
	ic, err := s.devices.Verify(ctx, &integrity.VerifyRequest{
		UserID:        req.UserID,
		DeviceID:      req.DeviceID,
		Attestation:   req.Attestation,
		ExpectedNonce: req.ExpectedNonce,
		RawSignals:    req.RawSignals,
		Metadata:      req.DeviceMetadata,
	})
	if err != nil {
		return nil, s.abort(ctx, verdict, start, fmt.Errorf("device verification: %w", err))
	}
	verdict.DeviceTrust = ic
	if ic.BindingStatus == integrity.BindingMismatch || ic.TrustScore < s.cfg.TrustRejectBelow {
		verdict.Decision = id.DecisionRejected
		verdict.ReasonCode = ReasonDeviceUntrusted
		verdict.Rationale = fmt.Sprintf("device trust %.2f (binding %s)", ic.TrustScore, ic.BindingStatus)
		s.finish(ctx, verdict, start)
		return verdict, nil
	}

	// Stage 3: motion plausibility. Never rejects on its own.
	motionResult := s.checkMotion(ctx, identity, req)
	verdict.Motion = &motionResult

	// Stage 4: policy evaluation.
	pol, err := s.resolvePolicy(ctx, req.OfficeID)
	if err != nil {
		return nil, s.abort(ctx, verdict, start, fmt.Errorf("resolve policy: %w", err))
	}
	eval := s.evaluator.Evaluate(ctx, pol, s.evaluationContext(req))
	verdict.PolicyEvaluation = eval
	verdict.Decision = eval.Decision
	verdict.Rationale = eval.Rationale

	if eval.Decision == id.DecisionRejected {
		verdict.ReasonCode = ReasonPolicyRejected
		s.finish(ctx, verdict, start)
		return verdict, nil
	}

	// Implausible movement downgrades an accepted attempt to review.
	if !motionResult.Passed && verdict.Decision == id.DecisionAccepted {
		verdict.Decision = id.DecisionReview
		verdict.ReasonCode = ReasonImplausibleMovement
		verdict.Rationale = "implausible movement since previous check-in"
		s.metrics.IncrementMotionDowngrade()
	}

	// Stage 5: deterministic score.
	verdict.OverallScore = overallScore(verdict)

	// Stage 6: sign and persist. A pipeline timeout lands here as a context
	// error and nothing is stored.
	if err := ctx.Err(); err != nil {
		return nil, s.abort(ctx, verdict, start, fmt.Errorf("pipeline deadline: %w", err))
	}
	verdict.CreatedAt = s.now()
	sig, err := s.signer.Sign(verdict)
	if err != nil {
		return nil, s.abort(ctx, verdict, start, fmt.Errorf("sign verdict: %w", err))
	}
	verdict.Signature = sig
	if err := s.store.Save(ctx, verdict); err != nil {
		return nil, s.abort(ctx, verdict, start, fmt.Errorf("persist verdict: %w", err))
	}

	s.finish(ctx, verdict, start)
	return verdict, nil
}

// Get returns a persisted verdict.
func (s *Service) Get(ctx context.Context, attendanceID id.AttendanceID) (*IntegrityVerdict, error) {
	return s.store.Get(ctx, attendanceID)
}

// checkMotion swaps the identity's last sample and judges the movement.
// Missing evidence or a sample-store outage means there is nothing to judge
// and the stage passes.
func (s *Service) checkMotion(ctx context.Context, identity string, req *CheckInRequest) motion.Result {
	if req.Location == nil {
		return motion.Result{Passed: true}
	}

	cur := motion.Sample{
		Location: motion.Location{
			Latitude:  req.Location.Latitude,
			Longitude: req.Location.Longitude,
		},
		Timestamp: req.Timestamp,
	}
	prev, err := s.samples.Swap(ctx, identity, cur)
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "motion sample store unavailable, skipping plausibility check",
				"identity", identity,
				"error", err,
			)
		}
		return motion.Result{Passed: true}
	}
	return s.guard.Check(prev, cur)
}

// resolvePolicy falls back to an open policy when no document governs the
// office; an office with no policy does not block attendance.
func (s *Service) resolvePolicy(ctx context.Context, officeID *id.OfficeID) (*policy.Policy, error) {
	pol, err := s.policies.ResolveForOffice(ctx, officeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			if s.logger != nil {
				s.logger.WarnContext(ctx, "no policy governs attempt, accepting by default")
			}
			return &policy.Policy{Name: "default-open"}, nil
		}
		return nil, err
	}
	return pol, nil
}

func (s *Service) evaluationContext(req *CheckInRequest) *policy.EvaluationContext {
	return &policy.EvaluationContext{
		UserID:    req.UserID,
		DeviceID:  req.DeviceID,
		OfficeID:  req.OfficeID,
		Kind:      req.Kind,
		Timestamp: req.Timestamp,
		Location:  req.Location,
		Wifi:      req.Wifi,
		Beacon:    req.Beacon,
		NFC:       req.NFC,
		QR:        req.QR,
		Face:      req.Face,
	}
}

// overallScore is the fixed weighted sum over the four pipeline signals.
func overallScore(v *IntegrityVerdict) float64 {
	var policyScore float64
	switch v.Decision {
	case id.DecisionAccepted:
		policyScore = 1.0
	case id.DecisionReview:
		policyScore = 0.5
	}

	var motionScore float64
	if v.Motion == nil || v.Motion.Passed {
		motionScore = 1.0
	}

	var deviceScore float64
	if v.DeviceTrust != nil {
		deviceScore = v.DeviceTrust.TrustScore
	}

	var rateScore float64
	if v.RateLimit == nil || v.RateLimit.Allowed {
		rateScore = 1.0
	}

	return weightPolicy*policyScore +
		weightMotion*motionScore +
		weightDevice*deviceScore +
		weightRate*rateScore
}

// finish emits audit, metrics, and alert hooks for every completed attempt.
func (s *Service) finish(ctx context.Context, v *IntegrityVerdict, start time.Time) {
	s.metrics.ObserveCheckin(v.Decision.String(), v.ReasonCode, v.OverallScore, s.now().Sub(start))
	s.emitAudit(ctx, v)

	if v.Decision != id.DecisionAccepted {
		s.fireAlerts(ctx, v)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "check-in completed",
			"attendance_id", v.ID,
			"user_id", v.UserID,
			"decision", v.Decision,
			"reason_code", v.ReasonCode,
			"score", v.OverallScore,
			"persisted", v.Persistable(),
		)
	}
}

// abort emits audit and metrics for a pipeline that produced no verdict.
func (s *Service) abort(ctx context.Context, v *IntegrityVerdict, start time.Time, err error) error {
	s.metrics.ObserveCheckin("error", "", 0, s.now().Sub(start))

	action := audit.ActionCheckInRejected
	if errors.Is(err, context.DeadlineExceeded) {
		action = audit.ActionPipelineTimedOut
	}
	if s.auditor != nil {
		_ = s.auditor.Emit(ctx, audit.Event{
			Action:   action,
			UserID:   v.UserID,
			DeviceID: v.DeviceID,
			OfficeID: v.OfficeID,
			Reason:   err.Error(),
		})
	}
	if s.logger != nil {
		s.logger.ErrorContext(ctx, "check-in pipeline aborted",
			"user_id", v.UserID,
			"error", err,
		)
	}
	return err
}

func (s *Service) emitAudit(ctx context.Context, v *IntegrityVerdict) {
	if s.auditor == nil {
		return
	}

	action := audit.ActionCheckInAccepted
	switch {
	case v.ReasonCode == ReasonRateLimitExceeded:
		action = audit.ActionRateLimited
	case v.ReasonCode == ReasonDeviceUntrusted:
		action = audit.ActionDeviceUntrusted
	case v.Decision == id.DecisionReview:
		action = audit.ActionCheckInReview
	case v.Decision == id.DecisionRejected:
		action = audit.ActionCheckInRejected
	}

	attendanceID := v.ID
	_ = s.auditor.Emit(ctx, audit.Event{
		Action:       action,
		UserID:       v.UserID,
		DeviceID:     v.DeviceID,
		OfficeID:     v.OfficeID,
		RequestID:    requestcontext.RequestID(ctx),
		AttendanceID: &attendanceID,
		Decision:     v.Decision.String(),
		Reason:       v.ReasonCode,
		Score:        v.OverallScore,
	})
}

// fireAlerts invokes every hook in its own goroutine. A hook may outlive the
// request; its failure or panic is logged and nothing more.
func (s *Service) fireAlerts(ctx context.Context, v *IntegrityVerdict) {
	detached := context.WithoutCancel(ctx)
	for _, hook := range s.hooks {
		go func(h AlertHook) {
			defer func() {
				if r := recover(); r != nil && s.logger != nil {
					s.logger.Error("alert hook panicked", "hook", h.Name(), "panic", r)
				}
			}()
			if err := h.Notify(detached, v); err != nil && s.logger != nil {
				s.logger.Warn("alert hook failed", "hook", h.Name(), "error", err)
			}
		}(hook)
	}
}
