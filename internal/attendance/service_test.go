package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkpoint/internal/integrity"
	"checkpoint/internal/motion"
	"checkpoint/internal/policy"
	"checkpoint/internal/ratelimit"
	"checkpoint/internal/signature"
	id "checkpoint/pkg/domain"
	"checkpoint/pkg/platform/sentinel"
)

var (
	testUser   = id.UserID(uuid.MustParse("11111111-1111-1111-1111-111111111111"))
	testDevice = id.DeviceID(uuid.MustParse("22222222-2222-2222-2222-222222222222"))
)

type stubLimiter struct{ result ratelimit.Result }

func (s *stubLimiter) Allow(context.Context, string, time.Time) ratelimit.Result { return s.result }

type stubVerifier struct {
	ic  *integrity.IntegrityContext
	err error
}

func (s *stubVerifier) Verify(context.Context, *integrity.VerifyRequest) (*integrity.IntegrityContext, error) {
	return s.ic, s.err
}

type stubResolver struct {
	pol *policy.Policy
	err error
}

func (s *stubResolver) ResolveForOffice(context.Context, *id.OfficeID) (*policy.Policy, error) {
	return s.pol, s.err
}

type stubEvaluator struct {
	eval  *policy.Evaluation
	delay time.Duration
}

func (s *stubEvaluator) Evaluate(ctx context.Context, pol *policy.Policy, ec *policy.EvaluationContext) *policy.Evaluation {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
		}
	}
	return s.eval
}

type pipeline struct {
	limiter   *stubLimiter
	verifier  *stubVerifier
	resolver  *stubResolver
	evaluator *stubEvaluator
	store     *InMemoryStore
	signer    *signature.Service
	svc       *Service
}

func allowedResult() ratelimit.Result {
	return ratelimit.Result{Allowed: true, Remaining: 4, Limit: 5, ResetAt: time.Now().Add(time.Minute)}
}

func trustedDevice() *integrity.IntegrityContext {
	return &integrity.IntegrityContext{
		Result:        &integrity.VerificationResult{Valid: true, Provider: integrity.ModeMock, IntegrityLevel: integrity.LevelStrong},
		BindingStatus: integrity.BindingValid,
		TrustScore:    1.0,
	}
}

func accepted() *policy.Evaluation {
	return &policy.Evaluation{Decision: id.DecisionAccepted, Rationale: "all presence factors satisfied"}
}

func newPipeline(t *testing.T, cfg Config) *pipeline {
	t.Helper()

	signer, err := signature.New("test-secret", signature.AlgorithmHMACSHA256)
	require.NoError(t, err)

	p := &pipeline{
		limiter:   &stubLimiter{result: allowedResult()},
		verifier:  &stubVerifier{ic: trustedDevice()},
		resolver:  &stubResolver{pol: &policy.Policy{Name: "test"}},
		evaluator: &stubEvaluator{eval: accepted()},
		store:     NewInMemoryStore(),
		signer:    signer,
	}
	if cfg.TrustRejectBelow == 0 {
		cfg.TrustRejectBelow = 0.3
	}
	p.svc = New(
		p.limiter, p.verifier,
		motion.NewGuard(42, 1000, time.Second), motion.NewInMemorySampleStore(),
		p.resolver, p.evaluator,
		signer, p.store, cfg,
	)
	return p
}

func checkInRequest() *CheckInRequest {
	return &CheckInRequest{
		UserID:      testUser,
		DeviceID:    testDevice,
		Kind:        id.CheckKindIn,
		Timestamp:   time.Now(),
		Location:    &policy.LocationEvidence{Latitude: 59.437, Longitude: 24.7536},
		Attestation: integrity.Attestation{Provider: integrity.ModeMock},
	}
}

func TestCheckIn_FullPass(t *testing.T) {
	p := newPipeline(t, Config{})

	verdict, err := p.svc.CheckIn(context.Background(), checkInRequest())
	require.NoError(t, err)

	assert.Equal(t, id.DecisionAccepted, verdict.Decision)
	assert.InDelta(t, 1.0, verdict.OverallScore, 0.001)
	assert.NotEmpty(t, verdict.Signature)
	assert.Equal(t, VerdictSchemaVersion, verdict.SchemaVersion)

	stored, err := p.store.Get(context.Background(), verdict.ID)
	require.NoError(t, err)
	assert.Equal(t, verdict.Signature, stored.Signature)

	// The persisted record verifies against its own signature.
	sig := stored.Signature
	stored.Signature = ""
	assert.True(t, p.signer.Verify(stored, sig))
}

func TestCheckIn_RateLimited(t *testing.T) {
	p := newPipeline(t, Config{})
	p.limiter.result = ratelimit.Result{Allowed: false, Limit: 5, ResetAt: time.Now().Add(time.Minute)}

	verdict, err := p.svc.CheckIn(context.Background(), checkInRequest())
	require.NoError(t, err)

	assert.Equal(t, id.DecisionRejected, verdict.Decision)
	assert.Equal(t, ReasonRateLimitExceeded, verdict.ReasonCode)
	assert.Empty(t, verdict.Signature)

	_, err = p.store.Get(context.Background(), verdict.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCheckIn_LowTrustRejected(t *testing.T) {
	p := newPipeline(t, Config{TrustRejectBelow: 0.3})
	p.verifier.ic = &integrity.IntegrityContext{
		Result:        &integrity.VerificationResult{Valid: true, IntegrityLevel: integrity.LevelNone},
		BindingStatus: integrity.BindingUnbound,
		TrustScore:    0.1,
	}

	verdict, err := p.svc.CheckIn(context.Background(), checkInRequest())
	require.NoError(t, err)

	assert.Equal(t, id.DecisionRejected, verdict.Decision)
	assert.Equal(t, ReasonDeviceUntrusted, verdict.ReasonCode)

	_, err = p.store.Get(context.Background(), verdict.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCheckIn_BindingMismatchRejectedRegardlessOfTrust(t *testing.T) {
	p := newPipeline(t, Config{TrustRejectBelow: 0.3})
	ic := trustedDevice()
	ic.BindingStatus = integrity.BindingMismatch
	ic.TrustScore = 0.9
	p.verifier.ic = ic

	verdict, err := p.svc.CheckIn(context.Background(), checkInRequest())
	require.NoError(t, err)
	assert.Equal(t, ReasonDeviceUntrusted, verdict.ReasonCode)
}

func TestCheckIn_PolicyRejectedNotPersisted(t *testing.T) {
	p := newPipeline(t, Config{})
	p.evaluator.eval = &policy.Evaluation{Decision: id.DecisionRejected, Rationale: "insufficient presence factors (1/3)"}

	verdict, err := p.svc.CheckIn(context.Background(), checkInRequest())
	require.NoError(t, err)

	assert.Equal(t, id.DecisionRejected, verdict.Decision)
	assert.Equal(t, ReasonPolicyRejected, verdict.ReasonCode)

	_, err = p.store.Get(context.Background(), verdict.ID)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

func TestCheckIn_ReviewIsPersisted(t *testing.T) {
	p := newPipeline(t, Config{})
	p.evaluator.eval = &policy.Evaluation{Decision: id.DecisionReview, Rationale: "late by 40 minutes"}

	verdict, err := p.svc.CheckIn(context.Background(), checkInRequest())
	require.NoError(t, err)

	assert.Equal(t, id.DecisionReview, verdict.Decision)
	assert.NotEmpty(t, verdict.Signature)

	stored, err := p.store.Get(context.Background(), verdict.ID)
	require.NoError(t, err)
	assert.InDelta(t, 0.75, stored.OverallScore, 0.001)
}

func TestCheckIn_TeleportDowngradesToReview(t *testing.T) {
	p := newPipeline(t, Config{})
	ctx := context.Background()

	base := time.Now()

	first := checkInRequest()
	first.Timestamp = base
	_, err := p.svc.CheckIn(ctx, first)
	require.NoError(t, err)

	// 1200 m north two seconds later.
	second := checkInRequest()
	second.Timestamp = base.Add(2 * time.Second)
	second.Location = &policy.LocationEvidence{Latitude: 59.437 + 1200.0/111320.0, Longitude: 24.7536}

	verdict, err := p.svc.CheckIn(ctx, second)
	require.NoError(t, err)

	assert.Equal(t, id.DecisionReview, verdict.Decision)
	assert.Equal(t, ReasonImplausibleMovement, verdict.ReasonCode)
	require.NotNil(t, verdict.Motion)
	assert.True(t, verdict.Motion.TeleportDetected)

	// 0.5*0.5 + 0 motion + 0.2 device + 0.1 rate
	assert.InDelta(t, 0.55, verdict.OverallScore, 0.001)

	stored, err := p.store.Get(ctx, verdict.ID)
	require.NoError(t, err)
	assert.Equal(t, id.DecisionReview, stored.Decision)
}

func TestCheckIn_MotionNeverDowngradesReview(t *testing.T) {
	p := newPipeline(t, Config{})
	p.evaluator.eval = &policy.Evaluation{Decision: id.DecisionReview, Rationale: "outside working hours"}
	ctx := context.Background()

	base := time.Now()
	first := checkInRequest()
	first.Timestamp = base
	_, err := p.svc.CheckIn(ctx, first)
	require.NoError(t, err)

	second := checkInRequest()
	second.Timestamp = base.Add(2 * time.Second)
	second.Location = &policy.LocationEvidence{Latitude: 60.0, Longitude: 24.7536}

	verdict, err := p.svc.CheckIn(ctx, second)
	require.NoError(t, err)

	// Review stays review; the motion failure shows in the record only.
	assert.Equal(t, id.DecisionReview, verdict.Decision)
	assert.NotEqual(t, ReasonImplausibleMovement, verdict.ReasonCode)
}

func TestCheckIn_NoPolicyAcceptsByDefault(t *testing.T) {
	p := newPipeline(t, Config{})
	p.resolver.err = sentinel.ErrNotFound

	verdict, err := p.svc.CheckIn(context.Background(), checkInRequest())
	require.NoError(t, err)
	assert.Equal(t, id.DecisionAccepted, verdict.Decision)
}

func TestCheckIn_TimeoutPersistsNothing(t *testing.T) {
	p := newPipeline(t, Config{Timeout: 20 * time.Millisecond})
	p.evaluator.delay = 100 * time.Millisecond

	_, err := p.svc.CheckIn(context.Background(), checkInRequest())
	require.Error(t, err)

	_, err = p.store.Latest(context.Background(), testUser)
	assert.ErrorIs(t, err, sentinel.ErrNotFound)
}

type recordingHook struct {
	called chan *IntegrityVerdict
}

func (h *recordingHook) Name() string { return "recording" }
func (h *recordingHook) Notify(ctx context.Context, v *IntegrityVerdict) error {
	h.called <- v
	return nil
}

type panickingHook struct{}

func (panickingHook) Name() string                                   { return "panicking" }
func (panickingHook) Notify(context.Context, *IntegrityVerdict) error { panic("hook bug") }

func TestCheckIn_AlertHooksFireForReview(t *testing.T) {
	p := newPipeline(t, Config{})
	p.evaluator.eval = &policy.Evaluation{Decision: id.DecisionReview}

	hook := &recordingHook{called: make(chan *IntegrityVerdict, 1)}
	p.svc.hooks = []AlertHook{panickingHook{}, hook}

	verdict, err := p.svc.CheckIn(context.Background(), checkInRequest())
	require.NoError(t, err)

	select {
	case got := <-hook.called:
		assert.Equal(t, verdict.ID, got.ID)
	case <-time.After(time.Second):
		t.Fatal("alert hook never fired")
	}
}

func TestOverallScore_Weights(t *testing.T) {
	v := &IntegrityVerdict{
		Decision:    id.DecisionAccepted,
		Motion:      &motion.Result{Passed: true},
		DeviceTrust: &integrity.IntegrityContext{TrustScore: 0.5},
		RateLimit:   &ratelimit.Result{Allowed: true},
	}
	assert.InDelta(t, 0.5+0.2+0.1+0.1, overallScore(v), 0.001)

	v.Decision = id.DecisionReview
	assert.InDelta(t, 0.25+0.2+0.1+0.1, overallScore(v), 0.001)

	v.Motion.Passed = false
	assert.InDelta(t, 0.25+0+0.1+0.1, overallScore(v), 0.001)
}
