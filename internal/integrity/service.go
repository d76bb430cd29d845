package integrity

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"checkpoint/internal/integrity/metrics"
)

// Config tunes the verification orchestrator.
type Config struct {
	Mode              Mode
	Safeguard         Safeguard
	AutoBind          bool
	MaxAttestationAge time.Duration
}

// Service orchestrates one device verification: provider dispatch, nonce and
// age validation, root signal fusion, binding validation, and the trust
// score. The provider registry is owned by the service and fixed at
// construction; only the active mode can change at runtime.
type Service struct {
	providers map[Mode]Verifier
	adapters  []RootSignalAdapter
	bindings  BindingStore
	cfg       Config

	modeMu sync.RWMutex
	mode   Mode

	logger  *slog.Logger
	metrics *metrics.Metrics
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

// WithClock overrides the time source. Tests only.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New constructs the verification service. The configured mode must have a
// registered provider and pass the mock-in-production safeguard.
func New(cfg Config, providers []Verifier, adapters []RootSignalAdapter, bindings BindingStore, opts ...Option) (*Service, error) {
	byMode := make(map[Mode]Verifier, len(providers))
	for _, p := range providers {
		byMode[p.Mode()] = p
	}

	if err := cfg.Safeguard.check(cfg.Mode, byMode); err != nil {
		return nil, err
	}

	s := &Service{
		providers: byMode,
		adapters:  adapters,
		bindings:  bindings,
		cfg:       cfg,
		mode:      cfg.Mode,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Mode returns the active provider mode.
func (s *Service) Mode() Mode {
	s.modeMu.RLock()
	defer s.modeMu.RUnlock()
	return s.mode
}

// SetMode switches the active provider. The safeguard runs again here so a
// runtime reconfiguration cannot activate the mock provider in production.
func (s *Service) SetMode(mode Mode) error {
	if err := s.cfg.Safeguard.check(mode, s.providers); err != nil {
		return err
	}
	s.modeMu.Lock()
	s.mode = mode
	s.modeMu.Unlock()
	return nil
}

// Verify runs the full device verification for one request.
func (s *Service) Verify(ctx context.Context, req *VerifyRequest) (*IntegrityContext, error) {
	start := s.now()
	mode := s.Mode()

	provider := s.providers[mode]

	// The client must send the payload the active provider expects;
	// anything else is protocol drift between app and server.
	if req.Attestation.Provider != mode {
		return nil, fmt.Errorf("attestation payload is %q but active provider is %q",
			req.Attestation.Provider, mode)
	}

	result, err := provider.Verify(ctx, req.Attestation)
	if err != nil {
		return nil, fmt.Errorf("verify attestation: %w", err)
	}

	s.validateFreshness(result, req.ExpectedNonce)

	ic := &IntegrityContext{Result: result}
	ic.RootSignals = s.fuseRootSignals(ctx, result, req.RawSignals)
	s.validateBinding(ctx, req, ic)
	ic.TrustScore = trustScore(ic)

	s.metrics.ObserveVerification(mode.String(), result.Valid, s.now().Sub(start))
	s.metrics.IncrementBindingStatus(string(ic.BindingStatus))
	for _, sig := range ic.RootSignals {
		s.metrics.IncrementRootSignal(sig.Type)
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "device verification completed",
			"provider", mode,
			"valid", result.Valid,
			"binding_status", ic.BindingStatus,
			"trust_score", ic.TrustScore,
			"root_signals", len(ic.RootSignals),
			"degraded", ic.Degraded,
		)
	}
	return ic, nil
}

// validateFreshness records nonce and age failures as reasons on the result.
// They invalidate the attestation but never abort the verification.
func (s *Service) validateFreshness(result *VerificationResult, expectedNonce string) {
	if expectedNonce != "" && result.Nonce != expectedNonce {
		result.fail("nonce mismatch")
	}
	if s.cfg.MaxAttestationAge > 0 && !result.IssuedAt.IsZero() {
		if age := s.now().Sub(result.IssuedAt); age > s.cfg.MaxAttestationAge {
			result.fail(fmt.Sprintf("attestation is stale (%s old)", age.Round(time.Second)))
		}
	}
}

// fuseRootSignals runs every adapter in isolation. A panicking or failing
// adapter loses its contribution and nothing else.
func (s *Service) fuseRootSignals(ctx context.Context, result *VerificationResult, raw *RawSignals) []RootSignal {
	var fused []RootSignal
	for _, adapter := range s.adapters {
		signals, err := s.runAdapter(ctx, adapter, result, raw)
		if err != nil {
			s.metrics.IncrementAdapterFailure(adapter.Name())
			if s.logger != nil {
				s.logger.WarnContext(ctx, "root signal adapter failed",
					"adapter", adapter.Name(),
					"error", err,
				)
			}
			continue
		}
		fused = append(fused, signals...)
	}
	return fused
}

func (s *Service) runAdapter(ctx context.Context, adapter RootSignalAdapter, result *VerificationResult, raw *RawSignals) (signals []RootSignal, err error) {
	defer func() {
		if r := recover(); r != nil {
			signals = nil
			err = fmt.Errorf("adapter panic: %v", r)
		}
	}()
	return adapter.Signals(result, raw)
}

// validateBinding resolves the binding status, auto-binding on first sight
// when enabled and a key is present. A store outage degrades the context
// instead of failing it.
func (s *Service) validateBinding(ctx context.Context, req *VerifyRequest, ic *IntegrityContext) {
	presentedKey := ic.Result.DevicePublicKey

	status, err := s.bindings.Validate(ctx, req.UserID, req.DeviceID, presentedKey)
	if err != nil {
		ic.BindingStatus = BindingUnknown
		ic.Degraded = true
		if s.logger != nil {
			s.logger.WarnContext(ctx, "binding store unavailable, verification degraded", "error", err)
		}
		return
	}

	if status == BindingUnbound && s.cfg.AutoBind && len(presentedKey) > 0 && ic.Result.Valid {
		rec := &BindingRecord{
			UserID:          req.UserID,
			DeviceID:        req.DeviceID,
			DevicePublicKey: presentedKey,
			BoundAt:         s.now(),
			Metadata:        req.Metadata,
		}
		if err := s.bindings.Bind(ctx, rec); err != nil {
			// A concurrent bind won the race; re-validate against it.
			revalidated, rerr := s.bindings.Validate(ctx, req.UserID, req.DeviceID, presentedKey)
			if rerr != nil {
				ic.BindingStatus = BindingUnknown
				ic.Degraded = true
				return
			}
			ic.BindingStatus = revalidated
			return
		}
		if s.logger != nil {
			s.logger.InfoContext(ctx, "device auto-bound",
				"user_id", req.UserID,
				"device_id", req.DeviceID,
			)
		}
		ic.BindingStatus = BindingValid
		return
	}

	ic.BindingStatus = status

	if status == BindingMismatch && s.logger != nil {
		s.logger.WarnContext(ctx, "device binding mismatch",
			"user_id", req.UserID,
			"device_id", req.DeviceID,
		)
	}
}

// trustScore combines the normalized verdict, fused root signals, and the
// binding status into a single score in [0, 1].
func trustScore(ic *IntegrityContext) float64 {
	if !ic.Result.Valid {
		return 0
	}

	var score float64
	switch ic.Result.IntegrityLevel {
	case LevelStrong:
		score = 1.0
	case LevelDevice:
		score = 0.85
	case LevelBasic:
		score = 0.6
	default:
		score = 0.3
	}

	for _, sig := range ic.RootSignals {
		switch sig.Type {
		case SignalRoot, SignalJailbreak, SignalHooks:
			score *= 0.2
		case SignalEmulator, SignalBootloader:
			score *= 0.5
		default:
			score *= 0.8
		}
	}

	switch ic.BindingStatus {
	case BindingValid:
		// full credit
	case BindingUnbound:
		score *= 0.9
	case BindingMissingPublicKey:
		score *= 0.7
	case BindingMismatch:
		return 0
	case BindingUnknown:
		if score > 0.5 {
			score = 0.5
		}
	}

	if score < 0 {
		return 0
	}
	if score > 1 {
		return 1
	}
	return score
}
