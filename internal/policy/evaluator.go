package policy

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"checkpoint/internal/policy/metrics"
	id "checkpoint/pkg/domain"
)

// FactorResult is the recorded outcome of one presence mode evaluation.
type FactorResult struct {
	Mode       id.Mode `json:"mode"`
	Required   bool    `json:"required"`
	Weight     float64 `json:"weight"`
	Passed     bool    `json:"passed"`
	Confidence float64 `json:"confidence"`
	Detail     string  `json:"detail,omitempty"`
}

// Evaluation is the outcome of applying one policy to one attempt.
type Evaluation struct {
	Decision        id.Decision       `json:"decision"`
	Rationale       string            `json:"rationale"`
	FactorsPassed   int               `json:"factors_passed"`
	FactorsRequired int               `json:"factors_required"`
	WeightedPasses  float64           `json:"weighted_passes"`
	FactorResults   []FactorResult    `json:"factor_results"`
	PolicyID        id.PolicyID       `json:"policy_id"`
	PolicyVersion   int               `json:"policy_version"`
	Metadata        map[string]string `json:"metadata,omitempty"`
}

// Evaluator applies a policy document to an evaluation context using
// pluggable per-mode factor checkers. The checker registry is owned by the
// evaluator and built at startup; there is no ambient registration.
type Evaluator struct {
	checkers map[id.Mode]FactorChecker
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

// EvaluatorOption configures an Evaluator.
type EvaluatorOption func(*Evaluator)

// WithLogger sets the evaluator logger.
func WithLogger(logger *slog.Logger) EvaluatorOption {
	return func(e *Evaluator) { e.logger = logger }
}

// WithMetrics sets the evaluator metrics.
func WithMetrics(m *metrics.Metrics) EvaluatorOption {
	return func(e *Evaluator) { e.metrics = m }
}

// NewEvaluator constructs an evaluator over the given checkers. Later
// checkers with a duplicate mode override earlier ones.
func NewEvaluator(checkers []FactorChecker, opts ...EvaluatorOption) *Evaluator {
	byMode := make(map[id.Mode]FactorChecker, len(checkers))
	for _, c := range checkers {
		byMode[c.Mode()] = c
	}
	e := &Evaluator{checkers: byMode}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every configured presence mode, then applies the decision
// rules in precedence order. Factor checks fan out in parallel; results keep
// the policy's configured order.
func (e *Evaluator) Evaluate(ctx context.Context, pol *Policy, ec *EvaluationContext) *Evaluation {
	start := time.Now()

	eval := &Evaluation{
		PolicyID:        pol.ID,
		PolicyVersion:   pol.Version,
		FactorsRequired: pol.RequiredFactors.MinFactors,
	}

	// A policy with nothing configured accepts unconditionally.
	if len(pol.RequiredFactors.Factors) == 0 && pol.RequiredFactors.MinFactors == 0 {
		eval.Decision = id.DecisionAccepted
		eval.Rationale = "no presence factors configured"
		e.observe(eval, start)
		return eval
	}

	eval.FactorResults = e.gatherFactors(ctx, pol, ec)

	requiredFailed := false
	anyPassed := false
	for _, fr := range eval.FactorResults {
		if fr.Passed {
			anyPassed = true
			eval.FactorsPassed++
			eval.WeightedPasses += effectiveWeight(fr.Weight)
		} else if fr.Required {
			requiredFailed = true
		}
	}

	switch {
	// Rule 1: a failed required mode without fallback is terminal.
	case requiredFailed && !pol.RequiredFactors.AllowFallback:
		eval.Decision = id.DecisionRejected
		eval.Rationale = fmt.Sprintf("required presence factor failed (%s)", failedModes(eval.FactorResults))

	// Rule 2: insufficient weighted passes.
	case eval.WeightedPasses < float64(pol.RequiredFactors.MinFactors):
		if pol.RequiredFactors.AllowFallback && anyPassed {
			eval.Decision = id.DecisionReview
			eval.Rationale = fmt.Sprintf("insufficient presence factors (%d/%d), fallback to review",
				eval.FactorsPassed, pol.RequiredFactors.MinFactors)
		} else {
			eval.Decision = id.DecisionRejected
			eval.Rationale = fmt.Sprintf("insufficient presence factors (%d/%d)",
				eval.FactorsPassed, pol.RequiredFactors.MinFactors)
		}

	default:
		eval.Decision, eval.Rationale = e.applyTimeRules(pol, ec)
	}

	e.observe(eval, start)
	return eval
}

// gatherFactors fans the configured modes out to their checkers in parallel.
// Absent evidence and unregistered checkers fail the factor without invoking
// anything; a checker error degrades to a failed factor, never an abort.
func (e *Evaluator) gatherFactors(ctx context.Context, pol *Policy, ec *EvaluationContext) []FactorResult {
	results := make([]FactorResult, len(pol.RequiredFactors.Factors))

	g, gctx := errgroup.WithContext(ctx)
	for i, req := range pol.RequiredFactors.Factors {
		results[i] = FactorResult{Mode: req.Mode, Required: req.Required, Weight: req.Weight}

		evidence := ec.Evidence(req.Mode)
		if evidence == nil {
			results[i].Detail = "no evidence supplied"
			continue
		}

		checker, ok := e.checkers[req.Mode]
		if !ok {
			results[i].Detail = "no checker registered for mode"
			if e.logger != nil {
				e.logger.WarnContext(ctx, "presence mode configured without a registered checker",
					"mode", req.Mode,
					"policy_id", pol.ID,
				)
			}
			continue
		}

		g.Go(func() error {
			checkStart := time.Now()
			finding, err := checker.Check(gctx, ec, evidence, pol)
			e.metrics.ObserveFactorLatency(req.Mode.String(), time.Since(checkStart))

			if err != nil {
				// A flaky collaborator degrades to a failed factor.
				results[i].Detail = "factor check failed: " + err.Error()
				if e.logger != nil {
					e.logger.WarnContext(gctx, "factor checker error",
						"mode", req.Mode,
						"error", err,
					)
				}
				return nil
			}
			results[i].Passed = finding.Passed
			results[i].Confidence = finding.Confidence
			results[i].Detail = finding.Detail
			return nil
		})
	}
	_ = g.Wait()

	return results
}

// applyTimeRules handles working hours and lateness once factor rules have
// passed. Time alone never rejects.
func (e *Evaluator) applyTimeRules(pol *Policy, ec *EvaluationContext) (id.Decision, string) {
	wh := pol.WorkingHours
	if wh == nil {
		return id.DecisionAccepted, "all presence factors satisfied"
	}

	ts := ec.Timestamp
	if !weekdayAllowed(wh.Weekdays, ts.Weekday()) {
		return id.DecisionReview, fmt.Sprintf("check-in on non-working day %s", ts.Weekday())
	}

	startMin, err1 := parseClock(wh.Start)
	endMin, err2 := parseClock(wh.End)
	if err1 != nil || err2 != nil {
		// Validate rejects malformed windows at publish; a corrupt stored
		// document degrades to review rather than blocking attendance.
		return id.DecisionReview, "working hours window unparseable"
	}

	minuteOfDay := ts.Hour()*60 + ts.Minute()
	if minuteOfDay < startMin || minuteOfDay > endMin {
		return id.DecisionReview, fmt.Sprintf("outside working hours %s-%s", wh.Start, wh.End)
	}

	switch ec.Kind {
	case id.CheckKindOut:
		if early := endMin - minuteOfDay; pol.Thresholds.EarlyLeaveBeforeMinutes > 0 && early > 0 && early >= pol.Thresholds.EarlyLeaveBeforeMinutes {
			return id.DecisionReview, fmt.Sprintf("early departure by %d minutes", early)
		}
	default:
		if late := minuteOfDay - startMin; pol.Thresholds.LateAfterMinutes > 0 && late > pol.Thresholds.LateAfterMinutes {
			return id.DecisionReview, fmt.Sprintf("late by %d minutes", late)
		}
	}

	return id.DecisionAccepted, "all presence factors satisfied"
}

func (e *Evaluator) observe(eval *Evaluation, start time.Time) {
	e.metrics.IncrementOutcome(eval.Decision.String())
	e.metrics.ObserveEvaluateLatency(time.Since(start))
}

// effectiveWeight treats an unset (zero) weight as 1 so unweighted policies
// count factors plainly.
func effectiveWeight(w float64) float64 {
	if w == 0 {
		return 1
	}
	return w
}

func weekdayAllowed(days []time.Weekday, d time.Weekday) bool {
	if len(days) == 0 {
		return true
	}
	for _, day := range days {
		if day == d {
			return true
		}
	}
	return false
}

func failedModes(results []FactorResult) string {
	var failed []string
	for _, fr := range results {
		if fr.Required && !fr.Passed {
			failed = append(failed, fr.Mode.String())
		}
	}
	return strings.Join(failed, ", ")
}
