package policy

import (
	"context"

	id "checkpoint/pkg/domain"
)

// FactorFinding is the narrow result every factor collaborator reports.
type FactorFinding struct {
	Passed     bool    `json:"passed"`
	Confidence float64 `json:"confidence"`
	Detail     string  `json:"detail,omitempty"`
}

// FactorChecker verifies one presence mode against its evidence payload.
// Implementations live in internal/factors and behind external services;
// the evaluator treats them uniformly through this port.
//
// The evidence argument is the payload EvaluationContext.Evidence returned
// for the checker's mode; it is never nil (absent evidence short-circuits
// before the checker is invoked).
type FactorChecker interface {
	Mode() id.Mode
	Check(ctx context.Context, ec *EvaluationContext, evidence any, policy *Policy) (FactorFinding, error)
}
