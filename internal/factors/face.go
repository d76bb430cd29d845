package factors

import (
	"context"
	"fmt"

	"checkpoint/internal/policy"
	id "checkpoint/pkg/domain"
	dErrors "checkpoint/pkg/domain-errors"
)

// RecognitionResult is what the face recognition collaborator reports for
// one capture.
type RecognitionResult struct {
	Match      bool
	Confidence float64
	Live       bool
}

// FaceRecognizer is the external recognition service boundary.
type FaceRecognizer interface {
	Recognize(ctx context.Context, userID id.UserID, imageRef string) (*RecognitionResult, error)
}

// FaceChecker delegates capture verification to the recognition collaborator
// and enforces the policy's liveness block. A liveness failure fails the
// factor regardless of how confident the match is.
type FaceChecker struct {
	recognizer FaceRecognizer
}

// NewFaceChecker constructs a face checker over the given recognizer.
func NewFaceChecker(recognizer FaceRecognizer) *FaceChecker {
	return &FaceChecker{recognizer: recognizer}
}

func (c *FaceChecker) Mode() id.Mode { return id.ModeFace }

func (c *FaceChecker) Check(ctx context.Context, ec *policy.EvaluationContext, evidence any, pol *policy.Policy) (policy.FactorFinding, error) {
	capture, ok := evidence.(*policy.FaceEvidence)
	if !ok {
		return policy.FactorFinding{}, dErrors.New(dErrors.CodeInternal, "face checker received unexpected evidence payload")
	}

	result, err := c.recognizer.Recognize(ctx, ec.UserID, capture.ImageRef)
	if err != nil {
		return policy.FactorFinding{}, fmt.Errorf("face recognition: %w", err)
	}

	requireLiveness := pol.Liveness == nil || pol.Liveness.RequireLiveness
	if requireLiveness && !result.Live {
		return policy.FactorFinding{Confidence: result.Confidence, Detail: "liveness check failed"}, nil
	}
	if !result.Match {
		return policy.FactorFinding{Confidence: result.Confidence, Detail: "face did not match enrolled user"}, nil
	}

	minConfidence := 0.0
	if pol.Liveness != nil {
		minConfidence = pol.Liveness.MinConfidence
	}
	if result.Confidence < minConfidence {
		return policy.FactorFinding{
			Confidence: result.Confidence,
			Detail:     fmt.Sprintf("match confidence %.2f below minimum %.2f", result.Confidence, minConfidence),
		}, nil
	}

	return policy.FactorFinding{Passed: true, Confidence: result.Confidence, Detail: "face matched"}, nil
}
