package factors

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"checkpoint/internal/policy"
	id "checkpoint/pkg/domain"
	dErrors "checkpoint/pkg/domain-errors"
	"checkpoint/pkg/platform/sentinel"
)

// NFCChecker verifies a scanned tag ID against the office tag registry.
type NFCChecker struct {
	tags TagDirectory
}

// NewNFCChecker constructs an NFC checker over the given directory.
func NewNFCChecker(tags TagDirectory) *NFCChecker {
	return &NFCChecker{tags: tags}
}

func (c *NFCChecker) Mode() id.Mode { return id.ModeNFC }

func (c *NFCChecker) Check(ctx context.Context, ec *policy.EvaluationContext, evidence any, pol *policy.Policy) (policy.FactorFinding, error) {
	scan, ok := evidence.(*policy.NFCEvidence)
	if !ok {
		return policy.FactorFinding{}, dErrors.New(dErrors.CodeInternal, "nfc checker received unexpected evidence payload")
	}
	if ec.OfficeID == nil {
		return policy.FactorFinding{Detail: "no office to verify against"}, nil
	}

	registered, err := c.tags.Tags(ctx, *ec.OfficeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return policy.FactorFinding{Detail: "office has no registered tags"}, nil
		}
		return policy.FactorFinding{}, fmt.Errorf("resolve office tags: %w", err)
	}

	for _, tag := range registered {
		if strings.EqualFold(tag, scan.TagID) {
			return policy.FactorFinding{Passed: true, Confidence: 1, Detail: "registered tag"}, nil
		}
	}

	return policy.FactorFinding{Detail: "tag not registered for office"}, nil
}
