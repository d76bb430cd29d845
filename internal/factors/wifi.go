package factors

import (
	"context"
	"errors"
	"fmt"

	"checkpoint/internal/policy"
	id "checkpoint/pkg/domain"
	dErrors "checkpoint/pkg/domain-errors"
	"checkpoint/pkg/platform/sentinel"
)

// WifiChecker verifies the reported network against the office allowlist.
// BSSID matching is the strong signal; an allowlist entry without a BSSID
// accepts any access point with the SSID, at lower confidence.
type WifiChecker struct {
	networks NetworkDirectory
}

// NewWifiChecker constructs a wifi checker over the given directory.
func NewWifiChecker(networks NetworkDirectory) *WifiChecker {
	return &WifiChecker{networks: networks}
}

func (c *WifiChecker) Mode() id.Mode { return id.ModeWifi }

func (c *WifiChecker) Check(ctx context.Context, ec *policy.EvaluationContext, evidence any, pol *policy.Policy) (policy.FactorFinding, error) {
	wifi, ok := evidence.(*policy.WifiEvidence)
	if !ok {
		return policy.FactorFinding{}, dErrors.New(dErrors.CodeInternal, "wifi checker received unexpected evidence payload")
	}
	if ec.OfficeID == nil {
		return policy.FactorFinding{Detail: "no office to verify against"}, nil
	}

	allowed, err := c.networks.Networks(ctx, *ec.OfficeID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return policy.FactorFinding{Detail: "office has no registered networks"}, nil
		}
		return policy.FactorFinding{}, fmt.Errorf("resolve office networks: %w", err)
	}

	reported := normalizeMAC(wifi.BSSID)
	for _, n := range allowed {
		if n.SSID != wifi.SSID {
			continue
		}
		if n.BSSID == "" {
			return policy.FactorFinding{Passed: true, Confidence: 0.7, Detail: "ssid matched"}, nil
		}
		if normalizeMAC(n.BSSID) == reported {
			return policy.FactorFinding{Passed: true, Confidence: 1, Detail: "ssid and bssid matched"}, nil
		}
	}

	return policy.FactorFinding{Detail: fmt.Sprintf("network %q not in office allowlist", wifi.SSID)}, nil
}
