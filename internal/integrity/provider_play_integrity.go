package integrity

import (
	"context"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/golang-jwt/jwt/v5"

	dErrors "checkpoint/pkg/domain-errors"
)

// KeyResolver maps a JWS key id to its verification key.
type KeyResolver interface {
	Resolve(kid string) (any, error)
}

// DirKeyResolver loads PEM-encoded public keys named <kid>.pem from a
// directory. Keys are read per resolution so rotation is a file drop.
type DirKeyResolver struct {
	dir string
}

// NewDirKeyResolver constructs a resolver over the given directory.
func NewDirKeyResolver(dir string) *DirKeyResolver {
	return &DirKeyResolver{dir: dir}
}

func (r *DirKeyResolver) Resolve(kid string) (any, error) {
	// kid is attacker-influenced; never let it escape the key directory.
	if kid == "" || kid != filepath.Base(kid) {
		return nil, fmt.Errorf("invalid key id %q", kid)
	}
	raw, err := os.ReadFile(filepath.Join(r.dir, kid+".pem"))
	if err != nil {
		return nil, fmt.Errorf("read verification key %q: %w", kid, err)
	}
	block, _ := pem.Decode(raw)
	if block == nil {
		return nil, fmt.Errorf("verification key %q is not PEM", kid)
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse verification key %q: %w", kid, err)
	}
	return key, nil
}

// playIntegrityClaims is the decoded Play Integrity verdict token.
type playIntegrityClaims struct {
	Nonce           string `json:"nonce"`
	TimestampMillis int64  `json:"timestampMillis"`
	DeviceID        string `json:"deviceId"`
	DevicePublicKey string `json:"devicePublicKey"` // base64

	DeviceIntegrity struct {
		DeviceRecognitionVerdict []string `json:"deviceRecognitionVerdict"`
	} `json:"deviceIntegrity"`

	AppIntegrity struct {
		AppRecognitionVerdict string `json:"appRecognitionVerdict"`
		PackageName           string `json:"packageName"`
	} `json:"appIntegrity"`

	AccountDetails struct {
		AppLicensingVerdict string `json:"appLicensingVerdict"`
	} `json:"accountDetails"`

	jwt.RegisteredClaims
}

// PlayIntegrityVerifier validates a Play Integrity verdict JWS and maps the
// recognition verdicts onto the normalized integrity level.
type PlayIntegrityVerifier struct {
	keys            KeyResolver
	expectedPackage string
}

// NewPlayIntegrityVerifier constructs the Android verifier.
func NewPlayIntegrityVerifier(keys KeyResolver, expectedPackage string) (*PlayIntegrityVerifier, error) {
	if keys == nil {
		return nil, dErrors.New(dErrors.CodeConfiguration, "play integrity verifier requires a key resolver")
	}
	return &PlayIntegrityVerifier{keys: keys, expectedPackage: expectedPackage}, nil
}

func (v *PlayIntegrityVerifier) Mode() Mode { return ModePlayIntegrity }

func (v *PlayIntegrityVerifier) Verify(ctx context.Context, att Attestation) (*VerificationResult, error) {
	result := &VerificationResult{Provider: ModePlayIntegrity, IntegrityLevel: LevelNone}

	claims := &playIntegrityClaims{}
	token, err := jwt.ParseWithClaims(string(att.Payload), claims, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		return v.keys.Resolve(kid)
	}, jwt.WithValidMethods([]string{
		jwt.SigningMethodRS256.Alg(),
		jwt.SigningMethodES256.Alg(),
	}))
	if err != nil {
		result.fail("verdict token rejected: " + err.Error())
		return result, nil
	}
	if !token.Valid {
		result.fail("verdict token invalid")
		return result, nil
	}

	result.Valid = true
	result.Nonce = claims.Nonce
	result.DeviceID = claims.DeviceID
	if claims.TimestampMillis > 0 {
		result.IssuedAt = time.UnixMilli(claims.TimestampMillis)
	}
	if claims.DevicePublicKey != "" {
		key, err := base64.StdEncoding.DecodeString(claims.DevicePublicKey)
		if err != nil {
			result.Warnings = append(result.Warnings, "device public key is not base64")
		} else {
			result.DevicePublicKey = key
		}
	}

	result.IntegrityLevel = mapDeviceVerdict(claims.DeviceIntegrity.DeviceRecognitionVerdict)
	if result.IntegrityLevel == LevelNone {
		result.RootDetected = true
		result.RiskSignals = append(result.RiskSignals, "device_recognition_failed")
	}
	if result.IntegrityLevel == LevelBasic {
		// Basic-only devices are typically rooted or running custom ROMs.
		result.RiskSignals = append(result.RiskSignals, "basic_integrity_only")
	}

	if v.expectedPackage != "" && claims.AppIntegrity.PackageName != v.expectedPackage {
		result.fail(fmt.Sprintf("verdict issued for package %q", claims.AppIntegrity.PackageName))
	}
	if claims.AppIntegrity.AppRecognitionVerdict == "UNRECOGNIZED_VERSION" {
		result.RiskSignals = append(result.RiskSignals, "unrecognized_app_version")
	}
	if claims.AccountDetails.AppLicensingVerdict == "UNLICENSED" {
		result.RiskSignals = append(result.RiskSignals, "unlicensed_install")
	}

	return result, nil
}

// mapDeviceVerdict maps Play's recognition verdict list onto the strongest
// level it grants.
func mapDeviceVerdict(verdicts []string) IntegrityLevel {
	level := LevelNone
	for _, v := range verdicts {
		switch v {
		case "MEETS_STRONG_INTEGRITY":
			return LevelStrong
		case "MEETS_DEVICE_INTEGRITY":
			level = LevelDevice
		case "MEETS_BASIC_INTEGRITY":
			if level == LevelNone {
				level = LevelBasic
			}
		}
	}
	return level
}
