package policy

import (
	"time"

	id "checkpoint/pkg/domain"
)

// EvaluationContext is a single check-in attempt as seen by the evaluator.
// Immutable once constructed; evaluation never mutates it.
type EvaluationContext struct {
	UserID    id.UserID
	DeviceID  id.DeviceID
	OfficeID  *id.OfficeID
	Kind      id.CheckKind
	Timestamp time.Time

	Location *LocationEvidence
	Wifi     *WifiEvidence
	Beacon   *BeaconEvidence
	NFC      *NFCEvidence
	QR       *QREvidence
	Face     *FaceEvidence
}

// LocationEvidence is a reported WGS-84 fix.
type LocationEvidence struct {
	Latitude       float64
	Longitude      float64
	AccuracyMeters float64
}

// WifiEvidence is the network the device reports being attached to.
type WifiEvidence struct {
	SSID  string
	BSSID string
}

// BeaconEvidence is a sighted BLE beacon.
type BeaconEvidence struct {
	UUID  string
	Major int
	Minor int
	RSSI  int
}

// NFCEvidence is a scanned NFC tag.
type NFCEvidence struct {
	TagID string
}

// QREvidence is a scanned rotating QR token.
type QREvidence struct {
	Token string
}

// FaceEvidence is the outcome of the capture step, forwarded to the face
// recognition collaborator.
type FaceEvidence struct {
	ImageRef string
}

// Evidence returns the payload for a mode, or nil when the context does not
// supply it. The evaluator uses this to skip collaborators for absent
// evidence without invoking them.
func (c *EvaluationContext) Evidence(mode id.Mode) any {
	switch mode {
	case id.ModeGeofence:
		if c.Location == nil {
			return nil
		}
		return c.Location
	case id.ModeWifi:
		if c.Wifi == nil {
			return nil
		}
		return c.Wifi
	case id.ModeBeacon:
		if c.Beacon == nil {
			return nil
		}
		return c.Beacon
	case id.ModeNFC:
		if c.NFC == nil {
			return nil
		}
		return c.NFC
	case id.ModeQR:
		if c.QR == nil {
			return nil
		}
		return c.QR
	case id.ModeFace:
		if c.Face == nil {
			return nil
		}
		return c.Face
	}
	return nil
}
