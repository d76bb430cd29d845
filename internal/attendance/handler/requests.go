package handler

import (
	"time"

	"checkpoint/internal/attendance"
	"checkpoint/internal/integrity"
	"checkpoint/internal/policy"
	id "checkpoint/pkg/domain"
	dErrors "checkpoint/pkg/domain-errors"
)

// CheckInRequest is the wire shape of one check-in attempt.
type CheckInRequest struct {
	UserID    string `json:"user_id"`
	DeviceID  string `json:"device_id"`
	OfficeID  string `json:"office_id,omitempty"`
	Kind      string `json:"kind,omitempty"`
	Timestamp string `json:"timestamp,omitempty"`

	Location *LocationEvidence `json:"location,omitempty"`
	Wifi     *WifiEvidence     `json:"wifi,omitempty"`
	Beacon   *BeaconEvidence   `json:"beacon,omitempty"`
	NFC      *NFCEvidence      `json:"nfc,omitempty"`
	QR       *QREvidence       `json:"qr,omitempty"`
	Face     *FaceEvidence     `json:"face,omitempty"`

	Attestation   *AttestationPayload   `json:"attestation,omitempty"`
	ExpectedNonce string                `json:"expected_nonce,omitempty"`
	RawSignals    *integrity.RawSignals `json:"raw_signals,omitempty"`
}

type LocationEvidence struct {
	Latitude       float64 `json:"latitude"`
	Longitude      float64 `json:"longitude"`
	AccuracyMeters float64 `json:"accuracy_meters,omitempty"`
}

type WifiEvidence struct {
	SSID  string `json:"ssid"`
	BSSID string `json:"bssid,omitempty"`
}

type BeaconEvidence struct {
	UUID  string `json:"uuid"`
	Major int    `json:"major"`
	Minor int    `json:"minor"`
	RSSI  int    `json:"rssi"`
}

type NFCEvidence struct {
	TagID string `json:"tag_id"`
}

type QREvidence struct {
	Token string `json:"token"`
}

type FaceEvidence struct {
	ImageRef string `json:"image_ref"`
}

// AttestationPayload carries the provider verdict token. Payload is base64
// on the wire.
type AttestationPayload struct {
	Provider string `json:"provider"`
	Payload  []byte `json:"payload"`
}

// Parse validates the wire request and converts it to the domain shape.
func (r *CheckInRequest) Parse() (*attendance.CheckInRequest, error) {
	userID, err := id.ParseUserID(r.UserID)
	if err != nil {
		return nil, err
	}
	deviceID, err := id.ParseDeviceID(r.DeviceID)
	if err != nil {
		return nil, err
	}
	kind, err := id.ParseCheckKind(r.Kind)
	if err != nil {
		return nil, err
	}

	req := &attendance.CheckInRequest{
		UserID:        userID,
		DeviceID:      deviceID,
		Kind:          kind,
		ExpectedNonce: r.ExpectedNonce,
		RawSignals:    r.RawSignals,
	}

	if r.OfficeID != "" {
		officeID, err := id.ParseOfficeID(r.OfficeID)
		if err != nil {
			return nil, err
		}
		req.OfficeID = &officeID
	}

	if r.Timestamp != "" {
		ts, err := time.Parse(time.RFC3339, r.Timestamp)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "timestamp must be RFC 3339")
		}
		req.Timestamp = ts
	}

	if r.Attestation != nil {
		provider, err := integrity.ParseMode(r.Attestation.Provider)
		if err != nil {
			return nil, err
		}
		req.Attestation = integrity.Attestation{
			Provider: provider,
			Payload:  r.Attestation.Payload,
		}
	}

	if r.Location != nil {
		req.Location = &policy.LocationEvidence{
			Latitude:       r.Location.Latitude,
			Longitude:      r.Location.Longitude,
			AccuracyMeters: r.Location.AccuracyMeters,
		}
	}
	if r.Wifi != nil {
		req.Wifi = &policy.WifiEvidence{SSID: r.Wifi.SSID, BSSID: r.Wifi.BSSID}
	}
	if r.Beacon != nil {
		req.Beacon = &policy.BeaconEvidence{
			UUID:  r.Beacon.UUID,
			Major: r.Beacon.Major,
			Minor: r.Beacon.Minor,
			RSSI:  r.Beacon.RSSI,
		}
	}
	if r.NFC != nil {
		req.NFC = &policy.NFCEvidence{TagID: r.NFC.TagID}
	}
	if r.QR != nil {
		req.QR = &policy.QREvidence{Token: r.QR.Token}
	}
	if r.Face != nil {
		req.Face = &policy.FaceEvidence{ImageRef: r.Face.ImageRef}
	}

	return req, nil
}
