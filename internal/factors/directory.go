// Package factors implements the per-mode presence checkers the policy
// evaluator fans out to. Each checker pulls its reference data through a
// narrow lookup interface so the backing store stays swappable.
package factors

import (
	"context"
	"strings"
	"sync"

	id "checkpoint/pkg/domain"
	"checkpoint/pkg/platform/sentinel"
)

// OfficeGeometry is an office's registered geofence.
type OfficeGeometry struct {
	Latitude     float64 `json:"latitude" yaml:"latitude"`
	Longitude    float64 `json:"longitude" yaml:"longitude"`
	RadiusMeters float64 `json:"radius_meters" yaml:"radius_meters"`
}

// Network is one allowlisted office network. An empty BSSID matches any
// access point broadcasting the SSID.
type Network struct {
	SSID  string `json:"ssid" yaml:"ssid"`
	BSSID string `json:"bssid,omitempty" yaml:"bssid,omitempty"`
}

// Beacon is one registered BLE beacon with its acceptable signal floor.
type Beacon struct {
	UUID    string `json:"uuid" yaml:"uuid"`
	Major   int    `json:"major" yaml:"major"`
	Minor   int    `json:"minor" yaml:"minor"`
	MinRSSI int    `json:"min_rssi" yaml:"min_rssi"`
}

// GeometryDirectory resolves an office's geofence.
type GeometryDirectory interface {
	Geometry(ctx context.Context, officeID id.OfficeID) (*OfficeGeometry, error)
}

// NetworkDirectory resolves an office's allowlisted networks.
type NetworkDirectory interface {
	Networks(ctx context.Context, officeID id.OfficeID) ([]Network, error)
}

// BeaconDirectory resolves an office's registered beacons.
type BeaconDirectory interface {
	Beacons(ctx context.Context, officeID id.OfficeID) ([]Beacon, error)
}

// TagDirectory resolves an office's registered NFC tag IDs.
type TagDirectory interface {
	Tags(ctx context.Context, officeID id.OfficeID) ([]string, error)
}

// Site is the full reference record for one office.
type Site struct {
	OfficeID id.OfficeID     `json:"office_id" yaml:"office_id"`
	Geometry *OfficeGeometry `json:"geometry,omitempty" yaml:"geometry,omitempty"`
	Networks []Network       `json:"networks,omitempty" yaml:"networks,omitempty"`
	Beacons  []Beacon        `json:"beacons,omitempty" yaml:"beacons,omitempty"`
	Tags     []string        `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// InMemorySiteDirectory serves every directory port from a mutex-guarded
// map of sites. Development and tests; registration happens at startup.
type InMemorySiteDirectory struct {
	mu    sync.RWMutex
	sites map[id.OfficeID]*Site
}

// NewInMemorySiteDirectory creates a directory seeded with the given sites.
func NewInMemorySiteDirectory(sites ...*Site) *InMemorySiteDirectory {
	d := &InMemorySiteDirectory{sites: make(map[id.OfficeID]*Site, len(sites))}
	for _, s := range sites {
		d.sites[s.OfficeID] = s
	}
	return d
}

// Register adds or replaces a site record.
func (d *InMemorySiteDirectory) Register(s *Site) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sites[s.OfficeID] = s
}

func (d *InMemorySiteDirectory) Geometry(ctx context.Context, officeID id.OfficeID) (*OfficeGeometry, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.sites[officeID]
	if !ok || s.Geometry == nil {
		return nil, sentinel.ErrNotFound
	}
	out := *s.Geometry
	return &out, nil
}

func (d *InMemorySiteDirectory) Networks(ctx context.Context, officeID id.OfficeID) ([]Network, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.sites[officeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]Network(nil), s.Networks...), nil
}

func (d *InMemorySiteDirectory) Beacons(ctx context.Context, officeID id.OfficeID) ([]Beacon, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.sites[officeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]Beacon(nil), s.Beacons...), nil
}

func (d *InMemorySiteDirectory) Tags(ctx context.Context, officeID id.OfficeID) ([]string, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	s, ok := d.sites[officeID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return append([]string(nil), s.Tags...), nil
}

// normalizeMAC lowercases a BSSID for comparison.
func normalizeMAC(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
