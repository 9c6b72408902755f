// Package fixture serves hospital search results from a YAML file, for
// drills and offline operation without the search backend.
package fixture

import (
	"context"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/ports/secondary"
)

// File is the on-disk layout.
type File struct {
	Primary  []Hospital `yaml:"primary"`
	Backup   []Hospital `yaml:"backup"`
	Neighbor []Hospital `yaml:"neighbor"`
}

// Hospital is one candidate entry.
type Hospital struct {
	HPID       string  `yaml:"hpid"`
	Name       string  `yaml:"name"`
	Phone      string  `yaml:"phone,omitempty"`
	Address    string  `yaml:"address,omitempty"`
	Class      string  `yaml:"class,omitempty"`
	Lat        float64 `yaml:"lat,omitempty"`
	Lon        float64 `yaml:"lon,omitempty"`
	DistanceKm float64 `yaml:"distance_km,omitempty"`
	EtaMinutes int     `yaml:"eta_minutes,omitempty"`
}

// HospitalSearch implements secondary.HospitalSearch from a fixture file.
// The file is re-read on every search so edits apply to the next research.
type HospitalSearch struct {
	path string
}

// NewHospitalSearch creates a fixture search over the file at path.
func NewHospitalSearch(path string) *HospitalSearch {
	return &HospitalSearch{path: path}
}

func (s *HospitalSearch) Search(ctx context.Context, query secondary.SearchQuery) (dispatch.Tiers, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return dispatch.Tiers{}, fmt.Errorf("failed to read candidate file: %w", err)
	}
	return Parse(data)
}

// Parse decodes a fixture document into tiers.
func Parse(data []byte) (dispatch.Tiers, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return dispatch.Tiers{}, fmt.Errorf("failed to parse candidate file: %w", err)
	}
	return dispatch.Tiers{
		Primary:  convert(f.Primary, dispatch.TierPrimary),
		Backup:   convert(f.Backup, dispatch.TierBackup),
		Neighbor: convert(f.Neighbor, dispatch.TierNeighbor),
	}, nil
}

func convert(hs []Hospital, tier dispatch.Tier) []dispatch.Candidate {
	out := make([]dispatch.Candidate, 0, len(hs))
	for _, h := range hs {
		out = append(out, dispatch.Candidate{
			HospitalID:     h.HPID,
			Name:           h.Name,
			Address:        h.Address,
			Phone:          h.Phone,
			EmergencyClass: h.Class,
			Lat:            h.Lat,
			Lon:            h.Lon,
			DistanceKm:     h.DistanceKm,
			EtaMinutes:     h.EtaMinutes,
			Tier:           tier,
		})
	}
	return out
}

var _ secondary.HospitalSearch = (*HospitalSearch)(nil)
