package httpapi

import (
	"context"
	"math"
	"net/http"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/ports/secondary"
)

// HospitalSearch implements secondary.HospitalSearch via POST /api/hospitals/top3.
type HospitalSearch struct {
	client *Client
}

// NewHospitalSearch creates a search adapter.
func NewHospitalSearch(client *Client) *HospitalSearch {
	return &HospitalSearch{client: client}
}

type top3Request struct {
	Lat     float64 `json:"lat"`
	Lon     float64 `json:"lon"`
	Symptom string  `json:"symptom,omitempty"`
	STTText string  `json:"stt_text,omitempty"`
}

type top3Response struct {
	Hospitals []hospitalPayload `json:"hospitals"`
	Backup    []hospitalPayload `json:"backup_hospitals"`
	Neighbor  []hospitalPayload `json:"neighbor_hospitals"`
}

type hospitalPayload struct {
	HPID       string     `json:"hpid"`
	Name       string     `json:"dutyName"`
	Address    string     `json:"dutyAddr"`
	Phone      string     `json:"dutytel3"`
	Lat        flexFloat  `json:"wgs84Lat"`
	Lon        flexFloat  `json:"wgs84Lon"`
	DistanceKm *flexFloat `json:"distance_km"`
	EtaMinutes *flexFloat `json:"eta_minutes"`
	EmclsName  string     `json:"dutyEmclsName"`
}

func (s *HospitalSearch) Search(ctx context.Context, query secondary.SearchQuery) (dispatch.Tiers, error) {
	var resp top3Response
	err := s.client.do(ctx, http.MethodPost, "/api/hospitals/top3", top3Request{
		Lat:     query.Lat,
		Lon:     query.Lon,
		Symptom: query.Symptom,
		STTText: query.Summary,
	}, &resp)
	if err != nil {
		return dispatch.Tiers{}, err
	}

	return dispatch.Tiers{
		Primary:  toCandidates(resp.Hospitals, dispatch.TierPrimary),
		Backup:   toCandidates(resp.Backup, dispatch.TierBackup),
		Neighbor: toCandidates(resp.Neighbor, dispatch.TierNeighbor),
	}, nil
}

func toCandidates(payloads []hospitalPayload, tier dispatch.Tier) []dispatch.Candidate {
	out := make([]dispatch.Candidate, 0, len(payloads))
	for _, p := range payloads {
		c := dispatch.Candidate{
			HospitalID:     p.HPID,
			Name:           p.Name,
			Address:        p.Address,
			Phone:          p.Phone,
			EmergencyClass: p.EmclsName,
			Lat:            float64(p.Lat),
			Lon:            float64(p.Lon),
			Tier:           tier,
		}
		if p.DistanceKm != nil {
			c.DistanceKm = float64(*p.DistanceKm)
		}
		if p.EtaMinutes != nil {
			c.EtaMinutes = int(math.Round(float64(*p.EtaMinutes)))
		}
		out = append(out, c)
	}
	return out
}

var _ secondary.HospitalSearch = (*HospitalSearch)(nil)
