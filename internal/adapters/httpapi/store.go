package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/example/safebridge/internal/ports/secondary"
)

// errSessionNotReady is returned while the backend has not created the chat session yet.
var errSessionNotReady = errors.New("session not ready")

// Response statuses as stored by the backend.
var backendStatus = map[string]string{
	secondary.AssignmentApproved: "승인",
	secondary.AssignmentRejected: "거절",
	secondary.AssignmentPending:  "대기중",
}

// AssignmentStore implements secondary.AssignmentStore via the emergency and chat endpoints.
type AssignmentStore struct {
	client *Client
}

// NewAssignmentStore creates a store adapter.
func NewAssignmentStore(client *Client) *AssignmentStore {
	return &AssignmentStore{client: client}
}

type emergencyRequest struct {
	TeamID      string  `json:"team_id"`
	PatientSex  string  `json:"patient_sex"`
	PatientAge  int     `json:"patient_age"`
	PreKTAS     string  `json:"pre_ktas_class"`
	STTFullText string  `json:"stt_full_text,omitempty"`
	RAGSummary  string  `json:"rag_summary,omitempty"`
	CurrentLat  float64 `json:"current_lat"`
	CurrentLon  float64 `json:"current_lon"`
}

type callHospitalRequest struct {
	RequestID  string  `json:"request_id"`
	HospitalID string  `json:"hospital_id"`
	DistanceKm float64 `json:"distance_km,omitempty"`
	EtaMinutes int     `json:"eta_minutes,omitempty"`
	TwilioSID  string  `json:"twilio_sid,omitempty"`
}

type updateResponseRequest struct {
	AssignmentID string `json:"assignment_id"`
	Status       string `json:"response_status"`
}

type idResponse struct {
	RequestID    flexString `json:"request_id"`
	AssignmentID flexString `json:"assignment_id"`
	SessionID    flexString `json:"session_id"`
}

func (s *AssignmentStore) CreateRequest(ctx context.Context, req secondary.RequestRecord) (string, error) {
	var resp idResponse
	err := s.client.do(ctx, http.MethodPost, "/api/emergency/request", emergencyRequest{
		TeamID:      req.TeamID,
		PatientSex:  req.PatientSex,
		PatientAge:  req.PatientAge,
		PreKTAS:     fmt.Sprint(req.PreKTAS),
		STTFullText: req.Transcript,
		RAGSummary:  req.Summary,
		CurrentLat:  req.Lat,
		CurrentLon:  req.Lon,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	if resp.RequestID == "" {
		return "", fmt.Errorf("failed to create request: no request_id returned")
	}
	return string(resp.RequestID), nil
}

func (s *AssignmentStore) CreateAssignment(ctx context.Context, a secondary.AssignmentRecord) (string, error) {
	var resp idResponse
	err := s.client.do(ctx, http.MethodPost, "/api/emergency/call-hospital", callHospitalRequest{
		RequestID:  a.RequestID,
		HospitalID: a.HospitalID,
		DistanceKm: a.DistanceKm,
		EtaMinutes: a.EtaMinutes,
		TwilioSID:  a.CallRef,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to create assignment: %w", err)
	}
	if resp.AssignmentID == "" {
		return "", fmt.Errorf("failed to create assignment: no assignment_id returned")
	}
	return string(resp.AssignmentID), nil
}

func (s *AssignmentStore) UpdateAssignmentStatus(ctx context.Context, assignmentID, status string) (string, error) {
	label, ok := backendStatus[status]
	if !ok {
		return "", fmt.Errorf("invalid assignment status %q", status)
	}

	var resp idResponse
	err := s.client.do(ctx, http.MethodPost, "/api/emergency/update-response", updateResponseRequest{
		AssignmentID: assignmentID,
		Status:       label,
	}, &resp)
	if isStatus(err, http.StatusNotFound) {
		return "", fmt.Errorf("assignment %s: %w", assignmentID, secondary.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("failed to update assignment: %w", err)
	}
	return string(resp.SessionID), nil
}

// GetOrCreateSession looks the session up by assignment. The backend creates
// sessions on approval, so a missing session is reported as retryable.
func (s *AssignmentStore) GetOrCreateSession(ctx context.Context, requestID, assignmentID string) (string, error) {
	q := url.Values{}
	if assignmentID != "" {
		q.Set("assignment_id", assignmentID)
	} else {
		q.Set("request_id", requestID)
	}

	var resp idResponse
	err := s.client.do(ctx, http.MethodGet, "/api/chat/session?"+q.Encode(), nil, &resp)
	if isStatus(err, http.StatusNotFound) {
		return "", errSessionNotReady
	}
	if err != nil {
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	if resp.SessionID == "" {
		return "", errSessionNotReady
	}
	return string(resp.SessionID), nil
}

var _ secondary.AssignmentStore = (*AssignmentStore)(nil)
