package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/ports/secondary"
)

// Telephony implements secondary.Telephony via the backend's ARS endpoints.
type Telephony struct {
	client *Client
}

// NewTelephony creates a telephony adapter.
func NewTelephony(client *Client) *Telephony {
	return &Telephony{client: client}
}

type callRequest struct {
	HospitalTel  string `json:"hospital_tel,omitempty"`
	HospitalName string `json:"hospital_name,omitempty"`
	PatientInfo  string `json:"patient_info"`
}

type callResponse struct {
	CallSID string `json:"call_sid"`
}

type responseStatus struct {
	Digit  *flexString `json:"digit"`
	Status *string     `json:"status"`
}

func (t *Telephony) PlaceAcceptanceCall(ctx context.Context, candidate dispatch.Candidate, narration string) (string, error) {
	var resp callResponse
	err := t.client.do(ctx, http.MethodPost, "/api/telephony/call", callRequest{
		HospitalTel:  candidate.Phone,
		HospitalName: candidate.Name,
		PatientInfo:  narration,
	}, &resp)
	if err != nil {
		return "", err
	}
	if resp.CallSID == "" {
		return "", fmt.Errorf("call to %s returned no call_sid", candidate.HospitalID)
	}
	return resp.CallSID, nil
}

func (t *Telephony) GetCallStatus(ctx context.Context, callRef string) (secondary.CallStatus, error) {
	var resp responseStatus
	if err := t.client.do(ctx, http.MethodGet, "/api/telephony/response/"+url.PathEscape(callRef), nil, &resp); err != nil {
		return secondary.CallStatus{}, err
	}

	var status secondary.CallStatus
	if resp.Digit != nil {
		status.Digit = string(*resp.Digit)
	}
	if resp.Status != nil {
		status.Status = *resp.Status
	}
	return status, nil
}

var _ secondary.Telephony = (*Telephony)(nil)
