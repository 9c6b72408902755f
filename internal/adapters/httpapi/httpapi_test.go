package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/ports/secondary"
)

// ============================================================================
// Fake backend
// ============================================================================

type fakeBackend struct {
	mu       sync.Mutex
	bodies   map[string][]map[string]any
	sessions int // GET /api/chat/session answers 404 this many times
}

func newFakeBackend(t *testing.T) (*fakeBackend, *Client) {
	t.Helper()
	fb := &fakeBackend{bodies: make(map[string][]map[string]any)}
	srv := httptest.NewServer(fb.routes())
	t.Cleanup(srv.Close)
	return fb, NewClient(srv.URL+"/", time.Second)
}

func (fb *fakeBackend) record(r *http.Request) map[string]any {
	var body map[string]any
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}
	fb.mu.Lock()
	fb.bodies[r.URL.Path] = append(fb.bodies[r.URL.Path], body)
	fb.mu.Unlock()
	return body
}

func (fb *fakeBackend) last(path string) map[string]any {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	b := fb.bodies[path]
	if len(b) == 0 {
		return nil
	}
	return b[len(b)-1]
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func (fb *fakeBackend) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/hospitals/top3", func(w http.ResponseWriter, r *http.Request) {
		fb.record(r)
		writeJSON(w, 200, map[string]any{
			"hospitals": []map[string]any{
				{"hpid": "A1", "dutyName": "Alpha", "dutytel3": "02-1", "wgs84Lat": "37.51", "wgs84Lon": 127.01, "distance_km": 2.5, "eta_minutes": 6.6},
			},
			"backup_hospitals": []map[string]any{
				{"hpid": "B1", "dutyName": "Beta", "distance_km": nil, "eta_minutes": nil},
			},
			"neighbor_hospitals": []map[string]any{},
			"route_paths":        map[string]any{},
		})
	})
	mux.HandleFunc("/api/telephony/call", func(w http.ResponseWriter, r *http.Request) {
		fb.record(r)
		writeJSON(w, 200, map[string]any{"call_sid": "CA123"})
	})
	mux.HandleFunc("/api/telephony/response/", func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/api/telephony/response/") {
		case "CA123":
			writeJSON(w, 200, map[string]any{"digit": "1", "status": "in-progress"})
		case "CA-ringing":
			writeJSON(w, 200, map[string]any{"digit": nil, "status": "ringing"})
		default:
			writeJSON(w, 404, map[string]any{"digit": nil, "status": nil})
		}
	})
	mux.HandleFunc("/api/emergency/request", func(w http.ResponseWriter, r *http.Request) {
		fb.record(r)
		writeJSON(w, 201, map[string]any{"request_id": 41, "team_id": 7})
	})
	mux.HandleFunc("/api/emergency/call-hospital", func(w http.ResponseWriter, r *http.Request) {
		fb.record(r)
		writeJSON(w, 201, map[string]any{"assignment_id": 9, "request_id": 41, "response_status": "대기중"})
	})
	mux.HandleFunc("/api/emergency/update-response", func(w http.ResponseWriter, r *http.Request) {
		body := fb.record(r)
		if body["assignment_id"] == "404" {
			writeJSON(w, 404, map[string]any{"error": "RequestAssignment를 찾을 수 없습니다."})
			return
		}
		resp := map[string]any{"assignment_id": 9, "response_status": body["response_status"]}
		if body["response_status"] == "승인" {
			resp["session_id"] = 3
		}
		writeJSON(w, 200, resp)
	})
	mux.HandleFunc("/api/chat/session", func(w http.ResponseWriter, r *http.Request) {
		fb.mu.Lock()
		notReady := fb.sessions > 0
		if notReady {
			fb.sessions--
		}
		fb.mu.Unlock()
		if notReady {
			writeJSON(w, 404, map[string]any{"error": "채팅 세션을 찾을 수 없습니다."})
			return
		}
		writeJSON(w, 200, map[string]any{"session_id": 3, "assignment_id": r.URL.Query().Get("assignment_id")})
	})
	mux.HandleFunc("/api/geo/route", func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Query().Get("dest_lat") {
		case "37.6":
			writeJSON(w, 200, map[string]any{"distance_km": 4.2, "eta_minutes": 11})
		case "37.7":
			writeJSON(w, 200, map[string]any{"distance_km": nil, "eta_minutes": nil})
		default:
			writeJSON(w, 500, map[string]any{"error": "kakao down"})
		}
	})
	return mux
}

// ============================================================================
// Tests
// ============================================================================

func TestHospitalSearch_DecodesTiers(t *testing.T) {
	fb, client := newFakeBackend(t)
	search := NewHospitalSearch(client)

	tiers, err := search.Search(context.Background(), secondary.SearchQuery{Lat: 37.5, Lon: 127.0, Symptom: "흉통", Summary: "60대 남성 흉통"})
	require.NoError(t, err)

	require.Len(t, tiers.Primary, 1)
	a := tiers.Primary[0]
	assert.Equal(t, "A1", a.HospitalID)
	assert.Equal(t, dispatch.TierPrimary, a.Tier)
	assert.InDelta(t, 37.51, a.Lat, 1e-9)
	assert.Equal(t, 7, a.EtaMinutes)
	assert.Equal(t, 2.5, a.DistanceKm)

	require.Len(t, tiers.Backup, 1)
	assert.Equal(t, dispatch.TierBackup, tiers.Backup[0].Tier)
	assert.Zero(t, tiers.Backup[0].EtaMinutes)
	assert.Empty(t, tiers.Neighbor)

	body := fb.last("/api/hospitals/top3")
	assert.Equal(t, "흉통", body["symptom"])
	assert.Equal(t, "60대 남성 흉통", body["stt_text"])
}

func TestTelephony_PlaceAndPoll(t *testing.T) {
	fb, client := newFakeBackend(t)
	tel := NewTelephony(client)
	ctx := context.Background()

	ref, err := tel.PlaceAcceptanceCall(ctx, dispatch.Candidate{HospitalID: "A1", Name: "Alpha", Phone: "02-1"}, "현재 60대 남성 흉통")
	require.NoError(t, err)
	assert.Equal(t, "CA123", ref)
	assert.Equal(t, "현재 60대 남성 흉통", fb.last("/api/telephony/call")["patient_info"])

	tests := []struct {
		ref    string
		want   secondary.CallStatus
		notFnd bool
	}{
		{ref: "CA123", want: secondary.CallStatus{Digit: "1", Status: "in-progress"}},
		{ref: "CA-ringing", want: secondary.CallStatus{Status: "ringing"}},
		{ref: "CA-unknown", notFnd: true},
	}
	for _, tt := range tests {
		t.Run(tt.ref, func(t *testing.T) {
			got, err := tel.GetCallStatus(ctx, tt.ref)
			if tt.notFnd {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrStatus))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestAssignmentStore_Flow(t *testing.T) {
	fb, client := newFakeBackend(t)
	store := NewAssignmentStore(client)
	ctx := context.Background()

	reqID, err := store.CreateRequest(ctx, secondary.RequestRecord{TeamID: "7", PatientSex: "male", PatientAge: 67, PreKTAS: 2, Lat: 37.5, Lon: 127})
	require.NoError(t, err)
	assert.Equal(t, "41", reqID)
	assert.Equal(t, "2", fb.last("/api/emergency/request")["pre_ktas_class"])

	asgID, err := store.CreateAssignment(ctx, secondary.AssignmentRecord{RequestID: reqID, HospitalID: "A1", CallRef: "CA123", EtaMinutes: 7})
	require.NoError(t, err)
	assert.Equal(t, "9", asgID)
	assert.Equal(t, "CA123", fb.last("/api/emergency/call-hospital")["twilio_sid"])

	session, err := store.UpdateAssignmentStatus(ctx, asgID, secondary.AssignmentApproved)
	require.NoError(t, err)
	assert.Equal(t, "3", session)
	assert.Equal(t, "승인", fb.last("/api/emergency/update-response")["response_status"])

	session, err = store.UpdateAssignmentStatus(ctx, asgID, secondary.AssignmentRejected)
	require.NoError(t, err)
	assert.Empty(t, session)
	assert.Equal(t, "거절", fb.last("/api/emergency/update-response")["response_status"])
}

func TestAssignmentStore_Errors(t *testing.T) {
	_, client := newFakeBackend(t)
	store := NewAssignmentStore(client)
	ctx := context.Background()

	_, err := store.UpdateAssignmentStatus(ctx, "404", secondary.AssignmentApproved)
	assert.True(t, errors.Is(err, secondary.ErrNotFound), "got %v", err)

	_, err = store.UpdateAssignmentStatus(ctx, "9", "maybe")
	assert.Error(t, err)
}

func TestAssignmentStore_SessionNotReady(t *testing.T) {
	fb, client := newFakeBackend(t)
	store := NewAssignmentStore(client)
	fb.sessions = 1

	_, err := store.GetOrCreateSession(context.Background(), "41", "9")
	assert.ErrorIs(t, err, errSessionNotReady)

	session, err := store.GetOrCreateSession(context.Background(), "41", "9")
	require.NoError(t, err)
	assert.Equal(t, "3", session)
}

func TestRouteService_OmitsUnroutable(t *testing.T) {
	_, client := newFakeBackend(t)
	routes := NewRouteService(client)
	origin := secondary.Location{Lat: 37.5, Lon: 127}

	got, err := routes.Routes(context.Background(), origin, []dispatch.Candidate{
		{HospitalID: "OK", Lat: 37.6, Lon: 127},
		{HospitalID: "NULL", Lat: 37.7, Lon: 127},
		{HospitalID: "FAIL", Lat: 37.8, Lon: 127},
		{HospitalID: "NOCOORD"},
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]dispatch.RouteInfo{"OK": {DistanceKm: 4.2, EtaMinutes: 11}}, got)

	_, err = routes.Routes(context.Background(), origin, []dispatch.Candidate{{HospitalID: "FAIL", Lat: 37.8, Lon: 127}})
	assert.Error(t, err)
}

func TestFlexString(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: `"abc"`, want: "abc"},
		{in: `42`, want: "42"},
		{in: `null`, want: ""},
		{in: `true`, wantErr: true},
	}
	for _, tt := range tests {
		var f flexString
		err := json.Unmarshal([]byte(tt.in), &f)
		if tt.wantErr {
			assert.Error(t, err, tt.in)
			continue
		}
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.want, string(f))
	}
}
