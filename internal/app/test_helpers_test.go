package app

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/ports/primary"
	"github.com/example/safebridge/internal/ports/secondary"
)

// ============================================================================
// Telephony
// ============================================================================

// Ensure mockTelephony implements the interface
var _ secondary.Telephony = (*mockTelephony)(nil)

// mockTelephony implements secondary.Telephony for testing.
// Call refs are "CA-<hpid>-<n>" where n counts dials of that hospital.
type mockTelephony struct {
	mu       sync.Mutex
	dials    []string
	perHosp  map[string]int
	dialErr  map[string]error
	statuses map[string]secondary.CallStatus // by call ref
	block    chan struct{}                   // when set, dials wait on it
}

func newMockTelephony() *mockTelephony {
	return &mockTelephony{
		perHosp:  make(map[string]int),
		dialErr:  make(map[string]error),
		statuses: make(map[string]secondary.CallStatus),
	}
}

func (m *mockTelephony) PlaceAcceptanceCall(ctx context.Context, candidate dispatch.Candidate, narration string) (string, error) {
	m.mu.Lock()
	block := m.block
	m.dials = append(m.dials, candidate.HospitalID)
	if err := m.dialErr[candidate.HospitalID]; err != nil {
		m.mu.Unlock()
		return "", err
	}
	m.perHosp[candidate.HospitalID]++
	ref := fmt.Sprintf("CA-%s-%d", candidate.HospitalID, m.perHosp[candidate.HospitalID])
	m.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return ref, nil
}

func (m *mockTelephony) GetCallStatus(ctx context.Context, callRef string) (secondary.CallStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if st, ok := m.statuses[callRef]; ok {
		return st, nil
	}
	return secondary.CallStatus{Status: "in-progress"}, nil
}

func (m *mockTelephony) setStatus(callRef, digit, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.statuses[callRef] = secondary.CallStatus{Digit: digit, Status: status}
}

func (m *mockTelephony) failDial(hospitalID string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dialErr[hospitalID] = err
}

func (m *mockTelephony) dialed() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.dials...)
}

// ============================================================================
// Event channel
// ============================================================================

// Ensure mockEventChannel implements the interface
var _ secondary.EventChannel = (*mockEventChannel)(nil)

// mockEventChannel implements secondary.EventChannel for testing.
type mockEventChannel struct {
	mu      sync.Mutex
	subs    []*mockSubscription
	joinErr error
}

type mockSubscription struct {
	caseID string
	ch     chan secondary.PushEvent
	mu     sync.Mutex
	closed bool
}

func (s *mockSubscription) Events() <-chan secondary.PushEvent { return s.ch }

func (s *mockSubscription) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *mockSubscription) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (m *mockEventChannel) Join(ctx context.Context, caseID string) (secondary.Subscription, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.joinErr != nil {
		return nil, m.joinErr
	}
	sub := &mockSubscription{caseID: caseID, ch: make(chan secondary.PushEvent, 16)}
	m.subs = append(m.subs, sub)
	return sub, nil
}

func (m *mockEventChannel) joined() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.subs)
}

func (m *mockEventChannel) sub(i int) *mockSubscription {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.subs[i]
}

func (m *mockEventChannel) push(ev secondary.PushEvent) {
	m.mu.Lock()
	subs := append([]*mockSubscription(nil), m.subs...)
	m.mu.Unlock()
	for _, s := range subs {
		s.ch <- ev
	}
}

// ============================================================================
// Handoff service
// ============================================================================

// Ensure mockHandoffService implements the interface
var _ primary.HandoffService = (*mockHandoffService)(nil)

// mockHandoffService implements primary.HandoffService for testing.
type mockHandoffService struct {
	mu       sync.Mutex
	requests []primary.HandoffRequest
	local    bool
	err      error
	resyncs  int
	ctxErr   error
	block    chan struct{} // when set, Handoff waits for it to close
}

func (m *mockHandoffService) Handoff(ctx context.Context, req primary.HandoffRequest) (dispatch.SessionRef, error) {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	m.ctxErr = ctx.Err()
	if m.err != nil {
		return dispatch.SessionRef{}, m.err
	}
	return dispatch.SessionRef{
		SessionID:  "SESSION-" + req.Case.CaseID,
		HospitalID: req.Hospital.HospitalID,
		Local:      m.local,
		Synced:     !m.local,
	}, nil
}

func (m *mockHandoffService) Resync(ctx context.Context, caseID string) (dispatch.SessionRef, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resyncs++
	return dispatch.SessionRef{}, errors.New("store unavailable")
}

func (m *mockHandoffService) GetHandoff(ctx context.Context, caseID string) (*primary.Handoff, error) {
	return nil, secondary.ErrNotFound
}

func (m *mockHandoffService) ListHandoffs(ctx context.Context, unsyncedOnly bool, limit int) ([]*primary.Handoff, error) {
	return nil, nil
}

func (m *mockHandoffService) resyncCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resyncs
}

func (m *mockHandoffService) lastCtxErr() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ctxErr
}

func (m *mockHandoffService) calls() []primary.HandoffRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]primary.HandoffRequest(nil), m.requests...)
}

// ============================================================================
// Route service
// ============================================================================

// Ensure mockRouteService implements the interface
var _ secondary.RouteService = (*mockRouteService)(nil)

// mockRouteService implements secondary.RouteService for testing.
type mockRouteService struct {
	mu     sync.Mutex
	routes map[string]dispatch.RouteInfo
	asked  [][]string
	err    error
}

func (m *mockRouteService) Routes(ctx context.Context, origin secondary.Location, candidates []dispatch.Candidate) (map[string]dispatch.RouteInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, len(candidates))
	for i, c := range candidates {
		ids[i] = c.HospitalID
	}
	m.asked = append(m.asked, ids)
	if m.err != nil {
		return nil, m.err
	}
	out := make(map[string]dispatch.RouteInfo)
	for _, id := range ids {
		if r, ok := m.routes[id]; ok {
			out[id] = r
		}
	}
	return out, nil
}

// ============================================================================
// Decision log
// ============================================================================

// Ensure mockDecisionLog implements the interface
var _ secondary.DecisionLog = (*mockDecisionLog)(nil)

// mockDecisionLog implements secondary.DecisionLog for testing.
type mockDecisionLog struct {
	mu      sync.Mutex
	records []*secondary.DecisionRecord
	nextID  int
	pruned  int
}

func (m *mockDecisionLog) Create(ctx context.Context, record *secondary.DecisionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, record)
	return nil
}

func (m *mockDecisionLog) GetByID(ctx context.Context, id string) (*secondary.DecisionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.records {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, fmt.Errorf("decision %s: %w", id, secondary.ErrNotFound)
}

func (m *mockDecisionLog) List(ctx context.Context, filters secondary.DecisionFilters) ([]*secondary.DecisionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*secondary.DecisionRecord
	for _, r := range m.records {
		if filters.CaseID != "" && r.CaseID != filters.CaseID {
			continue
		}
		if filters.HospitalID != "" && r.HospitalID != filters.HospitalID {
			continue
		}
		if filters.Decision != "" && r.Decision != filters.Decision {
			continue
		}
		result = append(result, r)
	}
	if filters.Limit > 0 && len(result) > filters.Limit {
		result = result[:filters.Limit]
	}
	return result, nil
}

func (m *mockDecisionLog) GetNextID(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	return fmt.Sprintf("DEC-%04d", m.nextID), nil
}

func (m *mockDecisionLog) PruneOlderThan(ctx context.Context, days int) (int, error) {
	return m.pruned, nil
}

func (m *mockDecisionLog) all() []*secondary.DecisionRecord {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*secondary.DecisionRecord(nil), m.records...)
}

// ============================================================================
// Handoff journal
// ============================================================================

// Ensure mockHandoffJournal implements the interface
var _ secondary.HandoffJournal = (*mockHandoffJournal)(nil)

// mockHandoffJournal implements secondary.HandoffJournal for testing.
type mockHandoffJournal struct {
	mu       sync.Mutex
	records  map[string]secondary.HandoffRecord
	saves    int
	getErr   error
	ctxAware bool // Save fails on a done context, like database/sql
}

func newMockHandoffJournal() *mockHandoffJournal {
	return &mockHandoffJournal{records: make(map[string]secondary.HandoffRecord)}
}

func (m *mockHandoffJournal) Get(ctx context.Context, caseID string) (*secondary.HandoffRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	r, ok := m.records[caseID]
	if !ok {
		return nil, secondary.ErrNotFound
	}
	return &r, nil
}

func (m *mockHandoffJournal) Save(ctx context.Context, record *secondary.HandoffRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctxAware && ctx.Err() != nil {
		return ctx.Err()
	}
	m.records[record.CaseID] = *record
	m.saves++
	return nil
}

func (m *mockHandoffJournal) List(ctx context.Context, filters secondary.HandoffFilters) ([]*secondary.HandoffRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.records))
	for id := range m.records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	var result []*secondary.HandoffRecord
	for _, id := range ids {
		r := m.records[id]
		if filters.UnsyncedOnly && r.Synced {
			continue
		}
		result = append(result, &r)
	}
	if filters.Limit > 0 && len(result) > filters.Limit {
		result = result[:filters.Limit]
	}
	return result, nil
}

// ============================================================================
// Assignment store
// ============================================================================

// Ensure mockAssignmentStore implements the interface
var _ secondary.AssignmentStore = (*mockAssignmentStore)(nil)

var errStoreDown = errors.New("store unavailable")

// mockAssignmentStore implements secondary.AssignmentStore for testing.
type mockAssignmentStore struct {
	mu sync.Mutex

	requests    []secondary.RequestRecord
	assignments []secondary.AssignmentRecord
	statuses    map[string]string

	down          bool
	failRequest   bool
	failSession   bool
	sessionOnSave bool // UpdateAssignmentStatus returns the session directly
	sessionAfter  int  // GetOrCreateSession returns "" this many times first
	lookups       int
}

func newMockAssignmentStore() *mockAssignmentStore {
	return &mockAssignmentStore{statuses: make(map[string]string)}
}

func (m *mockAssignmentStore) CreateRequest(ctx context.Context, req secondary.RequestRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down || m.failRequest {
		return "", errStoreDown
	}
	m.requests = append(m.requests, req)
	return fmt.Sprintf("REQ-%d", len(m.requests)), nil
}

func (m *mockAssignmentStore) CreateAssignment(ctx context.Context, a secondary.AssignmentRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return "", errStoreDown
	}
	m.assignments = append(m.assignments, a)
	return fmt.Sprintf("ASG-%d", len(m.assignments)), nil
}

func (m *mockAssignmentStore) UpdateAssignmentStatus(ctx context.Context, assignmentID, status string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.down {
		return "", errStoreDown
	}
	m.statuses[assignmentID] = status
	if m.sessionOnSave {
		return "SES-" + assignmentID, nil
	}
	return "", nil
}

func (m *mockAssignmentStore) GetOrCreateSession(ctx context.Context, requestID, assignmentID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.down || m.failSession {
		return "", errStoreDown
	}
	if m.lookups <= m.sessionAfter {
		return "", nil
	}
	return "SES-" + assignmentID, nil
}

func (m *mockAssignmentStore) setDown(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.down = down
}
