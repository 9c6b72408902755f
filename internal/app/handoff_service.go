package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/example/safebridge/internal/core/dispatch"
	"github.com/example/safebridge/internal/logging"
	"github.com/example/safebridge/internal/ports/primary"
	"github.com/example/safebridge/internal/ports/secondary"
)

// HandoffConfig bounds the session lookup retry.
type HandoffConfig struct {
	LookupAttempts int
	LookupInterval time.Duration
}

// DefaultHandoffConfig returns five lookups one second apart.
func DefaultHandoffConfig() HandoffConfig {
	return HandoffConfig{LookupAttempts: 5, LookupInterval: time.Second}
}

// HandoffServiceImpl implements the HandoffService interface.
// Every completed step is checkpointed in the journal; a handoff that cannot
// reach the store degrades to a local session and is left for reconciliation.
type HandoffServiceImpl struct {
	store   secondary.AssignmentStore
	journal secondary.HandoffJournal
	cfg     HandoffConfig
	logger  *slog.Logger

	mu sync.Mutex
}

// NewHandoffService creates a new HandoffService with injected dependencies.
func NewHandoffService(store secondary.AssignmentStore, journal secondary.HandoffJournal, cfg HandoffConfig, logger *slog.Logger) *HandoffServiceImpl {
	if cfg.LookupAttempts < 1 {
		cfg.LookupAttempts = 1
	}
	return &HandoffServiceImpl{
		store:   store,
		journal: journal,
		cfg:     cfg,
		logger:  logging.OrDiscard(logger),
	}
}

// Handoff turns an approval into a request/assignment/session triple.
func (s *HandoffServiceImpl) Handoff(ctx context.Context, req primary.HandoffRequest) (dispatch.SessionRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.journal.Get(ctx, req.Case.CaseID)
	switch {
	case errors.Is(err, secondary.ErrNotFound):
		record, err = newHandoffRecord(req)
		if err != nil {
			return dispatch.SessionRef{}, err
		}
		s.checkpoint(ctx, record)
	case err != nil:
		return dispatch.SessionRef{}, fmt.Errorf("failed to read handoff journal: %w", err)
	}

	if record.HospitalID != req.Hospital.HospitalID {
		return dispatch.SessionRef{}, fmt.Errorf("%w: case %s was handed off to %s", dispatch.ErrAlreadyApproved, record.CaseID, record.HospitalID)
	}
	if record.Synced {
		return recordToSessionRef(record), nil
	}

	if err := s.sync(ctx, record); err != nil {
		record.Attempts++
		record.LastError = err.Error()
		if record.SessionID == "" {
			record.SessionID = "local-" + uuid.NewString()
			record.Local = true
		}
		s.checkpoint(ctx, record)
		s.logger.Warn("handoff degraded to local session",
			"case_id", record.CaseID,
			"hospital_id", record.HospitalID,
			"session_id", record.SessionID,
			"error", err,
		)
		return recordToSessionRef(record), nil
	}
	return recordToSessionRef(record), nil
}

// Resync retries the store steps of a journal entry. Unlike Handoff it
// reports failure instead of degrading.
func (s *HandoffServiceImpl) Resync(ctx context.Context, caseID string) (dispatch.SessionRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, err := s.journal.Get(ctx, caseID)
	if err != nil {
		return dispatch.SessionRef{}, fmt.Errorf("failed to read handoff journal: %w", err)
	}
	if record.Synced {
		return recordToSessionRef(record), nil
	}
	if err := s.sync(ctx, record); err != nil {
		record.Attempts++
		record.LastError = err.Error()
		s.checkpoint(ctx, record)
		return recordToSessionRef(record), err
	}
	return recordToSessionRef(record), nil
}

// sync runs the remaining store steps: request, assignment, approval, session.
func (s *HandoffServiceImpl) sync(ctx context.Context, record *secondary.HandoffRecord) error {
	if record.RequestID == "" {
		req, err := payloadToRequest(record)
		if err != nil {
			return err
		}
		id, err := s.store.CreateRequest(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		record.RequestID = id
		s.checkpoint(ctx, record)
	}

	if record.AssignmentID == "" {
		id, err := s.store.CreateAssignment(ctx, secondary.AssignmentRecord{
			RequestID:  record.RequestID,
			HospitalID: record.HospitalID,
			DistanceKm: record.DistanceKm,
			EtaMinutes: record.EtaMinutes,
			CallRef:    record.CallRef,
		})
		if err != nil {
			return fmt.Errorf("failed to create assignment: %w", err)
		}
		record.AssignmentID = id
		s.checkpoint(ctx, record)
	}

	sessionID, err := s.store.UpdateAssignmentStatus(ctx, record.AssignmentID, secondary.AssignmentApproved)
	if err != nil {
		return fmt.Errorf("failed to approve assignment: %w", err)
	}
	if sessionID == "" {
		sessionID, err = s.lookupSession(ctx, record.RequestID, record.AssignmentID)
		if err != nil {
			return err
		}
	}

	record.SessionID = sessionID
	record.Local = false
	record.Synced = true
	record.LastError = ""
	s.checkpoint(ctx, record)
	return nil
}

func (s *HandoffServiceImpl) lookupSession(ctx context.Context, requestID, assignmentID string) (string, error) {
	var sessionID string
	op := func() error {
		id, err := s.store.GetOrCreateSession(ctx, requestID, assignmentID)
		if err != nil {
			return err
		}
		if id == "" {
			return errors.New("session not ready")
		}
		sessionID = id
		return nil
	}
	b := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(s.cfg.LookupInterval), uint64(s.cfg.LookupAttempts-1)),
		ctx,
	)
	if err := backoff.Retry(op, b); err != nil {
		return "", fmt.Errorf("failed to get session after %d attempts: %w", s.cfg.LookupAttempts, err)
	}
	return sessionID, nil
}

// checkpoint saves progress even when ctx is already done: a session handed
// to the operator must be journaled.
func (s *HandoffServiceImpl) checkpoint(ctx context.Context, record *secondary.HandoffRecord) {
	if err := s.journal.Save(context.WithoutCancel(ctx), record); err != nil {
		s.logger.Warn("failed to checkpoint handoff", "case_id", record.CaseID, "error", err)
	}
}

// GetHandoff retrieves the handoff of a case.
func (s *HandoffServiceImpl) GetHandoff(ctx context.Context, caseID string) (*primary.Handoff, error) {
	record, err := s.journal.Get(ctx, caseID)
	if err != nil {
		return nil, err
	}
	return s.recordToHandoff(record), nil
}

// ListHandoffs lists handoffs with optional limit.
func (s *HandoffServiceImpl) ListHandoffs(ctx context.Context, unsyncedOnly bool, limit int) ([]*primary.Handoff, error) {
	records, err := s.journal.List(ctx, secondary.HandoffFilters{UnsyncedOnly: unsyncedOnly, Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list handoffs: %w", err)
	}

	handoffs := make([]*primary.Handoff, len(records))
	for i, r := range records {
		handoffs[i] = s.recordToHandoff(r)
	}
	return handoffs, nil
}

// Helper methods

func newHandoffRecord(req primary.HandoffRequest) (*secondary.HandoffRecord, error) {
	payload, err := json.Marshal(req.Case)
	if err != nil {
		return nil, fmt.Errorf("failed to encode case: %w", err)
	}
	return &secondary.HandoffRecord{
		CaseID:       req.Case.CaseID,
		HospitalID:   req.Hospital.HospitalID,
		HospitalName: req.Hospital.Name,
		CallRef:      req.CallRef,
		DistanceKm:   req.Hospital.DistanceKm,
		EtaMinutes:   req.Hospital.EtaMinutes,
		CasePayload:  string(payload),
	}, nil
}

func payloadToRequest(record *secondary.HandoffRecord) (secondary.RequestRecord, error) {
	var c dispatch.CaseInfo
	if record.CasePayload != "" {
		if err := json.Unmarshal([]byte(record.CasePayload), &c); err != nil {
			return secondary.RequestRecord{}, fmt.Errorf("failed to decode case %s: %w", record.CaseID, err)
		}
	}
	return secondary.RequestRecord{
		CaseID:     record.CaseID,
		TeamID:     c.TeamID,
		PatientSex: c.Sex,
		PatientAge: c.Age,
		PreKTAS:    c.PreKTAS,
		Transcript: c.Transcript,
		Summary:    c.Summary,
		Lat:        c.Lat,
		Lon:        c.Lon,
	}, nil
}

func recordToSessionRef(r *secondary.HandoffRecord) dispatch.SessionRef {
	return dispatch.SessionRef{
		SessionID:    r.SessionID,
		RequestID:    r.RequestID,
		AssignmentID: r.AssignmentID,
		HospitalID:   r.HospitalID,
		Local:        r.Local,
		Synced:       r.Synced,
	}
}

func (s *HandoffServiceImpl) recordToHandoff(r *secondary.HandoffRecord) *primary.Handoff {
	return &primary.Handoff{
		CaseID:       r.CaseID,
		HospitalID:   r.HospitalID,
		HospitalName: r.HospitalName,
		RequestID:    r.RequestID,
		AssignmentID: r.AssignmentID,
		SessionID:    r.SessionID,
		Local:        r.Local,
		Synced:       r.Synced,
		Attempts:     r.Attempts,
		LastError:    r.LastError,
		CreatedAt:    r.CreatedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

// Ensure HandoffServiceImpl implements the interface
var _ primary.HandoffService = (*HandoffServiceImpl)(nil)
