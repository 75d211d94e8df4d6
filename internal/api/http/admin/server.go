// Package admin implements the HTTP operator surface of the broker.
//
// It adapts store records and runtime counters to JSON and exposes a handler
// that calls into a provided business-service interface. The surface is
// read-mostly; the only mutating endpoint injects a synthetic event into the
// forward queue.
package admin

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/oshokin/sia-bridge/internal/domain/event"
	"github.com/oshokin/sia-bridge/internal/logger"
	"github.com/oshokin/sia-bridge/internal/store"
)

// Service abstracts the broker operations the admin transport depends on.
type Service interface {
	// Health reports liveness counters.
	Health(ctx context.Context) Health
	// Events queries the replay buffer.
	Events(ctx context.Context, filter store.Filter) []event.ReplayRecord
	// Replay injects a synthetic event into the forward queue.
	Replay(ctx context.Context, evt *event.AlarmEvent) uint64
	// Status reports the broker configuration snapshot.
	Status(ctx context.Context) Status
}

// Health is the response body of GET /health.
type Health struct {
	// Status is always "ok" while the process answers.
	Status string `json:"status"`
	// QueueDepth is the number of events awaiting downstream delivery.
	QueueDepth int `json:"queue_depth"`
	// DroppedEvents counts events evicted from a full forward queue.
	DroppedEvents uint64 `json:"dropped_events"`
	// StoredEvents is the replay buffer occupancy.
	StoredEvents int `json:"stored_events"`
}

// Status is the response body of GET /status.
type Status struct {
	// ListenAddress is the panel protocol bind address.
	ListenAddress string `json:"listen_address"`
	// ForwardURL is the downstream delivery target.
	ForwardURL string `json:"forward_url"`
	// Accounts lists every allowed account.
	Accounts []string `json:"accounts"`
	// EncryptedAccounts lists the accounts that require encrypted frames.
	EncryptedAccounts []string `json:"encrypted_accounts"`
}

// replayRequest is the body of POST /replay.
type replayRequest struct {
	AccountID string `json:"account_code"`
	Code      string `json:"event"`
	Zone      string `json:"zone"`
	Qualifier string `json:"qualifier"`
}

// eventRecord is one replay buffer entry in GET /events responses.
type eventRecord struct {
	ID             uint64 `json:"id"`
	AccountID      string `json:"account_code"`
	Code           string `json:"event"`
	Description    string `json:"description,omitempty"`
	Zone           string `json:"zone"`
	Qualifier      string `json:"qualifier"`
	Classification string `json:"classification"`
	Timestamp      string `json:"timestamp"`
	Forwarded      bool   `json:"forwarded"`
	ForwardError   string `json:"forward_error,omitempty"`
}

// Server exposes the admin endpoints over HTTP.
type Server struct {
	// service provides the broker operations behind the endpoints.
	service Service
}

// NewServer wires the provided service implementation into an HTTP handler.
func NewServer(service Service) *Server {
	return &Server{
		service: service,
	}
}

// Handler returns the route table as a standard handler.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /events", s.handleEvents)
	mux.HandleFunc("POST /replay", s.handleReplay)
	mux.HandleFunc("GET /status", s.handleStatus)

	return mux
}

// handleHealth reports liveness counters.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, s.service.Health(r.Context()))
}

// handleStatus reports the configuration snapshot.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(r.Context(), w, http.StatusOK, s.service.Status(r.Context()))
}

// handleEvents queries the replay buffer with optional account, code and
// limit filters.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()

	filter := store.Filter{
		AccountID: query.Get("account"),
		Code:      query.Get("code"),
	}

	if raw := query.Get("limit"); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")

			return
		}

		filter.Limit = limit
	}

	records := s.service.Events(r.Context(), filter)

	out := make([]eventRecord, 0, len(records))
	for i := range records {
		out = append(out, toEventRecord(&records[i]))
	}

	writeJSON(r.Context(), w, http.StatusOK, out)
}

// handleReplay validates the request body and injects the synthetic event.
func (s *Server) handleReplay(w http.ResponseWriter, r *http.Request) {
	var req replayRequest

	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")

		return
	}

	evt, err := req.toEvent(time.Now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())

		return
	}

	recordID := s.service.Replay(r.Context(), evt)

	writeJSON(r.Context(), w, http.StatusAccepted, map[string]uint64{"record_id": recordID})
}

// toEvent builds the synthetic event, rejecting bodies that would not have
// decoded off the wire either.
func (r *replayRequest) toEvent(now time.Time) (*event.AlarmEvent, error) {
	if r.AccountID == "" {
		return nil, errors.New("account_code is required")
	}

	if len(r.Code) != 2 {
		return nil, errors.New("event must be a two-letter signal code")
	}

	qualifier := event.Qualifier(r.Qualifier)
	if qualifier == "" {
		qualifier = event.QualifierNew
	}

	if qualifier != event.QualifierNew && qualifier != event.QualifierRestore {
		return nil, errors.New("qualifier must be \"new\" or \"restore\"")
	}

	zone := r.Zone
	if zone == "" {
		zone = "000"
	}

	evt := &event.AlarmEvent{
		AccountID:      r.AccountID,
		Code:           r.Code,
		Zone:           zone,
		Qualifier:      qualifier,
		Classification: event.ClassUnrecognized,
		Timestamp:      now,
		SyntheticTime:  true,
		ReceivedAt:     now,
	}

	if description, ok := event.DescribeCode(r.Code); ok {
		evt.Classification = event.ClassKnown
		evt.Description = description
	}

	return evt, nil
}

// toEventRecord flattens a replay record for the wire.
func toEventRecord(record *event.ReplayRecord) eventRecord {
	out := eventRecord{
		ID:             record.ID,
		AccountID:      record.Event.AccountID,
		Code:           record.Event.Code,
		Description:    record.Event.Description,
		Zone:           record.Event.Zone,
		Qualifier:      string(record.Event.Qualifier),
		Classification: string(record.Event.Classification),
		Timestamp:      record.Event.Timestamp.Format("2006-01-02 15:04:05"),
		Forwarded:      record.Forwarded,
		ForwardError:   record.ForwardError,
	}

	return out
}

// writeJSON serializes one response body.
func writeJSON(ctx context.Context, w http.ResponseWriter, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		logger.WarnKV(ctx, "Admin response write failed", "error", err)
	}
}

// writeError serializes one error body.
func writeError(w http.ResponseWriter, code int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
