package receiver

import (
	"context"

	"github.com/oshokin/sia-bridge/internal/api/http/admin"
	"github.com/oshokin/sia-bridge/internal/domain/event"
	"github.com/oshokin/sia-bridge/internal/forwarder"
	"github.com/oshokin/sia-bridge/internal/logger"
	"github.com/oshokin/sia-bridge/internal/registry"
	"github.com/oshokin/sia-bridge/internal/store"
)

// adminService exposes the running broker to the admin HTTP surface.
type adminService struct {
	listenAddress string
	forwardURL    string

	registry  *registry.Registry
	store     *store.Store
	forwarder *forwarder.Forwarder
}

// Health reports liveness counters.
func (s *adminService) Health(_ context.Context) admin.Health {
	return admin.Health{
		Status:        "ok",
		QueueDepth:    s.forwarder.QueueDepth(),
		DroppedEvents: s.forwarder.Dropped(),
		StoredEvents:  s.store.Len(),
	}
}

// Events queries the replay buffer.
func (s *adminService) Events(_ context.Context, filter store.Filter) []event.ReplayRecord {
	return s.store.Snapshot(filter)
}

// Replay records the synthetic event and hands it to the forwarder. The
// heartbeat filter is bypassed on purpose: an operator replaying an event
// wants it delivered.
func (s *adminService) Replay(ctx context.Context, evt *event.AlarmEvent) uint64 {
	recordID := s.store.Append(evt)

	logger.InfoKV(ctx, "Replaying event",
		"account", evt.AccountID, "code", evt.Code, "record_id", recordID)

	s.forwarder.Enqueue(evt, recordID)

	return recordID
}

// Status reports the broker configuration snapshot.
func (s *adminService) Status(_ context.Context) admin.Status {
	return admin.Status{
		ListenAddress:     s.listenAddress,
		ForwardURL:        s.forwardURL,
		Accounts:          s.registry.Accounts(),
		EncryptedAccounts: s.registry.EncryptedAccounts(),
	}
}
