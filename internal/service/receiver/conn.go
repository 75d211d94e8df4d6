package receiver

import (
	"bufio"
	"context"
	"errors"
	"net"
	"time"

	"github.com/oshokin/sia-bridge/internal/domain/event"
	"github.com/oshokin/sia-bridge/internal/forwarder"
	"github.com/oshokin/sia-bridge/internal/logger"
	"github.com/oshokin/sia-bridge/internal/protocol"
	"github.com/oshokin/sia-bridge/internal/protocol/siacrypt"
	"github.com/oshokin/sia-bridge/internal/registry"
	"github.com/oshokin/sia-bridge/internal/store"
)

const (
	// maxFrameBytes bounds one frame on the wire; anything longer tears the
	// connection down instead of buffering without limit.
	maxFrameBytes = 2048

	// writeTimeout bounds one acknowledgment write. Panels give up within
	// seconds, so a response that cannot be flushed quickly is worthless.
	writeTimeout = 2 * time.Second
)

// EventSink receives decoded events for asynchronous downstream delivery.
// The forwarder implements it; tests substitute a capture.
type EventSink interface {
	Enqueue(evt *event.AlarmEvent, recordID uint64)
}

// Handler processes panel connections. One Handler is shared by every
// connection; all fields are read-only after construction.
type Handler struct {
	registry    *registry.Registry
	store       *store.Store
	sink        EventSink
	filter      *forwarder.HeartbeatFilter
	location    *time.Location
	idleTimeout time.Duration
}

// NewHandler wires the frame pipeline. A nil location interprets panel
// timestamps in UTC.
func NewHandler(
	reg *registry.Registry,
	st *store.Store,
	sink EventSink,
	filter *forwarder.HeartbeatFilter,
	location *time.Location,
	idleTimeout time.Duration,
) *Handler {
	if location == nil {
		location = time.UTC
	}

	if idleTimeout <= 0 {
		idleTimeout = time.Minute
	}

	return &Handler{
		registry:    reg,
		store:       st,
		sink:        sink,
		filter:      filter,
		location:    location,
		idleTimeout: idleTimeout,
	}
}

// Handle serves one panel connection until the peer disconnects, the idle
// timeout fires, or the context is canceled. It closes the connection before
// returning.
func (h *Handler) Handle(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	ctx = logger.WithKV(ctx, "remote_addr", conn.RemoteAddr().String())
	logger.Debug(ctx, "Panel connected")

	// Context cancellation unblocks the pending read by closing the socket.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.Close()
	})
	defer stop()

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 512), maxFrameBytes)

	for {
		if err := conn.SetReadDeadline(time.Now().Add(h.idleTimeout)); err != nil {
			break
		}

		if !scanner.Scan() {
			h.logDisconnect(ctx, scanner.Err())

			break
		}

		line := scanner.Bytes()
		if len(line) == 0 {
			// Tolerate blank lines between frames.
			continue
		}

		response, evt := h.processFrame(ctx, line, time.Now())

		if err := conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
			break
		}

		if _, err := conn.Write(response); err != nil {
			logger.WarnKV(ctx, "Response write failed", "error", err)

			break
		}

		// The acknowledgment is already on the wire; recording and
		// forwarding must never delay the next frame.
		if evt != nil {
			h.dispatch(ctx, evt)
		}
	}

	logger.DebugKV(ctx, "Panel connection closed", "state", stateClosed.String())
}

// processFrame walks one frame through the validation pipeline and returns
// the wire response plus the decoded event when the frame was accepted.
// Rejections map to the NAK reason of the first stage that failed; no stage
// after the failing one runs.
func (h *Handler) processFrame(ctx context.Context, data []byte, receivedAt time.Time) ([]byte, *event.AlarmEvent) {
	state := stateValidating

	frame, err := protocol.Parse(data)
	if err != nil {
		reason := protocol.ReasonMalformed
		if errors.Is(err, protocol.ErrChecksum) {
			reason = protocol.ReasonChecksum
		}

		logger.WarnKV(ctx, "Frame rejected",
			"state", state.String(), "reason", reason.String(), "error", err)

		return protocol.BuildNAK("", "", reason), nil
	}

	state = stateAuthorizing

	if !h.registry.IsAllowed(frame.AccountID) {
		logger.WarnKV(ctx, "Frame rejected",
			"state", state.String(), "reason", protocol.ReasonUnknownAccount.String(),
			"account", frame.AccountID)

		return protocol.BuildNAK(frame.Sequence, frame.AccountID, protocol.ReasonUnknownAccount), nil
	}

	// Link tests carry no data block, so the encryption policy does not
	// apply to them; they are acknowledged and dropped here.
	if frame.MessageType == protocol.TypeNull {
		logger.DebugKV(ctx, "Link test acknowledged", "account", frame.AccountID)

		return protocol.BuildACK(frame.Sequence, frame.AccountID), nil
	}

	key, hasKey := h.registry.KeyFor(frame.AccountID)

	// The encryption flag on the wire must match the account's policy in
	// both directions before any cipher work happens.
	if frame.Encrypted != hasKey {
		logger.WarnKV(ctx, "Frame rejected",
			"state", state.String(), "reason", protocol.ReasonPolicyMismatch.String(),
			"account", frame.AccountID, "encrypted", frame.Encrypted)

		return protocol.BuildNAK(frame.Sequence, frame.AccountID, protocol.ReasonPolicyMismatch), nil
	}

	payload := frame.Payload

	if frame.Encrypted {
		state = stateDecrypting

		plaintext, decErr := siacrypt.Decrypt(payload[1:], key)
		if decErr != nil {
			logger.WarnKV(ctx, "Frame rejected",
				"state", state.String(), "reason", protocol.ReasonDecryptionFailed.String(),
				"account", frame.AccountID, "error", decErr)

			return protocol.BuildNAK(frame.Sequence, frame.AccountID, protocol.ReasonDecryptionFailed), nil
		}

		payload = string(plaintext)
	}

	state = stateDecoding

	evt, err := protocol.DecodePayload(frame.AccountID, payload, receivedAt, h.location)
	if err != nil {
		logger.WarnKV(ctx, "Frame rejected",
			"state", state.String(), "reason", protocol.ReasonDecodeFailed.String(),
			"account", frame.AccountID, "error", err)

		return protocol.BuildNAK(frame.Sequence, frame.AccountID, protocol.ReasonDecodeFailed), nil
	}

	return protocol.BuildACK(frame.Sequence, frame.AccountID), evt
}

// dispatch records an accepted event and hands it to the forwarder unless
// the heartbeat filter excludes it. Heartbeats are still recorded so the
// replay buffer shows the panel checking in.
func (h *Handler) dispatch(ctx context.Context, evt *event.AlarmEvent) {
	recordID := h.store.Append(evt)

	if !h.filter.ShouldForward(evt) {
		logger.DebugKV(ctx, "Heartbeat recorded",
			"account", evt.AccountID, "code", evt.Code, "record_id", recordID)

		return
	}

	logger.InfoKV(ctx, "Event accepted",
		"account", evt.AccountID, "code", evt.Code, "zone", evt.Zone,
		"qualifier", string(evt.Qualifier), "record_id", recordID)

	h.sink.Enqueue(evt, recordID)
}

// logDisconnect classifies why the read loop ended.
func (h *Handler) logDisconnect(ctx context.Context, err error) {
	switch {
	case err == nil:
		logger.Debug(ctx, "Panel disconnected")
	case errors.Is(err, net.ErrClosed):
		logger.Debug(ctx, "Connection closed during shutdown")
	case isTimeout(err):
		logger.InfoKV(ctx, "Idle timeout, closing connection", "idle_timeout", h.idleTimeout)
	case errors.Is(err, bufio.ErrTooLong):
		logger.WarnKV(ctx, "Frame exceeds size limit, closing connection", "limit_bytes", maxFrameBytes)
	default:
		logger.WarnKV(ctx, "Read failed", "error", err)
	}
}

// isTimeout reports whether err is a network deadline expiry.
func isTimeout(err error) bool {
	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
