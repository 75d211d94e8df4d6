package receiver

import (
	"bufio"
	"context"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/oshokin/sia-bridge/internal/domain/event"
	"github.com/oshokin/sia-bridge/internal/forwarder"
	"github.com/oshokin/sia-bridge/internal/protocol"
	"github.com/oshokin/sia-bridge/internal/protocol/siacrypt"
	"github.com/oshokin/sia-bridge/internal/registry"
	"github.com/oshokin/sia-bridge/internal/store"
)

// sinkCapture records forwarded events instead of delivering them.
type sinkCapture struct {
	mu     sync.Mutex
	events []*event.AlarmEvent
	ids    []uint64
}

func (s *sinkCapture) Enqueue(evt *event.AlarmEvent, recordID uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.events = append(s.events, evt)
	s.ids = append(s.ids, recordID)
}

func (s *sinkCapture) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.events)
}

var testKey = []byte("0123456789ABCDEF")

// newTestHandler builds a handler over accounts AAA (plaintext) and
// EEE (encrypted with testKey).
func newTestHandler(t *testing.T, heartbeatCodes []string) (*Handler, *store.Store, *sinkCapture) {
	t.Helper()

	reg, err := registry.New([]registry.Account{
		{ID: "AAA"},
		{ID: "EEE", Key: testKey},
	})
	require.NoError(t, err)

	eventStore := store.New(16)
	sink := &sinkCapture{}

	handler := NewHandler(
		reg,
		eventStore,
		sink,
		forwarder.NewHeartbeatFilter(heartbeatCodes),
		time.UTC,
		time.Second,
	)

	return handler, eventStore, sink
}

func TestProcessFrame_AcceptedPlaintext(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestHandler(t, nil)

	input := []byte(`"SIA-DCS"0001100028AAA[#NBA001|20251020151030]`)

	response, evt := handler.processFrame(context.Background(), input, time.Now())
	require.Equal(t, "*ACK\"0001L0R0#AAA[]\r\n", string(response))
	require.NotNil(t, evt)
	require.Equal(t, "AAA", evt.AccountID)
	require.Equal(t, "BA", evt.Code)
	require.Equal(t, "001", evt.Zone)
	require.Equal(t, event.QualifierNew, evt.Qualifier)
	require.Equal(t, event.ClassKnown, evt.Classification)
}

func TestProcessFrame_UnknownAccount(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestHandler(t, nil)

	input := protocol.BuildFrame(protocol.TypeSIADCS, "0002", "1", "ZZZ", "#NBA001|20251020151030")

	response, evt := handler.processFrame(context.Background(), input, time.Now())
	require.Equal(t, "*NAK\"0002L0R0#ZZZ[ACC]\r\n", string(response))
	require.Nil(t, evt)
}

func TestProcessFrame_PlaintextFromKeyedAccount(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestHandler(t, nil)

	input := protocol.BuildFrame(protocol.TypeSIADCS, "0003", "1", "EEE", "#NBA001|20251020151030")

	response, evt := handler.processFrame(context.Background(), input, time.Now())
	require.Equal(t, "*NAK\"0003L0R0#EEE[EPM]\r\n", string(response))
	require.Nil(t, evt)
}

func TestProcessFrame_EncryptedFromKeylessAccount(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestHandler(t, nil)

	ciphertext, err := siacrypt.Encrypt([]byte("#NBA001|20251020151030"), testKey)
	require.NoError(t, err)

	input := protocol.BuildFrame(protocol.TypeSIADCS, "0004", "1", "AAA", "*"+ciphertext)

	response, evt := handler.processFrame(context.Background(), input, time.Now())
	require.Equal(t, "*NAK\"0004L0R0#AAA[EPM]\r\n", string(response))
	require.Nil(t, evt)
}

func TestProcessFrame_EncryptedRoundtrip(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestHandler(t, nil)

	ciphertext, err := siacrypt.Encrypt([]byte("#NBA003|20251020151030"), testKey)
	require.NoError(t, err)

	input := protocol.BuildFrame(protocol.TypeSIADCS, "0005", "1", "EEE", "*"+ciphertext)

	response, evt := handler.processFrame(context.Background(), input, time.Now())
	require.Equal(t, "*ACK\"0005L0R0#EEE[]\r\n", string(response))
	require.NotNil(t, evt)
	require.Equal(t, "EEE", evt.AccountID)
	require.Equal(t, "BA", evt.Code)
	require.Equal(t, "003", evt.Zone)
}

func TestProcessFrame_DecryptionFailure(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestHandler(t, nil)

	// Valid hex but not a whole cipher block.
	input := protocol.BuildFrame(protocol.TypeSIADCS, "0006", "1", "EEE", "*DEADBEEF")

	response, evt := handler.processFrame(context.Background(), input, time.Now())
	require.Equal(t, "*NAK\"0006L0R0#EEE[DEC]\r\n", string(response))
	require.Nil(t, evt)
}

func TestProcessFrame_DecodeFailure(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestHandler(t, nil)

	// Qualifier byte is neither N nor R.
	input := protocol.BuildFrame(protocol.TypeSIADCS, "0007", "1", "AAA", "#XBA001|20251020151030")

	response, evt := handler.processFrame(context.Background(), input, time.Now())
	require.Equal(t, "*NAK\"0007L0R0#AAA[EVT]\r\n", string(response))
	require.Nil(t, evt)
}

func TestProcessFrame_ChecksumMismatch(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestHandler(t, nil)

	framed := protocol.BuildFrame(protocol.TypeSIADCS, "0008", "1", "AAA", "#NBA001|20251020151030")

	// Swap the first checksum digit for a different hex digit so the frame
	// still looks CRC-prefixed but no longer verifies.
	if framed[0] == '0' {
		framed[0] = '1'
	} else {
		framed[0] = '0'
	}

	response, evt := handler.processFrame(context.Background(), framed, time.Now())
	require.Equal(t, "*NAK\"0000L0R0#0[CRC]\r\n", string(response))
	require.Nil(t, evt)
}

func TestProcessFrame_Malformed(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestHandler(t, nil)

	response, evt := handler.processFrame(context.Background(), []byte("not a frame"), time.Now())
	require.Equal(t, "*NAK\"0000L0R0#0[FMT]\r\n", string(response))
	require.Nil(t, evt)
}

func TestProcessFrame_NullLinkTest(t *testing.T) {
	t.Parallel()

	handler, eventStore, sink := newTestHandler(t, nil)

	input := protocol.BuildFrame(protocol.TypeNull, "0009", "1", "AAA", "")

	response, evt := handler.processFrame(context.Background(), input, time.Now())
	require.Equal(t, "*ACK\"0009L0R0#AAA[]\r\n", string(response))
	require.Nil(t, evt)
	require.Zero(t, eventStore.Len())
	require.Zero(t, sink.count())
}

// handleSession runs the handler on one end of a pipe and returns the
// client end plus a cleanup that waits for the handler to finish.
func handleSession(t *testing.T, handler *Handler) (net.Conn, *bufio.Reader) {
	t.Helper()

	client, server := net.Pipe()

	done := make(chan struct{})

	go func() {
		defer close(done)
		handler.Handle(context.Background(), server)
	}()

	t.Cleanup(func() {
		_ = client.Close()
		<-done
	})

	return client, bufio.NewReader(client)
}

func sendFrame(t *testing.T, conn net.Conn, frame []byte) {
	t.Helper()

	require.NoError(t, conn.SetWriteDeadline(time.Now().Add(time.Second)))

	_, err := conn.Write(append(frame, '\r', '\n'))
	require.NoError(t, err)
}

func readResponse(t *testing.T, reader *bufio.Reader, conn net.Conn) string {
	t.Helper()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(time.Second)))

	line, err := reader.ReadString('\n')
	require.NoError(t, err)

	return line
}

func TestHandle_ConnectionSurvivesBadFrames(t *testing.T) {
	t.Parallel()

	handler, eventStore, sink := newTestHandler(t, nil)
	client, reader := handleSession(t, handler)

	sendFrame(t, client, protocol.BuildFrame(protocol.TypeSIADCS, "0001", "1", "AAA", "#NBA001|20251020151030"))
	require.Equal(t, "*ACK\"0001L0R0#AAA[]\r\n", readResponse(t, reader, client))

	sendFrame(t, client, []byte("garbage"))
	require.Equal(t, "*NAK\"0000L0R0#0[FMT]\r\n", readResponse(t, reader, client))

	sendFrame(t, client, protocol.BuildFrame(protocol.TypeSIADCS, "0002", "1", "AAA", "#RBA001|20251020151530"))
	require.Equal(t, "*ACK\"0002L0R0#AAA[]\r\n", readResponse(t, reader, client))

	require.Eventually(t, func() bool {
		return sink.count() == 2
	}, time.Second, 5*time.Millisecond)
	require.Equal(t, 2, eventStore.Len())
}

func TestHandle_HeartbeatRecordedNotForwarded(t *testing.T) {
	t.Parallel()

	handler, eventStore, sink := newTestHandler(t, []string{"YK"})
	client, reader := handleSession(t, handler)

	sendFrame(t, client, protocol.BuildFrame(protocol.TypeSIADCS, "0042", "1", "AAA", "#NYK000|20251020151030"))
	require.Equal(t, "*ACK\"0042L0R0#AAA[]\r\n", readResponse(t, reader, client))

	require.Eventually(t, func() bool {
		return eventStore.Len() == 1
	}, time.Second, 5*time.Millisecond)

	records := eventStore.Snapshot(store.Filter{})
	require.Len(t, records, 1)
	require.Equal(t, "YK", records[0].Event.Code)
	require.Zero(t, sink.count())
}

func TestHandle_IdleTimeoutClosesConnection(t *testing.T) {
	t.Parallel()

	handler, _, _ := newTestHandler(t, nil)
	handler.idleTimeout = 50 * time.Millisecond

	client, server := net.Pipe()
	defer client.Close()

	done := make(chan struct{})

	go func() {
		defer close(done)
		handler.Handle(context.Background(), server)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("handler did not close the idle connection")
	}
}
