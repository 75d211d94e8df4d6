// Package simulator implements a panel simulator for exercising a running
// broker: it dials the panel port, emits correctly framed signals and prints
// the acknowledgment each one earned.
package simulator

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"strings"
	"time"

	"github.com/oshokin/sia-bridge/internal/logger"
	"github.com/oshokin/sia-bridge/internal/protocol"
	"github.com/oshokin/sia-bridge/internal/protocol/siacrypt"
)

// Scenario is one signal the simulator emits.
type Scenario struct {
	// Code is the two-letter signal type.
	Code string
	// Zone is the zone the signal claims to originate from.
	Zone string
	// Description names the scenario in output.
	Description string
}

// DefaultScenarios covers the common signal sequence of a panel's day:
// alarms, open/close, tamper, cancel, restore and a heartbeat.
func DefaultScenarios() []Scenario {
	return []Scenario{
		{Code: "BA", Zone: "001", Description: "Burglary alarm, zone 001"},
		{Code: "FA", Zone: "002", Description: "Fire alarm, zone 002"},
		{Code: "PA", Zone: "003", Description: "Panic alarm, zone 003"},
		{Code: "OP", Zone: "001", Description: "Opening, zone 001"},
		{Code: "CL", Zone: "001", Description: "Closing, zone 001"},
		{Code: "TA", Zone: "004", Description: "Tamper alarm, zone 004"},
		{Code: "CA", Zone: "001", Description: "Cancel alarm, zone 001"},
		{Code: "BR", Zone: "001", Description: "Burglary restore, zone 001"},
		{Code: "YK", Zone: "000", Description: "Heartbeat"},
	}
}

// Simulator emits signals for one account against one broker address.
type Simulator struct {
	address   string
	accountID string
	key       []byte
	timeout   time.Duration
	sequence  int

	// now is replaceable for deterministic frames in tests.
	now func() time.Time
}

// New creates a simulator. A non-empty key makes every data block encrypted
// the way a keyed panel would send it.
func New(address, accountID string, key []byte, timeout time.Duration) (*Simulator, error) {
	if len(key) > 0 && !siacrypt.ValidKeySize(key) {
		return nil, fmt.Errorf("simulator key: %w", siacrypt.ErrKeySize)
	}

	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	return &Simulator{
		address:   address,
		accountID: accountID,
		key:       key,
		timeout:   timeout,
		now:       time.Now,
	}, nil
}

// buildFrame renders the next signal as a complete wire frame.
func (s *Simulator) buildFrame(code, zone string) ([]byte, error) {
	s.sequence++

	// Panels report restores through dedicated codes (BR, TR), so every
	// simulated signal carries the new-condition qualifier.
	block := protocol.PlaintextBlock("N", code, zone, s.now().Format("20060102150405"))

	if len(s.key) > 0 {
		ciphertext, err := siacrypt.Encrypt([]byte(block), s.key)
		if err != nil {
			return nil, fmt.Errorf("encrypt data block: %w", err)
		}

		block = "*" + ciphertext
	}

	sequence := fmt.Sprintf("%04d", s.sequence%10000)

	return protocol.BuildFrame(protocol.TypeSIADCS, sequence, "1", s.accountID, block), nil
}

// Send emits one signal and returns the broker's response line.
func (s *Simulator) Send(ctx context.Context, code, zone string) (string, error) {
	framed, err := s.buildFrame(code, zone)
	if err != nil {
		return "", err
	}

	dialer := net.Dialer{Timeout: s.timeout}

	conn, err := dialer.DialContext(ctx, "tcp", s.address)
	if err != nil {
		return "", fmt.Errorf("dial %s: %w", s.address, err)
	}
	defer conn.Close()

	deadline := time.Now().Add(s.timeout)
	if err := conn.SetDeadline(deadline); err != nil {
		return "", fmt.Errorf("set deadline: %w", err)
	}

	if _, err := conn.Write(append(framed, '\r', '\n')); err != nil {
		return "", fmt.Errorf("send frame: %w", err)
	}

	logger.DebugKV(ctx, "Frame sent", "frame", string(framed))

	response, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	return strings.TrimRight(response, "\r\n"), nil
}

// RunScenarios emits every scenario with a delay between signals, the way a
// real panel spaces its traffic.
func (s *Simulator) RunScenarios(ctx context.Context, scenarios []Scenario, delay time.Duration) error {
	for _, scenario := range scenarios {
		response, err := s.Send(ctx, scenario.Code, scenario.Zone)
		if err != nil {
			return fmt.Errorf("scenario %q: %w", scenario.Description, err)
		}

		logger.InfoKV(ctx, "Scenario completed",
			"description", scenario.Description,
			"code", scenario.Code,
			"zone", scenario.Zone,
			"response", response)

		if delay <= 0 {
			continue
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil
}
