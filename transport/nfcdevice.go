package transport

import (
	"context"
	"fmt"
	"time"

	"github.com/clausecker/nfc/v2"
)

// DeviceDetector adapts a libnfc reader to the Detector contract. Residence
// cards and individual number cards are ISO 14443 Type B targets.
type DeviceDetector struct {
	dev        *nfc.Device
	modulation nfc.Modulation
}

// OpenDevice opens the named libnfc device (empty string selects the first
// available reader) and prepares it for initiator mode.
func OpenDevice(connString string) (*DeviceDetector, error) {
	dev, err := nfc.Open(connString)
	if err != nil {
		return nil, fmt.Errorf("open nfc device: %w", err)
	}
	if err := dev.InitiatorInit(); err != nil {
		dev.Close()
		return nil, fmt.Errorf("initiator init: %w", err)
	}
	return &DeviceDetector{
		dev:        &dev,
		modulation: nfc.Modulation{Type: nfc.ISO14443b, BaudRate: nfc.Nbr106},
	}, nil
}

// Poll lists the passive targets currently in the field and returns one
// connection per target. The caller decides what to do when more than one
// tag answered.
func (d *DeviceDetector) Poll(ctx context.Context) ([]TagConn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	targets, err := d.dev.InitiatorListPassiveTargets(d.modulation)
	if err != nil {
		return nil, fmt.Errorf("list passive targets: %w", err)
	}
	conns := make([]TagConn, 0, len(targets))
	for range targets {
		conns = append(conns, &deviceConn{dev: d.dev})
	}
	return conns, nil
}

// Close releases the underlying reader.
func (d *DeviceDetector) Close() error { return d.dev.Close() }

// deviceConn exchanges APDUs with the currently selected target. libnfc
// keeps one target active per device, which matches the single-session
// model enforced by Client.
type deviceConn struct {
	dev *nfc.Device
}

func (c *deviceConn) Transceive(ctx context.Context, apdu []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	timeout := -1
	if deadline, ok := ctx.Deadline(); ok {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, context.DeadlineExceeded
		}
		timeout = int(remaining / time.Millisecond)
	}
	rx := make([]byte, 4096)
	n, err := c.dev.InitiatorTransceiveBytes(apdu, rx, timeout)
	if err != nil {
		return nil, fmt.Errorf("transceive: %w", err)
	}
	return rx[:n], nil
}

func (c *deviceConn) Close() error {
	// Deselecting happens implicitly when the next target is selected; the
	// device itself stays open for further sessions.
	return nil
}
