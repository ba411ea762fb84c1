// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"net"
	"sync"
	"time"

	applog "termsonic/internal/log"
	"termsonic/internal/pipeline"
)

/*
UDP packet layout (BigEndian):

|<-- 4 Bytes -->|<---- 8 Bytes ---->|<-- 2 Bytes -->|<-- N*4 Bytes -->|<-- N*4 Bytes -->|
+---------------+-------------------+---------------+-----------------+-----------------+
|   Sequence    |     Timestamp     |  Band Count   |     Bands       |      Peaks      |
|   (uint32)    |   (int64, nanos)  |   (uint16)    |  (N * float32)  |  (N * float32)  |
+---------------+-------------------+---------------+-----------------+-----------------+

Band values are smoothed magnitudes in dBFS, peaks their decaying maxima.
*/

// UDPSender transmits raw packets to a fixed target address.
type UDPSender struct {
	conn   *net.UDPConn
	mu     sync.Mutex
	closed bool
}

// NewUDPSender dials the target address, e.g. "127.0.0.1:9090".
func NewUDPSender(targetAddress string) (*UDPSender, error) {
	udpAddr, err := net.ResolveUDPAddr("udp", targetAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve UDP target address %q: %w", targetAddress, err)
	}

	conn, err := net.DialUDP("udp", nil, udpAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial UDP target %q: %w", targetAddress, err)
	}

	applog.Infof("UDP: sending to %s", conn.RemoteAddr())
	return &UDPSender{conn: conn}, nil
}

// Send transmits data as one UDP packet. Safe for concurrent use with Close.
func (s *UDPSender) Send(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("UDP sender is closed")
	}
	if _, err := s.conn.Write(data); err != nil {
		return fmt.Errorf("failed to send UDP packet: %w", err)
	}
	return nil
}

// Close closes the underlying connection. Idempotent.
func (s *UDPSender) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.conn.Close()
}

// UDPPublisher periodically reads the latest snapshot, packs it into the
// binary format above and sends it through a UDPSender.
type UDPPublisher struct {
	sender   *UDPSender
	source   SnapshotSource
	interval time.Duration

	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup

	sequenceNum  uint32
	snapBuf      pipeline.Snapshot
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates a publisher sending at the given interval.
// Invalid intervals default to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender, source SnapshotSource) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDP publisher: sender cannot be nil")
	}
	if source == nil {
		return nil, fmt.Errorf("UDP publisher: snapshot source cannot be nil")
	}
	if interval <= 0 {
		interval = 16 * time.Millisecond
	}

	return &UDPPublisher{
		sender:       sender,
		source:       source,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
		doneChan:     make(chan struct{}),
	}, nil
}

// Start launches the publisher goroutine.
func (p *UDPPublisher) Start() {
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()

		ticker := time.NewTicker(p.interval)
		defer ticker.Stop()

		applog.Debugf("UDP: publisher started (interval %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-p.doneChan:
				return
			}
		}
	}()
}

func (p *UDPPublisher) buildAndSendPacket() {
	p.snapBuf = p.source.Snapshot()
	if len(p.snapBuf.Bands) == 0 {
		return // Nothing published yet.
	}

	p.sequenceNum++
	if err := encodeSnapshot(p.packetBuffer, p.sequenceNum, p.snapBuf); err != nil {
		applog.Errorf("UDP: error packing snapshot: %v", err)
		return
	}

	if err := p.sender.Send(p.packetBuffer.Bytes()); err != nil {
		applog.Debugf("UDP: send error: %v", err)
	}
}

// Close stops the publisher goroutine and waits for it to exit. The sender
// is owned by the caller and closed separately.
func (p *UDPPublisher) Close() error {
	p.stopOnce.Do(func() {
		close(p.doneChan)
	})
	p.wg.Wait()
	return nil
}

// encodeSnapshot resets buf and writes one packet in the wire format
// documented above.
func encodeSnapshot(buf *bytes.Buffer, seq uint32, snap pipeline.Snapshot) error {
	buf.Reset()

	if err := binary.Write(buf, binary.BigEndian, seq); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, snap.Timestamp.UnixNano()); err != nil {
		return err
	}
	if err := binary.Write(buf, binary.BigEndian, uint16(len(snap.Bands))); err != nil {
		return err
	}
	for _, v := range snap.Bands {
		if err := binary.Write(buf, binary.BigEndian, float32(v)); err != nil {
			return err
		}
	}
	for _, v := range snap.Peaks {
		if err := binary.Write(buf, binary.BigEndian, float32(v)); err != nil {
			return err
		}
	}
	return nil
}

var _ Publisher = (*UDPPublisher)(nil)
