// SPDX-License-Identifier: MIT
package transport

import (
	"bytes"
	"encoding/binary"
	"net"
	"testing"
	"time"

	"termsonic/internal/pipeline"
)

type staticSource struct {
	snap pipeline.Snapshot
}

func (s *staticSource) Snapshot() pipeline.Snapshot { return s.snap }

func testSnapshot() pipeline.Snapshot {
	return pipeline.Snapshot{
		Bands:     []float64{-100, -42.5, -3.25, 0},
		Peaks:     []float64{-80, -40, -1.5, 0},
		Timestamp: time.Unix(1700000000, 123456789),
	}
}

func decodePacket(t *testing.T, data []byte) (seq uint32, ts int64, bands, peaks []float32) {
	t.Helper()
	r := bytes.NewReader(data)

	var count uint16
	if err := binary.Read(r, binary.BigEndian, &seq); err != nil {
		t.Fatalf("reading sequence: %v", err)
	}
	if err := binary.Read(r, binary.BigEndian, &ts); err != nil {
		t.Fatalf("reading timestamp: %v", err)
	}
	if err := binary.Read(r, binary.BigEndian, &count); err != nil {
		t.Fatalf("reading band count: %v", err)
	}

	bands = make([]float32, count)
	peaks = make([]float32, count)
	if err := binary.Read(r, binary.BigEndian, bands); err != nil {
		t.Fatalf("reading bands: %v", err)
	}
	if err := binary.Read(r, binary.BigEndian, peaks); err != nil {
		t.Fatalf("reading peaks: %v", err)
	}
	if r.Len() != 0 {
		t.Errorf("packet has %d trailing bytes", r.Len())
	}
	return seq, ts, bands, peaks
}

func TestEncodeSnapshot(t *testing.T) {
	snap := testSnapshot()
	buf := new(bytes.Buffer)

	if err := encodeSnapshot(buf, 7, snap); err != nil {
		t.Fatalf("encodeSnapshot failed: %v", err)
	}

	wantLen := 4 + 8 + 2 + len(snap.Bands)*4 + len(snap.Peaks)*4
	if buf.Len() != wantLen {
		t.Errorf("packet length = %d, expected %d", buf.Len(), wantLen)
	}

	seq, ts, bands, peaks := decodePacket(t, buf.Bytes())
	if seq != 7 {
		t.Errorf("sequence = %d, expected 7", seq)
	}
	if ts != snap.Timestamp.UnixNano() {
		t.Errorf("timestamp = %d, expected %d", ts, snap.Timestamp.UnixNano())
	}
	for i := range snap.Bands {
		if bands[i] != float32(snap.Bands[i]) {
			t.Errorf("bands[%d] = %f, expected %f", i, bands[i], snap.Bands[i])
		}
		if peaks[i] != float32(snap.Peaks[i]) {
			t.Errorf("peaks[%d] = %f, expected %f", i, peaks[i], snap.Peaks[i])
		}
	}
}

func TestEncodeSnapshotResetsBuffer(t *testing.T) {
	snap := testSnapshot()
	buf := new(bytes.Buffer)

	if err := encodeSnapshot(buf, 1, snap); err != nil {
		t.Fatalf("first encode failed: %v", err)
	}
	first := buf.Len()

	if err := encodeSnapshot(buf, 2, snap); err != nil {
		t.Fatalf("second encode failed: %v", err)
	}
	if buf.Len() != first {
		t.Errorf("buffer length = %d after second encode, expected %d", buf.Len(), first)
	}
}

func TestNewUDPPublisherValidation(t *testing.T) {
	src := &staticSource{snap: testSnapshot()}

	if _, err := NewUDPPublisher(time.Millisecond, nil, src); err == nil {
		t.Error("Expected error for nil sender")
	}
	if _, err := NewUDPPublisher(time.Millisecond, &UDPSender{}, nil); err == nil {
		t.Error("Expected error for nil source")
	}

	p, err := NewUDPPublisher(0, &UDPSender{}, src)
	if err != nil {
		t.Fatalf("NewUDPPublisher failed: %v", err)
	}
	if p.interval != 16*time.Millisecond {
		t.Errorf("interval = %s, expected 16ms default", p.interval)
	}
}

func TestUDPPublisherSendsOverLoopback(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to open loopback listener: %v", err)
	}
	defer listener.Close()

	sender, err := NewUDPSender(listener.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewUDPSender failed: %v", err)
	}
	defer sender.Close()

	src := &staticSource{snap: testSnapshot()}
	pub, err := NewUDPPublisher(time.Millisecond, sender, src)
	if err != nil {
		t.Fatalf("NewUDPPublisher failed: %v", err)
	}

	pub.Start()
	defer pub.Close()

	listener.SetReadDeadline(time.Now().Add(2 * time.Second))
	packet := make([]byte, 2048)
	n, _, err := listener.ReadFromUDP(packet)
	if err != nil {
		t.Fatalf("failed to receive packet: %v", err)
	}

	seq, _, bands, _ := decodePacket(t, packet[:n])
	if seq == 0 {
		t.Error("sequence number should start at 1")
	}
	if len(bands) != len(src.snap.Bands) {
		t.Errorf("received %d bands, expected %d", len(bands), len(src.snap.Bands))
	}
}

func TestUDPSenderClosedRejectsSend(t *testing.T) {
	listener, err := net.ListenUDP("udp", &net.UDPAddr{IP: net.IPv4(127, 0, 0, 1)})
	if err != nil {
		t.Fatalf("failed to open loopback listener: %v", err)
	}
	defer listener.Close()

	sender, err := NewUDPSender(listener.LocalAddr().String())
	if err != nil {
		t.Fatalf("NewUDPSender failed: %v", err)
	}

	if err := sender.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if err := sender.Close(); err != nil {
		t.Errorf("second Close should be a no-op, got: %v", err)
	}
	if err := sender.Send([]byte{1, 2, 3}); err == nil {
		t.Error("Expected error sending on closed sender")
	}
}
