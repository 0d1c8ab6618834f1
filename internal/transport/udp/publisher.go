// SPDX-License-Identifier: MIT
package udp

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"time"

	applog "butterfly/internal/log"
	"butterfly/internal/render"
)

// UDPPublisher periodically sends the most recent follower levels of the
// final FFT stage over UDP. Render records a frame; a separate goroutine,
// managed by Start and Stop, packs and sends whatever was recorded last.
// Frames arriving faster than the interval are coalesced.
type UDPPublisher struct {
	sender   *UDPSender
	interval time.Duration

	ticker   *time.Ticker
	doneChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
	mu       sync.Mutex // Protects ticker and doneChan during Start/Stop.

	sequenceNum uint32

	latestMu    sync.Mutex
	latest      []float32 // Final-stage levels of the last rendered frame.
	latestIndex uint32
	fresh       bool // latest has not been sent yet

	sendBuffer   []float32
	packetBuffer *bytes.Buffer
}

// NewUDPPublisher creates and initializes a new UDPPublisher.
// If the provided interval is invalid (<= 0), it defaults to 16ms (~60Hz).
func NewUDPPublisher(interval time.Duration, sender *UDPSender) (*UDPPublisher, error) {
	if sender == nil {
		return nil, fmt.Errorf("UDPPublisher: UDP sender cannot be nil")
	}

	if interval <= 0 {
		interval = 16 * time.Millisecond
		applog.Warnf("UDPPublisher: Invalid interval provided, defaulting to %s", interval)
	}
	applog.Infof("UDPPublisher: Initializing (Interval: %s)", interval)

	return &UDPPublisher{
		sender:       sender,
		interval:     interval,
		packetBuffer: new(bytes.Buffer),
	}, nil
}

// Render records the final-stage levels of frame for the next tick.
func (p *UDPPublisher) Render(frame *render.Frame) error {
	if len(frame.Levels) == 0 {
		return nil
	}
	final := frame.Levels[len(frame.Levels)-1]
	if len(final) > MaxLevels {
		// The upper half mirrors the lower one for real input.
		final = final[:MaxLevels]
	}

	p.latestMu.Lock()
	if cap(p.latest) < len(final) {
		p.latest = make([]float32, len(final))
	}
	p.latest = p.latest[:len(final)]
	for i, v := range final {
		p.latest[i] = float32(v)
	}
	p.latestIndex = uint32(frame.Index)
	p.fresh = true
	p.latestMu.Unlock()
	return nil
}

// Start begins the periodic publishing process.
// It is safe to call Start multiple times; subsequent calls are no-ops if already started.
func (p *UDPPublisher) Start() {
	p.mu.Lock()
	if p.ticker != nil {
		p.mu.Unlock()
		applog.Warnf("UDPPublisher: Start called but already running.")
		return
	}

	p.ticker = time.NewTicker(p.interval)
	p.doneChan = make(chan struct{})
	p.stopOnce = sync.Once{}

	// Locals keep the goroutine off p.ticker/p.doneChan.
	ticker := p.ticker
	doneChan := p.doneChan

	p.mu.Unlock()

	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		applog.Infof("UDPPublisher: Publisher goroutine started (Interval: %s)", p.interval)
		for {
			select {
			case <-ticker.C:
				p.buildAndSendPacket()
			case <-doneChan:
				applog.Infof("UDPPublisher: Publisher goroutine received stop signal.")
				return
			}
		}
	}()
}

// Stop signals the publisher goroutine to terminate and waits for it to exit.
// It is safe to call Stop multiple times; subsequent calls are no-ops.
func (p *UDPPublisher) Stop() error {
	p.mu.Lock()
	if p.ticker == nil {
		p.mu.Unlock()
		applog.Debugf("UDPPublisher: Stop called but not running.")
		return nil
	}

	p.stopOnce.Do(func() {
		close(p.doneChan)
		p.ticker.Stop()
		p.ticker = nil
	})

	p.mu.Unlock()

	p.wg.Wait()
	applog.Infof("UDPPublisher: Publisher goroutine finished.")
	return nil
}

/*
UDP Packet Structure (BigEndian)

|<---- 4 Bytes ---->|<------ 8 Bytes ------>|<--- 4 Bytes --->|<-- 2 Bytes -->|<----- N * 4 Bytes ----->|
+-------------------+-----------------------+-----------------+---------------+-------------------------+
|  Sequence Number  |       Timestamp       |   Frame Index   |  Level Count  |         Levels          |
|      (uint32)     |  (int64, unix nanos)  |     (uint32)    |    (uint16)   |      (N * float32)      |
+-------------------+-----------------------+-----------------+---------------+-------------------------+
*/

// HeaderSize is the number of bytes preceding the levels.
const HeaderSize = 4 + 8 + 4 + 2

// MaxLevels is the most levels one datagram carries. Longer frames are cut.
const MaxLevels = (MaxPayload - HeaderSize) / 4

// Packet is the decoded form of one datagram.
type Packet struct {
	Sequence   uint32
	Timestamp  int64
	FrameIndex uint32
	Levels     []float32
}

// DecodePacket parses a datagram produced by UDPPublisher.
func DecodePacket(b []byte) (Packet, error) {
	var pkt Packet
	if len(b) < HeaderSize {
		return pkt, errors.New("udp: short packet")
	}
	pkt.Sequence = binary.BigEndian.Uint32(b[0:4])
	pkt.Timestamp = int64(binary.BigEndian.Uint64(b[4:12]))
	pkt.FrameIndex = binary.BigEndian.Uint32(b[12:16])
	count := int(binary.BigEndian.Uint16(b[16:18]))
	if len(b) != HeaderSize+count*4 {
		return pkt, fmt.Errorf("udp: packet length %d does not match level count %d", len(b), count)
	}
	pkt.Levels = make([]float32, count)
	if err := binary.Read(bytes.NewReader(b[HeaderSize:]), binary.BigEndian, pkt.Levels); err != nil {
		return pkt, err
	}
	return pkt, nil
}

// buildAndSendPacket packs the last recorded levels and sends them. Nothing
// is sent when no new frame arrived since the previous packet.
func (p *UDPPublisher) buildAndSendPacket() {
	p.latestMu.Lock()
	if !p.fresh {
		p.latestMu.Unlock()
		return
	}
	p.sendBuffer = append(p.sendBuffer[:0], p.latest...)
	frameIndex := p.latestIndex
	p.fresh = false
	p.latestMu.Unlock()


	p.sequenceNum++
	timestamp := time.Now().UnixNano()
	count := uint16(len(p.sendBuffer))

	p.packetBuffer.Reset()
	err := binary.Write(p.packetBuffer, binary.BigEndian, p.sequenceNum)
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, timestamp)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, frameIndex)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, count)
	}
	if err == nil {
		err = binary.Write(p.packetBuffer, binary.BigEndian, p.sendBuffer)
	}
	if err != nil {
		applog.Errorf("UDPPublisher: Error packing data into binary buffer: %v", err)
		return
	}

	packetBytes := p.packetBuffer.Bytes()
	if err := p.sender.Send(packetBytes); err == nil {
		applog.Debugf("UDPPublisher: Sent packet %d (%d bytes)", p.sequenceNum, len(packetBytes))
	}
}

// Close stops the publisher goroutine. The sender is owned by the caller.
func (p *UDPPublisher) Close() error {
	return p.Stop()
}

var (
	_ render.Renderer            = (*UDPPublisher)(nil)
	_ interface{ Close() error } = (*UDPPublisher)(nil)
)
