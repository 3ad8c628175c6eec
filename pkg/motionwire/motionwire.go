// Package motionwire implements a concrete motioniface.StepperPreparer
// that frames prepared segments onto a serial transport, grounded on
// pkg/protocol's VLQ integer codec and pkg/serial's termios-backed
// Port, the same pair the teacher uses to talk to a real MCU.
package motionwire

import (
	"fmt"

	"github.com/kcant/g2/pkg/motion"
	"github.com/kcant/g2/pkg/pool"
	"github.com/kcant/g2/pkg/protocol"
	"github.com/kcant/g2/pkg/serial"
)

// FrameKind tags the wire frame so the receiving firmware can
// distinguish a line segment from a null (no-motion) tick.
type FrameKind byte

const (
	FrameLine FrameKind = 1
	FrameNull FrameKind = 2
)

// SerialStepperPreparer implements motioniface.StepperPreparer by
// encoding each segment as (kind, travel_steps[Motors] VLQ,
// following_error[Motors] VLQ, segment_time_us VLQ) and writing it to a
// serial Port, the same VLQ-framed-command style pkg/protocol uses for
// MCU commands.
type SerialStepperPreparer struct {
	port *serial.Port
}

// NewSerialStepperPreparer wraps an already-open serial.Port.
func NewSerialStepperPreparer(port *serial.Port) *SerialStepperPreparer {
	return &SerialStepperPreparer{port: port}
}

// PrepLine implements motioniface.StepperPreparer. The frame buffer is
// pulled from pool's byte-buffer pool rather than allocated fresh, since
// this runs once per executed segment — the hot path this pool exists
// for.
func (s *SerialStepperPreparer) PrepLine(travelSteps [motion.Motors]int64, followingError [motion.Motors]int64, segmentTime float64) error {
	bb := pool.GetByteBuffer()
	buf := append(bb.Bytes()[:0], byte(FrameLine))
	for _, v := range travelSteps {
		protocol.EncodeUint32(&buf, int32(v))
	}
	for _, v := range followingError {
		protocol.EncodeUint32(&buf, int32(v))
	}
	protocol.EncodeUint32(&buf, int32(segmentTime*1e6))

	_, err := s.port.Write(buf)

	bb.Reset()
	bb.Write(buf)
	pool.PutByteBuffer(bb)

	if err != nil {
		return fmt.Errorf("motionwire: prep_line write failed: %w", err)
	}
	return nil
}

// PrepNull implements motioniface.StepperPreparer.
func (s *SerialStepperPreparer) PrepNull() error {
	_, err := s.port.Write([]byte{byte(FrameNull)})
	if err != nil {
		return fmt.Errorf("motionwire: prep_null write failed: %w", err)
	}
	return nil
}

// DecodeLine is the receiving side's counterpart to PrepLine's framing,
// used by tests and by any Go-side simulator standing in for firmware.
func DecodeLine(buf []byte) (travelSteps [motion.Motors]int64, followingError [motion.Motors]int64, segmentTimeUs int32, err error) {
	if len(buf) == 0 || FrameKind(buf[0]) != FrameLine {
		return travelSteps, followingError, 0, fmt.Errorf("motionwire: not a line frame")
	}
	pos := 1
	for i := range travelSteps {
		v, next := protocol.DecodeUint32(buf, pos)
		travelSteps[i] = int64(v)
		pos = next
	}
	for i := range followingError {
		v, next := protocol.DecodeUint32(buf, pos)
		followingError[i] = int64(v)
		pos = next
	}
	v, pos := protocol.DecodeUint32(buf, pos)
	segmentTimeUs = v
	_ = pos
	return travelSteps, followingError, segmentTimeUs, nil
}
