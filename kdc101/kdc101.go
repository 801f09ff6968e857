/*Package kdc101 is the reference per-model façade for the Thorlabs KDC101
DC servo motor controller, built against the core transport/dispatch
stack. It exists to exercise the façade contract end to end; additional
models follow the same recipe against their own command set and scale
factors.
*/
package kdc101

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/bdube/thorapt/aptframe"
	"github.com/bdube/thorapt/dispatch"
	"github.com/bdube/thorapt/enumerate"
	"github.com/bdube/thorapt/registry"
	"github.com/bdube/thorapt/usbprimitive"
	"github.com/bdube/thorapt/usbtransport"
	"github.com/bdube/thorapt/util"
)

// Scale factors convert between physical units and the device's internal
// encoder counts, exactly as published for the KDC101.
const (
	DistanceAngleScalingFactor = 34554.96
	VelocityScalingFactor      = 772981.3692
	AccelerationScalingFactor  = 263.8443072
)

// SerialPrefix is the model-specific prefix every KDC101 serial number carries.
const SerialPrefix = "27"

// Command descriptors, named after their entries in the APT protocol manual.
var (
	modIdentify           = aptframe.ID{0x23, 0x02}
	hwReqInfo             = aptframe.ID{0x05, 0x00}
	hwGetInfo             = aptframe.ID{0x06, 0x00}
	motSetChanEnableState = aptframe.ID{0x10, 0x02}
	motReqChanEnableState = aptframe.ID{0x11, 0x02}
	motGetChanEnableState = aptframe.ID{0x12, 0x02}
	motMoveHome           = aptframe.ID{0x43, 0x04}
	motMoveHomed          = aptframe.ID{0x44, 0x04}
	motMoveAbsolute       = aptframe.ID{0x53, 0x04}
	motMoveCompleted      = aptframe.ID{0x64, 0x04}
	motReqUStatusUpdate   = aptframe.ID{0x90, 0x04}
	motGetUStatusUpdate   = aptframe.ID{0x91, 0x04}
	motMoveStop           = aptframe.ID{0x65, 0x04}
)

// maxChannels bounds the abort fan-out; the KDC101 exposes a single motor
// channel, but the loop is written generically in case a future model in
// this family reuses the façade shape.
const maxChannels = 1

// DescriptorTable returns the command length table for a KDC101 Dispatcher.
func DescriptorTable() *aptframe.Table {
	return aptframe.NewTable([]aptframe.Descriptor{
		{ID: modIdentify, Length: 6},
		{ID: hwReqInfo, Length: 6},
		{ID: hwGetInfo, Length: 90},
		{ID: motSetChanEnableState, Length: 6},
		{ID: motReqChanEnableState, Length: 6},
		{ID: motGetChanEnableState, Length: 6},
		{ID: motMoveHome, Length: 6},
		{ID: motMoveHomed, Length: 6},
		{ID: motMoveAbsolute, Length: 12},
		{ID: motMoveCompleted, Length: 20},
		{ID: motReqUStatusUpdate, Length: 6},
		{ID: motGetUStatusUpdate, Length: 20},
		{ID: motMoveStop, Length: 6},
	})
}

// Device is an open KDC101 handle.
type Device struct {
	primitive *usbprimitive.Primitive
	timeout   time.Duration
}

// Open locates the KDC101 with the given serial number, claims it, and
// registers its abort callback with the global registry.
func Open(transport usbtransport.Transport, serial string, limiter *rate.Limiter, timeout time.Duration) (*Device, error) {
	if err := enumerate.CheckSerialNumber(serial, SerialPrefix); err != nil {
		return nil, err
	}
	info, err := enumerate.GetDevice(transport, serial)
	if err != nil {
		return nil, err
	}
	p := usbprimitive.New(transport, info, DescriptorTable(), limiter)
	if err := p.Open(); err != nil {
		return nil, err
	}
	d := &Device{primitive: p, timeout: timeout}
	registry.Add(serial, d.abort)
	return d, nil
}

// abort issues MOT_MOVE_STOP on every channel, best-effort. It is what the
// registry calls during a global abort, so transport errors here are
// ignored -- the process is already on its way down.
func (d *Device) abort() {
	for ch := byte(1); ch <= maxChannels; ch++ {
		_ = d.primitive.Send(aptframe.Short(motMoveStop, ch, 0))
	}
}

// Close aborts the device's motion, drops it from the registry, and
// releases the underlying interface.
func (d *Device) Close() {
	d.primitive.Release()
}

func (d *Device) ctx() (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.Background(), d.timeout)
}

// Identify flashes the device's front-panel LED. It is a fire-and-forget
// command with no response frame.
func (d *Device) Identify() error {
	return d.primitive.Send(aptframe.Short(modIdentify, 0, 0))
}

// HardwareInfo populates the device's identity fields from HW_GET_INFO.
type HardwareInfo struct {
	SerialNumber    string
	ModelNumber     string
	Type            uint16
	FirmwareVersion string
	Notes           string
	HardwareVersion uint16
	ModuleState     uint16
	NumChannels     uint16
}

// HardwareInfo requests and decodes HW_GET_INFO.
func (d *Device) HardwareInfo() (*HardwareInfo, error) {
	ctx, cancel := d.ctx()
	defer cancel()
	prov, rx := d.primitive.Receiver(hwGetInfo)
	if prov == dispatch.New {
		if err := d.primitive.Send(aptframe.Short(hwReqInfo, 0, 0)); err != nil {
			return nil, err
		}
	}
	frame, err := rx.Recv(ctx)
	if err != nil {
		return nil, err
	}
	return parseHardwareInfo(aptframe.Payload(frame))
}

func parseHardwareInfo(p []byte) (*HardwareInfo, error) {
	if len(p) < 84 {
		return nil, fmt.Errorf("kdc101: HW_GET_INFO payload too short: got %d bytes, want 84", len(p))
	}
	return &HardwareInfo{
		SerialNumber:    fmt.Sprintf("%d", binary.LittleEndian.Uint32(p[0:4])),
		ModelNumber:     strings.TrimRight(string(p[4:12]), "\x00 "),
		Type:            binary.LittleEndian.Uint16(p[12:14]),
		FirmwareVersion: fmt.Sprintf("%d.%d.%d", p[17], p[16], p[15]),
		Notes:           strings.TrimRight(string(p[18:66]), "\x00"),
		HardwareVersion: binary.LittleEndian.Uint16(p[78:80]),
		ModuleState:     binary.LittleEndian.Uint16(p[80:82]),
		NumChannels:     binary.LittleEndian.Uint16(p[82:84]),
	}, nil
}

// Home drives channel to its home position and waits for MOT_MOVE_HOMED.
func (d *Device) Home(channel byte) error {
	ctx, cancel := d.ctx()
	defer cancel()
	prov, rx := d.primitive.Receiver(motMoveHomed)
	if prov == dispatch.New {
		if err := d.primitive.Send(aptframe.Short(motMoveHome, channel, 0)); err != nil {
			return err
		}
	}
	_, err := rx.Recv(ctx)
	return err
}

// MoveAbsolute converts positionMM via the distance/angle scale factor and
// drives channel to that position, waiting for MOT_MOVE_COMPLETED.
func (d *Device) MoveAbsolute(channel byte, positionMM float64) error {
	counts := int32(math.Round(positionMM * DistanceAngleScalingFactor))
	payload := make([]byte, 6)
	binary.LittleEndian.PutUint16(payload[0:2], uint16(channel))
	binary.LittleEndian.PutUint32(payload[2:6], uint32(counts))

	ctx, cancel := d.ctx()
	defer cancel()
	prov, rx := d.primitive.Receiver(motMoveCompleted)
	if prov == dispatch.New {
		if err := d.primitive.Send(aptframe.Long(motMoveAbsolute, payload)); err != nil {
			return err
		}
	}
	_, err := rx.Recv(ctx)
	return err
}

// SetChannelEnabled sets channel's enable state, then confirms it via
// MOT_REQ/GET_CHANENABLESTATE.
func (d *Device) SetChannelEnabled(channel byte, enable bool) error {
	var enableByte byte
	if enable {
		enableByte = 1
	}
	if err := d.primitive.Send(aptframe.Short(motSetChanEnableState, channel, enableByte)); err != nil {
		return err
	}

	ctx, cancel := d.ctx()
	defer cancel()
	prov, rx := d.primitive.Receiver(motGetChanEnableState)
	if prov == dispatch.New {
		if err := d.primitive.Send(aptframe.Short(motReqChanEnableState, channel, 0)); err != nil {
			return err
		}
	}
	frame, err := rx.Recv(ctx)
	if err != nil {
		return err
	}
	if frame[3] != enableByte {
		return fmt.Errorf("kdc101: channel %d enable state did not confirm: got %#x, want %#x", channel, frame[3], enableByte)
	}
	return nil
}

// ChannelEnabled reports channel's current enable state.
func (d *Device) ChannelEnabled(channel byte) (bool, error) {
	ctx, cancel := d.ctx()
	defer cancel()
	prov, rx := d.primitive.Receiver(motGetChanEnableState)
	if prov == dispatch.New {
		if err := d.primitive.Send(aptframe.Short(motReqChanEnableState, channel, 0)); err != nil {
			return false, err
		}
	}
	frame, err := rx.Recv(ctx)
	if err != nil {
		return false, err
	}
	return frame[3] != 0, nil
}

// StatusUpdate decodes position, velocity and motion-status bits for channel.
type StatusUpdate struct {
	PositionMM    float64
	VelocityMMPS  float64
	MotorCurrent  int16
	StatusBits    uint32
	MovingForward bool
	MovingReverse bool
	Homed         bool
}

// StatusUpdate requests and decodes MOT_GET_USTATUSUPDATE for channel. Two
// concurrent callers for the same channel issue exactly one request and
// both receive the same decoded result.
func (d *Device) StatusUpdate(channel byte) (*StatusUpdate, error) {
	ctx, cancel := d.ctx()
	defer cancel()
	prov, rx := d.primitive.Receiver(motGetUStatusUpdate)
	if prov == dispatch.New {
		if err := d.primitive.Send(aptframe.Short(motReqUStatusUpdate, channel, 0)); err != nil {
			return nil, err
		}
	}
	frame, err := rx.Recv(ctx)
	if err != nil {
		return nil, err
	}
	return parseStatusUpdate(aptframe.Payload(frame))
}

func parseStatusUpdate(p []byte) (*StatusUpdate, error) {
	if len(p) < 14 {
		return nil, fmt.Errorf("kdc101: status update payload too short: got %d bytes, want 14", len(p))
	}
	counts := int32(binary.LittleEndian.Uint32(p[2:6]))
	velocityRaw := int16(binary.LittleEndian.Uint16(p[6:8]))
	current := int16(binary.LittleEndian.Uint16(p[8:10]))
	bits := binary.LittleEndian.Uint32(p[10:14])
	lowByte := byte(bits)
	highByte := byte(bits >> 8)
	return &StatusUpdate{
		PositionMM:    float64(counts) / DistanceAngleScalingFactor,
		VelocityMMPS:  float64(velocityRaw) / VelocityScalingFactor,
		MotorCurrent:  current,
		StatusBits:    bits,
		MovingForward: util.GetBit(lowByte, 4),
		MovingReverse: util.GetBit(lowByte, 5),
		Homed:         util.GetBit(highByte, 1),
	}, nil
}

// StartStatusUpdates polls StatusUpdate for channel every interval, posting
// each result (or the first error, which stops the loop) to a channel.
// Callers cancel via ctx; the returned channel is closed once the
// goroutine exits.
func (d *Device) StartStatusUpdates(ctx context.Context, channel byte, interval time.Duration) <-chan StatusUpdateEvent {
	out := make(chan StatusUpdateEvent)
	go func() {
		defer close(out)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				update, err := d.StatusUpdate(channel)
				select {
				case out <- StatusUpdateEvent{Update: update, Err: err}:
				case <-ctx.Done():
					return
				}
				if err != nil {
					return
				}
			}
		}
	}()
	return out
}

// StatusUpdateEvent is one tick of StartStatusUpdates' output.
type StatusUpdateEvent struct {
	Update *StatusUpdate
	Err    error
}
