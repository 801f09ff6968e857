package usbtransport

import (
	"fmt"

	"github.com/google/gousb"
)

// defaultInterfaceNum is the interface number claimed on every FTDI-bridged
// Thorlabs controller; these devices expose exactly one interface.
const defaultInterfaceNum = 0

// GousbTransport implements Transport on top of github.com/google/gousb.
// A context is opened once and reused across enumeration and device opens.
type GousbTransport struct {
	ctx *gousb.Context
}

// NewGousbTransport opens a gousb context. Callers should keep one for the
// lifetime of the process; closing it invalidates every Handle obtained
// from it.
func NewGousbTransport() *GousbTransport {
	return &GousbTransport{ctx: gousb.NewContext()}
}

// Close releases the underlying libusb context.
func (t *GousbTransport) Close() error {
	return t.ctx.Close()
}

// ListDevices enumerates attached devices matching vendorID, reading each
// candidate's serial-number string descriptor.
func (t *GousbTransport) ListDevices(vendorID uint16) ([]DeviceInfo, error) {
	var infos []DeviceInfo
	devs, err := t.ctx.OpenDevices(func(desc *gousb.DeviceDesc) bool {
		return uint16(desc.Vendor) == vendorID
	})
	if err != nil && len(devs) == 0 {
		return nil, fmt.Errorf("usbtransport: enumerate vid %#04x: %w", vendorID, err)
	}
	for _, d := range devs {
		serial, serr := d.SerialNumber()
		if serr != nil {
			serial = ""
		}
		infos = append(infos, DeviceInfo{
			VendorID:  uint16(d.Desc.Vendor),
			ProductID: uint16(d.Desc.Product),
			Serial:    serial,
		})
		d.Close()
	}
	return infos, nil
}

// Open opens the device matching info's vendor/product/serial.
func (t *GousbTransport) Open(info DeviceInfo) (Handle, error) {
	dev, err := t.ctx.OpenDeviceWithVIDPID(gousb.ID(info.VendorID), gousb.ID(info.ProductID))
	if err != nil {
		return nil, fmt.Errorf("usbtransport: open %04x:%04x: %w", info.VendorID, info.ProductID, err)
	}
	if dev == nil {
		return nil, fmt.Errorf("usbtransport: device %04x:%04x not present", info.VendorID, info.ProductID)
	}
	if serial, serr := dev.SerialNumber(); serr == nil && info.Serial != "" && serial != info.Serial {
		dev.Close()
		return nil, fmt.Errorf("usbtransport: serial mismatch, got %s want %s", serial, info.Serial)
	}
	dev.SetAutoDetach(true)
	return &gousbHandle{dev: dev}, nil
}

type gousbHandle struct {
	dev *gousb.Device
}

func (h *gousbHandle) DetachKernelDriver(ifNum int) error {
	// gousb handles detach transparently via SetAutoDetach; nothing
	// further to do, but the method is kept on the interface so a fake
	// transport in tests can assert it was called.
	return nil
}

func (h *gousbHandle) ClaimInterface(ifNum int) (Interface, error) {
	cfg, err := h.dev.Config(1)
	if err != nil {
		return nil, fmt.Errorf("usbtransport: select config: %w", err)
	}
	iface, err := cfg.Interface(ifNum, 0)
	if err != nil {
		cfg.Close()
		return nil, fmt.Errorf("usbtransport: claim interface %d: %w", ifNum, err)
	}
	return &gousbInterface{dev: h.dev, cfg: cfg, iface: iface}, nil
}

func (h *gousbHandle) Close() error {
	return h.dev.Close()
}

type gousbInterface struct {
	dev   *gousb.Device
	cfg   *gousb.Config
	iface *gousb.Interface
}

func (i *gousbInterface) ControlOut(req ControlRequest, data []byte) error {
	_, err := i.dev.Control(req.RequestType, req.Request, req.Value, req.Index, data)
	return err
}

func (i *gousbInterface) InEndpoint(addr uint8) (InStream, error) {
	ep, err := i.iface.InEndpoint(int(addr))
	if err != nil {
		return nil, fmt.Errorf("usbtransport: in endpoint %#02x: %w", addr, err)
	}
	return &gousbInStream{ep: ep}, nil
}

func (i *gousbInterface) OutEndpoint(addr uint8) (OutStream, error) {
	ep, err := i.iface.OutEndpoint(int(addr))
	if err != nil {
		return nil, fmt.Errorf("usbtransport: out endpoint %#02x: %w", addr, err)
	}
	return ep, nil
}

func (i *gousbInterface) Release() {
	i.iface.Close()
	i.cfg.Close()
}

type gousbInStream struct {
	ep *gousb.InEndpoint
}

func (s *gousbInStream) Read(p []byte) (int, error) {
	return s.ep.Read(p)
}

func (s *gousbInStream) MaxPacketSize() int {
	return s.ep.Desc.MaxPacketSize
}
