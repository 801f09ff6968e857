package enumerate_test

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/bdube/thorapt/aptcol"
	"github.com/bdube/thorapt/enumerate"
	"github.com/bdube/thorapt/usbtransport"
)

type fakeTransport struct {
	devices []usbtransport.DeviceInfo
	failN   int
}

func (f *fakeTransport) ListDevices(vendorID uint16) ([]usbtransport.DeviceInfo, error) {
	if f.failN > 0 {
		f.failN--
		return nil, errors.New("bridge not ready")
	}
	var out []usbtransport.DeviceInfo
	for _, d := range f.devices {
		if d.VendorID == vendorID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeTransport) Open(info usbtransport.DeviceInfo) (usbtransport.Handle, error) {
	return nil, errors.New("not implemented")
}

func TestCheckSerialNumber(t *testing.T) {
	cases := []struct {
		serial, prefix string
		wantErr        bool
	}{
		{"27123456", "27", false},
		{"21123456", "27", true},
		{"2712345", "27", true},
		{"271234ab", "27", true},
		{"27123456", "", false},
	}
	for _, c := range cases {
		err := enumerate.CheckSerialNumber(c.serial, c.prefix)
		if c.wantErr && !errors.Is(err, aptcol.ErrSerialInvalid) {
			t.Errorf("CheckSerialNumber(%q, %q) = %v, want ErrSerialInvalid", c.serial, c.prefix, err)
		}
		if !c.wantErr && err != nil {
			t.Errorf("CheckSerialNumber(%q, %q) = %v, want nil", c.serial, c.prefix, err)
		}
	}
}

func TestGetDeviceUniqueMatch(t *testing.T) {
	tr := &fakeTransport{devices: []usbtransport.DeviceInfo{
		{VendorID: enumerate.FTDIVendorID, ProductID: 0xFAF0, Serial: "27123456"},
		{VendorID: enumerate.FTDIVendorID, ProductID: 0xFAF0, Serial: "27999999"},
		{VendorID: 0x1234, ProductID: 0x0001, Serial: "27123456"},
	}}
	got, err := enumerate.GetDevice(tr, "27123456")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if got.Serial != "27123456" || got.VendorID != enumerate.FTDIVendorID {
		t.Fatalf("got %+v", got)
	}
}

func TestGetDeviceNotFound(t *testing.T) {
	tr := &fakeTransport{}
	_, err := enumerate.GetDevice(tr, "27123456")
	if !errors.Is(err, aptcol.ErrSerialNotFound) {
		t.Fatalf("GetDevice = %v, want ErrSerialNotFound", err)
	}
}

func TestGetDeviceAmbiguous(t *testing.T) {
	tr := &fakeTransport{devices: []usbtransport.DeviceInfo{
		{VendorID: enumerate.FTDIVendorID, ProductID: 0xFAF0, Serial: "27123456"},
		{VendorID: enumerate.FTDIVendorID, ProductID: 0xFAF1, Serial: "27123456"},
	}}
	_, err := enumerate.GetDevice(tr, "27123456")
	if !errors.Is(err, aptcol.ErrSerialMultiple) {
		t.Fatalf("GetDevice = %v, want ErrSerialMultiple", err)
	}
}

func TestGetDeviceRetriesTransientFailure(t *testing.T) {
	tr := &fakeTransport{
		failN: 2,
		devices: []usbtransport.DeviceInfo{
			{VendorID: enumerate.FTDIVendorID, ProductID: 0xFAF0, Serial: "27123456"},
		},
	}
	got, err := enumerate.GetDevice(tr, "27123456")
	if err != nil {
		t.Fatalf("GetDevice: %v", err)
	}
	if got.Serial != "27123456" {
		t.Fatalf("got %+v", got)
	}
}

func TestShowDevices(t *testing.T) {
	tr := &fakeTransport{devices: []usbtransport.DeviceInfo{
		{VendorID: enumerate.FTDIVendorID, ProductID: 0xFAF0, Serial: "27123456"},
	}}
	var buf bytes.Buffer
	if err := enumerate.ShowDevices(tr, &buf); err != nil {
		t.Fatalf("ShowDevices: %v", err)
	}
	if !strings.Contains(buf.String(), "27123456") {
		t.Fatalf("output missing serial: %q", buf.String())
	}
}
