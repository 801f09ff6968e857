/*Command showdevices lists connected Thorlabs APT controllers and probes
each one's identity over USB. It is a thin diagnostic adapter over the
core: all of the protocol work happens in enumerate, usbprimitive and the
kdc101 façade.
*/
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/theckman/yacspin"

	"github.com/bdube/thorapt/config"
	"github.com/bdube/thorapt/enumerate"
	"github.com/bdube/thorapt/kdc101"
	"github.com/bdube/thorapt/usbtransport"
)

func main() {
	configPath := flag.String("config", "thorapt.yml", "path to the optional config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "showdevices: loading config: %v\n", err)
		os.Exit(1)
	}

	transport := usbtransport.NewGousbTransport()
	defer transport.Close()

	devices, err := listDevices(transport)
	if err != nil {
		fmt.Fprintf(os.Stderr, "showdevices: %v\n", err)
		os.Exit(1)
	}
	if len(devices) == 0 {
		fmt.Println("no Thorlabs APT controllers found")
		return
	}

	header := color.New(color.FgCyan, color.Bold)
	header.Printf("%-6s %-6s %-10s %s\n", "VID", "PID", "SERIAL", "IDENTITY")

	for _, d := range devices {
		probeDevice(d, cfg)
	}
}

func listDevices(transport usbtransport.Transport) ([]usbtransport.DeviceInfo, error) {
	return transport.ListDevices(enumerate.FTDIVendorID)
}

func probeDevice(d usbtransport.DeviceInfo, cfg config.Config) {
	spinner, err := yacspin.New(yacspin.Config{
		Frequency:       100 * time.Millisecond,
		CharSet:         yacspin.CharSets[9],
		Suffix:          fmt.Sprintf(" probing %s", d.Serial),
		StopCharacter:   "✓",
		StopColors:      []string{"fgGreen"},
		StopFailMessage: "failed",
		StopFailColors:  []string{"fgRed"},
	})
	if err == nil {
		_ = spinner.Start()
	}

	line := fmt.Sprintf("%#04x %#04x %-10s", d.VendorID, d.ProductID, d.Serial)

	identity := "unsupported model"
	if err := enumerate.CheckSerialNumber(d.Serial, kdc101.SerialPrefix); err == nil {
		real := usbtransport.NewGousbTransport()
		defer real.Close()
		transport := &singleDeviceTransport{info: d, real: real}
		dev, err := kdc101.Open(transport, d.Serial, nil, cfg.RequestTimeout)
		if err != nil {
			identity = color.RedString("open failed: %v", err)
		} else {
			info, err := dev.HardwareInfo()
			if err != nil {
				identity = color.RedString("identify failed: %v", err)
			} else {
				identity = color.GreenString("%s (fw %s)", info.ModelNumber, info.FirmwareVersion)
			}
			dev.Close()
		}
	}

	if spinner != nil {
		_ = spinner.Stop()
	}
	fmt.Printf("%s %s\n", line, identity)
}

// singleDeviceTransport adapts a single already-enumerated DeviceInfo to
// the usbtransport.Transport interface the façade expects, so the façade's
// own enumeration step doesn't have to walk the bus again for a device the
// caller already found.
type singleDeviceTransport struct {
	info usbtransport.DeviceInfo
	real *usbtransport.GousbTransport
}

func (t *singleDeviceTransport) ListDevices(vendorID uint16) ([]usbtransport.DeviceInfo, error) {
	return []usbtransport.DeviceInfo{t.info}, nil
}

func (t *singleDeviceTransport) Open(info usbtransport.DeviceInfo) (usbtransport.Handle, error) {
	return t.real.Open(info)
}
