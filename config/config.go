/*Package config holds the handful of tunables the core needs that are not
themselves part of the APT wire protocol: throttling, timeouts, and the
FTDI vendor ID, loaded with the two-stage koanf pattern this repository
uses elsewhere -- struct defaults first, then an optional YAML file layered
on top.
*/
package config

import (
	"log"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
)

// Config is the full set of tunables. Field names are lowercased by koanf
// for YAML keys, so e.g. RequestTimeout becomes "requesttimeout" in the file.
type Config struct {
	// VendorID is a USB vendor ID tunable. Enumeration does not read it:
	// enumerate.GetDevice and cmd/showdevices always filter on
	// enumerate.FTDIVendorID.
	VendorID uint16 `koanf:"vendorid"`

	// InterfaceNum is a USB interface number tunable. usbprimitive does
	// not read it and always claims interface 0.
	InterfaceNum int `koanf:"interfacenum"`

	// RequestTimeout is the per-request timeout a façade applies while
	// awaiting a correlated response (cmd/showdevices passes it to
	// kdc101.Open).
	RequestTimeout time.Duration `koanf:"requesttimeout"`

	// InboundRateLimitHz is an inbound read-loop throttle rate in reads per
	// second. No code in this repository builds a rate.Limiter from it;
	// the limiter passed to kdc101.Open or usbprimitive.New is chosen by
	// the caller, and nil disables throttling.
	InboundRateLimitHz float64 `koanf:"inboundratelimithz"`
}

// Default returns the Config every façade starts from absent a file.
func Default() Config {
	return Config{
		VendorID:           0x0403,
		InterfaceNum:       0,
		RequestTimeout:     2 * time.Second,
		InboundRateLimitHz: 100,
	}
}

// Load builds a Config starting from Default and layering path's YAML
// contents on top, if the file exists. A missing file is not an error --
// every field simply keeps its default.
func Load(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return Config{}, err
	}
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !strings.Contains(err.Error(), "no such file") {
			return Config{}, err
		}
	}
	var c Config
	if err := k.Unmarshal("", &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Watch reloads the config from path whenever the file changes on disk and
// invokes onChange with the new value. The watching runs in a background
// goroutine; Watch itself returns once the watcher is set up. Callers that
// don't want hot reload simply never call it.
// A watcher error is logged and ignored -- the process keeps running on
// whatever config it last loaded successfully.
func Watch(path string, onChange func(Config)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return err
	}
	go func() {
		defer watcher.Close()
		for {
			select {
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				c, err := Load(path)
				if err != nil {
					log.Printf("config: reload of %s failed, keeping previous config: %v", path, err)
					continue
				}
				onChange(c)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("config: watcher error: %v", err)
			}
		}
	}()
	return nil
}
