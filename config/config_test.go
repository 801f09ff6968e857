package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bdube/thorapt/config"
)

func TestDefaultValues(t *testing.T) {
	d := config.Default()
	if d.VendorID != 0x0403 {
		t.Errorf("VendorID = %#x, want 0x0403", d.VendorID)
	}
	if d.RequestTimeout != 2*time.Second {
		t.Errorf("RequestTimeout = %v, want 2s", d.RequestTimeout)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	c, err := config.Load(filepath.Join(t.TempDir(), "nonexistent.yml"))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c != config.Default() {
		t.Fatalf("Load with missing file = %+v, want defaults %+v", c, config.Default())
	}
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thorapt.yml")
	contents := "vendorid: 4660\ninterfacenum: 1\n"
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	c, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.VendorID != 0x1234 {
		t.Errorf("VendorID = %#x, want 0x1234", c.VendorID)
	}
	if c.InterfaceNum != 1 {
		t.Errorf("InterfaceNum = %d, want 1", c.InterfaceNum)
	}
	// Fields absent from the file retain their defaults.
	if c.RequestTimeout != config.Default().RequestTimeout {
		t.Errorf("RequestTimeout = %v, want default %v", c.RequestTimeout, config.Default().RequestTimeout)
	}
}

func TestWatchReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "thorapt.yml")
	if err := os.WriteFile(path, []byte("vendorid: 1\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	changed := make(chan config.Config, 1)
	if err := config.Watch(path, func(c config.Config) { changed <- c }); err != nil {
		t.Fatalf("Watch: %v", err)
	}

	if err := os.WriteFile(path, []byte("vendorid: 2\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	select {
	case c := <-changed:
		if c.VendorID != 2 {
			t.Errorf("reloaded VendorID = %d, want 2", c.VendorID)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Watch did not observe the file change in time")
	}
}
