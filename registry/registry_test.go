package registry

import "testing"

func TestAddAbortDevice(t *testing.T) {
	called := false
	Add("27123456", func() { called = true })
	AbortDevice("27123456")
	if !called {
		t.Fatal("AbortDevice did not invoke the registered callback")
	}
	// AbortDevice must not remove the entry.
	called = false
	AbortDevice("27123456")
	if !called {
		t.Fatal("callback should survive AbortDevice")
	}
	DropDevice("27123456")
}

func TestDropDeviceRemoves(t *testing.T) {
	n := 0
	Add("27000001", func() { n++ })
	DropDevice("27000001")
	if n != 1 {
		t.Fatalf("n = %d, want 1", n)
	}
	DropDevice("27000001") // no-op, entry already gone
	if n != 1 {
		t.Fatalf("n = %d after second drop, want 1", n)
	}
}

func TestGlobalAbortFansOutAndExits(t *testing.T) {
	oldExit := exit
	defer func() { exit = oldExit }()

	var exited int
	exit = func(code int) { exited = code }

	var fired []string
	Add("27111111", func() { fired = append(fired, "a") })
	Add("27222222", func() { fired = append(fired, "b") })

	GlobalAbort("test fault")

	if len(fired) != 2 {
		t.Fatalf("expected both callbacks to fire, got %v", fired)
	}
	if exited != 1 {
		t.Fatalf("exit code = %d, want 1", exited)
	}
	AbortDevice("27111111") // registry should be empty after GlobalAbort
	if len(fired) != 2 {
		t.Fatalf("registry was not drained by GlobalAbort")
	}
}
