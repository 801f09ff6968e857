package aptframe_test

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/bdube/thorapt/aptframe"
)

func ExampleShort() {
	frame := aptframe.Short(aptframe.ID{0x43, 0x04}, 0x01, 0x00)
	fmt.Println(frame)
	// Output: [67 4 1 0 80 1]
}

func ExampleLong() {
	frame := aptframe.Long(aptframe.ID{0x53, 0x04}, []byte{0x01, 0x00, 0x00, 0x00, 0x01, 0x00})
	fmt.Println(frame)
	// Output: [83 4 6 0 208 1 1 0 0 0 1 0]
}

func TestShortFraming(t *testing.T) {
	frame := aptframe.Short(aptframe.ID{0x44, 0x04}, 0x00, 0x00)
	if len(frame) != 6 {
		t.Fatalf("short frame must be 6 bytes, got %d", len(frame))
	}
	if frame[4] != aptframe.GenericUSBUnit || frame[5] != aptframe.HostAddress {
		t.Errorf("short frame dest/src = %#x %#x, want %#x %#x", frame[4], frame[5], aptframe.GenericUSBUnit, aptframe.HostAddress)
	}
}

func TestLongFraming(t *testing.T) {
	payload := make([]byte, 14)
	frame := aptframe.Long(aptframe.ID{0x12, 0x34}, payload)
	if len(frame) != 6+len(payload) {
		t.Fatalf("long frame length = %d, want %d", len(frame), 6+len(payload))
	}
	if frame[4] != aptframe.GenericUSBUnit|aptframe.LongFrameBit {
		t.Errorf("long frame dest byte = %#x, want high bit set", frame[4])
	}
	gotLen := int(frame[2]) | int(frame[3])<<8
	if gotLen != len(payload) {
		t.Errorf("long frame length field = %d, want %d", gotLen, len(payload))
	}
}

func TestHeaderIDAndPayloadRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		id      aptframe.ID
		payload []byte
	}{
		{"empty payload", aptframe.ID{0x05, 0x00}, nil},
		{"small payload", aptframe.ID{0x91, 0x04}, []byte{1, 2, 3, 4}},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			frame := aptframe.Long(c.id, c.payload)
			if got := aptframe.HeaderID(frame); got != c.id {
				t.Errorf("HeaderID = %v, want %v", got, c.id)
			}
			got := aptframe.Payload(frame)
			if len(c.payload) == 0 {
				if len(got) != 0 {
					t.Errorf("Payload = %v, want empty", got)
				}
				return
			}
			if !cmp.Equal(got, c.payload) {
				t.Errorf("Payload mismatch: %s", cmp.Diff(c.payload, got))
			}
		})
	}
}

func TestTableLength(t *testing.T) {
	tbl := aptframe.NewTable([]aptframe.Descriptor{
		{ID: aptframe.ID{0x44, 0x04}, Length: 6},
		{ID: aptframe.ID{0x91, 0x04}, Length: 6 + 14},
	})
	n, ok := tbl.Length(aptframe.ID{0x91, 0x04})
	if !ok || n != 20 {
		t.Errorf("Length(0x0491) = %d, %v, want 20, true", n, ok)
	}
	if _, ok := tbl.Length(aptframe.ID{0xCD, 0xAB}); ok {
		t.Error("Length for unregistered id should report ok=false")
	}
}

func TestTableDuplicatePanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on duplicate descriptor")
		}
	}()
	aptframe.NewTable([]aptframe.Descriptor{
		{ID: aptframe.ID{0x01, 0x00}, Length: 6},
		{ID: aptframe.ID{0x01, 0x00}, Length: 6},
	})
}
