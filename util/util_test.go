package util_test

import (
	"testing"

	"github.com/bdube/thorapt/util"
)

func TestGetBit(t *testing.T) {
	cases := []struct {
		b        byte
		bitIndex uint
		want     bool
	}{
		{0b00000001, 0, true},
		{0b00000001, 1, false},
		{0b10000000, 7, true},
		{0b01000000, 7, false},
		{0b00110000, 4, true},
		{0b00110000, 5, true},
	}
	for _, c := range cases {
		if got := util.GetBit(c.b, c.bitIndex); got != c.want {
			t.Errorf("GetBit(%08b, %d) = %v, want %v", c.b, c.bitIndex, got, c.want)
		}
	}
}
