package oauth

import (
	"encoding/hex"
	"regexp"
	"testing"
)

var serialPattern = regexp.MustCompile(`^[0-9A-F]{32}$`)

func TestNewDeviceSerial(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 50; i++ {
		serial := NewDeviceSerial()
		if !serialPattern.MatchString(serial) {
			t.Fatalf("serial %q is not 32 uppercase hex characters", serial)
		}
		if seen[serial] {
			t.Fatalf("duplicate serial %q", serial)
		}
		seen[serial] = true
	}
}

func TestClientID_Deterministic(t *testing.T) {
	first := ClientID("ABC123")
	second := ClientID("ABC123")

	if first != second {
		t.Errorf("ClientID not stable: %q != %q", first, second)
	}

	want := hex.EncodeToString([]byte("ABC123#A2CZJZGLK2JJVM"))
	if first != want {
		t.Errorf("ClientID(ABC123) = %q, want %q", first, want)
	}

	if ClientID("ABC124") == first {
		t.Error("different serials produced the same client id")
	}
}
