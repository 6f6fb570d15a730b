package oauth

import (
	"encoding/hex"
	"strings"

	"github.com/google/uuid"
)

// DeviceType is the vendor's identifier for the iOS Audible app. It is
// appended to the device serial to form the client id and is sent as the
// device type at registration.
const DeviceType = "A2CZJZGLK2JJVM"

// NewDeviceSerial returns a fresh device serial: a random UUID rendered as
// 32 uppercase hex characters without hyphens.
func NewDeviceSerial() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))
}

// ClientID derives the OAuth client id for a device serial. The result is
// stable for a given serial: hex(serial + "#" + DeviceType).
func ClientID(deviceSerial string) string {
	return hex.EncodeToString([]byte(deviceSerial + "#" + DeviceType))
}
