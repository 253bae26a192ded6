package utils

import (
	"crypto/sha256"
	"encoding/hex"
	"net"
	"strings"
)

const unknownDevice = "EMPORIO-UNKNOWN"

// DeviceID derives a stable till id from the first active network card, e.g.
// "EMPORIO-A1B2C3D4". It is sent to the card terminal when TERMINAL_ID is unset.
func DeviceID() string {
	interfaces, err := net.Interfaces()
	if err != nil {
		return unknownDevice
	}
	return deviceID(interfaces)
}

func deviceID(interfaces []net.Interface) string {
	var mac string
	for _, i := range interfaces {
		if i.Flags&net.FlagUp == 0 || i.Flags&net.FlagLoopback != 0 {
			continue
		}
		if len(i.HardwareAddr) > 0 {
			mac = i.HardwareAddr.String()
			break
		}
	}
	if mac == "" {
		return unknownDevice
	}

	// the raw MAC never leaves the till
	hash := sha256.Sum256([]byte(mac + "emporio-till"))
	return "EMPORIO-" + strings.ToUpper(hex.EncodeToString(hash[:])[:8])
}
