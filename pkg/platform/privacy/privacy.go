// Package privacy keeps raw personal data out of logs and published events.
package privacy

import (
	"encoding/hex"
	"net"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// AnonymizeIP truncates an address to its network prefix (/24 for IPv4,
// /48 for IPv6). Unparseable input is returned as "invalid".
func AnonymizeIP(ip string) string {
	parsed := net.ParseIP(strings.TrimSpace(ip))
	if parsed == nil {
		return "invalid"
	}
	if v4 := parsed.To4(); v4 != nil {
		return v4.Mask(net.CIDRMask(24, 32)).String()
	}
	return parsed.Mask(net.CIDRMask(48, 128)).String()
}

// HashEmail returns a stable hex digest of a normalized email address.
func HashEmail(email string) string {
	return digest(strings.ToLower(strings.TrimSpace(email)))
}

// HashIP returns a stable hex digest of an IP address.
func HashIP(ip string) string {
	return digest(strings.TrimSpace(ip))
}

func digest(v string) string {
	sum := blake2b.Sum256([]byte(v))
	return hex.EncodeToString(sum[:])
}
