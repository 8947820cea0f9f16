package util

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var ipv4Pattern = regexp.MustCompile(`^(\d+)\.(\d+)\.(\d+)\.(\d+)$`)

// TruncateIP masks the tail of an address for audit storage:
// IPv4 drops the last octet, IPv6 keeps the first four groups.
// Anything unparseable yields UnknownAddress.
func TruncateIP(ip string) string {
	if strings.Contains(ip, ":") {
		parts := strings.Split(ip, ":")
		if len(parts) > 4 {
			parts = parts[:4]
		}
		return strings.Join(parts, ":") + ":*"
	}
	m := ipv4Pattern.FindStringSubmatch(ip)
	if m == nil {
		return UnknownAddress
	}
	return m[1] + "." + m[2] + "." + m[3] + ".xxx"
}

// HashIP returns the hex SHA-256 digest of the address plus salt.
// Stored alongside the raw address so the plain column can be dropped
// later without losing the ability to correlate repeat senders.
func HashIP(ip, salt string) string {
	sum := sha256.Sum256([]byte(ip + salt))
	return hex.EncodeToString(sum[:])
}
