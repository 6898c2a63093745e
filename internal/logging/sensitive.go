package logging

import (
	"net/netip"
	"strconv"
	"strings"
)

// SensitiveFields contains field names that should be masked in logs.
var SensitiveFields = map[string]bool{
	"password":          true,
	"passwd":            true,
	"secret":            true,
	"token":             true,
	"access_key":        true,
	"secret_access_key": true,
	"session_token":     true,
	"credentials":       true,
	"sasl_password":     true,
}

// MaskedValue is the string used to replace sensitive values.
const MaskedValue = "[REDACTED]"

// MaskSensitiveValue masks a value if the field name is sensitive.
func MaskSensitiveValue(fieldName, value string) string {
	if value == "" {
		return value
	}
	if IsSensitiveField(fieldName) {
		return MaskedValue
	}
	return value
}

// IsSensitiveField checks if a field name is sensitive.
func IsSensitiveField(fieldName string) bool {
	lowerField := strings.ToLower(fieldName)

	if SensitiveFields[lowerField] {
		return true
	}

	for sensitive := range SensitiveFields {
		if strings.Contains(lowerField, sensitive) {
			return true
		}
	}

	return false
}

// MaskString masks a portion of a sensitive string, showing only first/last chars.
func MaskString(s string, showFirst, showLast int) string {
	if s == "" {
		return s
	}
	length := len(s)
	if length <= showFirst+showLast+3 {
		return MaskedValue
	}
	return s[:showFirst] + "***" + s[length-showLast:]
}

// MaskIP hides the host part of an IPv4 address, e.g. 185.220.101.7 -> 185.220.x.x.
// Values that do not parse as an address are masked with MaskString.
func MaskIP(ip string) string {
	if ip == "" {
		return ip
	}
	addr, err := netip.ParseAddr(ip)
	if err != nil || !addr.Is4() {
		return MaskString(ip, 2, 0)
	}
	b := addr.As4()
	return strconv.Itoa(int(b[0])) + "." + strconv.Itoa(int(b[1])) + ".x.x"
}
