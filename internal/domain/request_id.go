package domain

import (
	"fmt"
	"strconv"
	"strings"

	dErrors "firegate/pkg/domain-errors"
)

// Request IDs follow the legacy firefighter convention: a fixed prefix
// and a zero-padded sequence, e.g. REQFF000123. The sequence is owned by
// the request store.
const requestIDPrefix = "REQFF"

// FormatRequestID renders a sequence number as a request ID.
func FormatRequestID(seq uint64) string {
	return fmt.Sprintf("%s%06d", requestIDPrefix, seq)
}

// ParseRequestID validates an externally supplied request ID.
func ParseRequestID(s string) (string, error) {
	rest, ok := strings.CutPrefix(s, requestIDPrefix)
	if !ok || len(rest) < 6 {
		return "", dErrors.Newf(dErrors.CodeValidation, "malformed request id %q", s)
	}
	if _, err := strconv.ParseUint(rest, 10, 64); err != nil {
		return "", dErrors.Newf(dErrors.CodeValidation, "malformed request id %q", s)
	}
	return s, nil
}
