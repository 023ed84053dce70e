// SPDX-License-Identifier: MIT

// Package serviceref handles Enigma2 service reference strings: compact
// colon-delimited tokens such as "1:0:1:3ABF:0:0:0:0:0:0:" that identify a
// channel, bouquet or marker on the receiver. References are treated as
// opaque except for the few fields the formats below need.
package serviceref

import (
	"strconv"
	"strings"
)

// playablePrefix marks a plain playable service; markers and sub-bouquets
// carry other type flags in the first field (e.g. "1:64:...").
const playablePrefix = "1:0"

// DeriveChannelID derives a stable channel identifier from a service
// reference. The trailing colon-delimited field (a service-type suffix that
// carries no identity) is dropped, then every byte outside [A-Za-z0-9] is
// replaced with an underscore. The same reference always yields the same ID.
func DeriveChannelID(ref string) string {
	if i := strings.LastIndex(ref, ":"); i >= 0 {
		ref = ref[:i]
	}
	id := []byte(ref)
	for i, c := range id {
		if !isAlnum(c) {
			id[i] = '_'
		}
	}
	return string(id)
}

// ExtractProgramID parses the fourth reference field as a hexadecimal
// program (service) ID. The second return value is false when the reference
// has fewer than four fields or the field is not valid hex; callers must
// treat that as "no program ID", not as an error.
func ExtractProgramID(ref string) (int64, bool) {
	parts := strings.Split(ref, ":")
	if len(parts) < 4 {
		return 0, false
	}
	id, err := strconv.ParseInt(parts[3], 16, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// IsPlayable reports whether the reference denotes a playable channel
// rather than a marker or sub-bouquet.
func IsPlayable(ref string) bool {
	return strings.HasPrefix(ref, playablePrefix)
}

func isAlnum(c byte) bool {
	return c >= '0' && c <= '9' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z'
}
