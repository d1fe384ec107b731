// ABOUTME: Base64 transport helpers for raw audio payloads
// ABOUTME: Decodes payloads arriving base64-encoded at service boundaries
package audio

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// DecodePayload decodes a base64 audio payload, tolerating data-URL prefixes
func DecodePayload(s string) ([]byte, error) {
	if i := strings.Index(s, ","); i >= 0 && strings.HasPrefix(s, "data:") {
		s = s[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(strings.TrimSpace(s))
	if err != nil {
		return nil, fmt.Errorf("invalid base64 audio payload: %w", err)
	}
	return data, nil
}

// EncodePayload encodes raw audio bytes for transport
func EncodePayload(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}
