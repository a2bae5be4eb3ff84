package models

import (
	"encoding/json"
	"strings"
)

const (
	markerPrefix = "[[application:"
	markerSuffix = "]]"
)

// ApplicationMarker is embedded in a chat message so clients can render
// accept/reject controls or the final decision inline.
type ApplicationMarker struct {
	ApplicationID string            `json:"application_id"`
	Status        ApplicationStatus `json:"status"`
	Text          string            `json:"text,omitempty"`
}

// EncodeApplicationMarker renders a marker as message content
func EncodeApplicationMarker(m ApplicationMarker) string {
	data, _ := json.Marshal(m)
	return markerPrefix + string(data) + markerSuffix
}

// DecodeApplicationMarker extracts a marker from message content
func DecodeApplicationMarker(content string) (*ApplicationMarker, bool) {
	if !strings.HasPrefix(content, markerPrefix) || !strings.HasSuffix(content, markerSuffix) {
		return nil, false
	}
	raw := strings.TrimSuffix(strings.TrimPrefix(content, markerPrefix), markerSuffix)
	var m ApplicationMarker
	if err := json.Unmarshal([]byte(raw), &m); err != nil || m.ApplicationID == "" {
		return nil, false
	}
	return &m, true
}
