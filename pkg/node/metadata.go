package node

import (
	"os"
	"os/user"
	"time"
)

// MetadataKey is the JSON key of the metadata block in a config document.
const MetadataKey = "_m"

// Metadata records who last changed a config section and when.
type Metadata struct {
	Note      string `json:"n,omitempty"`
	Author    string `json:"c,omitempty"`
	Timestamp int64  `json:"t,omitempty"`

	changed time.Time
}

// Update stamps the metadata with author and now.
func (m *Metadata) Update(author string, now time.Time) {
	m.Author = author
	m.changed = now.UTC()
	m.Timestamp = m.changed.Unix()
}

// Changed returns the last change time, or the zero time if never stamped.
func (m *Metadata) Changed() time.Time {
	if m.changed.IsZero() && m.Timestamp != 0 {
		return time.Unix(m.Timestamp, 0).UTC()
	}
	return m.changed
}

// OnDeserialized restores the change time from the stored timestamp.
func (m *Metadata) OnDeserialized() {
	if m.Timestamp != 0 {
		m.changed = time.Unix(m.Timestamp, 0).UTC()
	}
}

// CurrentUser returns the login name used as metadata author.
func CurrentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	return "unknown"
}
