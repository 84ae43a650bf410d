// Package model holds the wire types exchanged with the upload server.
package model

import (
	"strings"
	"time"
)

// Node type discriminators used by the server's nested tree mapping.
const (
	NodeTypeFile   = "file"
	NodeTypeFolder = "folder"
)

// RawNode is one entry of a client's nested tree mapping as returned by
// GET /files. Files carry Path; folders carry Children. Entries whose Type is
// neither "file" nor "folder" are tolerated and ignored by tree builders.
type RawNode struct {
	Type     string             `json:"type"`
	Path     string             `json:"path,omitempty"`
	Children map[string]RawNode `json:"children,omitempty"`
}

// IsFile reports whether the entry is a file.
func (n RawNode) IsFile() bool { return n.Type == NodeTypeFile }

// IsFolder reports whether the entry is a folder.
func (n RawNode) IsFolder() bool { return n.Type == NodeTypeFolder }

// ClientGroup is the per-client payload of GET /files.
type ClientGroup struct {
	Label string             `json:"label"`
	Tree  map[string]RawNode `json:"tree,omitempty"`
}

// Client types reported by /admin/clients.
const (
	ClientTypeStarMachine = "star_machine"
	ClientTypePC          = "pc_client"
)

// Client is a registered upload client as reported by /admin/clients.
type Client struct {
	Label         string    `json:"label"`
	Type          string    `json:"type"`
	IPAddress     string    `json:"ip_address"`
	LastSeen      Timestamp `json:"last_seen"`
	RetentionDays int       `json:"retention_days,omitempty"`
}

// Timestamp decodes the server's ISO-8601 timestamps, which usually carry
// no zone offset. Naive values are read as local time.
type Timestamp struct{ time.Time }

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

// UnmarshalJSON accepts RFC 3339 and naive ISO-8601 strings. Empty strings and
// null leave the zero time.
func (t *Timestamp) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		t.Time = time.Time{}
		return nil
	}
	var err error
	for _, layout := range timestampLayouts {
		var parsed time.Time
		if strings.HasSuffix(layout, "Z07:00") {
			parsed, err = time.Parse(layout, s)
		} else {
			parsed, err = time.ParseInLocation(layout, s, time.Local)
		}
		if err == nil {
			t.Time = parsed
			return nil
		}
	}
	return err
}

// MarshalJSON writes RFC 3339, or null for the zero time.
func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return []byte(`"` + t.Format(time.RFC3339) + `"`), nil
}

// TypeName returns the human-readable client type.
func (c Client) TypeName() string {
	if c.Type == ClientTypeStarMachine {
		return "Star Machine"
	}
	return "PC Client"
}

// Analytics mirrors GET /api/analytics.
type Analytics struct {
	TotalFiles          int            `json:"total_files"`
	TotalSizeBytes      int64          `json:"total_size_bytes"`
	StorageLimitBytes   int64          `json:"storage_limit_bytes"`
	StorageUsagePercent float64        `json:"storage_usage_percent"`
	UploadsByDay        map[string]int `json:"uploads_by_day"`
	UploadsByClient     map[string]int `json:"uploads_by_client"`
}

// Settings mirrors GET /api/settings.
type Settings struct {
	DefaultRetentionDays int `json:"default_retention_days"`
}

// Snapshot is everything one refresh cycle fetched from a data source.
// Clients and Analytics are optional; sources that cannot provide them leave
// them nil.
type Snapshot struct {
	Groups    map[string]ClientGroup
	Clients   map[string]Client
	Analytics *Analytics
	FetchedAt time.Time
}
