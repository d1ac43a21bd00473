package report

import (
	"time"

	"github.com/fieldops/reportbot/internal/publish"
)

// Report is one daily work report. ChannelMessages is the persisted
// channel message map from the last successful publish; it is replaced
// wholesale on every publish or update, never merged.
type Report struct {
	ID              string
	AuthorID        string
	ObjectName      string
	WorkDone        string
	Materials       string
	PhotoIDs        []string
	ChannelMessages publish.ChannelMessageMap
	ReportDate      time.Time
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// CreateParams are the body fields of a new report.
type CreateParams struct {
	AuthorID   string
	ObjectName string
	WorkDone   string
	Materials  string
	PhotoIDs   []string
	ReportDate time.Time
}

// UpdateParams are the editable body fields.
type UpdateParams struct {
	ObjectName *string
	WorkDone   *string
	Materials  *string
	PhotoIDs   []string
}

// MissingEntry is one active user without a report for a given day.
type MissingEntry struct {
	UserID   string
	TGChatID string
	Name     string
	Position string
}

// Stats is the read-only summary the ops HTTP surface exposes.
type Stats struct {
	Total      int       `json:"total"`
	Today      int       `json:"today"`
	LastReport time.Time `json:"last_report,omitzero"`
}
