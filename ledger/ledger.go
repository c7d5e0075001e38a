// Package ledger persists the fingerprint → draft-status records that
// prevent duplicate submissions. The invariant it guards: at most one
// DRAFTED record per (fingerprint, platform).
package ledger

import (
	"context"
	"errors"
	"time"
)

type Status string

const (
	StatusDrafted Status = "DRAFTED"
	StatusFailed  Status = "FAILED"
)

var (
	// ErrNotFound indicates no record exists for the fingerprint.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate indicates a DRAFTED record already exists; the
	// caller lost the commit race or is re-running a confirmed story.
	ErrDuplicate = errors.New("duplicate draft record")
)

// Record is one row of the duplicate-prevention ledger.
type Record struct {
	ID          string    `gorm:"type:TEXT NOT NULL;primaryKey" json:"id"`
	Fingerprint string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_fingerprint_platform,priority:1" json:"fingerprint"`
	Platform    string    `gorm:"type:TEXT NOT NULL;uniqueIndex:ux_fingerprint_platform,priority:2" json:"platform"`
	Status      Status    `gorm:"type:TEXT NOT NULL" json:"status"`
	ExternalID  string    `gorm:"type:TEXT" json:"external_id,omitempty"`
	CreatedAt   time.Time `gorm:"type:DATETIME NOT NULL;autoCreateTime" json:"created_at"`
	UpdatedAt   time.Time `gorm:"type:DATETIME NOT NULL;autoUpdateTime" json:"updated_at"`
}

// TableName implements the GORM tabler interface.
func (Record) TableName() string { return "submission_records" }

// Store is the ledger contract. MarkDrafted is the commit point of a
// submission: it must behave as a compare-and-set so two concurrent
// pipelines can never both record a DRAFTED row for one fingerprint.
type Store interface {
	// Find returns the record for (fingerprint, platform) or ErrNotFound.
	Find(ctx context.Context, fingerprint, platformName string) (*Record, error)
	// MarkDrafted durably records a confirmed draft. It upgrades an
	// existing FAILED record and returns ErrDuplicate (with the
	// surviving record) when a DRAFTED one already exists.
	MarkDrafted(ctx context.Context, fingerprint, platformName, externalID string) (*Record, error)
	// MarkFailed records a terminal failure for diagnostics. It never
	// downgrades a DRAFTED record.
	MarkFailed(ctx context.Context, fingerprint, platformName string) (*Record, error)
	// ByPlatform lists records for a platform, newest first.
	ByPlatform(ctx context.Context, platformName string) ([]Record, error)
}
