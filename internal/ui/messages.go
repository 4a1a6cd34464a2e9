// Package ui provides Bubbletea TUI components for the studio console.
package ui

import (
	"github.com/willibrandon/studio/internal/buckets"
	"github.com/willibrandon/studio/internal/db/models"
	"github.com/willibrandon/studio/internal/privileges"
)

// Data messages (from commands to views)

// TablePrivilegesMsg carries the privilege snapshot of a project.
type TablePrivilegesMsg struct {
	ProjectRef string
	Relations  []models.RelationPrivileges
	Err        error
}

// TableAPIAccessMsg carries the outcome of an API-access read.
type TableAPIAccessMsg struct {
	Vars   privileges.TableAPIAccessVariables
	Result privileges.TableAPIAccessResult
	Err    error
}

// BucketEstimateMsg carries the bucket count estimate and the resulting
// run condition. Estimate is nil when unknown.
type BucketEstimateMsg struct {
	ProjectRef string
	Estimate   *int64
	Condition  buckets.RunCondition
	Threshold  int64
}

// LargestBucketsMsg carries the result of the largest-size-limit scan.
type LargestBucketsMsg struct {
	ProjectRef string
	Buckets    []models.Bucket
	Err        error
}

// TableSavedMsg reports the end of a table save.
type TableSavedMsg struct {
	Save       TableSave
	RelationID uint32
	Err        error
}

// Command messages (views to the application)

// RefreshTablePrivilegesCmd asks for the privilege snapshot to be reread.
type RefreshTablePrivilegesCmd struct {
	ProjectRef       string
	ConnectionString string
	Force            bool
}

// LoadTableAPIAccessCmd asks for an API-access read. Enabled false means the
// read is skipped.
type LoadTableAPIAccessCmd struct {
	Vars    privileges.TableAPIAccessVariables
	Enabled bool
	Refetch bool
}

// EstimateBucketsCmd asks for the bucket count estimate. Refresh rereads it
// even when one is cached.
type EstimateBucketsCmd struct {
	Refresh bool
}

// FetchLargestBucketsCmd starts the largest-size-limit scan.
type FetchLargestBucketsCmd struct{}

// TableSave is the outcome of the table editor. APIAccess is nil when the
// Data API setting is unchanged.
type TableSave struct {
	ProjectRef       string
	ConnectionString string
	RelationID       uint32
	Schema           string
	Name             string
	Create           bool
	APIAccess        *bool
}

// SaveTableCmd asks for a table save.
type SaveTableCmd struct {
	Save TableSave
}

// WatchTableAPIAccessCmd asks to be told when the API access of Vars is
// invalidated. Zero Vars stops watching.
type WatchTableAPIAccessCmd struct {
	Vars privileges.TableAPIAccessVariables
}
