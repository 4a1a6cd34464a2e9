package app

import (
	"time"

	"github.com/willibrandon/studio/internal/querycache"
)

// ProjectConnectedMsg is sent when the project's pool answered a version query
type ProjectConnectedMsg struct {
	ProjectRef string
	Version    string
}

// ProjectConnectionFailedMsg is sent when the project's pool could not be opened
type ProjectConnectionFailedMsg struct {
	ProjectRef string
	Err        error
}

// StatusBarTickMsg is sent periodically to update the status bar
type StatusBarTickMsg struct {
	Timestamp time.Time
}

// CacheInvalidatedMsg relays a query cache invalidation into the update
// loop. Watch is set when the event came from the open editor's
// subscription rather than the project-wide one.
type CacheInvalidatedMsg struct {
	ProjectRef string
	Event      querycache.Event
	Watch      bool
}
