package telemetry

// Event names.
const (
	EventFlushCompleted     = "sync_flush_completed"
	EventFlushFailed        = "sync_flush_failed"
	EventChangeDropped      = "sync_change_dropped"
	EventCacheRefreshed     = "cache_refreshed"
	EventConnectionChanged  = "connection_changed"
	EventCLICommandExecuted = "cli_command_executed"
	EventCLIError           = "cli_error"
)

// TrackFlushCompleted records a successful batch flush.
func (c *posthogClient) TrackFlushCompleted(collection string, changeCount int, durationMs int64) {
	c.Track(EventFlushCompleted, map[string]interface{}{
		"collection":   collection,
		"change_count": changeCount,
		"duration_ms":  durationMs,
	})
}

// TrackFlushFailed records a failed batch flush attempt.
func (c *posthogClient) TrackFlushFailed(collection string, changeCount, retryCount int) {
	c.Track(EventFlushFailed, map[string]interface{}{
		"collection":   collection,
		"change_count": changeCount,
		"retry_count":  retryCount,
	})
}

// TrackChangeDropped records a change dropped after exhausting retries.
func (c *posthogClient) TrackChangeDropped(collection, changeType string) {
	c.Track(EventChangeDropped, map[string]interface{}{
		"collection":  collection,
		"change_type": changeType,
	})
}

// TrackCacheRefreshed records a collection fetch from the backend.
func (c *posthogClient) TrackCacheRefreshed(collection string, recordCount int, background bool) {
	c.Track(EventCacheRefreshed, map[string]interface{}{
		"collection":   collection,
		"record_count": recordCount,
		"background":   background,
	})
}

// TrackConnectionChanged records a connection quality transition.
func (c *posthogClient) TrackConnectionChanged(quality string, backendReachable bool) {
	c.Track(EventConnectionChanged, map[string]interface{}{
		"quality":           quality,
		"backend_reachable": backendReachable,
	})
}

// TrackCLICommandExecuted records a CLI command run.
func (c *posthogClient) TrackCLICommandExecuted(commandName string, hasFlags bool, durationMs int64) {
	c.Track(EventCLICommandExecuted, map[string]interface{}{
		"command_name": commandName,
		"has_flags":    hasFlags,
		"duration_ms":  durationMs,
	})
}

// TrackCLIError records a CLI command failure.
func (c *posthogClient) TrackCLIError(commandName, errorType string) {
	c.Track(EventCLIError, map[string]interface{}{
		"command_name": commandName,
		"error_type":   errorType,
	})
}

// No-op event implementations for disabled telemetry.

func (c *noopClient) TrackFlushCompleted(collection string, changeCount int, durationMs int64) {}
func (c *noopClient) TrackFlushFailed(collection string, changeCount, retryCount int)         {}
func (c *noopClient) TrackChangeDropped(collection, changeType string)                        {}
func (c *noopClient) TrackCacheRefreshed(collection string, recordCount int, background bool) {}
func (c *noopClient) TrackConnectionChanged(quality string, backendReachable bool)            {}
func (c *noopClient) TrackCLICommandExecuted(commandName string, hasFlags bool, durationMs int64) {
}
func (c *noopClient) TrackCLIError(commandName, errorType string) {}
