package logging

// Standard structured-log field names, kept as constants so call sites
// don't drift into near-duplicate spellings across packages.
const (
	FieldComponent  = "component"
	FieldSessionID  = "session_id"
	FieldTaskID     = "task_id"
	FieldResourceID = "resource_id"
	FieldAsyncOpID  = "async_op_id"
	FieldRemoteID   = "remote_id"
	FieldMetaID     = "metadata_id"
	FieldAddr       = "address"
	FieldWatcherID  = "watcher_id"
	FieldError      = "error"
	FieldCount      = "count"
	FieldDuration   = "duration_ms"
	FieldEventKind  = "event_kind"
)
