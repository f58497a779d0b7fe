package logger

// Standard field names for consistent structured logging across Spuro.
// Using these constants keeps log output queryable: the same concept
// always appears under the same key.
const (
	// Entity store
	FieldEntityKey   = "entity_key"
	FieldOwner       = "owner"
	FieldCaller      = "caller"
	FieldContentType = "content_type"
	FieldTTL         = "ttl"
	FieldExpiresAt   = "expires_at"

	// Query pipeline
	FieldQuery   = "query"
	FieldLimit   = "limit"
	FieldMatched = "matched"
	FieldScanned = "scanned"

	// Watch subsystem
	FieldFilterID   = "filter_id"
	FieldEventKind  = "event_kind"
	FieldEventSeq   = "event_seq"
	FieldSubscriber = "subscriber"

	// Infrastructure
	FieldError    = "error"
	FieldDuration = "duration_ms"
	FieldPath     = "path"
	FieldMethod   = "method"
	FieldStatus   = "status"
	FieldClient   = "client"
)
