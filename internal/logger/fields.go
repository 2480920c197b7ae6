package logger

// Fields is a set of structured log fields.
type Fields map[string]interface{}

// Tracing fields, carried by the context logger through a request.
const (
	FieldRequestID = "request_id"
	FieldComponent = "component"
	// FieldAddress is the normalized voter or creator address.
	FieldAddress  = "address"
	FieldMemeID   = "meme_id"
	FieldDocument = "document"
)

// Metric fields, attached per line through the Entry API so log pipelines
// can aggregate on them.
const (
	FieldDurationMs = "duration_ms"
	FieldCount      = "count"
	// FieldSize is a payload size in bytes.
	FieldSize   = "size"
	FieldStatus = "status"
)
