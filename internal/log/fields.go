package log

import (
	"sort"
	"time"
)

// Common field names for structured logging
const (
	FieldComponent    = "component"
	FieldSubComponent = "subcomponent"
	FieldUserID       = "user_id"
	FieldAnalyzer     = "analyzer"
	FieldOperation    = "operation"
	FieldError        = "error"
	FieldDuration     = "duration_ms"
	FieldCount        = "count"
	FieldLimit        = "limit"
	FieldQueue        = "queue"
	FieldBackend      = "backend"
	FieldEntity       = "entity"
	FieldEntityID     = "entity_id"
)

// Components defines standard component names
const (
	ComponentApp       = "app"
	ComponentEngine    = "engine"
	ComponentAnomaly   = "anomaly"
	ComponentStorage   = "storage"
	ComponentAMQP      = "amqp"
	ComponentWorker    = "worker"
	ComponentCache     = "cache"
	ComponentBackend   = "backend"
	ComponentCLI       = "cli"
	ComponentRecurring = "recurring"
)

// Operations defines standard operation names
const (
	OpCreate    = "create"
	OpRead      = "read"
	OpUpdate    = "update"
	OpDelete    = "delete"
	OpList      = "list"
	OpRecommend = "recommend"
	OpDetect    = "detect"
	OpDigest    = "digest"
	OpRecurring = "recurring"
	OpMigrate   = "migrate"
	OpPublish   = "publish"
	OpConsume   = "consume"
	OpShutdown  = "shutdown"
	OpStartup   = "startup"
)

// LogFields provides a builder pattern for structured log fields
type LogFields map[string]any

// NewFields creates a new LogFields instance
func NewFields() LogFields {
	return make(LogFields)
}

// WithUser adds the user the operation acts for
func (f LogFields) WithUser(userID string) LogFields {
	f[FieldUserID] = userID
	return f
}

// WithAnalyzer adds the analysis stage name
func (f LogFields) WithAnalyzer(name string) LogFields {
	f[FieldAnalyzer] = name
	return f
}

// WithOperation adds operation field
func (f LogFields) WithOperation(op string) LogFields {
	f[FieldOperation] = op
	return f
}

// WithError adds error field
func (f LogFields) WithError(err error) LogFields {
	if err != nil {
		f[FieldError] = err.Error()
	}
	return f
}

// WithDuration adds elapsed time in milliseconds
func (f LogFields) WithDuration(d time.Duration) LogFields {
	f[FieldDuration] = d.Milliseconds()
	return f
}

// WithEntity adds the kind and id of a stored record
func (f LogFields) WithEntity(kind, id string) LogFields {
	f[FieldEntity] = kind
	f[FieldEntityID] = id
	return f
}

// ToSlice converts LogFields to a key/value slice for slog, ordered by key
func (f LogFields) ToSlice() []any {
	keys := make([]string, 0, len(f))
	for k := range f {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	slice := make([]any, 0, len(f)*2)
	for _, k := range keys {
		slice = append(slice, k, f[k])
	}
	return slice
}
