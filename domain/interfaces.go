package domain

import "context"

// WriteMeta travels with every driver write. Immutable keys must reject
// overwrites (drivers that cannot enforce this rely on the core never
// issuing them).
type WriteMeta struct {
	Tenant    string `json:"tenant"`
	Type      string `json:"type"`
	Immutable bool   `json:"immutable,omitempty"`
	Timestamp int64  `json:"timestamp,omitempty"`
}

// KeyValue is one result of a driver query.
type KeyValue struct {
	Key   string
	Value []byte
}

// QuerySpec selects keys by glob pattern and optional write-timestamp range.
// Zero From/To mean unbounded. Results come back in ascending key order.
type QuerySpec struct {
	Pattern string
	From    int64
	To      int64
	Limit   int
}

// Driver is the storage capability contract the core consumes. All keys are
// fully namespaced by the caller; implementations must be safe for
// concurrent use.
type Driver interface {
	Write(ctx context.Context, key string, value []byte, meta WriteMeta) error
	Read(ctx context.Context, key string) ([]byte, error)
	Query(ctx context.Context, q QuerySpec) ([]KeyValue, error)
	Count(ctx context.Context, pattern string) (int, error)
	Exists(ctx context.Context, key string) (bool, error)
	GetMetadata(ctx context.Context, key string) (WriteMeta, error)
}

// Item is a single entry of a batch write.
type Item struct {
	Key   string
	Value []byte
	Meta  WriteMeta
}

// BatchDriver is optional; absent, batch operations fall back to serial
// calls through the shared helpers.
type BatchDriver interface {
	WriteMulti(ctx context.Context, items []Item) error
	ReadMulti(ctx context.Context, keys []string) (map[string][]byte, error)
}

// SetDriver is optional native set support.
type SetDriver interface {
	AddToSet(ctx context.Context, key, member string) error
	RemoveFromSet(ctx context.Context, key, member string) error
	GetSetMembers(ctx context.Context, key string) ([]string, error)
	IsSetMember(ctx context.Context, key, member string) (bool, error)
}

// QueueDriver is optional queue support for job dispatch. Pop returns
// ErrNotFound when the queue is empty.
type QueueDriver interface {
	PushQueue(ctx context.Context, queue, id string) error
	PopQueue(ctx context.Context, queue string) (string, error)
}

// ChatMessage is a single turn passed to the provider's Chat method.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatOptions tune a raw chat call.
type ChatOptions struct {
	System      string  `json:"system,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
}

// SummarizeOptions instruct the provider how to compress.
type SummarizeOptions struct {
	Level             int     `json:"level"`
	TargetCompression float64 `json:"target_compression"`
	DeltaMode         bool    `json:"delta_mode,omitempty"`
	PreviousSummary   string  `json:"previous_summary,omitempty"`
	// Preservation flags: the prompt must keep intent, contradictions,
	// rejected ideas and key decisions visible at any ratio.
	PreserveContradictions bool `json:"preserve_contradictions"`
	PreserveDecisions      bool `json:"preserve_decisions"`
}

// Entity is one extraction result.
type Entity struct {
	Entity     string         `json:"entity"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// AIProvider is the pure-function AI contract. Every method may fail; the
// core must degrade deterministically when one does. DetectContradiction
// returns nil for "undecided", which triggers the heuristic fallback.
type AIProvider interface {
	Summarize(ctx context.Context, content string, opts SummarizeOptions) (string, error)
	ScoreEpistemicConfidence(ctx context.Context, claim, claimCtx string) (Confidence, error)
	DetectContradiction(ctx context.Context, a, b string) (*bool, error)
	ExtractEntities(ctx context.Context, text string) ([]Entity, error)
	Chat(ctx context.Context, messages []ChatMessage, opts ChatOptions) (string, error)
}

// AuditEvent is what the core emits on every state-changing call. The sink
// owns hashing and chaining; the core only guarantees per-task ordering by
// emitting synchronously from the mutating goroutine.
type AuditEvent struct {
	Tenant string         `json:"tenant"`
	Action string         `json:"action"`
	Data   map[string]any `json:"data,omitempty"`
	Meta   AuditMeta      `json:"meta"`
}

// AuditMeta identifies the emitting component.
type AuditMeta struct {
	Component string `json:"component"`
	Timestamp int64  `json:"timestamp"`
}

// AuditSink is the external append-only hash-chained log.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent) error
}
