package domain

// MemoryRecord is the narrative unit. Records are immutable after write;
// supersession happens through new records that point back via ParentID.
type MemoryRecord struct {
	ID        string         `json:"id"`
	Tenant    string         `json:"tenant"`
	Agent     string         `json:"agent"`
	Type      string         `json:"type,omitempty"`
	Content   string         `json:"content"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	ParentID  string         `json:"parent_id,omitempty"`
	CreatedAt int64          `json:"created_at"`
	UpdatedAt int64          `json:"updated_at"`
}

// Timestamp returns the effective event time: a metadata "timestamp" override
// when present, CreatedAt otherwise.
func (m *MemoryRecord) Timestamp() int64 {
	if m.Metadata != nil {
		switch v := m.Metadata["timestamp"].(type) {
		case int64:
			return v
		case int:
			return int64(v)
		case float64:
			return int64(v)
		}
	}
	return m.CreatedAt
}

// Confidence is an epistemic confidence interval, 0 <= Min <= Mean <= Max <= 1.
type Confidence struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
}

// DefaultConfidence is used when the AI provider cannot score a claim.
func DefaultConfidence() Confidence {
	return Confidence{Min: 0.3, Max: 0.7, Mean: 0.5}
}

// Valid reports whether the interval is ordered and within [0,1].
func (c Confidence) Valid() bool {
	return c.Min >= 0 && c.Min <= c.Mean && c.Mean <= c.Max && c.Max <= 1
}

// Claim is an assertion embedded in an ingest payload. It is not stored
// standalone; each claim becomes a Belief on ingestion.
type Claim struct {
	Text       string      `json:"text"`
	Confidence *Confidence `json:"confidence,omitempty"`
}

// IngestData is the payload accepted by the single ingestion path.
type IngestData struct {
	Type     string         `json:"type,omitempty"`
	Content  string         `json:"content"`
	Metadata map[string]any `json:"metadata,omitempty"`
	ParentID string         `json:"parent_id,omitempty"`
	Claims   []Claim        `json:"claims,omitempty"`
}

// MemoryQuery selects narrative records by equality filters and time range.
// MaxTokens bounds the result set by estimated token cost; zero means no cap.
type MemoryQuery struct {
	Agent     string `json:"agent,omitempty"`
	Type      string `json:"type,omitempty"`
	From      int64  `json:"from,omitempty"`
	To        int64  `json:"to,omitempty"`
	Limit     int    `json:"limit,omitempty"`
	MaxTokens int    `json:"max_tokens,omitempty"`
}
