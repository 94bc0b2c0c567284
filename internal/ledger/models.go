package ledger

import "time"

// Status tracks a run's position in the pipeline.
type Status string

const (
	StatusResolving  Status = "resolving"
	StatusFetching   Status = "fetching"
	StatusConverting Status = "converting"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

var knownStatuses = map[Status]struct{}{
	StatusResolving:  {},
	StatusFetching:   {},
	StatusConverting: {},
	StatusCompleted:  {},
	StatusFailed:     {},
}

// ParseStatus validates a user-supplied status string.
func ParseStatus(value string) (Status, bool) {
	status := Status(value)
	_, ok := knownStatuses[status]
	return status, ok
}

// IsTerminal reports whether no further transitions are expected.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Record is one pipeline run.
type Record struct {
	ID            int64      `json:"id"`
	ContractID    string     `json:"contract_id"`
	TokenID       string     `json:"token_id"`
	AssetID       string     `json:"asset_id,omitempty"`
	Status        Status     `json:"status"`
	GLTFURL       string     `json:"gltf_url,omitempty"`
	GLBURL        string     `json:"glb_url,omitempty"`
	MMLURL        string     `json:"mml_url,omitempty"`
	ErrorKind     string     `json:"error_kind,omitempty"`
	ErrorMessage  string     `json:"error_message,omitempty"`
	CorrelationID string     `json:"correlation_id,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// Fail marks the record failed with the classified error.
func (r *Record) Fail(kind, message string) {
	r.Status = StatusFailed
	r.ErrorKind = kind
	r.ErrorMessage = message
}
