package api

import "meshport/internal/services"

// dateTimeFormat is used for RFC3339 timestamps in API payloads.
const dateTimeFormat = "2006-01-02T15:04:05.000Z07:00"

// Failure carries a classified error. It is embedded in every response.
type Failure struct {
	Error     string `json:"error,omitempty"`
	ErrorKind string `json:"errorKind,omitempty"`
}

// Failed reports whether the response carries an error.
func (f Failure) Failed() bool {
	return f.Error != ""
}

func failure(err error) Failure {
	details := services.Details(err)
	return Failure{Error: details.Message, ErrorKind: details.Kind}
}

// ResolveRequest asks for the asset id behind a token.
type ResolveRequest struct {
	ContractID string `json:"contract"`
	TokenID    string `json:"token"`
}

// ResolveResponse answers ResolveRequest.
type ResolveResponse struct {
	AssetID string `json:"assetId,omitempty"`
	Failure
}

// FetchRequest asks for an asset's description to be republished.
type FetchRequest struct {
	AssetID string `json:"assetId"`
}

// FetchResponse carries the published description URL.
type FetchResponse struct {
	URL string `json:"url,omitempty"`
	Failure
}

// ConvertRequest asks for a published description to be converted.
type ConvertRequest struct {
	AssetID string `json:"assetId"`
	URL     string `json:"url"`
}

// ConvertResponse carries the published binary and descriptor URLs.
type ConvertResponse struct {
	GLBURL string `json:"glbUrl,omitempty"`
	MMLURL string `json:"mmlUrl,omitempty"`
	Failure
}

// PipelineResponse is the result of a full token-to-descriptor run.
type PipelineResponse struct {
	RunID   int64  `json:"runId,omitempty"`
	AssetID string `json:"assetId,omitempty"`
	GLTFURL string `json:"gltfUrl,omitempty"`
	GLBURL  string `json:"glbUrl,omitempty"`
	MMLURL  string `json:"mmlUrl,omitempty"`
	Failure
}

// RandomResponse names a catalog token known to resolve.
type RandomResponse struct {
	ContractID string `json:"contract,omitempty"`
	TokenID    string `json:"token,omitempty"`
	Failure
}

// Run describes one ledger record.
type Run struct {
	ID            int64  `json:"id"`
	ContractID    string `json:"contract"`
	TokenID       string `json:"token"`
	AssetID       string `json:"assetId,omitempty"`
	Status        string `json:"status"`
	GLTFURL       string `json:"gltfUrl,omitempty"`
	GLBURL        string `json:"glbUrl,omitempty"`
	MMLURL        string `json:"mmlUrl,omitempty"`
	ErrorKind     string `json:"errorKind,omitempty"`
	ErrorMessage  string `json:"errorMessage,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	CreatedAt     string `json:"createdAt,omitempty"`
	UpdatedAt     string `json:"updatedAt,omitempty"`
	CompletedAt   string `json:"completedAt,omitempty"`
}

// HistoryResponse lists ledger records, newest first.
type HistoryResponse struct {
	Runs []Run `json:"runs"`
	Failure
}

// ClearHistoryRequest selects which runs ClearHistory removes.
type ClearHistoryRequest struct {
	FailedOnly bool `json:"failedOnly,omitempty"`
}

// ClearHistoryResponse reports how many runs were removed.
type ClearHistoryResponse struct {
	Removed int64 `json:"removed"`
	Failure
}

// DependencyStatus captures availability of an external dependency.
type DependencyStatus struct {
	Name        string `json:"name"`
	Command     string `json:"command"`
	Description string `json:"description"`
	Optional    bool   `json:"optional"`
	Available   bool   `json:"available"`
	Detail      string `json:"detail,omitempty"`
}

// DaemonStatus aggregates daemon runtime information for API consumers.
type DaemonStatus struct {
	Running      bool               `json:"running"`
	PID          int                `json:"pid"`
	LedgerPath   string             `json:"ledgerPath"`
	LockFilePath string             `json:"lockFilePath"`
	StagingDir   string             `json:"stagingDir"`
	RunStats     map[string]int     `json:"runStats"`
	Dependencies []DependencyStatus `json:"dependencies"`
}
