package api

import (
	"time"

	"meshport/internal/deps"
	"meshport/internal/ledger"
)

// FromRecord converts a ledger record to its API representation.
func FromRecord(record *ledger.Record) Run {
	if record == nil {
		return Run{}
	}
	run := Run{
		ID:            record.ID,
		ContractID:    record.ContractID,
		TokenID:       record.TokenID,
		AssetID:       record.AssetID,
		Status:        string(record.Status),
		GLTFURL:       record.GLTFURL,
		GLBURL:        record.GLBURL,
		MMLURL:        record.MMLURL,
		ErrorKind:     record.ErrorKind,
		ErrorMessage:  record.ErrorMessage,
		CorrelationID: record.CorrelationID,
		CreatedAt:     formatTime(record.CreatedAt),
		UpdatedAt:     formatTime(record.UpdatedAt),
	}
	if record.CompletedAt != nil {
		run.CompletedAt = formatTime(*record.CompletedAt)
	}
	return run
}

// FromRecords converts a slice of ledger records.
func FromRecords(records []*ledger.Record) []Run {
	runs := make([]Run, 0, len(records))
	for _, record := range records {
		if record == nil {
			continue
		}
		runs = append(runs, FromRecord(record))
	}
	return runs
}

// StatsByName converts ledger stats into a string-keyed map covering every
// status, zero counts included.
func StatsByName(stats map[ledger.Status]int) map[string]int {
	out := map[string]int{
		string(ledger.StatusResolving):  0,
		string(ledger.StatusFetching):   0,
		string(ledger.StatusConverting): 0,
		string(ledger.StatusCompleted):  0,
		string(ledger.StatusFailed):     0,
	}
	for status, count := range stats {
		out[string(status)] = count
	}
	return out
}

// FromDependencies converts dependency checks to DTOs.
func FromDependencies(statuses []deps.Status) []DependencyStatus {
	out := make([]DependencyStatus, 0, len(statuses))
	for _, status := range statuses {
		out = append(out, DependencyStatus{
			Name:        status.Name,
			Command:     status.Command,
			Description: status.Description,
			Optional:    status.Optional,
			Available:   status.Available,
			Detail:      status.Detail,
		})
	}
	return out
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(dateTimeFormat)
}
