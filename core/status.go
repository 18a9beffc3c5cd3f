package core

import "fmt"

// FileStatus is the lifecycle state of an uploaded file.
type FileStatus string

const (
	// StatusUploaded means the file is stored but not yet processed.
	StatusUploaded FileStatus = "uploaded"
	// StatusPreprocessing means content extraction is in progress.
	StatusPreprocessing FileStatus = "preprocessing"
	// StatusPreprocessed means text extraction finished successfully.
	StatusPreprocessed FileStatus = "preprocessed"
	// StatusVectorizing means embedding and index writes are in progress.
	StatusVectorizing FileStatus = "vectorizing"
	// StatusCompleted means all chunks are embedded and searchable.
	StatusCompleted FileStatus = "completed"
	// StatusFailed means the last run failed; the file is retryable.
	StatusFailed FileStatus = "failed"
	// StatusDeleted is terminal; the record is soft-deleted and its
	// vectors purged.
	StatusDeleted FileStatus = "deleted"
)

// transitions is the single allowed-transition table. Every status
// mutator consults it through CanTransition; there are no ad hoc
// validity checks at call sites.
//
// Completed -> Failed exists solely so the reconciler can demote a
// record whose vectors have gone missing.
var transitions = map[FileStatus][]FileStatus{
	StatusUploaded:      {StatusPreprocessing, StatusDeleted},
	StatusPreprocessing: {StatusPreprocessed, StatusFailed, StatusUploaded, StatusDeleted},
	StatusPreprocessed:  {StatusVectorizing, StatusFailed, StatusDeleted},
	StatusVectorizing:   {StatusCompleted, StatusFailed, StatusDeleted},
	StatusCompleted:     {StatusFailed, StatusDeleted},
	StatusFailed:        {StatusPreprocessing, StatusUploaded, StatusDeleted},
	StatusDeleted:       {},
}

// CanTransition reports whether moving a file from one status to
// another is allowed by the lifecycle state machine.
func CanTransition(from, to FileStatus) bool {
	for _, allowed := range transitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// IsTerminal reports whether a status admits no further transitions.
func (s FileStatus) IsTerminal() bool {
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status value.
func (s FileStatus) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// ParseFileStatus converts a stored string into a FileStatus.
func ParseFileStatus(s string) (FileStatus, error) {
	status := FileStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("%w: unknown status %q", ErrInvalidState, s)
	}
	return status, nil
}
