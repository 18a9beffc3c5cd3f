// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package core

import (
	"errors"
	"fmt"
)

// Validation errors
var (
	// ErrInvalidFileRecord indicates a FileRecord failed validation.
	ErrInvalidFileRecord = errors.New("invalid file record")

	// ErrEmptyFileID indicates the ID field is empty.
	ErrEmptyFileID = errors.New("file id cannot be empty")

	// ErrEmptyFilename indicates the Filename field is empty.
	ErrEmptyFilename = errors.New("filename cannot be empty")

	// ErrEmptyStoragePath indicates the StoragePath field is empty.
	ErrEmptyStoragePath = errors.New("storage path cannot be empty")
)

// ValidateFileRecord validates a FileRecord according to domain rules.
//
// Validation rules:
//   - ID, Filename and StoragePath must not be empty
//   - Status must be a known lifecycle state
//   - Vectorized implies Completed with at least one chunk
//
// NOT validated (populated by the pipeline):
//   - phase timestamps
//   - error fields
func ValidateFileRecord(record *FileRecord) error {
	if record == nil {
		return fmt.Errorf("%w: record is nil", ErrInvalidFileRecord)
	}

	if record.ID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFileRecord, ErrEmptyFileID)
	}

	if record.Filename == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFileRecord, ErrEmptyFilename)
	}

	if record.StoragePath == "" {
		return fmt.Errorf("%w: %w", ErrInvalidFileRecord, ErrEmptyStoragePath)
	}

	if !record.Status.Valid() {
		return fmt.Errorf("%w: unknown status %q", ErrInvalidFileRecord, record.Status)
	}

	if record.Vectorized && (record.Status != StatusCompleted || record.ChunkCount < 1) {
		return fmt.Errorf("%w: vectorized record must be completed with chunks", ErrInvalidFileRecord)
	}

	return nil
}
