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

import "errors"

// Pipeline and domain errors
var (
	// ErrInvalidState indicates an illegal status transition or a
	// concurrent-run conflict for the same file.
	ErrInvalidState = errors.New("invalid file state")

	// ErrUnsupportedFormat indicates no extractor handles the file format.
	ErrUnsupportedFormat = errors.New("unsupported file format")

	// ErrCorruptFile indicates the file could not be parsed in its
	// declared format.
	ErrCorruptFile = errors.New("corrupt file")

	// ErrEncoding indicates text could not be decoded with any
	// supported encoding.
	ErrEncoding = errors.New("undecodable text encoding")

	// ErrMissingDependency indicates an external tool required for the
	// format is not installed.
	ErrMissingDependency = errors.New("missing external dependency")

	// ErrEmptyDocument indicates extraction produced no indexable text.
	ErrEmptyDocument = errors.New("document has no indexable content")

	// ErrProvider indicates the embedding provider or index backend
	// was unreachable or rejected a request.
	ErrProvider = errors.New("provider error")

	// ErrTimeout indicates a pipeline stage exceeded its deadline.
	ErrTimeout = errors.New("operation timed out")

	// ErrInvalidConfig indicates invalid chunker or pipeline configuration.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Error type labels stored on FileRecord.ErrorType. They classify the
// failure for operators and for retry policy decisions.
const (
	ErrorTypeUnsupportedFormat = "unsupported_format"
	ErrorTypeCorruptFile       = "corrupt_file"
	ErrorTypeEncoding          = "encoding_error"
	ErrorTypeMissingDependency = "missing_dependency"
	ErrorTypeEmptyDocument     = "empty_document"
	ErrorTypeProvider          = "provider_error"
	ErrorTypeTimeout           = "timeout"
	ErrorTypeInternal          = "internal_error"
)

// ErrorTypeFor maps an error to its stored classification label.
func ErrorTypeFor(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedFormat):
		return ErrorTypeUnsupportedFormat
	case errors.Is(err, ErrCorruptFile):
		return ErrorTypeCorruptFile
	case errors.Is(err, ErrEncoding):
		return ErrorTypeEncoding
	case errors.Is(err, ErrMissingDependency):
		return ErrorTypeMissingDependency
	case errors.Is(err, ErrEmptyDocument):
		return ErrorTypeEmptyDocument
	case errors.Is(err, ErrTimeout):
		return ErrorTypeTimeout
	case errors.Is(err, ErrProvider):
		return ErrorTypeProvider
	default:
		return ErrorTypeInternal
	}
}
