// Package pipeline orchestrates the vectorization of uploaded files.
//
// The Pipeline type drives one file at a time through the lifecycle
// UPLOADED -> PREPROCESSING -> PREPROCESSED -> VECTORIZING -> COMPLETED,
// recording every transition in the metadata store. A failed stage
// moves the file to FAILED with a classified error; vectors written
// during the failed attempt are purged so the index never holds
// partial chunk coverage for a file.
//
// Runs are asynchronous background tasks scheduled on a worker pool.
// A per-file exclusion token guarantees at most one in-flight run per
// file id; a losing concurrent caller observes ErrInvalidState.
// Retry and force-reprocess are explicit operations, never automatic.
package pipeline
