package core

import (
	"fmt"
	"strconv"
	"strings"
)

// MakeVectorID derives the deterministic vector identifier for a chunk.
// The same (fileID, chunkIndex) pair always maps to the same vector ID,
// so re-vectorization overwrites rather than accumulates.
func MakeVectorID(fileID string, chunkIndex int) string {
	return fileID + ":" + strconv.Itoa(chunkIndex)
}

// ParseVectorID splits a vector ID back into its file ID and chunk index.
func ParseVectorID(vectorID string) (fileID string, chunkIndex int, err error) {
	i := strings.LastIndexByte(vectorID, ':')
	if i <= 0 || i == len(vectorID)-1 {
		return "", 0, fmt.Errorf("malformed vector id %q", vectorID)
	}
	idx, err := strconv.Atoi(vectorID[i+1:])
	if err != nil || idx < 0 {
		return "", 0, fmt.Errorf("malformed vector id %q", vectorID)
	}
	return vectorID[:i], idx, nil
}
