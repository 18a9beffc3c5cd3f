package badger

import (
	"encoding/binary"
)

// Key prefixes for different data types
const (
	vectorPrefix = "vecrec"
	vectorSeq    = "vecrecseq"
)

// makeVectorKey generates a key for a vector by file ID and chunk index.
// The chunk index is written in BigEndian so per-file iteration yields
// chunks in order.
func makeVectorKey(fileID string, chunkIndex int) []byte {
	prefix := vectorPrefix + ":" + fileID + ":"
	prefixBytes := []byte(prefix)
	buf := make([]byte, len(prefixBytes)+4)
	offset := copy(buf, prefixBytes)
	binary.BigEndian.PutUint32(buf[offset:], uint32(chunkIndex))
	return buf
}

// makeFilePrefix generates the key prefix covering all vectors of one file.
func makeFilePrefix(fileID string) []byte {
	return []byte(vectorPrefix + ":" + fileID + ":")
}

// allVectorsPrefix covers every vector record in the index.
func allVectorsPrefix() []byte {
	return []byte(vectorPrefix + ":")
}
