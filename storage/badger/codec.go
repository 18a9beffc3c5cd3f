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


package badger

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/poiesic/indexit/core"
	"github.com/poiesic/indexit/storage"
)

// codecVersion is the current on-disk layout version. Bump it when the
// layout changes; decode rejects unknown versions.
const codecVersion = 1

// marshalVectorRecord serializes a VectorRecord to bytes.
//
// Layout (all integers little-endian):
//
//	version   uint8
//	fileID    uint16 length + bytes
//	category  uint16 length + bytes
//	filename  uint16 length + bytes
//	chunkIdx  uint32
//	seq       uint64
//	dim       uint32
//	embedding dim * float32 bits
func marshalVectorRecord(record *core.VectorRecord) []byte {
	size := 1 +
		2 + len(record.FileID) +
		2 + len(record.CategoryID) +
		2 + len(record.Filename) +
		4 + 8 + 4 + 4*len(record.Embedding)

	buf := make([]byte, size)
	buf[0] = codecVersion
	offset := 1
	offset = putString(buf, offset, record.FileID)
	offset = putString(buf, offset, record.CategoryID)
	offset = putString(buf, offset, record.Filename)
	binary.LittleEndian.PutUint32(buf[offset:], uint32(record.ChunkIndex))
	offset += 4
	binary.LittleEndian.PutUint64(buf[offset:], record.Seq)
	offset += 8
	binary.LittleEndian.PutUint32(buf[offset:], uint32(len(record.Embedding)))
	offset += 4
	for _, v := range record.Embedding {
		binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(v))
		offset += 4
	}
	return buf
}

// unmarshalVectorRecord deserializes a VectorRecord from bytes.
func unmarshalVectorRecord(data []byte) (*core.VectorRecord, error) {
	if len(data) < 1 {
		return nil, fmt.Errorf("%w: empty vector record", storage.ErrCodec)
	}
	if data[0] != codecVersion {
		return nil, fmt.Errorf("%w: unknown codec version %d", storage.ErrCodec, data[0])
	}

	record := &core.VectorRecord{}
	offset := 1
	var err error
	if record.FileID, offset, err = getString(data, offset); err != nil {
		return nil, err
	}
	if record.CategoryID, offset, err = getString(data, offset); err != nil {
		return nil, err
	}
	if record.Filename, offset, err = getString(data, offset); err != nil {
		return nil, err
	}
	if len(data) < offset+16 {
		return nil, fmt.Errorf("%w: truncated vector record", storage.ErrCodec)
	}
	record.ChunkIndex = int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	record.Seq = binary.LittleEndian.Uint64(data[offset:])
	offset += 8
	dim := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	if len(data) < offset+4*dim {
		return nil, fmt.Errorf("%w: truncated embedding", storage.ErrCodec)
	}
	record.Embedding = make([]float32, dim)
	for i := 0; i < dim; i++ {
		record.Embedding[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset:]))
		offset += 4
	}
	record.VectorID = core.MakeVectorID(record.FileID, record.ChunkIndex)
	return record, nil
}

func putString(buf []byte, offset int, s string) int {
	binary.LittleEndian.PutUint16(buf[offset:], uint16(len(s)))
	offset += 2
	offset += copy(buf[offset:], s)
	return offset
}

func getString(data []byte, offset int) (string, int, error) {
	if len(data) < offset+2 {
		return "", 0, fmt.Errorf("%w: truncated string length", storage.ErrCodec)
	}
	n := int(binary.LittleEndian.Uint16(data[offset:]))
	offset += 2
	if len(data) < offset+n {
		return "", 0, fmt.Errorf("%w: truncated string", storage.ErrCodec)
	}
	return string(data[offset : offset+n]), offset + n, nil
}
