package store

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/golang/snappy"
	"github.com/spaolacci/murmur3"

	"github.com/agentstation/keysync/pkg/errors"
)

const checksumSize = 8

// encodeBlob marshals v to JSON, compresses it and prefixes the murmur3
// checksum of the compressed bytes.
func encodeBlob(v any) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode blob: %w", err)
	}
	compressed := snappy.Encode(nil, raw)

	out := make([]byte, checksumSize+len(compressed))
	binary.BigEndian.PutUint64(out, murmur3.Sum64(compressed))
	copy(out[checksumSize:], compressed)
	return out, nil
}

// decodeBlob reverses encodeBlob. Any damage surfaces as ErrCorrupted.
func decodeBlob(b []byte, v any) error {
	if len(b) < checksumSize {
		return fmt.Errorf("blob of %d bytes: %w", len(b), errors.ErrCorrupted)
	}
	compressed := b[checksumSize:]
	if binary.BigEndian.Uint64(b[:checksumSize]) != murmur3.Sum64(compressed) {
		return fmt.Errorf("checksum mismatch: %w", errors.ErrCorrupted)
	}
	raw, err := snappy.Decode(nil, compressed)
	if err != nil {
		return fmt.Errorf("decompress: %v: %w", err, errors.ErrCorrupted)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("unmarshal: %v: %w", err, errors.ErrCorrupted)
	}
	return nil
}
