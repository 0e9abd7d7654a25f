package badger

import (
	"encoding/binary"
	"fmt"
)

// Key prefixes for different data types
const (
	entryDocPrefix  = "entdoc:"
	entryWavePrefix = "entwav:"
	configKey       = "meta:config"
	countKey        = "meta:count"
)

// makePositionKey generates a key for an entry record by position.
// Format: prefix + 8-byte big-endian position, so lexicographic order is
// position order.
func makePositionKey(prefix string, position int) []byte {
	buf := make([]byte, len(prefix)+8)
	offset := copy(buf, prefix)
	binary.BigEndian.PutUint64(buf[offset:], uint64(position))
	return buf
}

// positionFromKey extracts the position from a key built by makePositionKey.
func positionFromKey(prefix string, key []byte) (int, error) {
	if len(key) != len(prefix)+8 {
		return 0, fmt.Errorf("malformed entry key %q", key)
	}
	return int(binary.BigEndian.Uint64(key[len(prefix):])), nil
}

func encodeCount(count int) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, uint64(count))
	return buf
}

func decodeCount(val []byte) (int, error) {
	if len(val) != 8 {
		return 0, fmt.Errorf("malformed entry count (%d bytes)", len(val))
	}
	return int(binary.BigEndian.Uint64(val)), nil
}

// makeCheckpointKey generates a key for processor checkpoints.
func makeCheckpointKey(processorType string) []byte {
	return []byte(fmt.Sprintf("%s:chkpt", processorType))
}
