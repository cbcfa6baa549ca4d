package wasmfrontend

import "fmt"

// decodeU32 reads an unsigned LEB128-encoded value of at most 32 significant bits
// starting at data[offset], returning the decoded value and the offset just past it.
func decodeU32(data []byte, offset int) (uint32, int, error) {
	v, next, err := decodeU64(data, offset)
	if err != nil {
		return 0, 0, err
	}
	if v > 0xFFFFFFFF {
		return 0, 0, fmt.Errorf("wasmfrontend: u32 LEB128 overflow at offset %d", offset)
	}
	return uint32(v), next, nil
}

// decodeU64 reads an unsigned LEB128-encoded 64-bit value starting at data[offset].
func decodeU64(data []byte, offset int) (uint64, int, error) {
	var result uint64
	var shift uint
	pos := offset
	for {
		if pos >= len(data) {
			return 0, 0, fmt.Errorf("wasmfrontend: truncated LEB128 at offset %d", offset)
		}
		b := data[pos]
		pos++
		if shift >= 64 {
			return 0, 0, fmt.Errorf("wasmfrontend: LEB128 too long at offset %d", offset)
		}
		result |= uint64(b&0x7F) << shift
		if b&0x80 == 0 {
			return result, pos, nil
		}
		shift += 7
	}
}

// decodeI32 reads a signed LEB128-encoded value of at most 32 significant bits.
func decodeI32(data []byte, offset int) (int32, int, error) {
	v, next, err := decodeI64(data, offset)
	if err != nil {
		return 0, 0, err
	}
	if v < -(1<<31) || v > (1<<31)-1 {
		return 0, 0, fmt.Errorf("wasmfrontend: i32 LEB128 overflow at offset %d", offset)
	}
	return int32(v), next, nil
}

// decodeI64 reads a signed LEB128-encoded 64-bit value, sign-extending the final byte.
func decodeI64(data []byte, offset int) (int64, int, error) {
	var result int64
	var shift uint
	pos := offset
	var b byte
	for {
		if pos >= len(data) {
			return 0, 0, fmt.Errorf("wasmfrontend: truncated LEB128 at offset %d", offset)
		}
		b = data[pos]
		pos++
		if shift >= 64 {
			return 0, 0, fmt.Errorf("wasmfrontend: LEB128 too long at offset %d", offset)
		}
		result |= int64(b&0x7F) << shift
		shift += 7
		if b&0x80 == 0 {
			break
		}
	}
	if shift < 64 && b&0x40 != 0 {
		result |= -1 << shift
	}
	return result, pos, nil
}
