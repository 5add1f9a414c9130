// Package tlv decodes the card chip's nested tag-length-value records into
// typed card data. Parsing is pure and bounded: a malformed or truncated
// length never reads past the buffer, it just ends the entry stream early.
package tlv

// Entry is one decoded tag/value pair. Tags on the supported cards fall in
// the 0xC0–0xDB range.
type Entry struct {
	Tag   byte
	Value []byte
}

// ParseEntries reads entries until the buffer is exhausted or a length
// field is malformed. Entries whose declared value runs past the buffer are
// dropped; everything fully contained in the valid prefix is returned.
func ParseEntries(buf []byte) []Entry {
	var entries []Entry
	i := 0
	for i < len(buf) {
		tag := buf[i]
		if tag == 0x00 || tag == 0xFF {
			// padding byte between records
			i++
			continue
		}
		i++
		length, n, ok := readLength(buf[i:])
		if !ok {
			break
		}
		i += n
		if i+length > len(buf) {
			break
		}
		entries = append(entries, Entry{Tag: tag, Value: buf[i : i+length]})
		i += length
	}
	return entries
}

// readLength decodes a BER short- or long-form length prefix. It returns
// the value length, the number of prefix bytes consumed, and whether the
// prefix was well formed and fully present.
func readLength(buf []byte) (length, consumed int, ok bool) {
	if len(buf) == 0 {
		return 0, 0, false
	}
	switch b := buf[0]; {
	case b <= 0x7F:
		return int(b), 1, true
	case b == 0x81:
		if len(buf) < 2 {
			return 0, 0, false
		}
		return int(buf[1]), 2, true
	case b == 0x82:
		if len(buf) < 3 {
			return 0, 0, false
		}
		return int(buf[1])<<8 | int(buf[2]), 3, true
	default:
		return 0, 0, false
	}
}

// AppendEntry encodes one entry using the shortest BER length form, the
// inverse of ParseEntries. Used by tests to build synthetic records.
func AppendEntry(dst []byte, e Entry) []byte {
	dst = append(dst, e.Tag)
	switch n := len(e.Value); {
	case n <= 0x7F:
		dst = append(dst, byte(n))
	case n <= 0xFF:
		dst = append(dst, 0x81, byte(n))
	default:
		dst = append(dst, 0x82, byte(n>>8), byte(n&0xFF))
	}
	return append(dst, e.Value...)
}

// SplitCombined separates a marker-delimited capture stream (marker byte,
// two-byte big-endian length, blob) back into per-marker blobs. Truncated
// trailing segments are dropped.
func SplitCombined(buf []byte) map[byte][]byte {
	blobs := make(map[byte][]byte)
	i := 0
	for i+3 <= len(buf) {
		marker := buf[i]
		length := int(buf[i+1])<<8 | int(buf[i+2])
		i += 3
		if i+length > len(buf) {
			break
		}
		blobs[marker] = buf[i : i+length]
		i += length
	}
	return blobs
}
