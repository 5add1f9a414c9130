package chip

// File marker bytes attached to each captured blob. The parser uses them to
// split a combined capture back into logical files.
const (
	MarkerCommon   = 0xF1
	MarkerCardKind = 0xF2
	MarkerPersonal = 0xF3
)

// Logical file names as they appear on the card's filesystem.
const (
	FileCommon   = "EF01"
	FileCardKind = "EF02"
	FilePersonal = "DF1/EF01"
)

// File is one raw blob captured from a logical file on the chip.
type File struct {
	Name   string
	Marker byte
	Data   []byte
}

// Record is the tagged collection of raw blobs produced by one successful
// read sequence. It is consumed immediately by the TLV parser; nothing here
// is persisted.
type Record struct {
	Files []File
}

// Lookup returns the blob captured for the named logical file.
func (r Record) Lookup(name string) ([]byte, bool) {
	for _, f := range r.Files {
		if f.Name == name {
			return f.Data, true
		}
	}
	return nil, false
}

// Combined flattens the record into a single stream: for each file a marker
// byte, a two-byte big-endian length, then the blob. The TLV package splits
// this format back apart.
func (r Record) Combined() []byte {
	var out []byte
	for _, f := range r.Files {
		out = append(out, f.Marker, byte(len(f.Data)>>8), byte(len(f.Data)&0xFF))
		out = append(out, f.Data...)
	}
	return out
}
