package chip

import (
	"bytes"
	"context"
	"testing"

	"github.com/sudachi-dev/cardscan/scanerr"
)

// scriptConn returns queued responses in order and records every APDU it
// received.
type scriptConn struct {
	t         *testing.T
	responses [][]byte
	sent      [][]byte
}

func (c *scriptConn) Transceive(_ context.Context, apdu []byte) ([]byte, error) {
	c.sent = append(c.sent, append([]byte(nil), apdu...))
	if len(c.responses) == 0 {
		c.t.Fatalf("unexpected command %X", apdu)
	}
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

func ok(data ...byte) []byte { return append(data, 0x90, 0x00) }

func sw(code uint16) []byte { return []byte{byte(code >> 8), byte(code & 0xFF)} }

const testNumber = "AB12345678CD"

func TestReadCardSequence(t *testing.T) {
	common := []byte{0xC1, 0x01, 0x31}
	kind := []byte{0xC2, 0x01, 0x31}
	personal := []byte{0xC4, 0x03, 'A', ' ', 'B'}

	conn := &scriptConn{t: t, responses: [][]byte{
		ok(),                 // SELECT application
		ok(),                 // VERIFY
		ok(),                 // SELECT EF01
		ok(common...),        // READ BINARY (short chunk ends file)
		ok(),                 // SELECT EF02
		ok(kind...),          // READ BINARY
		ok(),                 // SELECT child application
		ok(),                 // SELECT DF1/EF01
		ok(personal...),      // READ BINARY
	}}

	rec, err := NewSequencer(conn, nil).ReadCard(context.Background(), testNumber)
	if err != nil {
		t.Fatalf("ReadCard error = %v", err)
	}
	if len(rec.Files) != 3 {
		t.Fatalf("got %d files, want 3", len(rec.Files))
	}
	if got, _ := rec.Lookup(FilePersonal); !bytes.Equal(got, personal) {
		t.Fatalf("personal blob = %X", got)
	}

	// Strict command order: SELECT AID, VERIFY, then file reads, with the
	// child application selected before the personal file.
	if conn.sent[0][1] != insSelect || conn.sent[0][2] != selectByAID {
		t.Fatalf("first command is not SELECT by AID: %X", conn.sent[0])
	}
	if conn.sent[1][1] != insVerify {
		t.Fatalf("second command is not VERIFY: %X", conn.sent[1])
	}
	if !bytes.Equal(conn.sent[1][5:], []byte(testNumber)) {
		t.Fatalf("VERIFY payload = %X", conn.sent[1][5:])
	}
	if conn.sent[6][2] != selectByAID || !bytes.Equal(conn.sent[6][5:], personalAID) {
		t.Fatalf("child application not selected before personal read: %X", conn.sent[6])
	}
}

func TestReadCardWrongPIN(t *testing.T) {
	conn := &scriptConn{t: t, responses: [][]byte{
		ok(),       // SELECT application
		sw(0x6300), // VERIFY rejected
	}}
	_, err := NewSequencer(conn, nil).ReadCard(context.Background(), testNumber)
	if scanerr.KindOf(err) != scanerr.KindInvalidCardNumber {
		t.Fatalf("error = %v, want invalid card number", err)
	}
}

func TestReadCardInvalidNumberNoCommands(t *testing.T) {
	conn := &scriptConn{t: t}
	_, err := NewSequencer(conn, nil).ReadCard(context.Background(), "short")
	if scanerr.KindOf(err) != scanerr.KindInvalidCardNumber {
		t.Fatalf("error = %v", err)
	}
	if len(conn.sent) != 0 {
		t.Fatalf("commands issued for invalid number: %d", len(conn.sent))
	}
}

func TestReadFileWrongLengthRetry(t *testing.T) {
	payload := bytes.Repeat([]byte{0xAB}, 0x10)
	conn := &scriptConn{t: t, responses: [][]byte{
		ok(),           // SELECT application
		ok(),           // VERIFY
		ok(),           // SELECT EF01
		sw(0x6C10),     // wrong length, chip declares 0x10
		ok(payload...), // corrected READ
		sw(0x6B00),     // next offset is past EOF
		ok(),           // SELECT EF02
		ok(0xC2, 0x01, 0x31),
		ok(), // SELECT child application
		ok(), // SELECT DF1/EF01
		ok(0xC4, 0x01, 0x41),
	}}

	rec, err := NewSequencer(conn, nil).ReadCard(context.Background(), testNumber)
	if err != nil {
		t.Fatalf("ReadCard error = %v", err)
	}
	got, _ := rec.Lookup(FileCommon)
	if !bytes.Equal(got, payload) {
		t.Fatalf("common blob = %X, want %X", got, payload)
	}

	// The corrective retry must request exactly the declared length.
	retry := conn.sent[4]
	if retry[1] != insReadBinary || retry[4] != 0x10 {
		t.Fatalf("corrective retry = %X", retry)
	}
}

func TestReadFileEndOfFileStatus(t *testing.T) {
	full := bytes.Repeat([]byte{0x01}, maxReadChunk)
	tail := []byte{0x02, 0x03}
	conn := &scriptConn{t: t, responses: [][]byte{
		ok(),          // SELECT application
		ok(),          // VERIFY
		ok(),          // SELECT EF01
		ok(full...),   // full chunk, keep reading
		append(append([]byte(nil), tail...), 0x62, 0x82), // EOF with data
		ok(), // SELECT EF02
		ok(0xC2, 0x01, 0x31),
		ok(), // SELECT child application
		ok(), // SELECT DF1/EF01
		ok(0xC4, 0x01, 0x41),
	}}

	rec, err := NewSequencer(conn, nil).ReadCard(context.Background(), testNumber)
	if err != nil {
		t.Fatalf("ReadCard error = %v", err)
	}
	got, _ := rec.Lookup(FileCommon)
	if len(got) != maxReadChunk+len(tail) {
		t.Fatalf("common blob length = %d, want %d", len(got), maxReadChunk+len(tail))
	}

	// Second read must advance the offset past the first chunk.
	second := conn.sent[4]
	offset := int(second[2])<<8 | int(second[3])
	if offset != maxReadChunk {
		t.Fatalf("second read offset = %d", offset)
	}
}

func TestSplitResponseTooShort(t *testing.T) {
	if _, _, err := splitResponse([]byte{0x90}); err == nil {
		t.Fatalf("expected error for 1-byte response")
	}
}

func TestCombinedRoundTrip(t *testing.T) {
	rec := Record{Files: []File{
		{Name: FileCommon, Marker: MarkerCommon, Data: []byte{1, 2, 3}},
		{Name: FilePersonal, Marker: MarkerPersonal, Data: []byte{4}},
	}}
	combined := rec.Combined()
	want := []byte{MarkerCommon, 0x00, 0x03, 1, 2, 3, MarkerPersonal, 0x00, 0x01, 4}
	if !bytes.Equal(combined, want) {
		t.Fatalf("Combined = %X, want %X", combined, want)
	}
}
