package cardscan

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"golang.org/x/text/encoding/japanese"
	"golang.org/x/text/transform"

	"github.com/sudachi-dev/cardscan/carddata"
	"github.com/sudachi-dev/cardscan/scanerr"
	"github.com/sudachi-dev/cardscan/tlv"
	"github.com/sudachi-dev/cardscan/transport"
)

// fakeTag replays the scripted chip responses for a full read sequence.
type fakeTag struct {
	mu        sync.Mutex
	responses [][]byte
}

func (c *fakeTag) Transceive(_ context.Context, _ []byte) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	resp := c.responses[0]
	c.responses = c.responses[1:]
	return resp, nil
}

func (c *fakeTag) Close() error { return nil }

type fakeDetector struct{ conn transport.TagConn }

func (d fakeDetector) Poll(_ context.Context) ([]transport.TagConn, error) {
	return []transport.TagConn{d.conn}, nil
}

func shiftJIS(t *testing.T, s string) []byte {
	t.Helper()
	out, _, err := transform.Bytes(japanese.ShiftJIS.NewEncoder(), []byte(s))
	if err != nil {
		t.Fatalf("shift-jis encode %q: %v", s, err)
	}
	return out
}

func entries(pairs ...tlv.Entry) []byte {
	var out []byte
	for _, e := range pairs {
		out = tlv.AppendEntry(out, e)
	}
	return out
}

func statusOK(data []byte) []byte { return append(data, 0x90, 0x00) }

func residenceCardResponses(t *testing.T) [][]byte {
	common := entries(
		tlv.Entry{Tag: 0xC0, Value: []byte("0100")},
		tlv.Entry{Tag: 0xC1, Value: []byte("AB12345678CD")},
	)
	kind := entries(tlv.Entry{Tag: 0xC2, Value: []byte("1")})
	personal := entries(
		tlv.Entry{Tag: 0xC4, Value: []byte("NGUYEN VAN A")},
		tlv.Entry{Tag: 0xC5, Value: []byte("1")},
		tlv.Entry{Tag: 0xC6, Value: []byte("19980402")},
		tlv.Entry{Tag: 0xC7, Value: []byte("VNM")},
		tlv.Entry{Tag: 0xC8, Value: shiftJIS(t, "東京都新宿区西新宿２－８－１")},
		tlv.Entry{Tag: 0xC9, Value: shiftJIS(t, "留学")},
		tlv.Entry{Tag: 0xCA, Value: shiftJIS(t, "４年３月")},
		tlv.Entry{Tag: 0xCB, Value: []byte("20270601")},
		tlv.Entry{Tag: 0xCC, Value: []byte("1")},
	)
	return [][]byte{
		statusOK(nil),      // SELECT application
		statusOK(nil),      // VERIFY
		statusOK(nil),      // SELECT EF01
		statusOK(common),   // READ common
		statusOK(nil),      // SELECT EF02
		statusOK(kind),     // READ card kind
		statusOK(nil),      // SELECT child application
		statusOK(nil),      // SELECT DF1/EF01
		statusOK(personal), // READ personal
	}
}

func testClient(conn transport.TagConn) *transport.Client {
	return transport.NewClient(fakeDetector{conn: conn}, transport.Config{
		Timeout: 2 * time.Second, PollAttempts: 3, PollDelay: time.Millisecond,
	})
}

func TestScanChipResidenceCard(t *testing.T) {
	client := testClient(&fakeTag{responses: residenceCardResponses(t)})

	card, err := ScanChip(context.Background(), client, carddata.TypeZairyu, "ab12345678cd")
	if err != nil {
		t.Fatalf("ScanChip error = %v", err)
	}
	z, ok := card.(carddata.ZairyuCardData)
	if !ok {
		t.Fatalf("card type = %T", card)
	}
	if z.CardNumber != "AB12345678CD" {
		t.Fatalf("CardNumber = %q", z.CardNumber)
	}
	if z.Name != "NGUYEN VAN A" {
		t.Fatalf("Name = %q", z.Name)
	}
	if z.Sex != carddata.SexMale {
		t.Fatalf("Sex = %q", z.Sex)
	}
	if z.Nationality != "Vietnam" {
		t.Fatalf("Nationality = %q", z.Nationality)
	}
	if z.Status != "Student" {
		t.Fatalf("Status = %q", z.Status)
	}
	if !z.WorkPermitted {
		t.Fatalf("WorkPermitted = false")
	}
	if got := z.DateOfBirth.Format("2006-01-02"); got != "1998-04-02" {
		t.Fatalf("DateOfBirth = %s", got)
	}
	if got := z.ExpiryDate.Format("2006-01-02"); got != "2027-06-01" {
		t.Fatalf("ExpiryDate = %s", got)
	}
	if z.Address != "東京都新宿区西新宿２－８－１" {
		t.Fatalf("Address = %q", z.Address)
	}
}

func TestScanChipMyNumberCardMasksNumber(t *testing.T) {
	personal := entries(
		tlv.Entry{Tag: 0xC4, Value: shiftJIS(t, "山田 花子")},
		tlv.Entry{Tag: 0xC5, Value: []byte("2")},
		tlv.Entry{Tag: 0xC6, Value: []byte("19900101")},
		tlv.Entry{Tag: 0xCD, Value: []byte("123456789012")},
	)
	conn := &fakeTag{responses: [][]byte{
		statusOK(nil), statusOK(nil), statusOK(nil),
		statusOK(entries(tlv.Entry{Tag: 0xC1, Value: []byte("AB12345678CD")})),
		statusOK(nil),
		statusOK(entries(tlv.Entry{Tag: 0xC2, Value: []byte("1")})),
		statusOK(nil), statusOK(nil),
		statusOK(personal),
	}}

	card, err := ScanChip(context.Background(), testClient(conn), carddata.TypeMyNumber, "AB12345678CD")
	if err != nil {
		t.Fatalf("ScanChip error = %v", err)
	}
	m := card.(carddata.MyNumberCardData)
	if m.NumberLast4 != "9012" {
		t.Fatalf("NumberLast4 = %q", m.NumberLast4)
	}
	for k, v := range m.FieldUpdates() {
		if strings.Contains(v, "123456789012") {
			t.Fatalf("full individual number leaked through %q = %q", k, v)
		}
	}
}

func TestScanChipDriverLicenseUnsupported(t *testing.T) {
	client := testClient(&fakeTag{responses: residenceCardResponses(t)})
	_, err := ScanChip(context.Background(), client, carddata.TypeDriverLicense, "AB12345678CD")
	if scanerr.KindOf(err) != scanerr.KindWrongCardType {
		t.Fatalf("error = %v, want wrong card type", err)
	}
}

func TestScanChipWrongPIN(t *testing.T) {
	conn := &fakeTag{responses: [][]byte{
		statusOK(nil),      // SELECT application
		{0x63, 0x00},       // VERIFY rejected
	}}
	_, err := ScanChip(context.Background(), testClient(conn), carddata.TypeZairyu, "AB12345678CD")
	if scanerr.KindOf(err) != scanerr.KindInvalidCardNumber {
		t.Fatalf("error = %v, want invalid card number", err)
	}
}

func TestScanChipUnexpectedKind(t *testing.T) {
	conn := &fakeTag{responses: [][]byte{
		statusOK(nil), statusOK(nil), statusOK(nil),
		statusOK(entries(tlv.Entry{Tag: 0xC1, Value: []byte("AB12345678CD")})),
		statusOK(nil),
		statusOK(entries(tlv.Entry{Tag: 0xC2, Value: []byte("9")})),
		statusOK(nil), statusOK(nil),
		statusOK(entries(tlv.Entry{Tag: 0xC4, Value: []byte("NGUYEN VAN A")})),
	}}
	_, err := ScanChip(context.Background(), testClient(conn), carddata.TypeZairyu, "AB12345678CD")
	if scanerr.KindOf(err) != scanerr.KindWrongCardType {
		t.Fatalf("error = %v, want wrong card type", err)
	}
}
