// Package chip issues the ordered ISO 7816 command sequence that extracts
// the raw logical files from a card's contactless chip. It is transport
// agnostic: anything that can round-trip an APDU satisfies Transceiver.
package chip

import (
	"fmt"

	"github.com/sudachi-dev/cardscan/scanerr"
)

// Instruction bytes used by the read sequence.
const (
	insSelect     = 0xA4
	insVerify     = 0x20
	insReadBinary = 0xB0
)

// SELECT parameter bytes.
const (
	selectByAID    = 0x04
	selectEF       = 0x02
	selectNoFCI    = 0x0C
	verifyCardPIN  = 0x86
	maxReadChunk   = 255
)

// Application identifiers. The card hosts the common files under the main
// application; the personal-data file lives in a child application selected
// separately.
var (
	cardAID     = []byte{0xD3, 0x92, 0xF0, 0x00, 0x26, 0x01, 0x00}
	personalAID = []byte{0xD3, 0x92, 0x10, 0x00, 0x31, 0x00, 0x01}
)

// Elementary file identifiers under the currently selected application.
var (
	fileCommon   = []byte{0x00, 0x01} // EF01
	fileCardKind = []byte{0x00, 0x02} // EF02
	filePersonal = []byte{0x00, 0x01} // DF1/EF01
)

func selectAIDAPDU(aid []byte) []byte {
	return commandAPDU(0x00, insSelect, selectByAID, selectNoFCI, aid, 0)
}

func selectEFAPDU(fileID []byte) []byte {
	return commandAPDU(0x00, insSelect, selectEF, selectNoFCI, fileID, 0)
}

func verifyAPDU(secret []byte) []byte {
	return commandAPDU(0x00, insVerify, 0x00, verifyCardPIN, secret, 0)
}

func readBinaryAPDU(offset int, le byte) []byte {
	p1 := byte(offset >> 8)
	p2 := byte(offset & 0xFF)
	return commandAPDU(0x00, insReadBinary, p1, p2, nil, le)
}

// commandAPDU assembles CLA INS P1 P2 [Lc data] [Le]. Le of zero means "no
// response length"; a READ BINARY Le of 0x00 would mean 256, which the
// sequence never requests.
func commandAPDU(cla, ins, p1, p2 byte, data []byte, le byte) []byte {
	apdu := []byte{cla, ins, p1, p2}
	if len(data) > 0 {
		apdu = append(apdu, byte(len(data)))
		apdu = append(apdu, data...)
	}
	if le > 0 {
		apdu = append(apdu, le)
	}
	return apdu
}

// statusWord is the trailing two-byte response code of every command.
type statusWord uint16

const swOK statusWord = 0x9000

func (sw statusWord) class() byte { return byte(sw >> 8) }
func (sw statusWord) info() byte  { return byte(sw & 0xFF) }

// endOfFile reports the status classes a chip returns when a READ BINARY
// ran past the file end. Data already returned alongside 0x62xx is valid.
func (sw statusWord) endOfFile() bool {
	return sw.class() == 0x62 || sw.class() == 0x6B
}

// wrongLength reports the 0x6Cxx class; info() carries the corrected Le the
// command must be retried with.
func (sw statusWord) wrongLength() bool { return sw.class() == 0x6C }

// splitResponse separates payload bytes from the status word.
func splitResponse(resp []byte) ([]byte, statusWord, error) {
	if len(resp) < 2 {
		return nil, 0, scanerr.Wrap(scanerr.KindInvalidResponse, "chip",
			fmt.Errorf("response too short (%d bytes)", len(resp)))
	}
	sw := statusWord(uint16(resp[len(resp)-2])<<8 | uint16(resp[len(resp)-1]))
	return resp[:len(resp)-2], sw, nil
}

// classify maps a non-success status word of a given stage to the error
// taxonomy. Wrong-PIN and security classes are distinguished from generic
// protocol noise so the caller can tell the user which it was.
func classify(sw statusWord, stage string) error {
	switch {
	case sw.class() == 0x63:
		return scanerr.Wrap(scanerr.KindInvalidCardNumber, stage,
			fmt.Errorf("verification rejected (sw=%04X)", uint16(sw)))
	case sw == 0x6982 || sw == 0x6983 || sw == 0x6984:
		return scanerr.Wrap(scanerr.KindSecurityViolation, stage,
			fmt.Errorf("security status not satisfied (sw=%04X)", uint16(sw)))
	default:
		return scanerr.Wrap(scanerr.KindInvalidResponse, stage,
			fmt.Errorf("unexpected status word %04X", uint16(sw)))
	}
}
