package chip

import (
	"context"
	"fmt"

	"github.com/sudachi-dev/cardscan/carddata"
	"github.com/sudachi-dev/cardscan/observability"
	"github.com/sudachi-dev/cardscan/scanerr"
)

// Transceiver is one synchronous APDU round-trip over an open tag
// connection. The transport package provides real implementations; tests
// script responses.
type Transceiver interface {
	Transceive(ctx context.Context, apdu []byte) ([]byte, error)
}

// Sequencer drives the fixed command order against a connected chip:
// SELECT application, VERIFY with the printed card number, then per target
// file SELECT + chunked READ BINARY. The personal-data file requires
// selecting the child application first.
type Sequencer struct {
	conn Transceiver
	log  observability.Logger
}

func NewSequencer(conn Transceiver, log observability.Logger) *Sequencer {
	return &Sequencer{conn: conn, log: observability.OrNop(log)}
}

// ReadCard runs the full sequence and returns the three raw file blobs.
// The card number must already be normalized; a chip-side rejection
// surfaces as KindInvalidCardNumber, distinct from transport failures.
func (s *Sequencer) ReadCard(ctx context.Context, cardNumber string) (Record, error) {
	if !carddata.IsCardNumberValid(cardNumber) {
		return Record{}, scanerr.New(scanerr.KindInvalidCardNumber, "chip.verify")
	}

	if err := s.selectApplication(ctx, cardAID, "chip.select_app"); err != nil {
		return Record{}, err
	}
	if err := s.verify(ctx, cardNumber); err != nil {
		return Record{}, err
	}

	common, err := s.readFile(ctx, fileCommon, FileCommon)
	if err != nil {
		return Record{}, err
	}
	kind, err := s.readFile(ctx, fileCardKind, FileCardKind)
	if err != nil {
		return Record{}, err
	}

	// The personal-data file lives under a different directory.
	if err := s.selectApplication(ctx, personalAID, "chip.select_df1"); err != nil {
		return Record{}, err
	}
	personal, err := s.readFile(ctx, filePersonal, FilePersonal)
	if err != nil {
		return Record{}, err
	}

	rec := Record{Files: []File{
		{Name: FileCommon, Marker: MarkerCommon, Data: common},
		{Name: FileCardKind, Marker: MarkerCardKind, Data: kind},
		{Name: FilePersonal, Marker: MarkerPersonal, Data: personal},
	}}
	s.log.Debug("chip read complete",
		observability.Int(observability.MetricChipBytesRead, len(common)+len(kind)+len(personal)))
	return rec, nil
}

func (s *Sequencer) selectApplication(ctx context.Context, aid []byte, stage string) error {
	_, err := s.exchange(ctx, selectAIDAPDU(aid), stage)
	return err
}

func (s *Sequencer) verify(ctx context.Context, cardNumber string) error {
	_, err := s.exchange(ctx, verifyAPDU([]byte(cardNumber)), "chip.verify")
	return err
}

func (s *Sequencer) selectFile(ctx context.Context, fileID []byte, name string) error {
	_, err := s.exchange(ctx, selectEFAPDU(fileID), "chip.select "+name)
	return err
}

// readFile selects an EF and reads it in bounded chunks, advancing the
// offset until the chip returns a short chunk, an end-of-file status, or a
// wrong-length status that is retried once with the chip-declared length.
func (s *Sequencer) readFile(ctx context.Context, fileID []byte, name string) ([]byte, error) {
	if err := s.selectFile(ctx, fileID, name); err != nil {
		return nil, err
	}

	var out []byte
	offset := 0
	for {
		requested := byte(maxReadChunk)
		data, sw, err := s.readChunk(ctx, offset, requested, name)
		if err != nil {
			return nil, err
		}
		if sw.wrongLength() {
			// One corrective retry with the length the chip declared.
			requested = sw.info()
			if requested == 0 {
				break
			}
			data, sw, err = s.readChunk(ctx, offset, requested, name)
			if err != nil {
				return nil, err
			}
			if sw != swOK && !sw.endOfFile() {
				return nil, classify(sw, "chip.read "+name)
			}
		}
		out = append(out, data...)
		offset += len(data)
		if sw.endOfFile() || len(data) < int(requested) {
			break
		}
		if sw != swOK {
			return nil, classify(sw, "chip.read "+name)
		}
	}
	if len(out) == 0 {
		return nil, scanerr.Wrap(scanerr.KindReadFailed, "chip.read "+name,
			fmt.Errorf("file is empty"))
	}
	return out, nil
}

func (s *Sequencer) readChunk(ctx context.Context, offset int, le byte, name string) ([]byte, statusWord, error) {
	resp, err := s.conn.Transceive(ctx, readBinaryAPDU(offset, le))
	if err != nil {
		return nil, 0, scanerr.Wrap(scanerr.KindReadFailed, "chip.read "+name, err)
	}
	data, sw, err := splitResponse(resp)
	if err != nil {
		return nil, 0, err
	}
	if sw != swOK && !sw.endOfFile() && !sw.wrongLength() {
		return nil, 0, classify(sw, "chip.read "+name)
	}
	return data, sw, nil
}

// exchange sends one command and requires a 0x9000 status.
func (s *Sequencer) exchange(ctx context.Context, apdu []byte, stage string) ([]byte, error) {
	resp, err := s.conn.Transceive(ctx, apdu)
	if err != nil {
		return nil, scanerr.Wrap(scanerr.KindReadFailed, stage, err)
	}
	data, sw, err := splitResponse(resp)
	if err != nil {
		return nil, err
	}
	if sw != swOK {
		return nil, classify(sw, stage)
	}
	return data, nil
}
