package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

const (
	oggPageHeaderLen = 27
	oggMaxPacketLen  = 1 << 20
)

var oggCapture = []byte("OggS")

// oggReader splits an Ogg bitstream into logical packets. Only the first
// logical stream is read; chained or multiplexed streams are ignored.
// Page CRCs are not verified.
type oggReader struct {
	r       io.Reader
	serial  uint32
	started bool
	pending [][]byte
	partial []byte
	eos     bool
}

func newOggReader(r io.Reader) *oggReader {
	return &oggReader{r: r}
}

// NextPacket returns the next complete packet, or io.EOF once the stream ends.
func (o *oggReader) NextPacket() ([]byte, error) {
	for len(o.pending) == 0 {
		if o.eos {
			return nil, io.EOF
		}
		if err := o.readPage(); err != nil {
			return nil, err
		}
	}
	pkt := o.pending[0]
	o.pending = o.pending[1:]
	return pkt, nil
}

func (o *oggReader) readPage() error {
	header := make([]byte, oggPageHeaderLen)
	if _, err := io.ReadFull(o.r, header); err != nil {
		if errors.Is(err, io.EOF) && o.started {
			o.eos = true
			return nil
		}
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return fmt.Errorf("truncated ogg page header: %w", io.ErrUnexpectedEOF)
		}
		return err
	}
	if !bytes.Equal(header[:4], oggCapture) {
		return errors.New("missing OggS capture pattern")
	}
	if header[4] != 0 {
		return fmt.Errorf("unsupported ogg version %d", header[4])
	}

	headerType := header[5]
	serial := binary.LittleEndian.Uint32(header[14:18])
	segCount := int(header[26])

	lacing := make([]byte, segCount)
	if _, err := io.ReadFull(o.r, lacing); err != nil {
		return fmt.Errorf("truncated ogg segment table: %w", io.ErrUnexpectedEOF)
	}
	bodyLen := 0
	for _, l := range lacing {
		bodyLen += int(l)
	}
	body := make([]byte, bodyLen)
	if _, err := io.ReadFull(o.r, body); err != nil {
		return fmt.Errorf("truncated ogg page body: %w", io.ErrUnexpectedEOF)
	}

	if !o.started {
		o.started = true
		o.serial = serial
	} else if serial != o.serial {
		return nil
	}

	offset := 0
	for _, l := range lacing {
		o.partial = append(o.partial, body[offset:offset+int(l)]...)
		offset += int(l)
		if len(o.partial) > oggMaxPacketLen {
			return errors.New("ogg packet too large")
		}
		if l < 255 {
			o.pending = append(o.pending, o.partial)
			o.partial = nil
		}
	}

	if headerType&0x04 != 0 {
		o.eos = true
	}
	return nil
}
