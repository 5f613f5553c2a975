// Package ines reads iNES ROM images.
package ines

import (
	"errors"
	"fmt"
	"io"
)

const (
	HeaderSize  = 16
	TrainerSize = 512
	PRGBankSize = 16 * 1024
	CHRBankSize = 8 * 1024

	flagTrainer = 0x04
)

var (
	ErrNotINES   = errors.New("not an iNES image")
	ErrNoCHR     = errors.New("image has no CHR-ROM (uses CHR-RAM)")
	ErrTruncated = errors.New("image is truncated")
)

var magic = [4]byte{'N', 'E', 'S', 0x1a}

type Header struct {
	PRGBanks   int
	CHRBanks   int
	HasTrainer bool
	Mapper     int
}

// CHROffset is where CHR-ROM starts in the file.
func (h Header) CHROffset() int64 {
	off := int64(HeaderSize) + int64(h.PRGBanks)*PRGBankSize
	if h.HasTrainer {
		off += TrainerSize
	}
	return off
}

func (h Header) CHRSize() int64 {
	return int64(h.CHRBanks) * CHRBankSize
}

func ParseHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, fmt.Errorf("%w: header is %d bytes", ErrTruncated, len(b))
	}
	if [4]byte(b[:4]) != magic {
		return Header{}, ErrNotINES
	}
	return Header{
		PRGBanks:   int(b[4]),
		CHRBanks:   int(b[5]),
		HasTrainer: b[6]&flagTrainer != 0,
		Mapper:     int(b[6]>>4) | int(b[7]&0xf0),
	}, nil
}

// ExtractCHR returns the CHR-ROM section of an image.
func ExtractCHR(r io.ReaderAt) ([]byte, Header, error) {
	head := make([]byte, HeaderSize)
	if n, err := r.ReadAt(head, 0); n < HeaderSize {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, Header{}, fmt.Errorf("%w: header is %d bytes", ErrTruncated, n)
		}
		return nil, Header{}, err
	}
	h, err := ParseHeader(head)
	if err != nil {
		return nil, h, err
	}
	if h.CHRBanks == 0 {
		return nil, h, ErrNoCHR
	}

	chr := make([]byte, h.CHRSize())
	n, err := r.ReadAt(chr, h.CHROffset())
	if int64(n) < h.CHRSize() {
		if err == nil || errors.Is(err, io.EOF) {
			return nil, h, fmt.Errorf("%w: want %d CHR bytes at offset %d, got %d", ErrTruncated, h.CHRSize(), h.CHROffset(), n)
		}
		return nil, h, err
	}
	return chr, h, nil
}
