package ines

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildROM(prg, chr int, trainer bool) []byte {
	head := []byte{'N', 'E', 'S', 0x1a, byte(prg), byte(chr), 0, 0, 0, 0, 0, 0, 0, 0, 0, 0}
	if trainer {
		head[6] |= flagTrainer
	}
	rom := append([]byte(nil), head...)
	if trainer {
		rom = append(rom, bytes.Repeat([]byte{0x77}, TrainerSize)...)
	}
	rom = append(rom, bytes.Repeat([]byte{0xAA}, prg*PRGBankSize)...)
	for bank := 0; bank < chr; bank++ {
		rom = append(rom, bytes.Repeat([]byte{byte(0x10 + bank)}, CHRBankSize)...)
	}
	return rom
}

func TestParseHeader(t *testing.T) {
	h, err := ParseHeader(buildROM(2, 1, true))
	require.NoError(t, err)
	assert.Equal(t, 2, h.PRGBanks)
	assert.Equal(t, 1, h.CHRBanks)
	assert.True(t, h.HasTrainer)
	assert.Equal(t, int64(16+512+2*16384), h.CHROffset())
	assert.Equal(t, int64(8192), h.CHRSize())

	_, err = ParseHeader([]byte("NES"))
	assert.ErrorIs(t, err, ErrTruncated)

	_, err = ParseHeader(make([]byte, 16))
	assert.ErrorIs(t, err, ErrNotINES)
}

func TestParseHeaderMapper(t *testing.T) {
	rom := buildROM(1, 1, false)
	rom[6] |= 0x40
	rom[7] = 0x10
	h, err := ParseHeader(rom)
	require.NoError(t, err)
	assert.Equal(t, 0x14, h.Mapper)
}

func TestExtractCHR(t *testing.T) {
	tests := []struct {
		name    string
		prg     int
		chr     int
		trainer bool
	}{
		{"one bank", 1, 1, false},
		{"two banks", 2, 2, false},
		{"with trainer", 1, 1, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chr, h, err := ExtractCHR(bytes.NewReader(buildROM(tt.prg, tt.chr, tt.trainer)))
			require.NoError(t, err)
			assert.Equal(t, tt.chr, h.CHRBanks)
			require.Len(t, chr, tt.chr*CHRBankSize)
			assert.Equal(t, byte(0x10), chr[0])
			assert.Equal(t, byte(0x10+tt.chr-1), chr[len(chr)-1])
		})
	}
}

func TestExtractCHRErrors(t *testing.T) {
	_, _, err := ExtractCHR(bytes.NewReader(buildROM(1, 0, false)))
	assert.ErrorIs(t, err, ErrNoCHR)

	rom := buildROM(1, 1, false)
	_, _, err = ExtractCHR(bytes.NewReader(rom[:len(rom)-1]))
	assert.ErrorIs(t, err, ErrTruncated)

	_, _, err = ExtractCHR(bytes.NewReader(rom[:10]))
	assert.ErrorIs(t, err, ErrTruncated)

	_, _, err = ExtractCHR(bytes.NewReader([]byte("not a rom at all")))
	assert.ErrorIs(t, err, ErrNotINES)
}
