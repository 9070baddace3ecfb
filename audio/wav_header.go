// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audio

import (
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// WAV header constants for mono 16 bit linear PCM
const (
	WavHeaderSize = 44

	wavFmtChunkSize  = 16
	wavFormatPCM     = 1
	wavNumChannels   = 1
	wavBitsPerSample = 16
	wavBlockAlign    = wavNumChannels * wavBitsPerSample / 8

	// Offsets of the size fields patched on finalize.
	// They hold only while header stays fixed 44 bytes (mono, 16 bit).
	WavFileSizeOffset = 4
	WavDataSizeOffset = 40
)

var (
	ErrFormat = errors.New("wav: format error")
)

type FormatErrorKind int

const (
	TooShort FormatErrorKind = iota + 1
	BadRiffMagic
	BadWaveMagic
	BadFmtChunk
	BadDataChunk
)

func (k FormatErrorKind) String() string {
	switch k {
	case TooShort:
		return "too short"
	case BadRiffMagic:
		return "bad RIFF magic"
	case BadWaveMagic:
		return "bad WAVE magic"
	case BadFmtChunk:
		return "bad fmt chunk"
	case BadDataChunk:
		return "bad data chunk"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// FormatError is returned when header does not match canonical 44 byte layout
type FormatError struct {
	Kind   FormatErrorKind
	Detail string
}

func (e *FormatError) Error() string {
	if e.Detail == "" {
		return "wav: " + e.Kind.String()
	}
	return "wav: " + e.Kind.String() + ": " + e.Detail
}

func (e *FormatError) Is(target error) bool {
	return target == ErrFormat
}

// RiffChunk marks file as RIFF/WAVE
type RiffChunk struct {
	FileSize uint32 // total file size - 8
}

type FmtChunk struct {
	ChunkSize     uint32
	AudioFormat   uint16
	NumChannels   uint16
	SampleRate    uint32
	ByteRate      uint32
	BlockAlign    uint16
	BitsPerSample uint16
}

type DataChunk struct {
	DataSize uint32
}

// WavHeader describes mono, 16 bit, linear PCM WAV file.
// Value is immutable, size fields are recomputed with WithDataSize.
type WavHeader struct {
	Riff RiffChunk
	Fmt  FmtChunk
	Data DataChunk
}

// NewWavHeader builds header with all derived fields computed
func NewWavHeader(sampleRate uint32, dataSize uint32) WavHeader {
	return WavHeader{
		Riff: RiffChunk{FileSize: WavHeaderSize - 8 + dataSize},
		Fmt: FmtChunk{
			ChunkSize:     wavFmtChunkSize,
			AudioFormat:   wavFormatPCM,
			NumChannels:   wavNumChannels,
			SampleRate:    sampleRate,
			ByteRate:      sampleRate * wavNumChannels * wavBitsPerSample / 8,
			BlockAlign:    wavBlockAlign,
			BitsPerSample: wavBitsPerSample,
		},
		Data: DataChunk{DataSize: dataSize},
	}
}

// WithDataSize returns copy of header with fileSize and dataSize recomputed
func (h WavHeader) WithDataSize(dataSize uint32) WavHeader {
	h.Data.DataSize = dataSize
	h.Riff.FileSize = WavHeaderSize - 8 + dataSize
	return h
}

// Duration of audio declared by header
func (h WavHeader) Duration() time.Duration {
	if h.Fmt.ByteRate == 0 {
		return 0
	}
	return time.Duration(float64(h.Data.DataSize) / float64(h.Fmt.ByteRate) * float64(time.Second))
}

func (h WavHeader) String() string {
	return fmt.Sprintf("rate=%d channels=%d bits=%d fileSize=%d dataSize=%d",
		h.Fmt.SampleRate, h.Fmt.NumChannels, h.Fmt.BitsPerSample, h.Riff.FileSize, h.Data.DataSize)
}

// Bytes encodes header. All fields are little endian
func (h WavHeader) Bytes() [WavHeaderSize]byte {
	var header [WavHeaderSize]byte
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], h.Riff.FileSize)
	copy(header[8:12], "WAVE")

	// fmt subchunk
	copy(header[12:16], "fmt ")
	binary.LittleEndian.PutUint32(header[16:20], h.Fmt.ChunkSize)
	binary.LittleEndian.PutUint16(header[20:22], h.Fmt.AudioFormat)
	binary.LittleEndian.PutUint16(header[22:24], h.Fmt.NumChannels)
	binary.LittleEndian.PutUint32(header[24:28], h.Fmt.SampleRate)
	binary.LittleEndian.PutUint32(header[28:32], h.Fmt.ByteRate)
	binary.LittleEndian.PutUint16(header[32:34], h.Fmt.BlockAlign)
	binary.LittleEndian.PutUint16(header[34:36], h.Fmt.BitsPerSample)

	// data chunk
	copy(header[36:40], "data")
	binary.LittleEndian.PutUint32(header[40:44], h.Data.DataSize)
	return header
}

// EmptyHeaderBytes is placeholder header written before any audio is known
func EmptyHeaderBytes(sampleRate uint32) [WavHeaderSize]byte {
	return NewWavHeader(sampleRate, 0).Bytes()
}

// ParseHeader decodes canonical 44 byte header. Chunks are not skipped,
// first failing check decides error kind.
func ParseHeader(b []byte) (WavHeader, error) {
	var h WavHeader
	if len(b) < WavHeaderSize {
		return h, &FormatError{Kind: TooShort, Detail: fmt.Sprintf("need %d bytes, got %d", WavHeaderSize, len(b))}
	}
	if string(b[0:4]) != "RIFF" {
		return h, &FormatError{Kind: BadRiffMagic}
	}
	if string(b[8:12]) != "WAVE" {
		return h, &FormatError{Kind: BadWaveMagic}
	}
	if string(b[12:16]) != "fmt " {
		return h, &FormatError{Kind: BadFmtChunk, Detail: "missing fmt magic"}
	}

	h.Riff.FileSize = binary.LittleEndian.Uint32(b[4:8])
	h.Fmt = FmtChunk{
		ChunkSize:     binary.LittleEndian.Uint32(b[16:20]),
		AudioFormat:   binary.LittleEndian.Uint16(b[20:22]),
		NumChannels:   binary.LittleEndian.Uint16(b[22:24]),
		SampleRate:    binary.LittleEndian.Uint32(b[24:28]),
		ByteRate:      binary.LittleEndian.Uint32(b[28:32]),
		BlockAlign:    binary.LittleEndian.Uint16(b[32:34]),
		BitsPerSample: binary.LittleEndian.Uint16(b[34:36]),
	}
	if h.Fmt.ChunkSize != wavFmtChunkSize {
		return WavHeader{}, &FormatError{Kind: BadFmtChunk, Detail: fmt.Sprintf("chunk size %d", h.Fmt.ChunkSize)}
	}
	if h.Fmt.AudioFormat != wavFormatPCM {
		return WavHeader{}, &FormatError{Kind: BadFmtChunk, Detail: fmt.Sprintf("audio format %d", h.Fmt.AudioFormat)}
	}
	if string(b[36:40]) != "data" {
		return WavHeader{}, &FormatError{Kind: BadDataChunk}
	}
	h.Data.DataSize = binary.LittleEndian.Uint32(b[40:44])
	return h, nil
}

// SizePatch holds encoded size fields and where they go in existing file
type SizePatch struct {
	FileSize [4]byte // at WavFileSizeOffset
	DataSize [4]byte // at WavDataSizeOffset
}

// PatchSizeFields encodes two size fields. No other header byte changes.
func PatchSizeFields(fileSize uint32, dataSize uint32) SizePatch {
	var p SizePatch
	binary.LittleEndian.PutUint32(p.FileSize[:], fileSize)
	binary.LittleEndian.PutUint32(p.DataSize[:], dataSize)
	return p
}
