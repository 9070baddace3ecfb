// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audio

import (
	"fmt"
	"io"
	"os"

	"github.com/go-audio/wav"
)

func NewWavDecoder(r io.ReadSeeker) *wav.Decoder {
	dec := wav.NewDecoder(r)
	return dec
}

// DecodeWavFile reads samples of finalized mono 16 bit file.
// Samples are limited by declared data size, so file never finalized gives none.
func DecodeWavFile(path string) ([]int16, uint32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	dec := NewWavDecoder(f)
	if !dec.IsValidFile() {
		return nil, 0, &FormatError{Kind: BadRiffMagic, Detail: "not a valid wav file"}
	}
	if dec.BitDepth != wavBitsPerSample || dec.NumChans != wavNumChannels {
		return nil, 0, &FormatError{Kind: BadFmtChunk, Detail: fmt.Sprintf("channels=%d bits=%d", dec.NumChans, dec.BitDepth)}
	}

	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, 0, fmt.Errorf("decode %s: %w", path, err)
	}

	samples := make([]int16, len(buf.Data))
	for i, s := range buf.Data {
		samples[i] = int16(s)
	}
	return samples, dec.SampleRate, nil
}

// WavFileInfo compares what header declares with what file holds
type WavFileInfo struct {
	Header         WavHeader
	FileSize       int64
	ActualDataSize int64
}

// Placeholder reports file whose writer was never finalized:
// header still says dataSize=0 while audio follows it.
func (i WavFileInfo) Placeholder() bool {
	return i.Header.Data.DataSize == 0 && i.ActualDataSize > 0
}

// SizeMismatch reports any difference between declared and actual data size
func (i WavFileInfo) SizeMismatch() bool {
	return int64(i.Header.Data.DataSize) != i.ActualDataSize
}

// InspectWavFile parses header of file and compares it with file size
func InspectWavFile(path string) (WavFileInfo, error) {
	var info WavFileInfo
	f, err := os.Open(path)
	if err != nil {
		return info, &IOError{Op: "open", Path: path, Err: err}
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return info, &IOError{Op: "stat", Path: path, Err: err}
	}

	buf := make([]byte, WavHeaderSize)
	n, err := io.ReadFull(f, buf)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return info, &IOError{Op: "read header", Path: path, Err: err}
	}

	h, err := ParseHeader(buf[:n])
	if err != nil {
		return info, err
	}
	info.Header = h
	info.FileSize = st.Size()
	info.ActualDataSize = st.Size() - WavHeaderSize
	return info, nil
}
