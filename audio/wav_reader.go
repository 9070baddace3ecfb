// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audio

import (
	"fmt"
	"io"

	"github.com/go-audio/riff"
)

// WavReader walks RIFF chunks and stops at data chunk. Unlike ParseHeader it
// accepts files with extra chunks (LIST, fact) around fmt, so it is used for
// WAV files not written by WavWriter.
type WavReader struct {
	parser *riff.Parser
	data   *riff.Chunk
	left   int // unread bytes of data chunk
	fmtSet bool

	// Skipped holds IDs of chunks passed over before data chunk
	Skipped []string
}

func NewWavReader(r io.Reader) *WavReader {
	return &WavReader{parser: riff.New(r)}
}

// ReadHeaders parses RIFF header, fmt chunk and positions reader on data chunk.
// Missing fmt before data is reported as FormatError.
func (r *WavReader) ReadHeaders() error {
	if err := r.parser.ParseHeaders(); err != nil {
		return &FormatError{Kind: BadRiffMagic, Detail: err.Error()}
	}
	if r.parser.Format != riff.WavFormatID {
		return &FormatError{Kind: BadWaveMagic, Detail: fmt.Sprintf("format %q", r.parser.Format[:])}
	}

	for r.data == nil {
		chunk, err := r.parser.NextChunk()
		if err != nil {
			return &FormatError{Kind: BadDataChunk, Detail: err.Error()}
		}

		switch chunk.ID {
		case riff.FmtID:
			if err := chunk.DecodeWavHeader(r.parser); err != nil {
				return &FormatError{Kind: BadFmtChunk, Detail: err.Error()}
			}
			r.fmtSet = true
		case riff.DataFormatID:
			if !r.fmtSet {
				return &FormatError{Kind: BadFmtChunk, Detail: "data chunk before fmt"}
			}
			r.data = chunk
			r.left = chunk.Size
		default:
			r.Skipped = append(r.Skipped, string(chunk.ID[:]))
			chunk.Drain()
		}
	}
	return nil
}

// Header returns fields found by ReadHeaders as WavHeader
func (r *WavReader) Header() WavHeader {
	h := WavHeader{
		Riff: RiffChunk{FileSize: r.parser.Size},
		Fmt: FmtChunk{
			ChunkSize:     wavFmtChunkSize,
			AudioFormat:   r.parser.WavAudioFormat,
			NumChannels:   r.parser.NumChannels,
			SampleRate:    r.parser.SampleRate,
			ByteRate:      r.parser.AvgBytesPerSec,
			BlockAlign:    r.parser.BlockAlign,
			BitsPerSample: r.parser.BitsPerSample,
		},
	}
	if r.data != nil {
		h.Data.DataSize = uint32(r.data.Size)
	}
	return h
}

// Read returns PCM of data chunk, limited to declared data size
func (r *WavReader) Read(buf []byte) (int, error) {
	if r.data == nil {
		if err := r.ReadHeaders(); err != nil {
			return 0, err
		}
	}
	if r.left <= 0 {
		return 0, io.EOF
	}
	if len(buf) > r.left {
		buf = buf[:r.left]
	}
	n, err := r.data.Read(buf)
	r.left -= n
	return n, err
}
