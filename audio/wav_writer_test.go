// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/go-audio/riff"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWavFileFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	w, err := OpenWavFile(path, 44100)
	require.NoError(t, err)
	assert.EqualValues(t, 44, w.Offset())

	require.NoError(t, w.Append(make([]byte, 200))) // 100 zero samples
	assert.EqualValues(t, 244, w.Offset())
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Len(t, data, 244)
	assert.EqualValues(t, 236, binary.LittleEndian.Uint32(data[4:8]))
	assert.EqualValues(t, 200, binary.LittleEndian.Uint32(data[40:44]))
}

func TestWavFileRoundTrip(t *testing.T) {
	for _, n := range []int{0, 1, 16, 1024} {
		path := filepath.Join(t.TempDir(), "rec", "nested", "audio.wav")
		w, err := OpenWavFile(path, 48000)
		require.NoError(t, err)

		samples := make([]int16, n)
		for i := range samples {
			samples[i] = int16(i*37 - 500)
		}
		// Append in uneven bursts
		raw := Int16sToBytes(nil, samples)
		for len(raw) > 0 {
			k := min(len(raw), 70)
			require.NoError(t, w.Append(raw[:k]))
			raw = raw[k:]
		}
		assert.EqualValues(t, 44+2*n, w.Offset())
		assert.EqualValues(t, 2*n, w.DataSize())

		require.NoError(t, w.Finalize())
		// Finalizing twice gives same header
		require.NoError(t, w.Finalize())
		require.NoError(t, w.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		h, err := ParseHeader(data)
		require.NoError(t, err)
		assert.EqualValues(t, 2*n, h.Data.DataSize)
		assert.EqualValues(t, 36+2*n, h.Riff.FileSize)
		assert.Equal(t, Int16sToBytes(nil, samples), data[44:])
	}
}

func TestWavFilePlaceholderWithoutFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "crash.wav")
	w, err := OpenWavFile(path, 16000)
	require.NoError(t, err)
	require.NoError(t, w.Append(bytes.Repeat([]byte{1, 2}, 50)))
	require.NoError(t, w.Close())

	info, err := InspectWavFile(path)
	require.NoError(t, err)
	assert.EqualValues(t, 0, info.Header.Data.DataSize)
	assert.EqualValues(t, 36, info.Header.Riff.FileSize)
	assert.EqualValues(t, 100, info.ActualDataSize)
	assert.True(t, info.Placeholder())
	assert.True(t, info.SizeMismatch())
}

func TestWavFileAppendAfterFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "b.wav")
	w, err := OpenWavFile(path, 8000)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(make([]byte, 10)))
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Append(make([]byte, 6)))
	require.NoError(t, w.Finalize())

	info, err := InspectWavFile(path)
	require.NoError(t, err)
	assert.EqualValues(t, 16, info.Header.Data.DataSize)
	assert.False(t, info.SizeMismatch())
}

func TestOpenWavFileError(t *testing.T) {
	dir := t.TempDir()
	// Parent path is a file, so mkdir must fail
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0644))

	_, err := OpenWavFile(filepath.Join(blocker, "a.wav"), 44100)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrIO)

	var ioErr *IOError
	require.ErrorAs(t, err, &ioErr)
	assert.Equal(t, "mkdir", ioErr.Op)
}

func TestWavWriterRiffParser(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "riff.wav"))
	require.NoError(t, err)
	defer f.Close()

	w := NewWavWriter(f, 8000)
	n, err := w.Write(bytes.Repeat([]byte{1}, 100))
	require.NoError(t, err)
	require.Equal(t, 100, n)
	require.NoError(t, w.Finalize())

	f.Seek(0, 0)

	p := riff.New(f)
	err = p.ParseHeaders()
	require.NoError(t, err)

	for {
		chunk, err := p.NextChunk()
		require.NoError(t, err)

		if chunk.ID != riff.FmtID {
			chunk.Drain()
			continue
		}
		err = chunk.DecodeWavHeader(p)
		require.NoError(t, err)
		break
	}

	assert.EqualValues(t, 8000, p.SampleRate)
	assert.EqualValues(t, 1, p.NumChannels)
	assert.EqualValues(t, 100, w.DataSize())
}

func TestWavReaderRecordedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "read.wav")
	w, err := OpenWavFile(path, 22050)
	require.NoError(t, err)
	pcm := Int16sToBytes(nil, []int16{1, -1, 300, -300})
	require.NoError(t, w.Append(pcm))
	require.NoError(t, w.Finalize())
	require.NoError(t, w.Close())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	r := NewWavReader(f)
	require.NoError(t, r.ReadHeaders())
	assert.Equal(t, NewWavHeader(22050, 8), r.Header())

	buf := make([]byte, 64)
	n, err := r.Read(buf)
	require.NoError(t, err)
	assert.Equal(t, pcm, buf[:n])
}

var errDisk = errors.New("disk hiccup")

// memWriteSeeker is in memory file that fails chosen operations once
type memWriteSeeker struct {
	buf []byte
	pos int64

	failWriteAt map[int64]bool
	failSeekTo  map[int64]bool
	shortWrite  bool
}

func newMemWriteSeeker() *memWriteSeeker {
	return &memWriteSeeker{
		failWriteAt: map[int64]bool{},
		failSeekTo:  map[int64]bool{},
	}
}

func (m *memWriteSeeker) Write(p []byte) (int, error) {
	if m.failWriteAt[m.pos] {
		delete(m.failWriteAt, m.pos)
		return 0, errDisk
	}
	if m.shortWrite {
		m.shortWrite = false
		p = p[:len(p)/2]
	}
	end := m.pos + int64(len(p))
	if end > int64(len(m.buf)) {
		m.buf = append(m.buf, make([]byte, end-int64(len(m.buf)))...)
	}
	copy(m.buf[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *memWriteSeeker) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekCurrent:
		offset += m.pos
	case io.SeekEnd:
		offset += int64(len(m.buf))
	}
	if m.failSeekTo[offset] {
		delete(m.failSeekTo, offset)
		return m.pos, errDisk
	}
	m.pos = offset
	return offset, nil
}

func TestWavWriterFinalizeFailureKeepsAppendOrder(t *testing.T) {
	tests := []struct {
		name  string
		setup func(m *memWriteSeeker)
		op    string
	}{
		{"patch data size", func(m *memWriteSeeker) { m.failWriteAt[WavDataSizeOffset] = true }, "patch data size"},
		{"patch file size", func(m *memWriteSeeker) { m.failWriteAt[WavFileSizeOffset] = true }, "patch file size"},
		{"seek to data size", func(m *memWriteSeeker) { m.failSeekTo[WavDataSizeOffset] = true }, "patch data size"},
		{"seek back to end", func(m *memWriteSeeker) { m.failSeekTo[48] = true }, "seek"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMemWriteSeeker()
			w := NewWavWriter(m, 8000)
			require.NoError(t, w.Append([]byte{1, 2, 3, 4}))

			tt.setup(m)
			err := w.Finalize()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrIO)
			assert.ErrorIs(t, err, errDisk)
			var ioErr *IOError
			require.ErrorAs(t, err, &ioErr)
			assert.Equal(t, tt.op, ioErr.Op)

			// Audio after failed finalize goes to end, header stays intact
			require.NoError(t, w.Append([]byte{9, 9, 9, 9}))
			assert.EqualValues(t, 52, w.Offset())
			require.Len(t, m.buf, 52)
			assert.Equal(t, []byte{1, 2, 3, 4, 9, 9, 9, 9}, m.buf[WavHeaderSize:])
			assert.Equal(t, []byte("data"), m.buf[36:40])

			require.NoError(t, w.Finalize())
			h, err := ParseHeader(m.buf)
			require.NoError(t, err)
			assert.EqualValues(t, 8, h.Data.DataSize)
			assert.EqualValues(t, 44, h.Riff.FileSize)
		})
	}
}

func TestWavWriterWriteFailures(t *testing.T) {
	t.Run("header", func(t *testing.T) {
		m := newMemWriteSeeker()
		m.failWriteAt[0] = true
		w := NewWavWriter(m, 8000)

		err := w.Append([]byte{1, 2})
		var ioErr *IOError
		require.ErrorAs(t, err, &ioErr)
		assert.Equal(t, "write header", ioErr.Op)
		assert.EqualValues(t, 0, w.Offset())

		require.NoError(t, w.Append([]byte{1, 2}))
		assert.EqualValues(t, 46, w.Offset())
		assert.Len(t, m.buf, 46)
	})

	t.Run("short append", func(t *testing.T) {
		m := newMemWriteSeeker()
		w := NewWavWriter(m, 8000)
		require.NoError(t, w.WriteHeader())

		m.shortWrite = true
		n, err := w.Write([]byte{1, 2, 3, 4})
		assert.Equal(t, 2, n)
		assert.ErrorIs(t, err, ErrIO)
		assert.ErrorIs(t, err, io.ErrShortWrite)
		var ioErr *IOError
		require.ErrorAs(t, err, &ioErr)
		assert.Equal(t, "append", ioErr.Op)

		// Offset follows what really reached the file
		assert.EqualValues(t, 46, w.Offset())
		require.NoError(t, w.Append([]byte{5, 6}))
		require.NoError(t, w.Finalize())
		assert.Equal(t, []byte{1, 2, 5, 6}, m.buf[WavHeaderSize:])
		h, err := ParseHeader(m.buf)
		require.NoError(t, err)
		assert.EqualValues(t, 4, h.Data.DataSize)
	})
}
