// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package main

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/broadcastwav/wavcapture/audio"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestWav(t *testing.T, finalize bool) string {
	path := filepath.Join(t.TempDir(), "app.wav")
	f, err := audio.OpenWavFile(path, 8000)
	require.NoError(t, err)

	_, err = f.Write(audio.Int16sToBytes(nil, []int16{0, 1000, -3000, 200}))
	require.NoError(t, err)
	if finalize {
		require.NoError(t, f.Finalize())
	}
	require.NoError(t, f.Close())
	return path
}

func TestInspectFinalized(t *testing.T) {
	path := writeTestWav(t, true)

	buf := &bytes.Buffer{}
	require.NoError(t, inspect(buf, path, true))
	out := buf.String()
	assert.Contains(t, out, "rate:      8000 Hz (16000 B/s)")
	assert.Contains(t, out, "data size: 8 declared, 8 actual")
	assert.Contains(t, out, "samples:   4 (500µs) peak=3000")
	assert.NotContains(t, out, "WARNING")
}

func TestInspectPlaceholder(t *testing.T) {
	path := writeTestWav(t, false)

	buf := &bytes.Buffer{}
	require.NoError(t, inspect(buf, path, false))
	assert.Contains(t, buf.String(), "data size: 0 declared, 8 actual")
	assert.Contains(t, buf.String(), "WARNING: header was never finalized")
}

func TestInspectNotWav(t *testing.T) {
	err := inspect(&bytes.Buffer{}, filepath.Join(t.TempDir(), "missing.wav"), true)
	assert.ErrorIs(t, err, audio.ErrIO)
}

func TestInspectExtraChunks(t *testing.T) {
	samples := audio.Int16sToBytes(nil, []int16{100, -2500})
	canonical := audio.NewWavHeader(16000, uint32(len(samples))).Bytes()

	// fmt chunk ends at 36, LIST goes between fmt and data
	list := []byte("LIST\x04\x00\x00\x00INFO")
	data := append([]byte{}, canonical[:36]...)
	data = append(data, list...)
	data = append(data, canonical[36:]...)
	data = append(data, samples...)
	binary.LittleEndian.PutUint32(data[4:8], uint32(len(data)-8))

	path := filepath.Join(t.TempDir(), "tagged.wav")
	require.NoError(t, os.WriteFile(path, data, 0644))

	buf := &bytes.Buffer{}
	require.NoError(t, inspect(buf, path, true))
	out := buf.String()
	assert.Contains(t, out, "rate:      16000 Hz (32000 B/s)")
	assert.Contains(t, out, "data size: 4 declared")
	assert.Contains(t, out, "chunks:    skipped LIST")
	assert.Contains(t, out, "samples:   2 (125µs) peak=2500")
}

func TestInspectGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "noise.wav")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0x42}, 64), 0644))

	err := inspect(&bytes.Buffer{}, path, true)
	assert.ErrorIs(t, err, audio.ErrFormat)
}
