// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package audio

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
)

var (
	ErrIO = errors.New("wav: io error")

	errWavSizeOverflow = errors.New("data exceeds 4GiB wav limit")
)

// IOError wraps any filesystem failure on create, append or patch
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("wav: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("wav: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error {
	return e.Err
}

func (e *IOError) Is(target error) bool {
	return target == ErrIO
}

// WavWriter streams mono 16 bit PCM into WAV container.
// Placeholder header is written once, audio is only appended and
// size fields are patched on Finalize.
// It is not safe for concurrent use.
type WavWriter struct {
	SampleRate uint32

	W    io.WriteSeeker
	name string // used for errors only

	headersWritten bool
	offset         int64
	// cursor may be away from offset after patching header
	cursorMoved bool
}

func NewWavWriter(w io.WriteSeeker, sampleRate uint32) *WavWriter {
	return &WavWriter{
		SampleRate: sampleRate,
		W:          w,
	}
}

// WriteHeader writes placeholder header at start of stream
func (ww *WavWriter) WriteHeader() error {
	if ww.headersWritten {
		return nil
	}
	if _, err := ww.W.Seek(0, io.SeekStart); err != nil {
		return ww.ioErr("seek", err)
	}
	header := EmptyHeaderBytes(ww.SampleRate)
	if err := ww.writeFull(header[:]); err != nil {
		return ww.ioErr("write header", err)
	}
	ww.headersWritten = true
	ww.offset = WavHeaderSize
	return nil
}

// Write implements io.Writer. Header is written on first call if missing
func (ww *WavWriter) Write(audio []byte) (int, error) {
	if err := ww.WriteHeader(); err != nil {
		return 0, err
	}
	if err := ww.seekEnd(); err != nil {
		return 0, err
	}

	n, err := ww.W.Write(audio)
	ww.offset += int64(n)
	if err != nil {
		return n, ww.ioErr("append", err)
	}
	if n < len(audio) {
		return n, ww.ioErr("append", io.ErrShortWrite)
	}
	return n, nil
}

// Append writes all bytes at end of file
func (ww *WavWriter) Append(audio []byte) error {
	_, err := ww.Write(audio)
	return err
}

// Offset is current end of file
func (ww *WavWriter) Offset() int64 {
	return ww.offset
}

// DataSize is number of audio bytes appended so far
func (ww *WavWriter) DataSize() int64 {
	if ww.offset < WavHeaderSize {
		return 0
	}
	return ww.offset - WavHeaderSize
}

// Finalize patches fileSize and dataSize fields with current offset.
// Cursor is returned to end of audio on every path, so failed Finalize can be
// retried and appending after it continues at end of file.
func (ww *WavWriter) Finalize() error {
	if err := ww.WriteHeader(); err != nil {
		return err
	}

	dataSize := ww.offset - WavHeaderSize
	fileSize := ww.offset - 8
	if fileSize > math.MaxUint32 {
		return ww.ioErr("finalize", errWavSizeOverflow)
	}

	ww.cursorMoved = true
	errPatch := ww.patch(PatchSizeFields(uint32(fileSize), uint32(dataSize)))
	if err := ww.seekEnd(); err != nil {
		return errors.Join(errPatch, err)
	}
	return errPatch
}

func (ww *WavWriter) patch(p SizePatch) error {
	if err := ww.writeAt(WavFileSizeOffset, p.FileSize[:]); err != nil {
		return ww.ioErr("patch file size", err)
	}
	if err := ww.writeAt(WavDataSizeOffset, p.DataSize[:]); err != nil {
		return ww.ioErr("patch data size", err)
	}
	return nil
}

func (ww *WavWriter) seekEnd() error {
	if !ww.cursorMoved {
		return nil
	}
	if _, err := ww.W.Seek(ww.offset, io.SeekStart); err != nil {
		return ww.ioErr("seek", err)
	}
	ww.cursorMoved = false
	return nil
}

func (ww *WavWriter) writeAt(off int64, b []byte) error {
	if _, err := ww.W.Seek(off, io.SeekStart); err != nil {
		return err
	}
	return ww.writeFull(b)
}

func (ww *WavWriter) writeFull(b []byte) error {
	n, err := ww.W.Write(b)
	if err != nil {
		return err
	}
	if n < len(b) {
		return io.ErrShortWrite
	}
	return nil
}

func (ww *WavWriter) ioErr(op string, err error) error {
	return &IOError{Op: op, Path: ww.name, Err: err}
}

// WavFile is WavWriter owning file on disk.
// If process stops before Finalize, file keeps placeholder header (dataSize=0)
// while audio past byte 44 is still there. Readers trusting header will
// under report duration.
type WavFile struct {
	WavWriter
	f *os.File
}

// OpenWavFile creates parent directories, creates or truncates file and writes
// placeholder header. Nothing is retried.
func OpenWavFile(path string, sampleRate uint32) (*WavFile, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, &IOError{Op: "mkdir", Path: path, Err: err}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_TRUNC, 0644)
	if err != nil {
		return nil, &IOError{Op: "create", Path: path, Err: err}
	}

	wf := &WavFile{
		WavWriter: WavWriter{
			SampleRate: sampleRate,
			W:          f,
			name:       path,
		},
		f: f,
	}
	if err := wf.WriteHeader(); err != nil {
		return nil, errors.Join(err, f.Close())
	}

	log.Debug().Str("caller", "wav").Str("path", path).Uint32("rate", sampleRate).Msg("Wav file opened")
	return wf, nil
}

func (wf *WavFile) Path() string {
	return wf.name
}

// Close releases file handle. It does not finalize.
func (wf *WavFile) Close() error {
	if err := wf.f.Close(); err != nil {
		return wf.ioErr("close", err)
	}
	return nil
}
