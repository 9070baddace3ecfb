// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/broadcastwav/wavcapture/audio"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Prints header of captured wav files and checks it against file content.
// wavinfo wavs/20241222_103015/app.wav wavs/20241222_103015/mic.wav

func main() {
	decode := flag.Bool("decode", true, "Decode samples and report peak")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.StampMicro,
	}).With().Timestamp().Logger().Level(zerolog.InfoLevel)

	if flag.NArg() == 0 {
		fmt.Fprintln(os.Stderr, "usage: wavinfo [-decode=false] file.wav...")
		os.Exit(2)
	}

	var failed bool
	for _, path := range flag.Args() {
		if err := inspect(os.Stdout, path, *decode); err != nil {
			log.Error().Err(err).Str("path", path).Msg("Failed to inspect")
			failed = true
		}
	}
	if failed {
		os.Exit(1)
	}
}

func inspect(w io.Writer, path string, decode bool) error {
	info, err := audio.InspectWavFile(path)
	if errors.Is(err, audio.ErrFormat) {
		// Not canonical 44 byte layout, walk chunks instead
		return inspectChunks(w, path, decode)
	}
	if err != nil {
		return err
	}

	h := info.Header
	printHeader(w, path, h)
	fmt.Fprintf(w, "  data size: %d declared, %d actual\n", h.Data.DataSize, info.ActualDataSize)
	fmt.Fprintf(w, "  duration:  %s\n", h.Duration())

	switch {
	case info.Placeholder():
		fmt.Fprintf(w, "  WARNING: header was never finalized\n")
	case info.SizeMismatch():
		fmt.Fprintf(w, "  WARNING: declared data size differs from file\n")
	}

	if !decode {
		return nil
	}

	samples, rate, err := audio.DecodeWavFile(path)
	if err != nil {
		var ferr *audio.FormatError
		if errors.As(err, &ferr) {
			return err
		}
		return fmt.Errorf("decode samples: %w", err)
	}
	printSamples(w, samples, rate, 1)
	return nil
}

// inspectChunks reports files with extra chunks (LIST, fact) or other
// formats that canonical header parsing rejects
func inspectChunks(w io.Writer, path string, decode bool) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	r := audio.NewWavReader(f)
	if err := r.ReadHeaders(); err != nil {
		return err
	}

	h := r.Header()
	printHeader(w, path, h)
	fmt.Fprintf(w, "  data size: %d declared\n", h.Data.DataSize)
	fmt.Fprintf(w, "  duration:  %s\n", h.Duration())
	fmt.Fprintf(w, "  chunks:    skipped %s\n", strings.Join(r.Skipped, " "))

	if !decode {
		return nil
	}
	if h.Fmt.AudioFormat != 1 || h.Fmt.BitsPerSample != 16 {
		fmt.Fprintf(w, "  samples:   not 16 bit PCM, not decoded\n")
		return nil
	}

	pcm, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("read samples: %w", err)
	}
	printSamples(w, audio.Int16sFromBytes(nil, pcm), h.Fmt.SampleRate, int(h.Fmt.NumChannels))
	return nil
}

func printHeader(w io.Writer, path string, h audio.WavHeader) {
	fmt.Fprintf(w, "%s\n", path)
	fmt.Fprintf(w, "  format:    pcm=%d channels=%d bits=%d\n", h.Fmt.AudioFormat, h.Fmt.NumChannels, h.Fmt.BitsPerSample)
	fmt.Fprintf(w, "  rate:      %d Hz (%d B/s)\n", h.Fmt.SampleRate, h.Fmt.ByteRate)
	fmt.Fprintf(w, "  riff size: %d\n", h.Riff.FileSize)
}

func printSamples(w io.Writer, samples []int16, rate uint32, channels int) {
	var peak int
	for _, s := range samples {
		v := int(s)
		if v < 0 {
			v = -v
		}
		peak = max(peak, v)
	}

	var dur time.Duration
	if rate > 0 && channels > 0 {
		frames := len(samples) / channels
		dur = time.Duration(frames) * time.Second / time.Duration(rate)
	}
	fmt.Fprintf(w, "  samples:   %d (%s) peak=%d\n", len(samples), dur, peak)
}
