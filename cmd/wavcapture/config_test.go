// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/broadcastwav/wavcapture/audio"
	"github.com/broadcastwav/wavcapture/media"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	path := filepath.Join(t.TempDir(), "wavcapture.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	conf, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "wavs", conf.OutputDir)
	assert.EqualValues(t, 48000, conf.TargetSampleRate)
	assert.Equal(t, 2, conf.InFlightBuffers)
	assert.Equal(t, "127.0.0.1:5005", conf.RTCPListen)
}

func TestLoadConfigFile(t *testing.T) {
	path := writeConfig(t, `
output_dir: /tmp/captures
target_sample_rate: 16000
in_flight_buffers: 3
rtp_listen: 0.0.0.0:6000
metrics_listen: :9100
payload_types:
  - pt: 97
    rate: 24000
    encoding: L16
`)
	conf, err := loadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/captures", conf.OutputDir)
	assert.EqualValues(t, 16000, conf.TargetSampleRate)
	assert.Equal(t, 3, conf.InFlightBuffers)
	assert.Equal(t, "0.0.0.0:6001", conf.RTCPListen)
	assert.Equal(t, ":9100", conf.MetricsListen)

	require.NoError(t, conf.registerCodecs())
	codec, err := media.CodecFromPayloadType(97)
	require.NoError(t, err)
	assert.EqualValues(t, 24000, codec.SampleRate)
	assert.Equal(t, audio.EncodingLinear16, codec.Encoding)
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("WAVCAPTURE_OUTPUT_DIR", "/var/wavs")
	t.Setenv("WAVCAPTURE_TARGET_RATE", "0")

	conf, err := loadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/var/wavs", conf.OutputDir)
	assert.EqualValues(t, 0, conf.TargetSampleRate)

	t.Setenv("WAVCAPTURE_TARGET_RATE", "fast")
	_, err = loadConfig("")
	assert.Error(t, err)
}

func TestLoadConfigInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"zero buffers", "in_flight_buffers: 0"},
		{"negative max samples", "max_burst_samples: -1"},
		{"bad encoding", "payload_types: [{pt: 100, rate: 8000, encoding: opus}]"},
		{"bad rtp addr", "rtp_listen: nope"},
		{"bad yaml", "output_dir: [unclosed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := loadConfig(writeConfig(t, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
