// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	"github.com/broadcastwav/wavcapture/audio"
	"github.com/broadcastwav/wavcapture/media"
	"gopkg.in/yaml.v3"
)

type PayloadTypeConfig struct {
	PayloadType uint8  `yaml:"pt"`
	SampleRate  uint32 `yaml:"rate"`
	Encoding    string `yaml:"encoding"` // L16, PCMU or PCMA
}

type Config struct {
	OutputDir        string              `yaml:"output_dir"`
	TargetSampleRate uint32              `yaml:"target_sample_rate"`
	InFlightBuffers  int                 `yaml:"in_flight_buffers"`
	MaxBurstSamples  int                 `yaml:"max_burst_samples"`
	SilenceThreshold float64             `yaml:"silence_threshold"`
	RTPListen        string              `yaml:"rtp_listen"`
	RTCPListen       string              `yaml:"rtcp_listen"`
	MetricsListen    string              `yaml:"metrics_listen"`
	PayloadTypes     []PayloadTypeConfig `yaml:"payload_types"`
}

func defaultConfig() Config {
	return Config{
		OutputDir:        "wavs",
		TargetSampleRate: 48000,
		InFlightBuffers:  2,
		RTPListen:        "127.0.0.1:5004",
	}
}

// loadConfig reads YAML file over defaults. Empty path keeps defaults.
// WAVCAPTURE_OUTPUT_DIR and WAVCAPTURE_TARGET_RATE env override file.
func loadConfig(path string) (Config, error) {
	conf := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return conf, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &conf); err != nil {
			return conf, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if dir := os.Getenv("WAVCAPTURE_OUTPUT_DIR"); dir != "" {
		conf.OutputDir = dir
	}
	if rate := os.Getenv("WAVCAPTURE_TARGET_RATE"); rate != "" {
		r, err := strconv.ParseUint(rate, 10, 32)
		if err != nil {
			return conf, fmt.Errorf("parse WAVCAPTURE_TARGET_RATE: %w", err)
		}
		conf.TargetSampleRate = uint32(r)
	}

	if conf.RTCPListen == "" {
		addr, err := rtcpAddr(conf.RTPListen)
		if err != nil {
			return conf, err
		}
		conf.RTCPListen = addr
	}
	return conf, conf.validate()
}

func (c *Config) validate() error {
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is empty")
	}
	if c.InFlightBuffers < 1 {
		return fmt.Errorf("in_flight_buffers must be > 0, got %d", c.InFlightBuffers)
	}
	if c.MaxBurstSamples < 0 {
		return fmt.Errorf("max_burst_samples must be >= 0, got %d", c.MaxBurstSamples)
	}
	for _, pt := range c.PayloadTypes {
		if _, err := parseEncoding(pt.Encoding); err != nil {
			return fmt.Errorf("payload type %d: %w", pt.PayloadType, err)
		}
	}
	return nil
}

// registerCodecs makes dynamic payload types known to media reader
func (c *Config) registerCodecs() error {
	for _, pt := range c.PayloadTypes {
		enc, err := parseEncoding(pt.Encoding)
		if err != nil {
			return err
		}
		codec := media.Codec{PayloadType: pt.PayloadType, SampleRate: pt.SampleRate, Encoding: enc}
		if err := media.RegisterCodec(codec); err != nil {
			return err
		}
	}
	return nil
}

func parseEncoding(s string) (audio.Encoding, error) {
	switch s {
	case "L16", "":
		return audio.EncodingLinear16, nil
	case "PCMU":
		return audio.EncodingULaw, nil
	case "PCMA":
		return audio.EncodingALaw, nil
	}
	return 0, fmt.Errorf("unknown encoding %q", s)
}

// rtcpAddr is RTP port + 1
func rtcpAddr(rtp string) (string, error) {
	host, port, err := net.SplitHostPort(rtp)
	if err != nil {
		return "", fmt.Errorf("parse rtp_listen: %w", err)
	}
	p, err := strconv.Atoi(port)
	if err != nil {
		return "", fmt.Errorf("parse rtp_listen port: %w", err)
	}
	return net.JoinHostPort(host, strconv.Itoa(p+1)), nil
}
