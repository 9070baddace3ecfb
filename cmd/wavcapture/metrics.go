// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package main

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	BurstsReceived *prometheus.CounterVec
	BurstsDropped  *prometheus.CounterVec
	BytesWritten   *prometheus.CounterVec
	PacketsLost    prometheus.Counter
	ChannelsClosed *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		BurstsReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wavcapture_bursts_received_total",
			Help: "Total number of bursts received per channel",
		}, []string{"channel"}),
		BurstsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wavcapture_bursts_dropped_total",
			Help: "Total number of bursts dropped on resample or write error",
		}, []string{"channel"}),
		BytesWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wavcapture_bytes_written_total",
			Help: "Total PCM bytes appended to wav files",
		}, []string{"channel"}),
		PacketsLost: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "wavcapture_rtp_packets_lost_total",
			Help: "RTP packets detected missing by sequence gaps",
		}),
		ChannelsClosed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "wavcapture_channels_closed_total",
			Help: "Channels closed by reason",
		}, []string{"reason"}),
	}
	reg.MustRegister(m.BurstsReceived, m.BurstsDropped, m.BytesWritten, m.PacketsLost, m.ChannelsClosed)
	return m
}
