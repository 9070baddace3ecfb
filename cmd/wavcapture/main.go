// SPDX-License-Identifier: MPL-2.0
// SPDX-FileCopyrightText: Copyright (c) 2024, Emir Aganovic

package main

import (
	"context"
	"errors"
	"flag"
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/broadcastwav/wavcapture"
	"github.com/broadcastwav/wavcapture/media"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Records up to two RTP audio streams (L16, PCMU, PCMA) into app.wav and mic.wav.
// Send stream with
// ffmpeg -re -i in.wav -ac 1 -ar 44100 -acodec pcm_s16be -f rtp rtp://127.0.0.1:5004

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	configPath := flag.String("config", "", "Path to YAML configuration file")
	flag.Parse()

	lev, err := zerolog.ParseLevel(os.Getenv("LOG_LEVEL"))
	if err != nil || lev == zerolog.NoLevel {
		lev = zerolog.InfoLevel
	}

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.StampMicro,
	}).With().Timestamp().Logger().Level(lev)

	conf, err := loadConfig(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if err := run(ctx, conf); err != nil {
		log.Fatal().Err(err).Msg("Capture finished with error")
	}
}

func run(ctx context.Context, conf Config) error {
	if err := conf.registerCodecs(); err != nil {
		return err
	}

	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	if conf.MetricsListen != "" {
		srv := &http.Server{Addr: conf.MetricsListen, Handler: promhttp.HandlerFor(reg, promhttp.HandlerOpts{})}
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Error().Err(err).Msg("Metrics server failed")
			}
		}()
		defer srv.Close()
	}

	rtpConn, err := net.ListenPacket("udp", conf.RTPListen)
	if err != nil {
		return err
	}
	defer rtpConn.Close()

	rtcpConn, err := net.ListenPacket("udp", conf.RTCPListen)
	if err != nil {
		return err
	}
	defer rtcpConn.Close()

	session := wavcapture.NewSession(conf.OutputDir,
		wavcapture.WithTargetSampleRate(conf.TargetSampleRate),
		wavcapture.WithChannelOptions(
			wavcapture.WithInFlightBuffers(conf.InFlightBuffers),
			wavcapture.WithMaxBurstSamples(conf.MaxBurstSamples),
			wavcapture.WithSilenceThreshold(conf.SilenceThreshold),
		),
	)
	if err := session.Start(); err != nil {
		return err
	}
	rec := newRecorder(session, metrics)

	log.Info().Str("rtp", conf.RTPListen).Str("rtcp", conf.RTCPListen).Str("dir", session.Dir()).Msg("Listening for streams")

	rtpDone := make(chan error, 1)
	go func() {
		rtpDone <- readRTP(rtpConn.(net.Conn), rec)
	}()
	go readRTCP(rtcpConn.(net.Conn), rec)

	var readErr error
	select {
	case <-ctx.Done():
	case readErr = <-rtpDone:
	}

	// Unblock readers before finalizing
	rtpConn.Close()
	rtcpConn.Close()

	if readErr != nil && !errors.Is(readErr, net.ErrClosed) {
		rec.countClosing("error")
		return errors.Join(readErr, session.FinishWithError(readErr))
	}
	rec.countClosing("finish")
	return session.Finish()
}

func readRTP(conn net.Conn, rec *recorder) error {
	reader := media.NewRTPBurstReader(conn)
	var lost uint64
	for {
		frame, err := reader.ReadFrame()
		if err != nil {
			return err
		}
		if l := reader.Lost(); l > lost {
			rec.metrics.PacketsLost.Add(float64(l - lost))
			lost = l
		}
		// Burst errors are logged by session, stream continues
		rec.handleFrame(frame)
	}
}

func readRTCP(conn net.Conn, rec *recorder) {
	reader := media.NewRTCPReader(conn)
	for {
		ssrcs, err := reader.ReadGoodbye()
		if err != nil {
			return
		}
		for _, ssrc := range ssrcs {
			if err := rec.handleGoodbye(ssrc); err != nil {
				log.Error().Err(err).Uint32("ssrc", ssrc).Msg("Failed to close channel")
			}
		}
	}
}
