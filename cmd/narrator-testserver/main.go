// ABOUTME: Entry point for the local test TTS server
// ABOUTME: Parses flags and serves tone-backed streaming WAV responses
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/harperreed/narrator-go/internal/logger"
	"github.com/harperreed/narrator-go/internal/ttsserver"
)

var (
	addr       = flag.String("addr", ttsserver.DefaultAddr, "HTTP listen address")
	name       = flag.String("name", "", "Service name (default: hostname-narrator-tts)")
	logFile    = flag.String("log-file", "", "Also write logs to this file")
	logLevel   = flag.String("log-level", "info", "Log level (debug, info, warn, error)")
	noMDNS     = flag.Bool("no-mdns", false, "Disable mDNS advertisement")
	rate       = flag.Int("rate", ttsserver.DefaultSampleRate, "Sample rate in Hz")
	channels   = flag.Int("channels", ttsserver.DefaultChannels, "Channel count")
	chunkBytes = flag.Int("chunk-bytes", ttsserver.DefaultChunkBytes, "Bytes per response write")
	chunkDelay = flag.Duration("chunk-delay", 0, "Delay between writes to simulate generation time")
	perChar    = flag.Duration("char-duration", ttsserver.DefaultCharDuration, "Audio produced per character of text")
)

func main() {
	flag.Parse()

	log, closer, err := logger.Setup(logger.Options{Level: *logLevel, File: *logFile})
	if err != nil {
		fmt.Fprintf(os.Stderr, "error setting up logging: %v\n", err)
		os.Exit(1)
	}
	defer closer.Close()

	serverName := *name
	if serverName == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown"
		}
		serverName = fmt.Sprintf("%s-narrator-tts", hostname)
	}

	srv := ttsserver.New(ttsserver.Config{
		Addr:         *addr,
		Name:         serverName,
		EnableMDNS:   !*noMDNS,
		SampleRate:   *rate,
		Channels:     *channels,
		ChunkBytes:   *chunkBytes,
		ChunkDelay:   *chunkDelay,
		CharDuration: *perChar,
		Logger:       log,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting test TTS server", "name", serverName, "addr", *addr, "mdns", !*noMDNS)
	start := time.Now()
	if err := srv.Start(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
	log.Info("server stopped", "uptime", time.Since(start).Round(time.Second))
}
