package ingest

import (
	"bufio"
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"

	"airguard/internal/config"
	"airguard/internal/dot11"
	"airguard/internal/normalize"
)

// StartTCPStream accepts persistent tap connections carrying newline
// delimited capture messages. It returns the listener, or nil when the
// transport is disabled or cannot listen.
func StartTCPStream(ctx context.Context, cfg *config.Manager, out chan<- dot11.Capture, logger *slog.Logger) net.Listener {
	current := cfg.Get().Ingest.TCPStream
	if !current.Enabled {
		if logger != nil {
			logger.Info("tcp stream ingest disabled")
		}
		return nil
	}
	ln, err := net.Listen("tcp", current.Addr)
	if err != nil {
		if logger != nil {
			logger.Error("tcp stream listen error", "err", err)
		}
		return nil
	}
	if logger != nil {
		logger.Info("tcp stream ingest enabled", "addr", ln.Addr().String())
	}
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				if errors.Is(err, net.ErrClosed) {
					return
				}
				if logger != nil {
					logger.Warn("tcp stream accept error", "err", err)
				}
				continue
			}
			go handleTCPStreamConn(ctx, conn, current.Tap, out, logger)
		}
	}()
	return ln
}

// handleTCPStreamConn reads one capture message (or array) per line until
// the tap disconnects. A "tap=<name>" line names the tap for the rest of the
// connection. It returns the captures sent.
func handleTCPStreamConn(ctx context.Context, conn net.Conn, defaultTap string, out chan<- dot11.Capture, logger *slog.Logger) int {
	defer conn.Close()
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	tap := defaultTap
	if tap == "" {
		tap = "tcp"
	}
	sent := 0
	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 8192), 4*1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if name, ok := strings.CutPrefix(line, "tap="); ok {
			tap = strings.TrimSpace(name)
			continue
		}
		msgs, err := normalize.DecodeMessages([]byte(line))
		if err != nil {
			if logger != nil {
				logger.Warn("tcp stream line rejected", "remote", conn.RemoteAddr().String(), "err", err)
			}
			continue
		}
		for _, msg := range msgs {
			c, err := normalize.Capture(msg, tap)
			if err != nil {
				if logger != nil {
					logger.Warn("tcp stream capture rejected", "err", err)
				}
				continue
			}
			if SendNonBlocking(ctx, out, c, "tcp_stream", logger) {
				sent++
			}
		}
		if ctx.Err() != nil {
			return sent
		}
	}
	if err := scanner.Err(); err != nil && ctx.Err() == nil && logger != nil {
		logger.Warn("tcp stream scanner error", "err", err)
	}
	return sent
}
