// replay_feed serves a recorded SBS-1 capture over TCP so the ingest
// service can be run locally without a receiver.
package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"adsb-ingest-service/pkg/logger"

	"github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var listenAddr string
	var filePath string
	var interval time.Duration
	var loop bool

	flagSet := pflag.NewFlagSet("replay_feed", pflag.ContinueOnError)
	flagSet.StringVar(&listenAddr, "listen", "127.0.0.1:30003", "address to serve the capture on")
	flagSet.StringVarP(&filePath, "file", "f", "", "SBS-1 capture file, one message per line")
	flagSet.DurationVar(&interval, "interval", 100*time.Millisecond, "delay between lines")
	flagSet.BoolVar(&loop, "loop", false, "restart the capture when it ends")

	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}
	if filePath == "" {
		return errors.New("--file is required")
	}

	lines, err := loadCapture(filePath)
	if err != nil {
		return err
	}

	log := logger.NewLogger()
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return fmt.Errorf("error starting TCP server: %w", err)
	}
	context.AfterFunc(ctx, func() { _ = listener.Close() })

	log.Info("Replaying capture", "file", filePath, "lines", len(lines), "listen", listener.Addr().String())

	for {
		conn, err := listener.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Error("Accept error", "error", err)
			continue
		}

		go func(c net.Conn) {
			defer c.Close()
			remote := c.RemoteAddr().String()
			log.Info("Client connected", "remote", remote)
			if err := replay(ctx, c, lines, interval, loop); err != nil {
				log.Warn("Client disconnected", "remote", remote, "error", err)
				return
			}
			log.Info("Replay finished", "remote", remote)
		}(conn)
	}
}

// loadCapture reads the non-blank lines of a capture file
func loadCapture(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("cannot open capture: %w", err)
	}
	defer f.Close()

	var lines []string
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) != "" {
			lines = append(lines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("cannot read capture: %w", err)
	}
	return lines, nil
}

// replay writes lines to w with CRLF terminators, as receivers do,
// pausing interval between lines. It returns nil once the capture has
// been sent (never, with loop) or ctx is cancelled.
func replay(ctx context.Context, w io.Writer, lines []string, interval time.Duration, loop bool) error {
	if len(lines) == 0 {
		return nil
	}

	var ticker *time.Ticker
	if interval > 0 {
		ticker = time.NewTicker(interval)
		defer ticker.Stop()
	}

	for {
		for _, line := range lines {
			if ticker != nil {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
				}
			} else if ctx.Err() != nil {
				return nil
			}

			if _, err := io.WriteString(w, line+"\r\n"); err != nil {
				return err
			}
		}
		if !loop {
			return nil
		}
	}
}
