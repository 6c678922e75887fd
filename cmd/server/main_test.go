package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"adsb-ingest-service/internal/domain/entity"
	"adsb-ingest-service/internal/infrastructure/config"
	"adsb-ingest-service/internal/infrastructure/router"
	"adsb-ingest-service/internal/usecase"
	"adsb-ingest-service/pkg/logger"
	"adsb-ingest-service/pkg/metrics"
	"adsb-ingest-service/pkg/utils"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type downRepo struct{}

func (downRepo) BulkUpsert(context.Context, []entity.WriteOperation) (*entity.BulkResult, error) {
	return nil, errors.New("connection refused")
}

func TestShutdownError(t *testing.T) {
	assert.NoError(t, shutdownError(nil))
	assert.NoError(t, shutdownError(fmt.Errorf("%w: i/o timeout", usecase.ErrFeedClosed)))

	storeErr := fmt.Errorf("%w: connection refused", usecase.ErrStoreUnavailable)
	assert.ErrorIs(t, shutdownError(storeErr), usecase.ErrStoreUnavailable)
}

func TestIngest_ShutdownFlushFailureIsReported(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	go func() {
		c, err := ln.Accept()
		if err != nil {
			return
		}
		defer c.Close()
		_, _ = c.Write([]byte("MSG,3,1,1,ABC123,1" + strings.Repeat(",", 16) + "\n"))
		time.Sleep(5 * time.Second)
	}()

	host, port, err := net.SplitHostPort(ln.Addr().String())
	require.NoError(t, err)
	portNum, err := strconv.Atoi(port)
	require.NoError(t, err)
	cfg := &config.Config{FeedHost: host, FeedPort: portNum, FeedDialTimeout: time.Second}

	log := logger.NewNopLogger()
	m := metrics.NewMetrics("test", prometheus.NewRegistry())
	messageRouter := router.NewMessageRouter(log)
	messageRouter.Register(utils.NewSBSParser(nil))
	processor := usecase.NewIngestProcessor(usecase.IngestConfig{BatchSize: 10, FlushTimeout: time.Second},
		messageRouter, downRepo{}, m, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- ingest(ctx, cfg, processor, log) }()

	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.RecordsParsed) == 1
	}, 2*time.Second, 10*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, usecase.ErrStoreUnavailable)
	case <-time.After(3 * time.Second):
		t.Fatal("ingest did not return after cancellation")
	}
}
