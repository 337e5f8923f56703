package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/dreamware/swarmweave/internal/cluster"
	"github.com/dreamware/swarmweave/internal/coordinator"
	"github.com/dreamware/swarmweave/internal/dht"
	"github.com/dreamware/swarmweave/internal/discovery"
	"github.com/dreamware/swarmweave/internal/metrics"
	"github.com/dreamware/swarmweave/internal/protocol"
)

type echoSender struct{}

func (echoSender) Send(_ context.Context, _ string, cmd protocol.CommandEnvelope) (protocol.ResponseEnvelope, error) {
	shardID, _ := cmd.Params["shard_id"].(int)
	input, _ := cmd.Params["input_data"].(string)
	return protocol.Success(cmd, fmt.Sprintf("shard-%d", shardID), map[string]interface{}{
		"output":           fmt.Sprintf("%s|%d", input, shardID),
		"tokens_generated": float64(1),
	}), nil
}

func newTestServer(t *testing.T) (*apiServer, *discovery.Index) {
	t.Helper()
	cfg := cluster.Config{Name: "c", ModelName: "m", ShardCount: 2, TotalLayers: 10}
	now := time.Now()
	idx := discovery.New(cfg, time.Hour, func() time.Time { return now })
	for i := 0; i < cfg.ShardCount; i++ {
		lr := cfg.LayerRangeFor(i)
		ann := cluster.ShardAnnouncement{
			PeerID: peer.ID(fmt.Sprintf("peer-%d", i)), ShardID: i,
			LayerStart: lr.Start, LayerEnd: lr.End,
			HasEmbeddings: i == 0, HasOutput: i == cfg.ShardCount-1,
			Multiaddr: fmt.Sprintf("http://peer-%d", i),
			Version:   cluster.RecordSchemaVersion, AnnouncedAt: now,
		}
		val, err := json.Marshal(ann)
		require.NoError(t, err)
		require.NoError(t, idx.Ingest(dht.Record{Key: cfg.RecordKey(i), Value: val}, 0))
	}

	engine := coordinator.New(coordinator.Config{Cluster: cfg, Index: idx, Sender: echoSender{}})
	return &apiServer{engine: engine, idx: idx, reg: metrics.New(), log: logrus.WithField("test", "coordinator")}, idx
}

func TestHandleSubmitExecutesCompletePipeline(t *testing.T) {
	srv, _ := newTestServer(t)
	router := newRouter(srv)

	body, err := json.Marshal(coordinator.InferenceRequest{Prompt: "hi", MaxTokens: 8})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp coordinator.InferenceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Success)
	require.Equal(t, "hi|0|1", resp.Text)
}

func TestHandlePollReturnsNotFoundForUnknownRequest(t *testing.T) {
	srv, _ := newTestServer(t)
	router := newRouter(srv)

	req := httptest.NewRequest(http.MethodGet, "/requests/does-not-exist", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHandleStatusReportsCompleteness(t *testing.T) {
	srv, _ := newTestServer(t)
	router := newRouter(srv)

	req := httptest.NewRequest(http.MethodGet, "/status", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var status discovery.Status
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&status))
	require.True(t, status.IsComplete)
}

func TestHandleSubmitRejectsBadJSON(t *testing.T) {
	srv, _ := newTestServer(t)
	router := newRouter(srv)

	req := httptest.NewRequest(http.MethodPost, "/requests", bytes.NewReader([]byte("not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t)
	router := newRouter(srv)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
