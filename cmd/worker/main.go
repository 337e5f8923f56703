// Command worker runs one shard worker: it joins the DHT, announces its
// shard (loaded or not), seeds its blob over the chunk-transfer RPCs, and
// executes EXECUTE_TASK stages dispatched by the Pipeline Coordinator.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dreamware/swarmweave/internal/cluster"
	"github.com/dreamware/swarmweave/internal/config"
	"github.com/dreamware/swarmweave/internal/dht"
	"github.com/dreamware/swarmweave/internal/protocol"
	"github.com/dreamware/swarmweave/internal/storage"
	"github.com/dreamware/swarmweave/internal/worker"
	"github.com/dreamware/swarmweave/pkg/inference"
)

func main() {
	rootCmd := &cobra.Command{Use: "worker"}
	rootCmd.AddCommand(serveCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "join the cluster, announce a shard, and serve its RPC surface",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(env)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "config environment overlay (config/<env>.yaml)")
	return cmd
}

// resolvedIdentity is the selfID/shardID/listen/multiaddr quadruple a worker
// runs with, after applying the WORKER_ID/WORKER_SHARD_ID/WORKER_LISTEN
// environment overrides the Node Supervisor sets on every process it spawns
// (see internal/supervisor.Spawn).
type resolvedIdentity struct {
	selfID    peer.ID
	shardID   int
	listen    string
	multiaddr string
}

func resolveIdentity(cfg config.WorkerConfig, getenv func(string) string) resolvedIdentity {
	selfID := peer.ID(getenv("WORKER_ID"))
	if selfID == "" {
		selfID = peer.ID(fmt.Sprintf("worker-%d", cfg.ShardID))
	}
	shardID := cfg.ShardID
	if v := getenv("WORKER_SHARD_ID"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			shardID = n
		}
	}
	listen := cfg.Listen
	if v := getenv("WORKER_LISTEN"); v != "" {
		listen = v
	}
	multiaddr := cfg.Multiaddr
	if multiaddr == "" {
		multiaddr = "http://127.0.0.1" + listen
	}
	return resolvedIdentity{selfID: selfID, shardID: shardID, listen: listen, multiaddr: multiaddr}
}

// buildWorker constructs a Worker ready to Join, wiring its disk blob store,
// its own in-memory DHT view, and a stub inference executor.
func buildWorker(cfg *config.Config, id resolvedIdentity) (*worker.Worker, error) {
	blobs, err := storage.NewDiskBlobStore(cfg.Worker.BlobDir)
	if err != nil {
		return nil, fmt.Errorf("worker: open blob store: %w", err)
	}

	return worker.New(worker.Config{
		Cluster:   cfg.Cluster,
		ShardID:   id.shardID,
		PeerID:    id.selfID,
		Multiaddr: id.multiaddr,
		Quantization: cluster.Quantization{
			Tag: cfg.Worker.Quantization, SpeedFactor: 1, QualityFactor: 1, SizeRatio: 1,
		},
		Static: worker.StaticCapacity{
			TotalMemoryMB: cfg.Worker.TotalMemoryMB,
			GPUMemoryMB:   cfg.Worker.GPUMemoryMB,
			GPUAvailable:  cfg.Worker.GPUAvailable,
			MaxConcurrent: cfg.Worker.MaxConcurrent,
			Reputation:    cfg.Worker.Reputation,
		},
		DHT:      dht.NewMemStore(id.selfID),
		Blobs:    blobs,
		Executor: inference.NewEchoExecutor(1),
		Sender:   protocol.HTTPSender{},
	}), nil
}

func runServe(env string) error {
	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("worker: load config: %w", err)
	}

	id := resolveIdentity(cfg.Worker, os.Getenv)
	listen := id.listen
	log := logrus.WithFields(logrus.Fields{"component": "worker", "shard_id": id.shardID, "peer": id.selfID.String()})

	w, err := buildWorker(cfg, id)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := w.Join(ctx, cfg.Worker.BootstrapAddrs); err != nil {
		return fmt.Errorf("worker: join: %w", err)
	}

	refreshInterval := cfg.Worker.RefreshIntervalDuration()
	done := make(chan struct{})
	go func() {
		ticker := time.NewTicker(refreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := w.Refresh(ctx); err != nil {
					log.WithError(err).Warn("refresh failed")
				}
			case <-done:
				return
			}
		}
	}()
	defer close(done)

	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", protocol.ServeHTTP(id.selfID.String(), w.Dispatch))
	mux.HandleFunc("/healthz", func(rw http.ResponseWriter, _ *http.Request) {
		rw.WriteHeader(http.StatusOK)
	})

	httpSrv := &http.Server{
		Addr:              listen,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", listen).Info("worker listening")
		if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("listen")
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	log.Info("shutting down")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("http server shutdown error")
	}
	log.Info("worker stopped")
	return nil
}
