// Command coordinator runs the Pipeline Coordinator: it resolves an
// inference request's shard pipeline from the Discovery Index (falling back
// to the configured Strategy Engine when shards are missing) and drives the
// request stage by stage across the cluster.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/dreamware/swarmweave/internal/config"
	"github.com/dreamware/swarmweave/internal/coordinator"
	"github.com/dreamware/swarmweave/internal/dht"
	"github.com/dreamware/swarmweave/internal/discovery"
	"github.com/dreamware/swarmweave/internal/metrics"
	"github.com/dreamware/swarmweave/internal/protocol"
	"github.com/dreamware/swarmweave/internal/supervisor"
)

func main() {
	rootCmd := &cobra.Command{Use: "coordinator"}
	rootCmd.AddCommand(serveCmd())
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCmd() *cobra.Command {
	var env string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "run the coordinator's HTTP API until terminated",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(env)
		},
	}
	cmd.Flags().StringVar(&env, "env", "", "config environment overlay (config/<env>.yaml)")
	return cmd
}

func runServe(env string) error {
	log := logrus.WithField("component", "coordinator")

	cfg, err := config.Load(env)
	if err != nil {
		return fmt.Errorf("coordinator: load config: %w", err)
	}

	store := dht.NewMemStore(peer.ID("coordinator"))
	idx := discovery.New(cfg.Cluster, cfg.Discovery.TTLDuration(), nil)
	reg := metrics.New()
	sup := supervisor.New(supervisor.Config{
		WorkerBinary: cfg.Coordinator.SpawnWorkerBinary,
		WorkerArgs:   cfg.Coordinator.SpawnWorkerArgs,
		BaseEnv:      cfg.Coordinator.SpawnWorkerEnv,
		BasePort:     cfg.Coordinator.SpawnBasePort,
	}, idx)

	strat, err := buildStrategy(cfg.Coordinator.Strategy, cfg.Cluster, protocol.HTTPSender{}, sup, "coordinator")
	if err != nil {
		return err
	}

	engine := coordinator.New(coordinator.Config{
		Cluster:       cfg.Cluster,
		Index:         idx,
		Sender:        protocol.HTTPSender{},
		Strategy:      strat,
		StageDeadline: cfg.Coordinator.StageDeadlineDuration(),
		SelfID:        "coordinator",
	})

	poller := discovery.NewPoller(idx, store, cfg.Cluster, cfg.Coordinator.DiscoveryPollDuration())
	staleness := coordinator.NewStalenessMonitor(idx, coordinator.DefaultCleanupInterval)
	staleness.SetOnLost(func(missing []int) {
		log.WithField("missing", missing).Warn("discovery lost completeness")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go poller.Start(ctx)
	go staleness.Start(ctx)
	defer poller.Stop()
	defer staleness.Stop()

	srv := &apiServer{engine: engine, idx: idx, reg: reg, log: log}
	httpSrv := &http.Server{
		Addr:              cfg.Coordinator.Listen,
		Handler:           newRouter(srv),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		log.WithField("addr", cfg.Coordinator.Listen).Info("coordinator listening")
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
	if err := sup.TerminateAll(); err != nil {
		log.WithError(err).Warn("supervisor shutdown error")
	}
	log.Info("coordinator stopped")
	return nil
}
