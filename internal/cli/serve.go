package cli

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/mining-enricher/internal/core/async"
	"github.com/joseph-ayodele/mining-enricher/internal/ingest"
)

type serveOptions struct {
	grpcAddr    string
	watch       string
	initialScan bool
	debounce    time.Duration
	interval    time.Duration
}

func newServeCmd(a *app) *cobra.Command {
	var o serveOptions
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the background enrichment queue with a gRPC health endpoint",
		Long: `Serves grpc.health.v1 and processes projects on a worker queue.
With --watch, files dropped under <dir>/<project-id>/ are registered and
their project is queued. With --interval, every project with documents is
queued periodically.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context(), o)
		},
	}
	f := cmd.Flags()
	f.StringVar(&o.grpcAddr, "grpc-addr", "", "listen address (env GRPC_ADDR)")
	f.StringVar(&o.watch, "watch", "", "directory to watch for new documents")
	f.BoolVar(&o.initialScan, "scan", true, "register existing files under --watch on startup")
	f.DurationVar(&o.debounce, "debounce", 2*time.Second, "quiet period before a dropped file is registered")
	f.DurationVar(&o.interval, "interval", 0, "re-enqueue every project at this interval (0 disables)")
	return cmd
}

func (a *app) serve(ctx context.Context, o serveOptions) error {
	if o.grpcAddr != "" {
		a.cfg.Server.GRPCAddr = o.grpcAddr
	}
	if err := a.cfg.ValidateServer(); err != nil {
		return err
	}
	proc, r, err := a.processor(ctx, true)
	if err != nil {
		return err
	}

	p := a.cfg.Pipeline
	queue := async.NewProcessorQueue(proc, a.logger,
		async.WithWorkers(p.ProjectWorkers),
		async.WithProcessTimeout(p.ProjectTimeout),
	)

	grpcServer := grpc.NewServer()
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	lis, err := net.Listen("tcp", a.cfg.Server.GRPCAddr)
	if err != nil {
		queue.Shutdown(ctx)
		return err
	}
	a.logger.Info("gRPC serving", "addr", lis.Addr().String())
	serveErr := make(chan error, 1)
	go func() { serveErr <- grpcServer.Serve(lis) }()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if o.watch != "" {
		reg, err := ingest.NewRegistrar(o.watch, r.projects, r.documents, a.logger)
		if err != nil {
			cancel()
			grpcServer.GracefulStop()
			queue.Shutdown(context.Background())
			return err
		}
		events, errs, err := ingest.StartWatcher(ctx, ingest.WatchConfig{
			Root:        o.watch,
			InitialScan: o.initialScan,
			Debounce:    o.debounce,
		}, reg, a.logger)
		if err != nil {
			cancel()
			grpcServer.GracefulStop()
			queue.Shutdown(context.Background())
			return err
		}
		go func() {
			for ev := range events {
				if err := queue.Enqueue(ctx, async.Job{ProjectID: ev.ProjectID}); err != nil {
					a.logger.Warn("enqueue failed", "project_id", ev.ProjectID, "error", err)
				}
			}
		}()
		go func() {
			for err := range errs {
				a.logger.Warn("watch.error", "error", err)
			}
		}()
	}

	if o.interval > 0 {
		go func() {
			t := time.NewTicker(o.interval)
			defer t.Stop()
			for {
				a.enqueueAll(ctx, queue, r)
				select {
				case <-ctx.Done():
					return
				case <-t.C:
				}
			}
		}()
	}

	select {
	case <-ctx.Done():
		err = nil
	case err = <-serveErr:
	}

	a.logger.Info("shutting down...")
	hs.Shutdown()
	cancel()
	grpcServer.GracefulStop()
	drain, stop := context.WithTimeout(context.Background(), 30*time.Second)
	defer stop()
	queue.Shutdown(drain)
	if errors.Is(err, grpc.ErrServerStopped) {
		err = nil
	}
	return err
}

func (a *app) enqueueAll(ctx context.Context, q *async.ProcessorQueue, r repos) {
	ids, err := r.documents.ListProjectIDs(ctx)
	if err != nil {
		a.logger.Warn("interval.list_failed", "error", err)
		return
	}
	for _, id := range ids {
		if err := q.Enqueue(ctx, async.Job{ProjectID: id}); err != nil {
			a.logger.Warn("enqueue failed", "project_id", id, "error", err)
			return
		}
	}
	a.logger.Info("interval.enqueued", "projects", len(ids))
}
