package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	httpapi "github.com/quizhub/rewards-hub/internal/interface/http"
	"github.com/quizhub/rewards-hub/internal/interface/http/handlers"
	"github.com/quizhub/rewards-hub/internal/infrastructure/scheduler"
	"github.com/quizhub/rewards-hub/internal/infrastructure/scheduler/jobs"
	"github.com/quizhub/rewards-hub/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server (and the in-process scheduler, if enabled)",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

func runServe(ctx context.Context) error {
	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	// Health checks cover the hard dependency (Postgres) and the soft
	// one (Redis) separately.
	checker := handlers.NewCompositeHealthChecker(a.cfg.App.Version)
	checker.AddCheck("database", handlers.NewDatabaseCheck(a.db))
	if a.cache != nil {
		checker.AddCheck("cache", handlers.NewCacheCheck(a.cache))
	}

	serverCfg := httpapi.DefaultConfig()
	serverCfg.Host = a.cfg.HTTP.Host
	serverCfg.Port = a.cfg.HTTP.Port
	serverCfg.ReadTimeout = a.cfg.HTTP.ReadTimeout
	serverCfg.WriteTimeout = a.cfg.HTTP.WriteTimeout
	serverCfg.IdleTimeout = a.cfg.HTTP.IdleTimeout
	serverCfg.RateLimitPerMinute = a.cfg.HTTP.RateLimit

	server := httpapi.NewServer(serverCfg, httpapi.Dependencies{
		InitMonth:     a.initMonth,
		ProcessJobs:   a.processJobs,
		JobStatus:     a.jobStatus,
		RewardHistory: a.history,
		Leaderboard:   a.leaderboard,
		Verifier:      a.verifier,
		Logger:        a.log,
		HealthChecker: checker,
	})

	var sched *scheduler.Scheduler
	if a.cfg.Scheduler.Enabled {
		sched, err = startScheduler(ctx, a)
		if err != nil {
			return err
		}
	}

	errCh := server.StartAsync()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stop:
		a.log.Info("shutdown signal received", logger.String("signal", sig.String()))
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.App.ShutdownTimeout)
	defer cancel()

	if sched != nil {
		if err := sched.Stop(); err != nil {
			a.log.Warn("scheduler stop", logger.Err(err))
		}
	}
	return server.Shutdown(shutdownCtx)
}

// startScheduler registers the interval-driven pipeline jobs.
func startScheduler(ctx context.Context, a *app) (*scheduler.Scheduler, error) {
	sched := scheduler.NewScheduler(scheduler.SchedulerConfig{
		Logger:        a.slog,
		EnableMetrics: true,
	})

	processJob := jobs.NewProcessRewardsJob(a.processJobs, a.slog, jobs.ProcessRewardsConfig{
		Timeout: a.cfg.Scheduler.JobTimeout,
	})
	if err := sched.Register(processJob, scheduler.NewIntervalSchedule(a.cfg.Scheduler.ProcessInterval)); err != nil {
		return nil, err
	}

	initJob := jobs.NewInitCheckJob(a.initMonth, a.slog, jobs.InitCheckConfig{
		Timeout: a.cfg.Scheduler.JobTimeout,
	})
	if err := sched.Register(initJob, scheduler.NewIntervalSchedule(a.cfg.Scheduler.InitCheckInterval)); err != nil {
		return nil, err
	}

	if err := sched.Start(ctx); err != nil {
		return nil, err
	}
	return sched, nil
}
