package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pysugar/wg-provisioner/internal/api"
	"github.com/pysugar/wg-provisioner/internal/config"
	"github.com/pysugar/wg-provisioner/internal/credentials"
	"github.com/pysugar/wg-provisioner/internal/db"
	"github.com/pysugar/wg-provisioner/internal/health"
	"github.com/pysugar/wg-provisioner/internal/logging"
	"github.com/pysugar/wg-provisioner/internal/metrics"
	"github.com/pysugar/wg-provisioner/internal/reconcile"
	"github.com/pysugar/wg-provisioner/internal/scheduler"
	"github.com/pysugar/wg-provisioner/internal/util"
	"github.com/pysugar/wg-provisioner/internal/version"
	"github.com/pysugar/wg-provisioner/internal/wgapi"
	log "github.com/sirupsen/logrus"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.StringP("config", "c", "", "path to a YAML config file")
	once := flag.Bool("once", false, "run one probe and one sync pass, then exit")
	showVersion := flag.BoolP("version", "v", false, "print the version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return
	}
	if err := run(*configPath, *once); err != nil {
		log.WithError(err).Fatal("wgprov stopped")
	}
}

func run(configPath string, once bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if err := logging.Setup(os.Stderr, cfg.LogLevel, cfg.LogFormat); err != nil {
		return err
	}
	time.Local = cfg.Location
	metrics.Init()

	log.WithFields(log.Fields{
		"version":  version.String(),
		"token":    util.Mask(cfg.Token),
		"timezone": cfg.Location.String(),
	}).Info("starting wgprov")

	store, err := db.InitDB(cfg.DatabaseURL)
	if err != nil {
		return err
	}
	client := wgapi.NewClient(
		wgapi.WithTimeout(cfg.GatewayTimeout),
		wgapi.WithRateLimit(cfg.GatewayRPS, int(cfg.GatewayRPS)+1),
	)
	prov := credentials.NewProvisioner(store, client)
	engine := reconcile.NewEngine(store, client, prov)
	prober := health.NewProber(store, prov, client)

	tasks := []scheduler.Task{
		{Name: "probe", Interval: cfg.ServerHealthInterval, Run: func(ctx context.Context) error {
			_, err := prober.ProbeAll(ctx)
			return err
		}},
		{Name: "sync", Interval: cfg.UserSyncInterval, Run: func(ctx context.Context) error {
			_, err := engine.SyncAll(ctx)
			return err
		}},
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if once {
		return scheduler.RunOnce(ctx, tasks...)
	}

	srv := &http.Server{
		Addr: cfg.Addr(),
		Handler: api.NewRouter(api.Deps{
			Store:         store,
			Gateway:       client,
			Provisioner:   prov,
			Engine:        engine,
			Prober:        prober,
			AdminPassword: cfg.AdminPassword,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return scheduler.New(tasks...).Run(ctx)
	})
	g.Go(func() error {
		log.WithField("addr", srv.Addr).Info("admin API listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("admin API: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	err = g.Wait()
	log.Info("wgprov stopped")
	return err
}
