package commands

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nvlockd/nvlockd/internal/buildinfo"
	"github.com/nvlockd/nvlockd/internal/config"
	"github.com/nvlockd/nvlockd/internal/obslog"
	"github.com/nvlockd/nvlockd/internal/scheduler"
	"github.com/nvlockd/nvlockd/internal/transport"
	"github.com/nvlockd/nvlockd/internal/xerrors"
)

// ServeCmd runs the scheduler daemon: bind the listening socket, accept
// clients, and arbitrate the GPU lock until signaled to stop.
var ServeCmd = &cobra.Command{
	Use:     "serve",
	Aliases: []string{"run"},
	Short:   "Run the GPU lock scheduler",
	RunE:    runServe,
}

var serveConfigPath string

func init() {
	ServeCmd.Flags().StringVar(&serveConfigPath, "config", "", "path to an optional TOML config file")
}

func runServe(cmd *cobra.Command, args []string) error {
	log := obslog.Named("nvlockd")

	cfg, err := config.Load(serveConfigPath)
	if err != nil {
		return xerrors.Wrap(err, "load configuration")
	}

	l, err := transport.Listen(cfg.SocketDir)
	if err != nil {
		return xerrors.Wrap(err, "bind scheduler socket")
	}
	defer l.Close()

	sched := scheduler.New(scheduler.Config{
		TimeQuantum:         time.Duration(cfg.TimeQuantumSecs) * time.Second,
		StartInAntiThrash:   cfg.AntiThrashAtStart,
		MaxAcceptsPerMinute: cfg.MaxAcceptsPerMinute,
	})

	if serveConfigPath != "" {
		watcher, err := config.NewWatcher(serveConfigPath, func(fresh *config.Scheduler) error {
			sched.SetTimeQuantum(time.Duration(fresh.TimeQuantumSecs) * time.Second)
			return nil
		})
		if err != nil {
			log.Warnw("config hot-reload disabled", "error", err)
		} else {
			defer watcher.Close()
		}
	}

	log.Infow("scheduler listening", "socket_dir", cfg.SocketDir, "time_quantum_seconds", cfg.TimeQuantumSecs, "mode", sched.Status().Mode, "build", buildinfo.Get().String())

	serveErr := make(chan error, 1)
	go func() { serveErr <- sched.Serve(l) }()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serveErr:
		if err != nil {
			return xerrors.Wrap(err, "accept loop")
		}
		return nil
	case sig := <-sigCh:
		log.Infow("shutting down", "signal", sig.String())
		l.Close()
		sched.Close()
		<-serveErr
		return nil
	}
}
