// Package cli implements the interactive staff device console: a REPL over
// the local action queue, cached roster and background sync.
package cli

import (
	"bufio"
	"context"
	"log"
	"log/slog"
	"os"
	"time"

	"github.com/gatherhall/doorsync/internal/client/client"
	"github.com/gatherhall/doorsync/internal/client/config"
	"github.com/gatherhall/doorsync/internal/client/repositories/metadata"
	"github.com/gatherhall/doorsync/internal/client/services"
	"github.com/gatherhall/doorsync/internal/logging"
)

type Mode string

const (
	ModeOffline Mode = "offline"
	ModeOnline  Mode = "online"
)

type App struct {
	config    *config.Config
	repos     *client.Repositories
	apiClient client.Client
	checkin   *services.CheckInService
	syncSvc   *services.SyncService
	scheduler *services.Scheduler
	logger    logging.Logger

	reader   *bufio.Reader
	Mode     Mode
	eventID  string
	loggedIn bool
}

func NewApp(c *config.Config) (*App, error) {

	ctx := context.Background()

	repos, err := client.InitDatabase(ctx, c.DatabasePath, c.SnapshotTTL)
	if err != nil {
		log.Printf("error initializing database: %s", err.Error())
		return nil, err
	}

	logger := logging.NewSlogLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelWarn,
	})))

	apiClient := client.NewHTTPClient(c.ServerEndpointAddr)

	cs := services.NewCheckInService(repos.Queue, repos.Snapshots, repos.Metadata, logger)
	ss := services.NewSyncService(apiClient, repos.Queue, repos.Snapshots, repos.Metadata, logger)
	sched := services.NewScheduler(ss, c.SyncInterval, logger)

	return &App{
		config:    c,
		repos:     repos,
		apiClient: apiClient,
		checkin:   cs,
		syncSvc:   ss,
		scheduler: sched,
		logger:    logger,
		reader:    bufio.NewReader(os.Stdin),
		Mode:      ModeOffline,
	}, nil
}

func (a *App) setMode(mode Mode) {
	if a.Mode != mode {
		a.Mode = mode
		log.Printf("Switched to %s mode\n", mode)
	}
}

func (a *App) isLoggedIn() bool {
	return a.loggedIn
}

// restoreSession reinstalls a previously saved staff token so a restart
// does not force a new login at the door.
func (a *App) restoreSession(ctx context.Context) {
	token, err := a.repos.Metadata.Get(ctx, metadata.KeyStaffToken)
	if err != nil || len(token) == 0 {
		return
	}
	a.apiClient.SetToken(string(token))
	a.loggedIn = true
}

func (a *App) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	a.restoreSession(ctx)

	if err := a.scheduler.Start(ctx); err != nil {
		log.Printf("background sync disabled: %s", err.Error())
	}
	go a.StartOnlineStatusWatcher(ctx, a.config.HeartbeatInterval)

	a.Root(ctx)

	a.scheduler.Stop()
	_ = a.apiClient.Close()
	_ = a.repos.DB.Close()
}

// StartOnlineStatusWatcher probes server reachability on a fixed interval
// and flips the displayed mode accordingly. Queueing never depends on the
// result; it only informs the operator.
func (a *App) StartOnlineStatusWatcher(ctx context.Context, interval time.Duration) {

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			pingCtx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			err := a.apiClient.Ping(pingCtx)
			cancel()

			if err != nil {
				a.setMode(ModeOffline)
			} else {
				a.setMode(ModeOnline)
			}

		case <-ctx.Done():
			return
		}
	}
}
