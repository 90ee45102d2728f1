package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"teachcal/internal/capture"
	"teachcal/internal/clock"
	"teachcal/internal/config"
	"teachcal/internal/fetch"
	appLog "teachcal/internal/log"
	"teachcal/internal/schedule"
	"teachcal/internal/store"
	"teachcal/internal/view"
	"teachcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	snapshot   string
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}
	defer appLog.Sync()

	appLog.Info("teachcal starting", "version", "0.1.0")

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	conf.ApplyEnv()

	// CLI --listen overrides config file and environment.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	if err := conf.Validate(); err != nil {
		appLog.Error("invalid config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	loc, err := conf.Location()
	if err != nil {
		appLog.Error("invalid timezone", err, "timezone", conf.Timezone)
		os.Exit(1)
	}
	pinned, err := conf.PinnedNow()
	if err != nil {
		appLog.Error("invalid test date", err, "test_date", conf.TestDate)
		os.Exit(1)
	}
	slots, err := schedule.NewSlotTable(conf.Slots)
	if err != nil {
		appLog.Error("invalid slot table", err, "slots", conf.Slots)
		os.Exit(1)
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"refresh", conf.RefreshCron,
		"source_url", fetch.RedactURL(conf.Source.URL),
		"professor_id", conf.Source.ProfessorID,
		"static_path", conf.Source.StaticPath,
		"slots", len(conf.Slots),
		"grid_days", conf.GridDays,
		"test_date", conf.TestDate,
		"basic_auth", conf.BasicAuth != nil,
		"once", flags.once,
		"snapshot", flags.snapshot,
	)

	st := store.New(newLoader(conf), clock.FromConfig(pinned, loc), slots)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	loadErr := st.Load(ctx)

	if flags.once {
		if loadErr != nil {
			os.Exit(1)
		}
		printAgenda(os.Stdout, st, loc)
		return
	}

	c := cron.New(cron.WithLocation(loc))
	if conf.RefreshCron != "" {
		if _, err := c.AddFunc(conf.RefreshCron, func() {
			if err := st.Load(ctx); errors.Is(err, store.ErrLoadInFlight) {
				appLog.Info("scheduled reload skipped, load in flight")
			}
		}); err != nil {
			appLog.Error("invalid refresh schedule, periodic reloads disabled", err, "refresh", conf.RefreshCron)
		}
	}
	c.Start()

	if err := serve(ctx, conf, st, loc, flags.snapshot); err != nil {
		appLog.Error("http server failed", err, "listen", conf.Listen)
	}

	<-c.Stop().Done()
	appLog.Info("teachcal exiting")
}

// newLoader picks the static file when configured, the endpoint otherwise.
func newLoader(conf *config.Config) fetch.Loader {
	if conf.Source.StaticPath != "" {
		return fetch.FileLoader{Path: conf.Source.StaticPath}
	}
	return fetch.HTTPLoader{
		Fetcher: fetch.NewFetcher(conf.CacheDir, nil),
		Source: fetch.Source{
			ID:          "professor-" + conf.Source.ProfessorID,
			URL:         conf.Source.URL,
			ProfessorID: conf.Source.ProfessorID,
		},
	}
}

// serve runs the HTTP server until ctx is canceled. When snapshotPath is
// set, the agenda page is captured once the listener is up.
func serve(ctx context.Context, conf *config.Config, st *store.Store, loc *time.Location, snapshotPath string) error {
	ln, err := net.Listen("tcp", conf.Listen)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler:           web.NewServer(conf, st, loc).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("http server listening", "addr", ln.Addr().String())
		errCh <- srv.Serve(ln)
	}()

	if snapshotPath != "" {
		go func() {
			opts := capture.Options{
				URL:         "http://" + ln.Addr().String() + "/agenda",
				OutputPath:  snapshotPath,
				ScrollToNow: true,
			}
			if err := capture.AgendaPNG(ctx, opts); err != nil {
				appLog.Error("agenda snapshot failed", err, "output", snapshotPath)
			}
		}()
	}

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// printAgenda writes today's agenda as plain text.
func printAgenda(w io.Writer, st *store.Store, loc *time.Location) {
	now := st.Now().In(loc)
	v := schedule.Build(st.Snapshot().Lessons, schedule.NewState(now), now)

	fmt.Fprintf(w, "%s (%s)\n", view.HeaderDate(v.Date), view.WeekdayShort[v.SelectedDay])
	fmt.Fprintln(w, view.NextBadge(v.Next))
	for _, sec := range v.Sections {
		fmt.Fprintf(w, "\n%s\n%s\n", sec.Label, strings.Repeat("-", len([]rune(sec.Label))))
		for _, it := range sec.Lessons {
			badge := ""
			switch {
			case it.IsNow:
				badge = "  [Agora]"
			case v.IsNext(it) && it.MinutesUntilStart != nil:
				badge = "  [" + view.Countdown(*it.MinutesUntilStart) + "]"
			}
			fmt.Fprintf(w, "%s - %s  %s (%s)%s\n",
				view.ClockLabel(it.Start), view.ClockLabel(it.End), it.Subject, it.Room, badge)
		}
	}
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/teachcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Load the schedule, print today's agenda and exit")
	flag.StringVar(&cfg.snapshot, "snapshot", "", "Write a PNG capture of /agenda to this path after startup")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
