package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"lockin/internal/config"
	appLog "lockin/internal/log"
	"lockin/internal/model"
	"lockin/internal/notify"
	"lockin/internal/reminder"
	"lockin/internal/store"
	"lockin/internal/summary"
	"lockin/internal/verify"
	"lockin/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
}

func main() {
	appLog.Info("lockind starting", "version", "0.1.0")

	flags := parseFlags()

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}

	// CLI --listen overrides config file listen if provided.
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	appLog.Info("effective config",
		"listen", conf.Listen,
		"timezone", conf.Timezone,
		"db_path", conf.DBPath,
		"lead_minutes", conf.LeadMinutes,
		"summary_cron", conf.SummaryCron,
		"verifier_configured", conf.Verifier.APIKey != "",
		"mail_configured", conf.Mail.APIKey != "",
		"basic_auth", conf.BasicAuth != nil,
	)

	st, err := store.Open(conf.DBPath)
	if err != nil {
		appLog.Error("failed to open store", err, "db_path", conf.DBPath)
		os.Exit(1)
	}
	defer st.Close()

	verifier := verify.NewClient(conf.Verifier)
	email := notify.NewEmailClient(conf.Mail)
	queue := notify.NewQueue()

	var emailSender reminder.EmailSender
	if email.Configured() {
		emailSender = email
	} else {
		appLog.Info("mail not configured; email reminders disabled")
	}
	reminders := reminder.NewManager(emailSender, queue.PusherFor, conf.LeadMinutes)
	defer reminders.CancelAll()

	// Root context with cancellation on SIGINT/SIGTERM.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	loc := resolveLocation(conf.Timezone)
	d := &daemon{store: st, email: email, queue: queue, reminders: reminders, loc: loc}

	// Timers only cover the rest of the current day, so arm once now and
	// again at every local midnight.
	d.rearmAll(ctx)

	sched := cron.New(cron.WithLocation(loc))
	if _, err := sched.AddFunc("0 0 * * *", func() { d.rearmAll(ctx) }); err != nil {
		appLog.Error("failed to schedule midnight rearm", err)
		os.Exit(1)
	}
	if _, err := sched.AddFunc(conf.SummaryCron, func() { d.sendSummaries(ctx) }); err != nil {
		appLog.Error("failed to schedule daily summary job", err, "summary_cron", conf.SummaryCron)
		os.Exit(1)
	}
	sched.Start()

	srv := &http.Server{
		Addr:              conf.Listen,
		Handler:           web.NewServer(conf, st, verifier, email, reminders, queue).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLog.Info("HTTP server listening", "listen", "http://"+conf.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLog.Error("HTTP server failed", err)
			cancel()
		}
	}()

	<-ctx.Done()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLog.Error("HTTP server shutdown failed", err)
	}
	<-sched.Stop().Done()
	appLog.Info("lockind exiting")
}

// daemon bundles the shared state the cron jobs operate on.
type daemon struct {
	store     *store.Store
	email     *notify.EmailClient
	queue     *notify.Queue
	reminders *reminder.Manager
	loc       *time.Location
}

// rearmAll rebuilds reminder timers for every user with a schedule.
func (d *daemon) rearmAll(ctx context.Context) {
	users, err := d.store.UsersWithSchedules(ctx)
	if err != nil {
		appLog.Error("failed to list users for rearm", err)
		return
	}
	total := 0
	for _, user := range users {
		blocks, err := d.store.LoadSchedule(ctx, user)
		if err != nil {
			appLog.Error("failed to load schedule for rearm", err, "user", user)
			continue
		}
		total += d.reminders.Rearm(user, blocks, d.prefsFor(ctx, user))
	}
	appLog.Info("reminders rearmed", "users", len(users), "timers", total)
}

// sendSummaries runs the end-of-day aggregation for every user: a push
// notification always, a summary email when the user opted in. The sent
// marker keeps a misfiring job from mailing the same day twice.
func (d *daemon) sendSummaries(ctx context.Context) {
	users, err := d.store.UsersWithSchedules(ctx)
	if err != nil {
		appLog.Error("failed to list users for daily summary", err)
		return
	}
	now := time.Now().In(d.loc)
	date := now.Format("2006-01-02")

	for _, user := range users {
		blocks, err := d.store.LoadSchedule(ctx, user)
		if err != nil {
			appLog.Error("failed to load schedule for daily summary", err, "user", user)
			continue
		}
		logs, err := d.store.LogsForDay(ctx, user, date)
		if err != nil {
			appLog.Error("failed to load logs for daily summary", err, "user", user)
			continue
		}
		sum := summary.Aggregate(date, summary.ForDay(blocks, now.Weekday()), logs)
		if sum.TotalBlocks == 0 {
			continue
		}

		// summaries_sent doubles as the streak record, so only fully
		// completed days are marked. Mark before computing the streak so
		// today counts toward it.
		first := false
		if sum.AllComplete {
			first, err = d.store.MarkSummarySent(ctx, user, date)
			if err != nil {
				appLog.Error("failed to mark summary sent", err, "user", user)
				continue
			}
		}
		streak, err := d.store.Streak(ctx, user, date)
		if err != nil {
			appLog.Error("failed to compute streak", err, "user", user)
			streak = 0
		}

		prefs := d.prefsFor(ctx, user)
		if prefs.PushEnabled {
			d.queue.Append(user, dailySummaryNotification(sum, streak))
		}
		if first && prefs.EmailEnabled && prefs.Email != "" && d.email.Configured() {
			mailCtx, mailCancel := context.WithTimeout(ctx, 30*time.Second)
			err = d.email.SendDailySummary(mailCtx, prefs.Email, prefs.Name, sum, streak)
			mailCancel()
			if err != nil {
				appLog.Warn("failed to send daily summary email", err, "user", user)
			}
		}
		appLog.Info("daily summary delivered", "user", user, "date", date,
			"completed", sum.CompletedCount, "total", sum.TotalBlocks, "streak", streak)
	}
}

func (d *daemon) prefsFor(ctx context.Context, user string) model.Preferences {
	prefs, err := d.store.LoadPreferences(ctx, user)
	if err != nil {
		appLog.Error("failed to load preferences; using defaults", err, "user", user)
		prefs = model.Preferences{}
	}
	return prefs
}

func dailySummaryNotification(sum model.DaySummary, streak int) notify.Notification {
	title := "Day recap"
	if sum.AllComplete {
		title = "Locked in: all blocks complete"
	}
	body := fmt.Sprintf("%s: %d/%d blocks, avg focus %d, streak %d",
		sum.Date, sum.CompletedCount, sum.TotalBlocks, sum.AvgFocusScore, streak)
	return notify.Notification{Title: title, Body: body, At: time.Now()}
}

func resolveLocation(name string) *time.Location {
	if name == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		appLog.Error("failed to load timezone; falling back to local", err, "name", name)
		return time.Local
	}
	return loc
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/lockind/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")

	flag.Parse()

	return cfg
}
