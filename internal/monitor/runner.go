// Package monitor orchestrates complete monitoring passes: scrape the
// configured titles, decide what is alert-worthy, update the ledger and
// deliver at most one notification. The daemon in this package repeats
// passes on a cron schedule.
package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/Mantene/tdf-alerts/internal/alert"
	"github.com/Mantene/tdf-alerts/internal/config"
	"github.com/Mantene/tdf-alerts/internal/ledger"
	"github.com/Mantene/tdf-alerts/internal/notify"
	"github.com/Mantene/tdf-alerts/internal/scrape"
	"github.com/Mantene/tdf-alerts/internal/storage"
	logx "github.com/Mantene/tdf-alerts/pkg/logx"
)

// Runner executes one monitoring pass per Run call. Collaborators not
// injected through options are built from the config, so a fresh Runner
// per pass picks up hot-reloaded settings.
type Runner struct {
	cfg *config.Config
	log logx.Logger

	src   scrape.Source
	ch    notify.Channel
	store storage.Store
	now   func() time.Time
}

type RunnerOption func(*Runner)

// WithSource substitutes the TDF site client.
func WithSource(src scrape.Source) RunnerOption {
	return func(r *Runner) { r.src = src }
}

// WithChannel substitutes the notification channel.
func WithChannel(ch notify.Channel) RunnerOption {
	return func(r *Runner) { r.ch = ch }
}

// WithStore substitutes the ledger store. The caller keeps ownership;
// the Runner will not close it.
func WithStore(st storage.Store) RunnerOption {
	return func(r *Runner) { r.store = st }
}

// WithClock pins the report timestamp.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

func NewRunner(cfg *config.Config, log logx.Logger, opts ...RunnerOption) *Runner {
	if log.IsZero() {
		log = logx.Nop()
	}
	r := &Runner{cfg: cfg, log: log, now: time.Now}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run performs one complete pass. It returns an error only for
// configuration-class failures (channel or client construction); scrape,
// ledger and delivery failures are logged and absorbed so a scheduled
// pass always completes.
func (r *Runner) Run(ctx context.Context) error {
	cfg := r.cfg
	log := r.log.With(logx.String("run_id", uuid.NewString()))

	mode := "open-discovery"
	if cfg.FilterDate != "" {
		mode = "fixed-date"
	}
	start := r.now()
	log.Info("monitor pass started",
		logx.String("mode", mode),
		logx.Int("titles", len(cfg.Titles)))

	st := r.store
	if st == nil {
		opened, err := r.openStore(log)
		if err != nil {
			log.Warn("ledger store unavailable; this pass will not be recorded", logx.Err(err))
		} else {
			st = opened
			defer opened.Close()
		}
	}
	led := ledger.Load(ctx, st, log)

	src := r.src
	if src == nil {
		built, err := r.buildSource(log)
		if err != nil {
			return fmt.Errorf("scrape client: %w", err)
		}
		src = built
	}

	ch := r.ch
	if ch == nil {
		built, err := notify.New(cfg.Notifications, log)
		if err != nil {
			return fmt.Errorf("notification channel: %w", err)
		}
		ch = built
	}

	observations := r.collect(ctx, src, log)

	if cfg.FilterDate != "" {
		r.finishFixed(ctx, led, ch, observations, log)
	} else {
		r.finishOpen(ctx, led, ch, observations, log)
	}

	log.Info("monitor pass complete", logx.Duration("took", r.now().Sub(start)))
	return nil
}

// collect logs in and searches every configured title. Scrape failures
// degrade to absent observations so one broken title page cannot spoil
// the pass.
func (r *Runner) collect(ctx context.Context, src scrape.Source, log logx.Logger) []scrape.Observation {
	if err := src.Authenticate(ctx); err != nil {
		log.Error("login failed; aborting scrape", logx.Err(err))
		return nil
	}

	var out []scrape.Observation
	for _, title := range r.cfg.Titles {
		log.Info("searching for title", logx.String("title", title))

		u, err := src.FindTitle(ctx, title, r.cfg.FilterDate)
		if err != nil {
			log.Warn("title search failed", logx.String("title", title), logx.Err(err))
			continue
		}
		if u == "" {
			log.Debug("title not listed", logx.String("title", title))
			continue
		}

		if r.cfg.FilterDate != "" {
			// The listing was already filtered to the requested date;
			// presence alone confirms availability.
			log.Info("title available on filter date",
				logx.String("title", title), logx.String("date", r.cfg.FilterDate))
			out = append(out, scrape.Observation{Title: title, URL: u, Dates: []string{r.cfg.FilterDate}})
			continue
		}

		dates, err := src.ListDates(ctx, u)
		if err != nil {
			log.Warn("date fetch failed", logx.String("title", title), logx.Err(err))
			continue
		}
		log.Info("title found", logx.String("title", title), logx.Int("dates", len(dates)))
		out = append(out, scrape.Observation{Title: title, URL: u, Dates: dates})
	}
	return out
}

// finishFixed alerts on every confirmed title. History never suppresses
// fixed-date alerts; the ledger is updated only after the delivery
// attempt.
func (r *Runner) finishFixed(ctx context.Context, led *ledger.Ledger, ch notify.Channel, observations []scrape.Observation, log logx.Logger) {
	batch := alert.EvaluateFixed(observations, r.cfg.FilterDate)
	if batch.Empty() {
		log.Info("no titles found for the filter date", logx.String("date", r.cfg.FilterDate))
		return
	}

	r.deliver(ctx, ch, batch, log)
	for _, it := range batch.Items {
		led.Merge(ctx, it.Title, []string{r.cfg.FilterDate})
	}
}

// finishOpen alerts only on dates the ledger has not seen. The full
// observed set is merged for every alerted title before delivery, so a
// failed send is not retried with the same dates on the next pass.
func (r *Runner) finishOpen(ctx context.Context, led *ledger.Ledger, ch notify.Channel, observations []scrape.Observation, log logx.Logger) {
	batch := alert.EvaluateOpen(observations, led)
	if batch.Empty() {
		log.Info("no new dates to alert")
		return
	}

	byTitle := make(map[string][]string, len(observations))
	for _, o := range observations {
		byTitle[o.Title] = o.Dates
	}
	for _, it := range batch.Items {
		led.Merge(ctx, it.Title, byTitle[it.Title])
	}

	r.deliver(ctx, ch, batch, log)
}

func (r *Runner) deliver(ctx context.Context, ch notify.Channel, batch alert.Batch, log logx.Logger) {
	report := alert.FormatReport(batch, r.now())
	if err := ch.Send(ctx, report); err != nil {
		log.Error("notification delivery failed",
			logx.String("channel", ch.Name()), logx.Err(err))
		return
	}
	log.Info("alert sent",
		logx.String("channel", ch.Name()), logx.Int("titles", len(batch.Items)))
}

func (r *Runner) openStore(log logx.Logger) (storage.Store, error) {
	busy, err := config.ParseDurationField("ledger.busy_timeout", r.cfg.Ledger.BusyTimeout)
	if err != nil {
		return nil, err
	}
	return storage.Open(storage.Config{
		Driver:      r.cfg.Ledger.Driver,
		Path:        r.cfg.Ledger.Path,
		BusyTimeout: busy,
	}, log)
}

func (r *Runner) buildSource(log logx.Logger) (scrape.Source, error) {
	timeout, err := config.ParseDurationOrDefault("scrape.timeout", r.cfg.Scrape.Timeout, 30*time.Second)
	if err != nil {
		return nil, err
	}
	delay, err := config.ParseDurationOrDefault("scrape.search_delay", r.cfg.Scrape.SearchDelay, time.Second)
	if err != nil {
		return nil, err
	}
	return scrape.NewClient(scrape.Options{
		LoginURL:     r.cfg.Scrape.LoginURL,
		OfferingsURL: r.cfg.Scrape.OfferingsURL,
		Email:        r.cfg.Credentials.Email,
		Password:     r.cfg.Credentials.Password,
		Timeout:      timeout,
		SearchDelay:  delay,
	}, log)
}
