package cli

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sadopc/prodhub/internal/calendar"
	"github.com/sadopc/prodhub/internal/config"
	"github.com/sadopc/prodhub/internal/session"
	"github.com/sadopc/prodhub/internal/store"
	"github.com/sadopc/prodhub/internal/suggest"
)

const readyTimeout = 10 * time.Second

// app is a running session plus the resources it holds.
type app struct {
	cfg   config.Config
	log   zerolog.Logger
	loc   *time.Location
	store *store.Store
	sess  *session.Session

	cancel context.CancelFunc
	done   chan struct{}
	runErr error
}

func (g *globals) load() (config.Config, error) {
	path := g.configPath
	if path == "" {
		if p, err := config.DefaultPath(); err == nil {
			path = p
		}
	}
	cfg, err := config.Load(path)
	if err != nil {
		return cfg, err
	}
	if g.owner != "" {
		cfg.Owner = g.owner
	}
	if g.dsn != "" {
		cfg.DSN = g.dsn
	}
	if g.logLevel != "" {
		cfg.LogLevel = g.logLevel
	}
	return cfg, cfg.Validate()
}

func newLogger(w io.Writer, level string) (zerolog.Logger, error) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("invalid log level %q: %w", level, err)
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}).
		Level(lvl).
		With().Timestamp().
		Logger(), nil
}

func openStore(cfg config.Config, watchFile bool, log *zerolog.Logger) (*store.Store, error) {
	dsn := cfg.DSN
	if cfg.Driver == store.DriverSQLite && dsn == "" {
		p, err := store.DefaultDBPath()
		if err != nil {
			return nil, err
		}
		dsn = p
	}
	return store.Open(store.Options{
		Driver:    cfg.Driver,
		DSN:       dsn,
		WatchFile: watchFile,
		Logger:    log,
	})
}

// openApp loads the config, opens the store and starts a session. It
// returns once every collection has been loaded.
func openApp(cmd *cobra.Command, g *globals, watchFile bool) (*app, error) {
	cfg, err := g.load()
	if err != nil {
		return nil, err
	}
	log, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return nil, err
	}
	st, err := openStore(cfg, watchFile && cfg.WatchFile, &log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	if cfg, err = applySettings(cmd.Context(), st, cfg); err != nil {
		st.Close()
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		st.Close()
		return nil, err
	}

	cal, err := calendar.New(calendar.Options{
		BaseURL:    cfg.Calendar.BaseURL,
		Exclude:    cfg.Calendar.Exclude,
		HTTPClient: &http.Client{Timeout: cfg.Calendar.Timeout},
		Logger:     &log,
	})
	if err != nil {
		st.Close()
		return nil, err
	}
	sg, err := suggest.New(suggest.Options{
		BaseURL:    cfg.Suggest.BaseURL,
		APIKey:     cfg.Suggest.APIKey,
		Model:      cfg.Suggest.Model,
		HTTPClient: &http.Client{Timeout: cfg.Suggest.Timeout},
		Logger:     &log,
	})
	if err != nil {
		st.Close()
		return nil, err
	}

	sess := session.New(cfg.Owner, st, session.Options{
		Logger:    &log,
		Location:  loc,
		Calendar:  cal,
		Suggester: sg,
	})

	ctx, cancel := context.WithCancel(cmd.Context())
	a := &app{
		cfg:    cfg,
		log:    log,
		loc:    loc,
		store:  st,
		sess:   sess,
		cancel: cancel,
		done:   make(chan struct{}),
	}
	go func() {
		a.runErr = sess.Run(ctx)
		close(a.done)
	}()

	if err := a.waitReady(ctx); err != nil {
		a.close()
		return nil, fmt.Errorf("load collections: %w", err)
	}
	return a, nil
}

// waitReady fails fast when a collection cannot be loaded.
func (a *app) waitReady(ctx context.Context) error {
	timer := time.NewTimer(readyTimeout)
	defer timer.Stop()
	for {
		select {
		case <-a.sess.Ready():
			return nil
		case ev := <-a.sess.Events():
			if ev.Kind == session.SubscriptionFailed {
				return fmt.Errorf("%s: %w", ev.Collection, ev.Err)
			}
		case <-a.done:
			if a.runErr != nil {
				return a.runErr
			}
			return session.ErrStopped
		case <-timer.C:
			return context.DeadlineExceeded
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// applySettings overlays the owner's stored preferences.
func applySettings(ctx context.Context, st *store.Store, cfg config.Config) (config.Config, error) {
	all, err := st.GetAllSettings(ctx, cfg.Owner)
	if err != nil {
		return cfg, fmt.Errorf("read settings: %w", err)
	}
	m := make(map[string]string, len(all))
	for _, s := range all {
		m[s.Key] = s.Value
	}
	out, err := cfg.WithSettings(m)
	if err != nil {
		return cfg, fmt.Errorf("stored settings: %w", err)
	}
	return out, nil
}

func (a *app) close() {
	a.cancel()
	<-a.done
	a.sess.Close()
	a.store.Close()
}

func (a *app) now() time.Time { return time.Now().In(a.loc) }

// syncCalendar refreshes external events when a token is configured.
// Failures leave the schedule without external events.
func (a *app) syncCalendar(ctx context.Context) {
	if a.cfg.Calendar.Token == "" {
		return
	}
	n, err := a.sess.SyncCalendar(ctx, a.cfg.Calendar.Token)
	if err != nil {
		a.log.Warn().Err(err).Msg("calendar sync failed, showing local deadlines only")
		return
	}
	a.log.Info().Int("events", n).Msg("calendar synced")
}

// withApp runs fn with an open app and closes it afterwards.
func withApp(cmd *cobra.Command, g *globals, fn func(a *app) error) error {
	a, err := openApp(cmd, g, false)
	if err != nil {
		return err
	}
	defer a.close()
	return fn(a)
}

type settingsStore struct {
	st    *store.Store
	owner string
	cfg   config.Config
}

// withStore opens only the store; settings need no session.
func withStore(cmd *cobra.Command, g *globals, fn func(s *settingsStore) error) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	log, err := newLogger(cmd.ErrOrStderr(), cfg.LogLevel)
	if err != nil {
		return err
	}
	st, err := openStore(cfg, false, &log)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()
	return fn(&settingsStore{st: st, owner: cfg.Owner, cfg: cfg})
}
