// Package supervisor owns the hub's lifetime: loading configuration,
// constructing one bridge.Client and worker.Worker per enabled channel,
// running them, and reacting to config changes on the reload cadence
// (spec §4.6, §5). It generalizes the teacher's accept-loop/listener
// lifecycle (client/main.go, server/main.go) from "one session per TCP
// connection" to "one worker per configured channel".
package supervisor

import (
	"context"
	"fmt"
	"log"
	"runtime"
	"sync"
	"time"

	"github.com/fatih/color"
	"github.com/pkg/errors"

	"github.com/sindlinger/pyshared-hub/internal/bridge"
	"github.com/sindlinger/pyshared-hub/internal/bridge/memring"
	"github.com/sindlinger/pyshared-hub/internal/config"
	"github.com/sindlinger/pyshared-hub/internal/transform"
	"github.com/sindlinger/pyshared-hub/internal/worker"
)

// ReloadInterval is the config hot-reload cadence (spec §5).
const ReloadInterval = 1 * time.Second

// ShutdownTimeout bounds how long Stop waits for workers to notice
// context cancellation before it gives up and returns anyway (spec §5).
const ShutdownTimeout = 2 * time.Second

// ClientFactory constructs the bridge.Client for one channel. Production
// wiring picks the native DLL-backed client on windows and falls back to
// an in-process ring elsewhere (see NativeOrFallback); tests substitute
// their own factory.
type ClientFactory func(channel string) (bridge.Client, error)

// Supervisor runs every enabled channel's worker and reloads
// configuration on a fixed cadence.
type Supervisor struct {
	Log              *log.Logger
	NewClient        ClientFactory
	ConfigPath       string
	SleepOverride    time.Duration
	CapacityOverride int64  // 0 uses the config file's value
	ChannelFilter    string // non-empty restricts startup to this one channel name

	mu     sync.Mutex
	cfg    *config.Config
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Supervisor. logger must not be nil.
func New(logger *log.Logger, newClient ClientFactory, configPath string) *Supervisor {
	return &Supervisor{
		Log:        logger,
		NewClient:  newClient,
		ConfigPath: configPath,
	}
}

// NativeOrFallback returns the native DLL-backed client factory on
// windows, or the in-process memring backend elsewhere with a logged
// warning (spec §9's pluggable-backend intent, since this reference hub
// cannot load a Windows DLL when cross-compiled or run in CI).
func NativeOrFallback(logger *log.Logger, dllPath string, maxDoubles int) ClientFactory {
	return func(channel string) (bridge.Client, error) {
		if runtime.GOOS == "windows" {
			return bridge.NewNativeClient(dllPath)
		}
		logger.Printf("channel %s: native bridge unavailable on %s, using in-process fallback", channel, runtime.GOOS)
		return memring.New(maxDoubles), nil
	}
}

// Start loads configuration, builds one worker per enabled channel, and
// launches them plus the reload loop. It returns once the initial
// configuration has been loaded and every worker goroutine has been
// started.
func (s *Supervisor) Start(ctx context.Context) error {
	cfg, err := config.Load(s.ConfigPath)
	if err != nil {
		return errors.Wrap(err, "supervisor: initial config load")
	}
	if s.CapacityOverride > 0 {
		cfg.Bridge.CapacityBytes = s.CapacityOverride
	}
	if s.ChannelFilter != "" {
		var filtered []config.ChannelConfig
		for _, ch := range cfg.Channels {
			if ch.Name == s.ChannelFilter {
				filtered = append(filtered, ch)
			}
		}
		if len(filtered) == 0 {
			return errors.Errorf("supervisor: channel filter %q matches no configured channel", s.ChannelFilter)
		}
		cfg.Channels = filtered
	}
	s.cfg = cfg

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	if err := s.startWorkers(runCtx, cfg); err != nil {
		cancel()
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.reloadLoop(runCtx)
	}()

	return nil
}

func (s *Supervisor) startWorkers(ctx context.Context, cfg *config.Config) error {
	enabled := cfg.EnabledChannels()
	seen := make(map[string]bool, len(enabled))
	for _, ch := range enabled {
		if seen[ch.Name] {
			return errors.Errorf("supervisor: duplicate channel name %q", ch.Name)
		}
		seen[ch.Name] = true

		client, err := s.NewClient(ch.Name)
		if err != nil {
			return errors.Wrapf(err, "channel %s: open bridge client", ch.Name)
		}
		if err := client.Open(ch.Name, cfg.Bridge.CapacityBytes); err != nil {
			return errors.Wrapf(err, "channel %s: open ring", ch.Name)
		}

		tr, err := transform.New(ch.Transform, ch.Params)
		if err != nil {
			return errors.Wrapf(err, "channel %s: construct transform %q", ch.Name, ch.Transform)
		}

		sleep := time.Duration(cfg.Bridge.SleepMillis) * time.Millisecond
		if s.SleepOverride > 0 {
			sleep = s.SleepOverride
		}
		chLogger := log.New(s.Log.Writer(), fmt.Sprintf("[%s] ", ch.Name), s.Log.Flags())
		w := worker.New(ch.Name, client, tr, sleep, chLogger)

		s.wg.Add(1)
		go func(w *worker.Worker) {
			defer s.wg.Done()
			w.Run(ctx)
		}(w)

		s.Log.Printf("channel %s: started (transform=%s)", ch.Name, ch.Transform)
	}
	return nil
}

// reloadLoop re-reads the config file every ReloadInterval and stores it.
// Nothing from the reloaded file is applied to running workers, and no
// component reads log_every_ms; anything requiring a restart
// (capacity_bytes, channel add/remove/transform/disabled change) only
// produces a warning, since a running worker's Client and Transform are
// already bound (spec §5).
func (s *Supervisor) reloadLoop(ctx context.Context) {
	ticker := time.NewTicker(ReloadInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			next, err := config.Load(s.ConfigPath)
			if err != nil {
				s.Log.Printf("config reload: %v", err)
				continue
			}
			s.mu.Lock()
			prev := s.cfg
			diff := config.Compare(prev, next)
			s.cfg = next
			s.mu.Unlock()

			if diff.RestartRequired {
				for _, reason := range diff.Reasons {
					color.Yellow("config reload: %s (restart required to take effect)", reason)
				}
			}
		}
	}
}

// Stop cancels every worker and waits up to ShutdownTimeout for them to
// return, then gives up and returns regardless so the process can exit
// promptly (spec §5's bounded-join-timeout requirement).
func (s *Supervisor) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(ShutdownTimeout):
		s.Log.Printf("supervisor: shutdown timeout exceeded, abandoning stragglers")
	}
}
