package telemetry

import (
	"fmt"
	"os"
	"runtime"
	"sync"

	"github.com/grafana/pyroscope-go"
	"go.uber.org/zap"
)

// ProfilerConfig selects which profile families the gateway streams to
// Pyroscope. Mutex and block profiling change runtime sampling rates, so
// they stay off unless asked for.
type ProfilerConfig struct {
	Enabled         bool
	ServerAddress   string
	ApplicationName string

	// Grafana Cloud needs basic auth; a self-hosted server ignores it.
	BasicAuthUser     string
	BasicAuthPassword string

	ProfileCPU           bool
	ProfileAllocObjects  bool
	ProfileAllocSpace    bool
	ProfileInuseObjects  bool
	ProfileInuseSpace    bool
	ProfileGoroutines    bool
	ProfileMutexCount    bool
	ProfileMutexDuration bool
	ProfileBlockCount    bool
	ProfileBlockDuration bool

	MutexProfileFraction int
	BlockProfileRate     int
	DisableGCRuns        bool
}

// defaultContentionSampling is the runtime sampling value applied when mutex
// or block profiling is enabled without an explicit rate.
const defaultContentionSampling = 5

// Profiler owns the Pyroscope session. A disabled profiler is a valid
// no-op value, so callers defer Stop unconditionally.
type Profiler struct {
	session *pyroscope.Profiler
	log     *zap.Logger
	cfg     ProfilerConfig

	mu      sync.Mutex
	stopped bool
}

// NewProfiler starts continuous profiling against the configured server.
func NewProfiler(cfg ProfilerConfig, log *zap.Logger) (*Profiler, error) {
	p := &Profiler{log: log, cfg: cfg}
	if !cfg.Enabled {
		log.Info("Continuous profiling disabled")
		return p, nil
	}

	if cfg.ServerAddress == "" {
		return nil, fmt.Errorf("profiler enabled without a server address")
	}
	if cfg.ApplicationName == "" {
		return nil, fmt.Errorf("profiler enabled without an application name")
	}

	configureContentionProfiling(cfg, log)

	types := cfg.profileTypes()
	if len(types) == 0 {
		log.Warn("Profiler started with no profile types selected")
	}

	session, err := pyroscope.Start(pyroscope.Config{
		ApplicationName:   cfg.ApplicationName,
		ServerAddress:     cfg.ServerAddress,
		BasicAuthUser:     cfg.BasicAuthUser,
		BasicAuthPassword: cfg.BasicAuthPassword,
		Logger:            pyroscopeZap{log.Named("pyroscope").Sugar()},
		Tags:              instanceTags(),
		ProfileTypes:      types,
		DisableGCRuns:     cfg.DisableGCRuns,
	})
	if err != nil {
		return nil, fmt.Errorf("start profiler: %w", err)
	}
	p.session = session

	log.Info("Continuous profiling started",
		zap.String("server", cfg.ServerAddress),
		zap.String("application", cfg.ApplicationName),
		zap.Int("profile_types", len(types)),
	)
	return p, nil
}

// configureContentionProfiling turns on the runtime's mutex and block
// samplers when the matching profile families are requested.
func configureContentionProfiling(cfg ProfilerConfig, log *zap.Logger) {
	if cfg.ProfileMutexCount || cfg.ProfileMutexDuration {
		fraction := cfg.MutexProfileFraction
		if fraction <= 0 {
			fraction = defaultContentionSampling
		}
		runtime.SetMutexProfileFraction(fraction)
		log.Debug("Mutex profiling on", zap.Int("fraction", fraction))
	}
	if cfg.ProfileBlockCount || cfg.ProfileBlockDuration {
		rate := cfg.BlockProfileRate
		if rate <= 0 {
			rate = defaultContentionSampling
		}
		runtime.SetBlockProfileRate(rate)
		log.Debug("Block profiling on", zap.Int("rate", rate))
	}
}

// profileTypes translates the config flags into the SDK's type list.
func (cfg ProfilerConfig) profileTypes() []pyroscope.ProfileType {
	selections := []struct {
		enabled bool
		t       pyroscope.ProfileType
	}{
		{cfg.ProfileCPU, pyroscope.ProfileCPU},
		{cfg.ProfileAllocObjects, pyroscope.ProfileAllocObjects},
		{cfg.ProfileAllocSpace, pyroscope.ProfileAllocSpace},
		{cfg.ProfileInuseObjects, pyroscope.ProfileInuseObjects},
		{cfg.ProfileInuseSpace, pyroscope.ProfileInuseSpace},
		{cfg.ProfileGoroutines, pyroscope.ProfileGoroutines},
		{cfg.ProfileMutexCount, pyroscope.ProfileMutexCount},
		{cfg.ProfileMutexDuration, pyroscope.ProfileMutexDuration},
		{cfg.ProfileBlockCount, pyroscope.ProfileBlockCount},
		{cfg.ProfileBlockDuration, pyroscope.ProfileBlockDuration},
	}

	var types []pyroscope.ProfileType
	for _, s := range selections {
		if s.enabled {
			types = append(types, s.t)
		}
	}
	return types
}

// instanceTags labels profiles with scheduler-provided identity so one
// misbehaving replica can be isolated in the UI.
func instanceTags() map[string]string {
	tags := map[string]string{}
	if hostname := os.Getenv("HOSTNAME"); hostname != "" {
		tags["hostname"] = hostname
	}
	if pod := os.Getenv("POD_NAME"); pod != "" {
		tags["pod"] = pod
	}
	return tags
}

// Stop flushes pending profiles and ends the session. Safe to call more
// than once. The SDK's Stop has no context parameter; it bounds itself with
// internal timeouts.
func (p *Profiler) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stopped {
		return nil
	}
	p.stopped = true

	if p.session == nil {
		return nil
	}

	p.log.Info("Stopping continuous profiling")
	if err := p.session.Stop(); err != nil {
		p.log.Error("Profiler stop failed", zap.Error(err))
		return fmt.Errorf("stop profiler: %w", err)
	}
	return nil
}

// IsEnabled reports whether a profiling session is running.
func (p *Profiler) IsEnabled() bool {
	return p.cfg.Enabled && p.session != nil
}

// pyroscopeZap satisfies the SDK's printf-style logger with the gateway's
// zap logger.
type pyroscopeZap struct {
	s *zap.SugaredLogger
}

func (l pyroscopeZap) Infof(format string, args ...any)  { l.s.Infof(format, args...) }
func (l pyroscopeZap) Debugf(format string, args ...any) { l.s.Debugf(format, args...) }
func (l pyroscopeZap) Errorf(format string, args ...any) { l.s.Errorf(format, args...) }
