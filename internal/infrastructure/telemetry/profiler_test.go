package telemetry

import (
	"testing"

	"github.com/grafana/pyroscope-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest"
)

func TestNewProfiler_Disabled(t *testing.T) {
	p, err := NewProfiler(ProfilerConfig{
		Enabled:         false,
		ServerAddress:   "http://localhost:4040",
		ApplicationName: "gateway-test",
	}, zaptest.NewLogger(t))
	require.NoError(t, err)
	require.NotNil(t, p)

	assert.False(t, p.IsEnabled())
	assert.NoError(t, p.Stop())
	assert.NoError(t, p.Stop(), "stop stays safe after the first call")
}

func TestNewProfiler_RequiresAddressAndName(t *testing.T) {
	log := zaptest.NewLogger(t)

	_, err := NewProfiler(ProfilerConfig{
		Enabled:         true,
		ApplicationName: "gateway-test",
	}, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server address")

	_, err = NewProfiler(ProfilerConfig{
		Enabled:       true,
		ServerAddress: "http://localhost:4040",
	}, log)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "application name")
}

func TestProfileTypes_Selection(t *testing.T) {
	cases := []struct {
		name string
		cfg  ProfilerConfig
		want []pyroscope.ProfileType
	}{
		{
			name: "none selected",
			cfg:  ProfilerConfig{},
			want: nil,
		},
		{
			name: "cpu only",
			cfg:  ProfilerConfig{ProfileCPU: true},
			want: []pyroscope.ProfileType{pyroscope.ProfileCPU},
		},
		{
			name: "memory family",
			cfg: ProfilerConfig{
				ProfileAllocObjects: true,
				ProfileAllocSpace:   true,
				ProfileInuseObjects: true,
				ProfileInuseSpace:   true,
			},
			want: []pyroscope.ProfileType{
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		},
		{
			name: "contention family",
			cfg: ProfilerConfig{
				ProfileMutexCount:    true,
				ProfileMutexDuration: true,
				ProfileBlockCount:    true,
				ProfileBlockDuration: true,
			},
			want: []pyroscope.ProfileType{
				pyroscope.ProfileMutexCount,
				pyroscope.ProfileMutexDuration,
				pyroscope.ProfileBlockCount,
				pyroscope.ProfileBlockDuration,
			},
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.cfg.profileTypes())
		})
	}
}

func TestProfileTypes_AllFamilies(t *testing.T) {
	cfg := ProfilerConfig{
		ProfileCPU:           true,
		ProfileAllocObjects:  true,
		ProfileAllocSpace:    true,
		ProfileInuseObjects:  true,
		ProfileInuseSpace:    true,
		ProfileGoroutines:    true,
		ProfileMutexCount:    true,
		ProfileMutexDuration: true,
		ProfileBlockCount:    true,
		ProfileBlockDuration: true,
	}
	assert.Len(t, cfg.profileTypes(), 10)
}

func TestInstanceTags(t *testing.T) {
	t.Setenv("HOSTNAME", "gateway-7d4b9")
	t.Setenv("POD_NAME", "gateway-7d4b9-x2k1")

	tags := instanceTags()
	assert.Equal(t, "gateway-7d4b9", tags["hostname"])
	assert.Equal(t, "gateway-7d4b9-x2k1", tags["pod"])
}

func TestInstanceTags_EmptyEnvironment(t *testing.T) {
	t.Setenv("HOSTNAME", "")
	t.Setenv("POD_NAME", "")

	assert.Empty(t, instanceTags())
}

func TestPyroscopeZap_ForwardsWithLevels(t *testing.T) {
	core, logs := observedCore(zapcore.DebugLevel)
	pz := pyroscopeZap{zap.New(core).Sugar()}

	pz.Debugf("uploading %d profiles", 3)
	pz.Infof("session for %s", "gateway")
	pz.Errorf("upload failed: %v", "timeout")

	entries := logs.All()
	require.Len(t, entries, 3)
	assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
	assert.Equal(t, "uploading 3 profiles", entries[0].Message)
	assert.Equal(t, zapcore.InfoLevel, entries[1].Level)
	assert.Equal(t, "session for gateway", entries[1].Message)
	assert.Equal(t, zapcore.ErrorLevel, entries[2].Level)
	assert.Equal(t, "upload failed: timeout", entries[2].Message)
}
