package kdf

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/internal/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSalt = []byte("0123456789abcdef")

// fastArgon2 keeps the memory-hard tests quick while staying in range.
var fastArgon2 = Argon2idParams{Time: util.MinArgon2Time, MemoryKiB: util.MinArgon2MemoryKiB, Parallelism: 1}

func TestProbeCapability_Cached(t *testing.T) {
	var calls atomic.Int32
	m := NewManager(WithCapabilityProbe(func() bool {
		calls.Add(1)
		return true
	}))

	c1, err := m.ProbeCapability(t.Context())
	require.NoError(t, err)
	c2, err := m.ProbeCapability(t.Context())
	require.NoError(t, err)

	assert.True(t, c1.MemoryHard)
	assert.True(t, c1.Baseline)
	assert.Equal(t, c1, c2)
	assert.Equal(t, int32(1), calls.Load(), "probe must run once per manager")

	m.InvalidateCapability()
	_, err = m.ProbeCapability(t.Context())
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load(), "invalidation must allow one re-probe")
}

func TestProbeCapability_DefaultProbeFindsArgon2(t *testing.T) {
	c, err := NewManager().ProbeCapability(t.Context())
	require.NoError(t, err)
	assert.True(t, c.MemoryHard)
	assert.Equal(t, Argon2id, c.Preferred())
}

func TestProbeCapability_NoBaselineIsFatal(t *testing.T) {
	m := NewManager()
	m.probeBaseline = func() bool { return false }

	_, err := m.ProbeCapability(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, errcode.ErrInvalidKey)
	assert.ErrorIs(t, err, ErrNoStrategy)
}

func TestSelectProfile_MemoryHard(t *testing.T) {
	m := NewManager()
	for _, class := range []DeviceClass{Mobile, Desktop, Server} {
		t.Run(string(class), func(t *testing.T) {
			p, err := m.SelectProfile(t.Context(), class)
			require.NoError(t, err)
			assert.Equal(t, Argon2id, p.Algorithm)
			assert.Equal(t, string(class), p.Name)
			assert.NoError(t, p.Validate())
			assert.True(t, m.MatchesProfile(p))
		})
	}

	desktop, err := m.SelectProfile(t.Context(), Desktop)
	require.NoError(t, err)
	assert.Equal(t, Argon2idParams{Time: 3, MemoryKiB: 64 * 1024, Parallelism: 4}, desktop.Argon2)

	_, err = m.SelectProfile(t.Context(), DeviceClass("toaster"))
	assert.ErrorIs(t, err, errcode.ErrParamMismatch)
}

func TestSelectProfile_FallbackCalibrates(t *testing.T) {
	m := NewManager(WithCapabilityProbe(func() bool { return false }))
	m.measure = func(uint32) time.Duration { return 10 * time.Millisecond }

	p, err := m.SelectProfile(t.Context(), Mobile)
	require.NoError(t, err)
	assert.Equal(t, PBKDF2, p.Algorithm)
	assert.Equal(t, HashSHA256, p.Hash)
	// 20,000 iterations in 10ms scales to 500,000 for 250ms.
	assert.Equal(t, uint32(500_000), p.Iterations)
	assert.True(t, m.MatchesProfile(p))
}

func TestIterationsFor(t *testing.T) {
	target := 250 * time.Millisecond
	tests := []struct {
		name    string
		elapsed time.Duration
		want    uint32
	}{
		{"SlowDeviceClampsLow", time.Second, util.MinPBKDF2Iterations},
		{"FastDeviceClampsHigh", time.Microsecond, util.MaxPBKDF2Iterations},
		{"ZeroElapsed", 0, util.MaxPBKDF2Iterations},
		{"RoundsToStep", 7 * time.Millisecond, 714_000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := iterationsFor(tt.elapsed, target)
			assert.Equal(t, tt.want, got)
			assert.Zero(t, got%IterationStep)
		})
	}
}

func TestCalibrate_Real(t *testing.T) {
	m := NewManager(WithCalibrationTarget(20 * time.Millisecond))
	n, err := m.Calibrate(t.Context())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, n, uint32(util.MinPBKDF2Iterations))
	assert.LessOrEqual(t, n, uint32(util.MaxPBKDF2Iterations))

	again, err := m.Calibrate(t.Context())
	require.NoError(t, err)
	assert.Equal(t, n, again, "calibration is cached")
}

func TestDerive_BothStrategies(t *testing.T) {
	m := NewManager(WithProfile(Desktop, fastArgon2))

	argon := Profile{Name: "desktop", Algorithm: Argon2id, Argon2: fastArgon2}
	pbkdf := PBKDF2Profile(Desktop, util.MinPBKDF2Iterations)

	k1, err := m.Derive(t.Context(), []byte("pw1"), testSalt, argon)
	require.NoError(t, err)
	k2, err := m.Derive(t.Context(), []byte("pw1"), testSalt, pbkdf)
	require.NoError(t, err)

	assert.Len(t, k1, util.DerivedKeyLen)
	assert.Len(t, k2, util.DerivedKeyLen)
	assert.NotEqual(t, k1, k2)

	again, err := m.Derive(t.Context(), []byte("pw1"), testSalt, argon)
	require.NoError(t, err)
	assert.Equal(t, k1, again)
}

func TestDerive_RejectsBeforeWork(t *testing.T) {
	m := NewManager()
	tests := []struct {
		name string
		p    Profile
		salt []byte
	}{
		{"IterationsTooLow", PBKDF2Profile(Desktop, util.MinPBKDF2Iterations-1), testSalt},
		{"IterationsTooHigh", PBKDF2Profile(Desktop, util.MaxPBKDF2Iterations+1), testSalt},
		{"Argon2TimeTooHigh", Profile{Name: "desktop", Algorithm: Argon2id, Argon2: Argon2idParams{Time: 99, MemoryKiB: 64 * 1024, Parallelism: 4}}, testSalt},
		{"UnknownHash", Profile{Name: "desktop", Algorithm: PBKDF2, Iterations: 200_000, Hash: "md5"}, testSalt},
		{"UnknownAlgorithm", Profile{Name: "desktop", Algorithm: "scrypt"}, testSalt},
		{"BadName", Profile{Name: "Desk Top", Algorithm: PBKDF2, Iterations: 200_000, Hash: HashSHA256}, testSalt},
		{"ShortSalt", PBKDF2Profile(Desktop, 200_000), []byte("short")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := m.Derive(t.Context(), []byte("pw"), tt.salt, tt.p)
			assert.ErrorIs(t, err, errcode.ErrParamMismatch)
		})
	}
}

func TestDerive_ContextCancelled(t *testing.T) {
	m := NewManager(WithMaxConcurrent(1))
	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	key, err := m.Derive(ctx, []byte("pw"), testSalt, PBKDF2Profile(Desktop, util.MinPBKDF2Iterations))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Nil(t, key)
}

func TestDerive_TimeoutDiscardsKey(t *testing.T) {
	m := NewManager()
	ctx, cancel := context.WithTimeout(t.Context(), time.Millisecond)
	defer cancel()

	key, err := m.Derive(ctx, []byte("pw"), testSalt, PBKDF2Profile(Desktop, util.MaxPBKDF2Iterations))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Nil(t, key)
}

func TestMatchesProfile(t *testing.T) {
	m := NewManager()
	desktop, err := Argon2idProfile(Desktop)
	require.NoError(t, err)
	assert.True(t, m.MatchesProfile(desktop))

	tampered := desktop
	tampered.Argon2.Time = 4
	assert.False(t, m.MatchesProfile(tampered))

	renamed := desktop
	renamed.Name = "mobile"
	assert.False(t, m.MatchesProfile(renamed))

	assert.True(t, m.MatchesProfile(PBKDF2Profile(Desktop, 310_000)))
	assert.False(t, m.MatchesProfile(PBKDF2Profile(Desktop, 310_001)))
}

func TestMatchesProfile_Override(t *testing.T) {
	custom := Profile{Name: string(Desktop), Algorithm: Argon2id, Argon2: fastArgon2}
	assert.False(t, custom.Builtin())

	// Only managers that registered the override accept it.
	assert.True(t, NewManager(WithProfile(Desktop, fastArgon2)).MatchesProfile(custom))
	assert.False(t, NewManager().MatchesProfile(custom))
}

func TestProfileBuiltin(t *testing.T) {
	for _, class := range []DeviceClass{Mobile, Desktop, Server} {
		p, err := Argon2idProfile(class)
		require.NoError(t, err)
		assert.True(t, p.Builtin(), class)
	}
	assert.True(t, PBKDF2Profile(Mobile, 250_000).Builtin())
	assert.False(t, PBKDF2Profile(Mobile, 250_001).Builtin())
	assert.False(t, Profile{Name: "desktop", Algorithm: "scrypt"}.Builtin())
}

func TestProfileString(t *testing.T) {
	p, _ := Argon2idProfile(Desktop)
	assert.Equal(t, "desktop/argon2id(t=3,m=65536KiB,p=4)", p.String())
	assert.Equal(t, "mobile/pbkdf2-sha256(i=100000)", PBKDF2Profile(Mobile, 100_000).String())
}
