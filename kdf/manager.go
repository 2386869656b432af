package kdf

import (
	"context"
	"errors"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/jmcleod/ironseal/errcode"
	"github.com/jmcleod/ironseal/internal/util"
	"golang.org/x/sync/semaphore"
)

// ErrNoStrategy is wrapped when no usable hash primitive exists at all.
var ErrNoStrategy = errors.New("no usable key derivation primitive")

// Capability is the result of probing the runtime.
type Capability struct {
	MemoryHard bool
	Baseline   bool
	ProbedAt   time.Time
}

// Preferred returns the algorithm new records should use.
func (c Capability) Preferred() Algorithm {
	if c.MemoryHard {
		return Argon2id
	}
	return PBKDF2
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) {
		m.logger = logger.With("component", "kdf")
	}
}

// WithCapabilityProbe replaces the memory-hard availability check. Runtimes
// that cannot afford Argon2id's working memory can return false here to force
// the iteration-based fallback.
func WithCapabilityProbe(probe func() bool) Option {
	return func(m *Manager) {
		m.probeMemoryHard = probe
	}
}

// WithCalibrationTarget sets the wall time one PBKDF2 derivation should take.
// Default: 250ms.
func WithCalibrationTarget(d time.Duration) Option {
	return func(m *Manager) {
		m.calibrationTarget = d
	}
}

// WithMaxConcurrent bounds how many derivations run at once.
// Default: runtime.NumCPU() / 2, at least 1.
func WithMaxConcurrent(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.workers = semaphore.NewWeighted(int64(n))
		}
	}
}

// WithProfile registers or overrides the memory-hard profile for class.
// Decrypt-failure classification compares recorded parameters against this
// table: a manager that lacks the override reports a wrong secret on such a
// record as AAD_MISMATCH, so every session that opens it needs the same
// option.
func WithProfile(class DeviceClass, params Argon2idParams) Option {
	return func(m *Manager) {
		m.profiles[class] = params
	}
}

// Manager selects and runs KDF strategies. It caches the capability probe
// and the calibrated iteration count for its lifetime; one Manager belongs
// to one session.
type Manager struct {
	logger            *slog.Logger
	strategies        map[Algorithm]Strategy
	profiles          map[DeviceClass]Argon2idParams
	probeMemoryHard   func() bool
	probeBaseline     func() bool
	calibrationTarget time.Duration
	measure           func(iterations uint32) time.Duration
	workers           *semaphore.Weighted

	mu         sync.Mutex
	capability *Capability
	iterations uint32
}

// NewManager returns a Manager with both built-in strategies registered.
func NewManager(opts ...Option) *Manager {
	workers := runtime.NumCPU() / 2
	if workers < 1 {
		workers = 1
	}
	m := &Manager{
		logger: slog.Default().With("component", "kdf"),
		strategies: map[Algorithm]Strategy{
			Argon2id: Argon2idStrategy{},
			PBKDF2:   PBKDF2Strategy{},
		},
		profiles:          defaultArgon2Profiles(),
		probeMemoryHard:   probeArgon2id,
		probeBaseline:     probePBKDF2,
		calibrationTarget: 250 * time.Millisecond,
		measure:           measurePBKDF2,
		workers:           semaphore.NewWeighted(int64(workers)),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// ProbeCapability reports which strategies are usable. The first call runs
// the probe; later calls return the cached result until InvalidateCapability.
func (m *Manager) ProbeCapability(ctx context.Context) (Capability, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.probeLocked(ctx)
}

func (m *Manager) probeLocked(ctx context.Context) (Capability, error) {
	if m.capability != nil {
		return *m.capability, nil
	}

	result := make(chan Capability, 1)
	go func() {
		result <- Capability{
			Baseline:   m.probeBaseline(),
			MemoryHard: m.probeMemoryHard(),
			ProbedAt:   time.Now(),
		}
	}()

	var c Capability
	select {
	case c = <-result:
	case <-ctx.Done():
		return Capability{}, ctx.Err()
	}

	if !c.Baseline {
		return Capability{}, errcode.New(errcode.InvalidKey, "kdf.probe", ErrNoStrategy)
	}
	if !c.MemoryHard {
		m.logger.Warn("memory-hard kdf unavailable, falling back to pbkdf2")
	}
	m.logger.Debug("kdf capability probed", "memory_hard", c.MemoryHard)
	m.capability = &c
	return c, nil
}

// InvalidateCapability drops the cached probe and calibration so the next
// call re-probes.
func (m *Manager) InvalidateCapability() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.capability = nil
	m.iterations = 0
}

// SelectProfile picks the profile new records for class should use.
func (m *Manager) SelectProfile(ctx context.Context, class DeviceClass) (Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, err := m.probeLocked(ctx)
	if err != nil {
		return Profile{}, err
	}

	if c.MemoryHard {
		params, ok := m.profiles[class]
		if !ok {
			return Profile{}, errcode.Errorf(errcode.ParamMismatch, "kdf.select", "unknown device class %q", class)
		}
		return Profile{Name: string(class), Algorithm: Argon2id, Argon2: params}, nil
	}

	if !ValidName(string(class)) {
		return Profile{}, errcode.Errorf(errcode.ParamMismatch, "kdf.select", "unknown device class %q", class)
	}
	iterations, err := m.calibrateLocked(ctx)
	if err != nil {
		return Profile{}, err
	}
	return PBKDF2Profile(class, iterations), nil
}

// MatchesProfile reports whether p carries exactly the parameters its name
// implies. Argon2id profiles must equal the registered set; PBKDF2 counts
// must sit on the calibration grid.
func (m *Manager) MatchesProfile(p Profile) bool {
	switch p.Algorithm {
	case Argon2id:
		params, ok := m.profiles[DeviceClass(p.Name)]
		return ok && params == p.Argon2
	case PBKDF2:
		return p.Hash == HashSHA256 && p.Iterations%IterationStep == 0 && ValidName(p.Name)
	default:
		return false
	}
}

// Derive runs the strategy recorded in p. The work happens on a background
// worker; if ctx ends first the caller gets ctx.Err() and the late key is
// wiped when it arrives.
func (m *Manager) Derive(ctx context.Context, secret, salt []byte, p Profile) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := validateSalt(salt); err != nil {
		return nil, err
	}
	s, ok := m.strategies[p.Algorithm]
	if !ok {
		return nil, errcode.Errorf(errcode.ParamMismatch, "kdf.derive", "no strategy for %q", p.Algorithm)
	}

	secretCopy := util.CopyBytes(secret)
	saltCopy := util.CopyBytes(salt)
	return m.run(ctx, func() ([]byte, error) {
		defer util.WipeBytes(secretCopy)
		return s.Derive(secretCopy, saltCopy, p)
	})
}

type derived struct {
	key []byte
	err error
}

func (m *Manager) run(ctx context.Context, fn func() ([]byte, error)) ([]byte, error) {
	// Acquire may succeed on a context that is already done.
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := m.workers.Acquire(ctx, 1); err != nil {
		return nil, err
	}

	ch := make(chan derived, 1)
	go func() {
		defer m.workers.Release(1)
		key, err := fn()
		ch <- derived{key: key, err: err}
	}()

	select {
	case r := <-ch:
		return r.key, r.err
	case <-ctx.Done():
		go func() {
			r := <-ch
			util.WipeBytes(r.key)
		}()
		return nil, ctx.Err()
	}
}
