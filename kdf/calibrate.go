package kdf

import (
	"context"
	"time"

	"github.com/jmcleod/ironseal/internal/util"
)

// calibrationSample is the iteration count timed to extrapolate from.
const calibrationSample = 20_000

func measurePBKDF2(iterations uint32) time.Duration {
	salt := make([]byte, MinSaltLen)
	start := time.Now()
	util.DerivePBKDF2Key([]byte("calibration"), salt, iterations)
	return time.Since(start)
}

// Calibrate returns the PBKDF2 iteration count that takes roughly the
// calibration target on this device, clamped to the accepted range and
// rounded to IterationStep. The result is cached.
func (m *Manager) Calibrate(ctx context.Context) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calibrateLocked(ctx)
}

func (m *Manager) calibrateLocked(ctx context.Context) (uint32, error) {
	if m.iterations != 0 {
		return m.iterations, nil
	}

	result := make(chan time.Duration, 1)
	go func() {
		result <- m.measure(calibrationSample)
	}()

	var elapsed time.Duration
	select {
	case elapsed = <-result:
	case <-ctx.Done():
		return 0, ctx.Err()
	}

	n := iterationsFor(elapsed, m.calibrationTarget)
	m.logger.Debug("pbkdf2 calibrated", "iterations", n, "sample_elapsed", elapsed)
	m.iterations = n
	return n, nil
}

func iterationsFor(sampleElapsed, target time.Duration) uint32 {
	if sampleElapsed <= 0 {
		return util.MaxPBKDF2Iterations
	}
	est := float64(calibrationSample) * float64(target) / float64(sampleElapsed)
	switch {
	case est < util.MinPBKDF2Iterations:
		return util.MinPBKDF2Iterations
	case est > util.MaxPBKDF2Iterations:
		return util.MaxPBKDF2Iterations
	}
	n := (uint32(est) + IterationStep/2) / IterationStep * IterationStep
	if n > util.MaxPBKDF2Iterations {
		n = util.MaxPBKDF2Iterations
	}
	return n
}
