package bench

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// checkEvery is how many candidates are tested between deadline and
// cancellation checks. Keeps the hot loop free of clock reads.
const checkEvery = 64

func (r *Runner) runCPUPhase(ctx context.Context, rec *Recorder) (CPUResult, error) {
	budget := time.Duration(r.cfg.CPUDurationMs) * time.Millisecond
	rec.Linef("cpu: trial division for %dms", r.cfg.CPUDurationMs)
	r.logger.Debug("cpu phase starting", zap.Duration("budget", budget))

	start := time.Now()
	deadline := start.Add(budget)
	nextReport := start.Add(time.Second)

	var iterations, primes uint64
	candidate := uint64(2)
	for {
		for i := 0; i < checkEvery; i++ {
			if isPrime(candidate) {
				primes++
			}
			iterations++
			candidate++
		}

		if err := ctx.Err(); err != nil {
			return CPUResult{}, err
		}
		now := time.Now()
		if now.After(deadline) {
			break
		}
		if now.After(nextReport) {
			rec.Linef("cpu: %d candidates tested, %d primes", iterations, primes)
			nextReport = nextReport.Add(time.Second)
		}
	}

	elapsed := time.Since(start)
	ops := float64(iterations) / elapsed.Seconds()
	rec.Linef("cpu: done, %d candidates, %d primes, %.0f ops/s", iterations, primes, ops)
	r.logger.Debug("cpu phase complete",
		zap.Uint64("iterations", iterations),
		zap.Uint64("primes", primes),
		zap.Duration("elapsed", elapsed))

	return CPUResult{
		Iterations:   iterations,
		PrimesFound:  primes,
		DurationMs:   elapsed.Milliseconds(),
		OpsPerSecond: ops,
	}, nil
}

func isPrime(n uint64) bool {
	if n < 2 {
		return false
	}
	if n%2 == 0 {
		return n == 2
	}
	for d := uint64(3); d*d <= n; d += 2 {
		if n%d == 0 {
			return false
		}
	}
	return true
}
