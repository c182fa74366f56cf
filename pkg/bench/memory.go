package bench

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// checksumModulus reduces the read-pass accumulator to the checksum
// reported as the tamper-evidence signal.
const checksumModulus = 1_000_000

func (r *Runner) runMemoryPhase(ctx context.Context, rec *Recorder) (MemoryResult, error) {
	sizeBytes := int64(r.cfg.MemorySizeMB) * bytesPerMiB
	elems := sizeBytes / 8

	rec.Linef("memory: allocating %dMB buffer", r.cfg.MemorySizeMB)
	r.logger.Debug("memory phase starting", zap.Int64("size_bytes", sizeBytes))

	buf := make([]uint64, elems)

	writeStart := time.Now()
	for i := range buf {
		buf[i] = uint64(i % 256)
	}
	writeElapsed := time.Since(writeStart)
	writeMBps := mbps(sizeBytes, writeElapsed)
	rec.Linef("memory: write pass %dms, %.1f MB/s", writeElapsed.Milliseconds(), writeMBps)

	if err := ctx.Err(); err != nil {
		return MemoryResult{}, err
	}

	readStart := time.Now()
	var sum uint64
	for _, v := range buf {
		sum += v
	}
	readElapsed := time.Since(readStart)
	readMBps := mbps(sizeBytes, readElapsed)

	checksum := sum % checksumModulus
	rec.Linef("memory: read pass %dms, %.1f MB/s, checksum %d",
		readElapsed.Milliseconds(), readMBps, checksum)
	r.logger.Debug("memory phase complete",
		zap.Float64("write_mbps", writeMBps),
		zap.Float64("read_mbps", readMBps),
		zap.Uint64("checksum", checksum))

	return MemoryResult{
		SizeMB:          r.cfg.MemorySizeMB,
		WriteMBps:       writeMBps,
		ReadMBps:        readMBps,
		Checksum:        checksum,
		WriteDurationMs: writeElapsed.Milliseconds(),
		ReadDurationMs:  readElapsed.Milliseconds(),
	}, nil
}
