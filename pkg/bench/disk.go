package bench

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
)

// chunkSize is the unit of disk I/O for both passes.
const chunkSize = bytesPerMiB

func (r *Runner) runDiskPhase(ctx context.Context, rec *Recorder) (DiskResult, error) {
	// The scratch directory is exclusively owned by this run; sharing
	// one would compromise both timing and content integrity.
	scratch, err := os.MkdirTemp(r.cfg.ScratchDir, "proofbench-*")
	if err != nil {
		return DiskResult{}, fmt.Errorf("create scratch dir: %w", err)
	}
	defer func() {
		if rmErr := os.RemoveAll(scratch); rmErr != nil {
			r.logger.Warn("scratch dir cleanup failed",
				zap.String("dir", scratch), zap.Error(rmErr))
		}
	}()

	path := filepath.Join(scratch, "bench.dat")
	totalBytes := int64(r.cfg.DiskSizeMB) * bytesPerMiB
	rec.Linef("disk: writing %dMB to scratch dir", r.cfg.DiskSizeMB)
	r.logger.Debug("disk phase starting",
		zap.String("scratch", scratch), zap.Int64("size_bytes", totalBytes))

	chunk := make([]byte, chunkSize)
	for i := range chunk {
		chunk[i] = byte(i % 256)
	}

	writeStart := time.Now()
	written, err := writeBenchFile(ctx, path, chunk, totalBytes)
	if err != nil {
		return DiskResult{}, err
	}
	writeElapsed := time.Since(writeStart)
	writeMBps := mbps(written, writeElapsed)
	rec.Linef("disk: write pass %dms, %.1f MB/s", writeElapsed.Milliseconds(), writeMBps)

	readStart := time.Now()
	read, err := readBenchFile(ctx, path)
	if err != nil {
		return DiskResult{}, err
	}
	readElapsed := time.Since(readStart)
	readMBps := mbps(read, readElapsed)
	rec.Linef("disk: read pass %dms, %.1f MB/s, %d bytes read",
		readElapsed.Milliseconds(), readMBps, read)
	r.logger.Debug("disk phase complete",
		zap.Float64("write_mbps", writeMBps),
		zap.Float64("read_mbps", readMBps))

	return DiskResult{
		SizeMB:          r.cfg.DiskSizeMB,
		WriteMBps:       writeMBps,
		ReadMBps:        readMBps,
		BytesWritten:    written,
		BytesRead:       read,
		WriteDurationMs: writeElapsed.Milliseconds(),
		ReadDurationMs:  readElapsed.Milliseconds(),
	}, nil
}

func writeBenchFile(ctx context.Context, path string, chunk []byte, totalBytes int64) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create bench file: %w", err)
	}

	var written int64
	for written < totalBytes {
		n := int64(len(chunk))
		if remaining := totalBytes - written; remaining < n {
			n = remaining
		}
		if _, err := f.Write(chunk[:n]); err != nil {
			_ = f.Close()
			return written, fmt.Errorf("write bench file: %w", err)
		}
		written += n

		if err := ctx.Err(); err != nil {
			_ = f.Close()
			return written, err
		}
	}

	if err := f.Sync(); err != nil {
		_ = f.Close()
		return written, fmt.Errorf("sync bench file: %w", err)
	}
	if err := f.Close(); err != nil {
		return written, fmt.Errorf("close bench file: %w", err)
	}
	return written, nil
}

func readBenchFile(ctx context.Context, path string) (int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open bench file: %w", err)
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, chunkSize)
	var read int64
	for {
		n, err := f.Read(buf)
		read += int64(n)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return read, fmt.Errorf("read bench file: %w", err)
		}

		if err := ctx.Err(); err != nil {
			return read, err
		}
	}
	return read, nil
}
