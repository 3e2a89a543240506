// Package source is a fixed-period producer of raw IMU samples, with a
// bring-up retry window, plus a pass-through file-dumping wrapper and a
// trace-replay source for offline development — all pull-model Source
// implementations so the fusion stage above never has to care which
// one it's reading from.
package source

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sixaxis-fusion/imud/internal/sample"
)

// Source is a lazy producer of raw samples: each call to Next blocks
// until the next sample is ready (or ctx is done).
type Source interface {
	Next(ctx context.Context) (sample.Raw, error)
}

// pollingSource polls a sensors.Device at a fixed nominal period,
// sleeping off whatever time polling didn't consume so the cadence is
// best-effort fixed.
type pollingSource struct {
	dev Device
	dt  time.Duration
}

// Device is the subset of sensors.Device this package depends on (kept
// as its own interface so tests can fake it without importing periph).
type Device interface {
	Read() (sample.Raw, error)
}

// NewPolling wraps dev in a fixed-period Source. It retries bring-up
// reads for up to 1s at 20ms intervals before giving up; persistent
// failure surfaces as an error from NewPolling rather than from the
// first Next call.
func NewPolling(dev Device, dt time.Duration) (Source, error) {
	started := time.Now()
	var lastErr error
	for time.Since(started) < time.Second {
		if _, err := dev.Read(); err != nil {
			lastErr = err
			time.Sleep(20 * time.Millisecond)
			continue
		}
		return &pollingSource{dev: dev, dt: dt}, nil
	}
	return nil, fmt.Errorf("source: sensor bring-up failed after 1s retry window: %w", lastErr)
}

func (s *pollingSource) Next(ctx context.Context) (sample.Raw, error) {
	start := time.Now()
	raw, err := s.dev.Read()
	if err != nil {
		return sample.Raw{}, fmt.Errorf("source: sensor read: %w", err)
	}

	elapsed := time.Since(start)
	if remaining := s.dt - elapsed; remaining > 0 {
		select {
		case <-time.After(remaining):
		case <-ctx.Done():
			return sample.Raw{}, ctx.Err()
		}
	}
	return raw, nil
}

// dumpLogger is a pass-through wrapper that writes the first n
// upstream samples to a whitespace-separated decimal text file (one
// line per sample, 7 fields: ax ay az gx gy gz T) before forwarding
// them unchanged. Purely a diagnostic side channel for later replay.
type dumpLogger struct {
	upstream Source
	f        *os.File
	w        *bufio.Writer
	n        int
	count    int
}

// NewDumpLogger wraps upstream so that the first n samples are also
// written to the file at path (created, or truncated if it exists) in
// the dump format described above. If
// n <= 0, upstream is returned unchanged.
func NewDumpLogger(upstream Source, path string, n int) (Source, error) {
	if n <= 0 {
		return upstream, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("source: dump log create: %w", err)
	}
	return &dumpLogger{upstream: upstream, f: f, w: bufio.NewWriter(f), n: n}, nil
}

func (d *dumpLogger) Next(ctx context.Context) (sample.Raw, error) {
	raw, err := d.upstream.Next(ctx)
	if err != nil {
		return raw, err
	}
	if d.count < d.n {
		fmt.Fprintf(d.w, "%g %g %g %g %g %g %g\n", raw.Ax, raw.Ay, raw.Az, raw.Gx, raw.Gy, raw.Gz, raw.Temp)
		d.count++
		if d.count == d.n {
			d.w.Flush()
			d.f.Close()
		}
	}
	return raw, nil
}

// replaySource reads previously dumped samples back from a dump file,
// pacing playback at dt per line the same way a live Source would.
type replaySource struct {
	lines []sample.Raw
	idx   int
	dt    time.Duration
}

// NewReplay loads every sample from a dump file written by
// NewDumpLogger and replays them at a fixed dt. Returns an
// io.EOF-wrapped error once exhausted — the caller is expected to
// treat that as upstream termination, the same as a live Source
// running out of samples.
func NewReplay(path string, dt time.Duration) (Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("source: replay open: %w", err)
	}
	defer f.Close()

	var lines []sample.Raw
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) != 7 {
			continue
		}
		vals := make([]float64, 7)
		for i, tok := range fields {
			v, err := strconv.ParseFloat(tok, 64)
			if err != nil {
				return nil, fmt.Errorf("source: replay parse: %w", err)
			}
			vals[i] = v
		}
		lines = append(lines, sample.Raw{
			Ax: vals[0], Ay: vals[1], Az: vals[2],
			Gx: vals[3], Gy: vals[4], Gz: vals[5],
			Temp: vals[6],
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("source: replay scan: %w", err)
	}

	return &replaySource{lines: lines, dt: dt}, nil
}

func (r *replaySource) Next(ctx context.Context) (sample.Raw, error) {
	if r.idx >= len(r.lines) {
		return sample.Raw{}, fmt.Errorf("source: replay exhausted: %w", io.EOF)
	}
	raw := r.lines[r.idx]
	r.idx++

	if r.dt > 0 {
		select {
		case <-time.After(r.dt):
		case <-ctx.Done():
			return sample.Raw{}, ctx.Err()
		}
	}
	return raw, nil
}
