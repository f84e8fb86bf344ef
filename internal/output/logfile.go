package output

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/gofrs/flock"

	"github.com/torosent/gpiojitter/internal/metrics"
)

// MaxPathLen is the longest accepted log path in bytes.
const MaxPathLen = 4095

// AutoLogPath requests a timestamped log name.
const AutoLogPath = "auto"

// LogMode selects whether an existing log is replaced or extended.
type LogMode string

const (
	LogTruncate LogMode = "truncate"
	LogAppend   LogMode = "append"
)

// ErrLogLocked is returned when another process holds the log file lock.
var ErrLogLocked = errors.New("log file is locked by another process")

// ResolveLogPath expands AutoLogPath into jitter_log_YYYYMMDD_HHMMSS.csv
// using now, and returns other paths unchanged.
func ResolveLogPath(path string, now time.Time) string {
	if path != AutoLogPath {
		return path
	}
	return now.Format("jitter_log_20060102_150405") + ".csv"
}

// WriteLog persists records as "sequence,interval_ns" lines. An advisory
// lock is held on the file for the duration of the write.
func WriteLog(path string, mode LogMode, records []metrics.Measurement) error {
	if path == "" {
		return errors.New("log path is empty")
	}
	if len(path) > MaxPathLen {
		return fmt.Errorf("log path exceeds %d bytes", MaxPathLen)
	}

	flags := os.O_CREATE | os.O_WRONLY
	if mode == LogAppend {
		flags |= os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0o644)
	if err != nil {
		return fmt.Errorf("open log %s: %w", path, err)
	}
	defer f.Close()

	lock := flock.New(path)
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("lock log %s: %w", path, err)
	}
	if !locked {
		return fmt.Errorf("%s: %w", path, ErrLogLocked)
	}
	defer func() { _ = lock.Unlock() }()

	if mode != LogAppend {
		if err := f.Truncate(0); err != nil {
			return fmt.Errorf("truncate log %s: %w", path, err)
		}
	}

	w := bufio.NewWriterSize(f, 64*1024)
	buf := make([]byte, 0, 48)
	for _, m := range records {
		buf = strconv.AppendUint(buf[:0], m.Sequence, 10)
		buf = append(buf, ',')
		buf = strconv.AppendUint(buf, m.IntervalNS, 10)
		buf = append(buf, '\n')
		if _, err := w.Write(buf); err != nil {
			return fmt.Errorf("write log %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write log %s: %w", path, err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync log %s: %w", path, err)
	}
	return nil
}
