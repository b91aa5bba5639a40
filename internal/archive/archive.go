// Package archive keeps run outputs as zstd-compressed JSON lines.
package archive

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/klauspost/compress/zstd"

	"github.com/talgya/adaptation-sim/internal/engine"
)

// Path returns the archive file for a run id under dir.
func Path(dir, runID string) string {
	return filepath.Join(dir, runID+".jsonl.zst")
}

// Writer appends records to one compressed JSONL file. It implements
// engine.RecordSink and is safe for concurrent use.
type Writer struct {
	mu    sync.Mutex
	f     *os.File
	enc   *zstd.Encoder
	w     *bufio.Writer
	count int
}

// Create opens a new archive for runID under dir, creating dir if needed.
func Create(dir, runID string) (*Writer, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	f, err := os.Create(Path(dir, runID))
	if err != nil {
		return nil, fmt.Errorf("create archive: %w", err)
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("zstd writer: %w", err)
	}
	return &Writer{f: f, enc: enc, w: bufio.NewWriterSize(enc, 128*1024)}, nil
}

// Record appends one record.
func (a *Writer) Record(r engine.Record) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.w == nil {
		return fmt.Errorf("archive closed")
	}
	b, err := json.Marshal(r)
	if err != nil {
		return err
	}
	if _, err := a.w.Write(b); err != nil {
		return err
	}
	a.count++
	return a.w.WriteByte('\n')
}

// Count returns how many records were written.
func (a *Writer) Count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.count
}

// Close flushes and closes the archive.
func (a *Writer) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.w == nil {
		return nil
	}
	flushErr := a.w.Flush()
	encErr := a.enc.Close()
	fileErr := a.f.Close()
	a.w, a.enc, a.f = nil, nil, nil

	for _, err := range []error{flushErr, encErr, fileErr} {
		if err != nil {
			return fmt.Errorf("close archive: %w", err)
		}
	}
	return nil
}

// ReadRecords decodes every record in an archive file.
func ReadRecords(path string) ([]engine.Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	dec, err := zstd.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 64*1024), 8*1024*1024)

	var out []engine.Record
	for sc.Scan() {
		var r engine.Record
		if err := json.Unmarshal(sc.Bytes(), &r); err != nil {
			return out, fmt.Errorf("decode line %d: %w", len(out)+1, err)
		}
		out = append(out, r)
	}
	return out, sc.Err()
}
