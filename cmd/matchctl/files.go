package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/okian/matchflow/internal/adapters/ingest"
)

func readRecords[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	records, err := ingest.Decode[T](f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return records, nil
}

func readBalancing(path string) (map[string]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	raw, err := ingest.DecodeBalancing(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return raw, nil
}

type output struct {
	path  string
	value any
}

// rename is swapped in tests to fail a specific move.
var rename = os.Rename

// writeAll encodes every output to a temporary file next to its target and
// moves them into place only once all encodes succeeded. A failed move rolls
// back the targets already replaced, so either every output is written or
// none is.
func writeAll(outputs []output) (err error) {
	temps := make([]string, 0, len(outputs))
	defer func() {
		if err != nil {
			for _, tmp := range temps {
				_ = os.Remove(tmp)
			}
		}
	}()

	for _, o := range outputs {
		tmp, err := writeTemp(o)
		if err != nil {
			return err
		}
		temps = append(temps, tmp)
	}
	for _, o := range outputs {
		if fi, err := os.Stat(o.path); err == nil && fi.IsDir() {
			return fmt.Errorf("write %s: is a directory", o.path)
		}
	}
	return commit(outputs, temps)
}

// placed is an output moved into place; backup holds the file it replaced.
type placed struct {
	path, backup string
}

func commit(outputs []output, temps []string) error {
	done := make([]placed, 0, len(outputs))
	for i, o := range outputs {
		p := placed{path: o.path}
		if _, err := os.Lstat(o.path); err == nil {
			p.backup = temps[i] + ".orig"
			if err := rename(o.path, p.backup); err != nil {
				rollback(done)
				return fmt.Errorf("write %s: %w", o.path, err)
			}
		}
		if err := rename(temps[i], o.path); err != nil {
			if p.backup != "" {
				_ = rename(p.backup, o.path)
			}
			rollback(done)
			return fmt.Errorf("write %s: %w", o.path, err)
		}
		done = append(done, p)
	}
	for _, p := range done {
		if p.backup != "" {
			_ = os.Remove(p.backup)
		}
	}
	return nil
}

// rollback undoes placed outputs in reverse order.
func rollback(done []placed) {
	for i := len(done) - 1; i >= 0; i-- {
		p := done[i]
		if p.backup != "" {
			_ = rename(p.backup, p.path)
			continue
		}
		_ = os.Remove(p.path)
	}
}

func writeTemp(o output) (string, error) {
	f, err := os.CreateTemp(filepath.Dir(o.path), "."+filepath.Base(o.path)+".*")
	if err != nil {
		return "", fmt.Errorf("write %s: %w", o.path, err)
	}
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := errors.Join(enc.Encode(o.value), f.Close()); err != nil {
		_ = os.Remove(f.Name())
		return "", fmt.Errorf("write %s: %w", o.path, err)
	}
	return f.Name(), nil
}
