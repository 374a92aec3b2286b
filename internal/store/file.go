package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/zstd"

	"github.com/signalsfoundry/scenario-editor/model"
)

const (
	jsonExt = ".json"
	zstdExt = ".json.zst"
)

// File stores one JSON document per scenario in a directory. Writes go to
// a temporary file that is renamed into place, so a reader never sees a
// partial document. With compression enabled documents are written with
// zstd; both forms are readable either way.
type File struct {
	dir      string
	compress bool
	enc      *zstd.Encoder
	dec      *zstd.Decoder
}

// FileOption customises File construction.
type FileOption func(*File)

// WithCompression enables zstd-compressed documents.
func WithCompression(on bool) FileOption {
	return func(f *File) { f.compress = on }
}

// NewFile returns a store rooted at dir, creating it if needed.
func NewFile(dir string, opts ...FileOption) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &IOError{Op: "init", Err: err}
	}
	f := &File{dir: dir}
	for _, opt := range opts {
		if opt != nil {
			opt(f)
		}
	}
	var err error
	if f.enc, err = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBestCompression), zstd.WithEncoderConcurrency(1)); err != nil {
		return nil, fmt.Errorf("zstd encoder: %w", err)
	}
	if f.dec, err = zstd.NewReader(nil, zstd.WithDecoderConcurrency(0)); err != nil {
		return nil, fmt.Errorf("zstd decoder: %w", err)
	}
	return f, nil
}

// Dir returns the root directory.
func (f *File) Dir() string { return f.dir }

func (f *File) path(id, ext string) string {
	return filepath.Join(f.dir, url.PathEscape(id)+ext)
}

// List implements Store.
func (f *File) List(ctx context.Context) ([]model.Summary, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		return nil, &IOError{Op: "list", Err: err}
	}
	seen := make(map[string]bool)
	out := make([]model.Summary, 0, len(entries))
	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		id, ok := idFromName(e.Name())
		if e.IsDir() || !ok || seen[id] {
			continue
		}
		data, err := f.read(id)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return nil, &IOError{Op: "list", ID: id, Err: err}
		}
		var sum model.Summary
		if err := json.Unmarshal(data, &sum); err != nil {
			return nil, &IOError{Op: "list", ID: id, Err: err}
		}
		if sum.ID == "" {
			sum.ID = id
		}
		seen[id] = true
		out = append(out, sum)
	}
	sortSummaries(out)
	return out, nil
}

func idFromName(name string) (string, bool) {
	var base string
	switch {
	case strings.HasSuffix(name, zstdExt):
		base = strings.TrimSuffix(name, zstdExt)
	case strings.HasSuffix(name, jsonExt):
		base = strings.TrimSuffix(name, jsonExt)
	default:
		return "", false
	}
	id, err := url.PathUnescape(base)
	if err != nil || id == "" {
		return "", false
	}
	return id, true
}

// Load implements Store.
func (f *File) Load(ctx context.Context, id string) (*model.Scenario, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := checkID(id); err != nil {
		return nil, err
	}
	data, err := f.read(id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, err
		}
		return nil, &IOError{Op: "load", ID: id, Err: err}
	}
	s, err := Decode(data)
	if err != nil {
		return nil, &IOError{Op: "load", ID: id, Err: err}
	}
	s.ID = id
	return s, nil
}

// read returns the decompressed document for id, preferring the format
// the store currently writes.
func (f *File) read(id string) ([]byte, error) {
	order := []string{jsonExt, zstdExt}
	if f.compress {
		order = []string{zstdExt, jsonExt}
	}
	for _, ext := range order {
		data, err := os.ReadFile(f.path(id, ext))
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if ext == zstdExt {
			data, err = f.dec.DecodeAll(data, nil)
			if err != nil {
				return nil, fmt.Errorf("zstd: %w", err)
			}
		}
		return data, nil
	}
	return nil, ErrNotFound
}

// Save implements Store.
func (f *File) Save(ctx context.Context, s *model.Scenario) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(s.ID); err != nil {
		return err
	}
	data, err := Encode(s)
	if err != nil {
		return &IOError{Op: "save", ID: s.ID, Err: err}
	}

	ext, stale := jsonExt, zstdExt
	if f.compress {
		ext, stale = zstdExt, jsonExt
		data = f.enc.EncodeAll(data, nil)
	}
	if err := writeAtomic(f.path(s.ID, ext), data); err != nil {
		return &IOError{Op: "save", ID: s.ID, Err: err}
	}
	// Drop a copy left in the other format so Load cannot find stale data.
	if err := os.Remove(f.path(s.ID, stale)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return &IOError{Op: "save", ID: s.ID, Err: err}
	}
	return nil
}

func writeAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-*")
	if err != nil {
		return err
	}
	name := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(name)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(name)
		return err
	}
	if err := os.Rename(name, path); err != nil {
		os.Remove(name)
		return err
	}
	return nil
}

// Delete implements Store.
func (f *File) Delete(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkID(id); err != nil {
		return err
	}
	found := false
	for _, ext := range []string{jsonExt, zstdExt} {
		err := os.Remove(f.path(id, ext))
		switch {
		case err == nil:
			found = true
		case !errors.Is(err, fs.ErrNotExist):
			return &IOError{Op: "delete", ID: id, Err: err}
		}
	}
	if !found {
		return ErrNotFound
	}
	return nil
}
