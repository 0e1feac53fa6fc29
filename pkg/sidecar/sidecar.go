// Package sidecar persists per-image generation parameters in a meta.json
// file kept alongside the images of each output directory.
//
// Every failure on the read path degrades to an empty document or a default
// Record. Writes are a whole-file read-modify-write without locking, so two
// concurrent saves into one directory may lose an update.
package sidecar

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/tidwall/gjson"
)

// FileName is the sidecar document stored in each output directory.
const FileName = "meta.json"

// Store reads and writes sidecar documents.
type Store struct {
	logger *slog.Logger
}

// New creates a Store that reports degraded reads on logger.
func New(logger *slog.Logger) *Store {
	return &Store{
		logger: logger.With("system", "sidecar"),
	}
}

// Path returns the sidecar location for dir.
func Path(dir string) string {
	return filepath.Join(dir, FileName)
}

// Write merges records into dir/meta.json. Existing keys absent from records
// are kept as stored; keys present in records are replaced whole.
func (s *Store) Write(dir string, records map[string]Record) error {
	path := Path(dir)
	doc := s.load(path)

	for name, rec := range records {
		raw, err := json.Marshal(rec)
		if err != nil {
			return fmt.Errorf("%w: encode %s: %w", ErrWrite, name, err)
		}
		doc[name] = raw
	}

	data, err := encode(doc)
	if err != nil {
		return fmt.Errorf("%w: encode %s: %w", ErrWrite, path, err)
	}

	if err := atomic.WriteFile(path, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("%w: %w", ErrWrite, err)
	}

	s.logger.Debug("metadata saved", "path", path, "records", len(records), "total", len(doc))
	return nil
}

// Read returns the record stored for filename in dir/meta.json, or the
// default Record when the file, the key, or a parseable document is missing.
func (s *Store) Read(dir, filename string) Record {
	path := Path(dir)

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("metadata unreadable", "path", path, "error", err)
		}
		return Record{}
	}

	rec, ok := Decode(data, filename)
	if !ok && !gjson.ValidBytes(data) {
		s.logger.Warn("metadata is not valid JSON", "path", path)
	}
	return rec
}

// Lookup locates the directory under root holding filename and reads its
// record from that directory's sidecar.
func (s *Store) Lookup(root, filename string) Record {
	dir, ok := Locate(root, filename)
	if !ok {
		s.logger.Debug("image not found under output root", "root", root, "filename", filename)
		return Record{}
	}
	return s.Read(dir, filename)
}

// Decode returns the record stored under filename in a meta.json document.
// ok is false when the document is not a JSON object or holds no object
// under filename.
func Decode(data []byte, filename string) (rec Record, ok bool) {
	if !gjson.ValidBytes(data) {
		return Record{}, false
	}

	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return Record{}, false
	}

	var entry gjson.Result
	doc.ForEach(func(key, value gjson.Result) bool {
		if key.String() == filename {
			entry = value
		}
		return true
	})

	if !entry.IsObject() {
		return Record{}, false
	}
	return recordFrom(entry), true
}

// Locate walks root top-down and returns the first directory that directly
// contains a regular file named filename. Each directory is checked before
// any of its subdirectories.
func Locate(root, filename string) (string, bool) {
	if filename == "" || strings.ContainsAny(filename, `/\`) || filename == "." || filename == ".." {
		return "", false
	}

	var found string
	filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.IsDir() {
			return nil
		}
		info, err := os.Stat(filepath.Join(path, filename))
		if err == nil && info.Mode().IsRegular() {
			found = path
			return fs.SkipAll
		}
		return nil
	})

	return found, found != ""
}

func (s *Store) load(path string) map[string]json.RawMessage {
	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			s.logger.Warn("existing metadata unreadable, starting empty", "path", path, "error", err)
		}
		return make(map[string]json.RawMessage)
	}

	var doc map[string]json.RawMessage
	if err := json.Unmarshal(data, &doc); err != nil {
		s.logger.Warn("existing metadata unparseable, starting empty", "path", path, "error", err)
		return make(map[string]json.RawMessage)
	}
	if doc == nil {
		doc = make(map[string]json.RawMessage)
	}
	return doc
}

func encode(doc map[string]json.RawMessage) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
