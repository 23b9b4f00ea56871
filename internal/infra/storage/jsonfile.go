package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"
)

// JSONFile persists one document as pretty-printed JSON. Saves go through
// a temp file and rename so a crash mid-write never corrupts the
// previous document.
type JSONFile struct {
	path string
	log  zerolog.Logger
}

func NewJSONFile(path string, logger *zerolog.Logger) *JSONFile {
	return &JSONFile{
		path: path,
		log:  logger.With().Str("component", "JSONFile").Str("path", path).Logger(),
	}
}

// Load decodes the document into v. A missing file is a clean first run;
// a corrupt file is logged and treated the same so the bot starts with
// empty state instead of refusing to boot.
func (f *JSONFile) Load(v any) error {
	b, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			f.log.Info().Msg("no document yet, starting empty")
			return nil
		}
		return fmt.Errorf("read %s: %w", f.path, err)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		f.log.Error().Err(err).Msg("document corrupt, starting empty")
		return nil
	}
	return nil
}

// Save writes the document atomically.
func (f *JSONFile) Save(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", f.path, err)
	}
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", dir, err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(f.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(b); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", f.path, err)
	}
	return nil
}
