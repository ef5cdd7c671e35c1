package codegen

import (
	"bytes"
	"fmt"
	"go/format"
	"os"
	"path/filepath"

	"golang.org/x/tools/imports"
)

// Format renders the bridge file and normalizes it: gofmt first, then
// import fixing. A formatting failure means the generator produced invalid
// syntax and is always a bug worth surfacing.
func (b *Bridge) Format() ([]byte, error) {
	rendered := []byte(b.File.Render())
	formatted, err := format.Source(rendered)
	if err != nil {
		return nil, fmt.Errorf("codegen: format %s: %w", b.OutputPath, err)
	}
	fixed, err := imports.Process(b.OutputPath, formatted, nil)
	if err != nil {
		// Import resolution needs the surrounding module on disk; when it
		// is unavailable the gofmt output is still valid.
		return formatted, nil
	}
	return fixed, nil
}

// WriteFileIfChanged writes data to path unless the file already holds the
// same bytes, going through a temp file and rename so a crash never leaves
// a half-written generated file. It reports whether the file changed.
func WriteFileIfChanged(path string, data []byte) (bool, error) {
	if existing, err := os.ReadFile(path); err == nil && bytes.Equal(existing, data) {
		return false, nil
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".vespera-*.tmp")
	if err != nil {
		return false, err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return false, err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return false, err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return false, err
	}
	return true, nil
}
