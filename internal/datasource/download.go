package datasource

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

const maxNameAttempts = 1000

// saveDownload streams fill into a temp file inside destDir and moves it to
// the first free name derived from base ("report.pdf", "report (1).pdf",
// ...). Existing files are never truncated, and nothing is left behind when
// fill fails.
func saveDownload(destDir, base string, fill func(io.Writer) error) (string, error) {
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("creating download dir: %w", err)
	}
	tmp, err := os.CreateTemp(destDir, ".dropdash-*.part")
	if err != nil {
		return "", fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if err := fill(tmp); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return "", err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("writing %s: %w", tmpName, err)
	}

	dest, err := freeName(destDir, base)
	if err != nil {
		os.Remove(tmpName)
		return "", err
	}
	if err := os.Rename(tmpName, dest); err != nil {
		os.Remove(tmpName)
		return "", fmt.Errorf("moving download to %s: %w", dest, err)
	}
	return dest, nil
}

// freeName returns a path in dir for base that does not exist yet.
func freeName(dir, base string) (string, error) {
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	for i := 0; i < maxNameAttempts; i++ {
		name := base
		if i > 0 {
			name = fmt.Sprintf("%s (%d)%s", stem, i, ext)
		}
		candidate := filepath.Join(dir, name)
		if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("no free file name for %s in %s", base, dir)
}
