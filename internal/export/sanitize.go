package export

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"unicode"
)

var ErrInvalidOutputDir = errors.New("invalid output_dir")

// SanitizeName makes s safe to use as a file name stem.
func SanitizeName(s string, maxLen int) string {
	var b strings.Builder
	for _, r := range s {
		if unicode.IsControl(r) {
			continue
		}
		if isAllowedNameRune(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune('_')
		}
	}

	cleaned := strings.TrimSpace(b.String())
	if maxLen > 0 {
		runes := []rune(cleaned)
		if len(runes) > maxLen {
			cleaned = string(runes[:maxLen])
		}
	}
	return cleaned
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsDigit(r) {
		return true
	}
	switch r {
	case ' ', '-', '_', '.', ',', '(', ')':
		return true
	default:
		return false
	}
}

func ValidateOutputDir(dir string) error {
	if strings.TrimSpace(dir) == "" {
		return fmt.Errorf("%w: output_dir is required", ErrInvalidOutputDir)
	}

	for _, part := range strings.Split(filepath.ToSlash(dir), "/") {
		if part == ".." {
			return fmt.Errorf("%w: output_dir cannot contain path traversal", ErrInvalidOutputDir)
		}
	}

	if filepath.Clean(dir) != dir {
		return fmt.Errorf("%w: output_dir must be clean path", ErrInvalidOutputDir)
	}

	info, err := os.Stat(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: output_dir does not exist", ErrInvalidOutputDir)
		}
		return fmt.Errorf("%w: %v", ErrInvalidOutputDir, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: output_dir is not a directory", ErrInvalidOutputDir)
	}

	return nil
}

// OutputFileName builds "<name><ext>" from a project name, falling back to
// fallback when nothing usable remains after sanitising.
func OutputFileName(projectName, fallback, ext string) string {
	name := SanitizeName(projectName, 80)
	if name == "" {
		name = fallback
	}
	return name + ext
}

const maxOutputNameAttempts = 1000

// CreateOutputFile exclusively creates a new output file in dir named after
// the project. An existing file is never reused: later exports of the same
// project get "<name> (2)<ext>", "<name> (3)<ext>" and so on.
func CreateOutputFile(dir, projectName, fallback, ext string) (*os.File, error) {
	stem := strings.TrimSuffix(OutputFileName(projectName, fallback, ext), ext)
	for n := 1; n <= maxOutputNameAttempts; n++ {
		name := stem + ext
		if n > 1 {
			name = fmt.Sprintf("%s (%d)%s", stem, n, ext)
		}
		f, err := os.OpenFile(filepath.Join(dir, name), os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
		if err == nil {
			return f, nil
		}
		if !errors.Is(err, fs.ErrExist) {
			return nil, fmt.Errorf("create output: %w", err)
		}
	}
	return nil, fmt.Errorf("create output: no free name for %q in %s", stem+ext, dir)
}
