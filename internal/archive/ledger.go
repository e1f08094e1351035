// Package archive stores downloaded asset bundles under
// <root>/<host>/<version>/ and uses the presence of those directories as the
// record of which versions have already been processed.
package archive

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/user/hcaptcha-monitor/internal/domain"
	"github.com/user/hcaptcha-monitor/internal/hcaptcha"
	"github.com/user/hcaptcha-monitor/pkg/utils"
)

// Ledger answers "was this version already archived?" from the filesystem.
type Ledger struct {
	root string
}

// NewLedger creates a Ledger rooted at root.
func NewLedger(root string) *Ledger {
	return &Ledger{root: root}
}

// Init creates the output root and one directory per target host.
func (l *Ledger) Init(targets []domain.Target) error {
	if err := os.MkdirAll(l.root, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	for _, t := range targets {
		if err := validName(t.Host); err != nil {
			return fmt.Errorf("host %q: %w", t.Host, err)
		}
		if err := os.MkdirAll(filepath.Join(l.root, t.Host), 0o755); err != nil {
			return fmt.Errorf("create website output directory: %w", err)
		}
	}
	return nil
}

// Dir is the archive directory for the version encoded in resourcePath.
func (l *Ledger) Dir(target domain.Target, resourcePath string) (string, error) {
	version := utils.TrailingSegment(resourcePath)
	if err := validName(target.Host); err != nil {
		return "", &hcaptcha.StageError{Stage: hcaptcha.StageDetect, Kind: hcaptcha.KindFilesystem, Err: fmt.Errorf("host %q: %w", target.Host, err)}
	}
	if err := validName(version); err != nil {
		return "", &hcaptcha.StageError{Stage: hcaptcha.StageDetect, Kind: hcaptcha.KindFilesystem, Err: fmt.Errorf("resource path %q: %w", resourcePath, err)}
	}
	return filepath.Join(l.root, target.Host, version), nil
}

// IsNew reports whether nothing exists yet at the archive directory. It does
// not create anything, so repeated calls agree until Claim is called.
func (l *Ledger) IsNew(target domain.Target, resourcePath string) (bool, error) {
	dir, err := l.Dir(target, resourcePath)
	if err != nil {
		return false, err
	}
	_, err = os.Stat(dir)
	switch {
	case err == nil:
		return false, nil
	case errors.Is(err, fs.ErrNotExist):
		return true, nil
	default:
		return false, &hcaptcha.StageError{Stage: hcaptcha.StageDetect, Kind: hcaptcha.KindFilesystem, Err: err}
	}
}

// Claim creates the archive directory and returns its path. Once it returns
// successfully, IsNew is false for this version.
func (l *Ledger) Claim(target domain.Target, resourcePath string) (string, error) {
	dir, err := l.Dir(target, resourcePath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", &hcaptcha.StageError{Stage: hcaptcha.StageDetect, Kind: hcaptcha.KindFilesystem, Err: err}
	}
	return dir, nil
}

// Versions lists the archived versions for host, sorted by name. An unknown
// host has no versions.
func (l *Ledger) Versions(host string) ([]string, error) {
	if err := validName(host); err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(filepath.Join(l.root, host))
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}
	versions := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			versions = append(versions, e.Name())
		}
	}
	sort.Strings(versions)
	return versions, nil
}

func validName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("invalid path segment %q", name)
	case strings.ContainsAny(name, `/\`), strings.ContainsRune(name, 0):
		return fmt.Errorf("path segment %q contains a separator", name)
	}
	return nil
}
