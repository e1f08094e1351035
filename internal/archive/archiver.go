package archive

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/user/hcaptcha-monitor/internal/domain"
	"github.com/user/hcaptcha-monitor/internal/fetch"
	"github.com/user/hcaptcha-monitor/internal/hcaptcha"
	"github.com/user/hcaptcha-monitor/pkg/utils"
)

// Archiver downloads the assets of a resource path into an archive directory.
type Archiver struct {
	fetcher   fetch.Fetcher
	assetHost string
	logger    *zap.Logger
}

// NewArchiver creates an Archiver that fetches from assetHost.
func NewArchiver(f fetch.Fetcher, assetHost string, logger *zap.Logger) *Archiver {
	return &Archiver{fetcher: f, assetHost: assetHost, logger: logger}
}

// ArchiveAssets downloads every named asset into dir. Each asset gets its own
// result; a failed asset does not stop the rest.
func (a *Archiver) ArchiveAssets(ctx context.Context, resourcePath string, names []string, dir string) []domain.AssetResult {
	results := make([]domain.AssetResult, 0, len(names))
	for _, name := range names {
		res := a.archiveOne(ctx, resourcePath, name, dir)
		if res.Err != nil {
			a.logger.Warn("failed to archive asset", zap.String("asset", name), zap.String("url", res.URL), zap.Error(res.Err))
		} else {
			a.logger.Info("archived asset", zap.String("asset", name), zap.String("path", res.Path))
		}
		results = append(results, res)
	}
	return results
}

func (a *Archiver) archiveOne(ctx context.Context, resourcePath, name, dir string) domain.AssetResult {
	url := utils.AssetURL(a.assetHost, resourcePath, name)
	res := domain.AssetResult{Name: name, URL: url}

	body, err := a.fetcher.Get(ctx, url)
	if err != nil {
		res.Err = &hcaptcha.StageError{Stage: hcaptcha.StageArchive, Kind: hcaptcha.KindNetwork, Err: err}
		return res
	}

	path := filepath.Join(dir, name)
	if err := writeFileAtomic(path, withProvenance(url, body), 0o644); err != nil {
		res.Err = &hcaptcha.StageError{Stage: hcaptcha.StageArchive, Kind: hcaptcha.KindFilesystem, Err: err}
		return res
	}
	res.Path = path
	return res
}

// withProvenance prefixes body with a comment line naming its source URL.
func withProvenance(url string, body []byte) []byte {
	header := fmt.Sprintf("/* Source URL: %s */\n", url)
	out := make([]byte, 0, len(header)+len(body))
	out = append(out, header...)
	return append(out, body...)
}

// writeFileAtomic writes data to path using a tmp+rename strategy so an
// existing file is replaced whole. The tmp file is unique per call and is
// removed on every failure path.
func writeFileAtomic(path string, data []byte, perm os.FileMode) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create tmp: %w", err)
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	if _, err = f.Write(data); err != nil {
		f.Close()
		return fmt.Errorf("write tmp: %w", err)
	}
	if err = f.Chmod(perm); err != nil {
		f.Close()
		return fmt.Errorf("chmod tmp: %w", err)
	}
	if err = f.Close(); err != nil {
		return fmt.Errorf("close tmp: %w", err)
	}
	return os.Rename(tmp, path)
}
