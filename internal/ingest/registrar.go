package ingest

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/joseph-ayodele/mining-enricher/internal/common"
	"github.com/joseph-ayodele/mining-enricher/internal/entity"
	"github.com/joseph-ayodele/mining-enricher/internal/repository"
)

type registrar struct {
	root      string
	projects  repository.ProjectStore
	documents repository.DocumentRepository
	logger    *slog.Logger
}

// NewRegistrar registers files found below root. Unknown project
// directories create a project named after the directory.
func NewRegistrar(root string, projects repository.ProjectStore, documents repository.DocumentRepository, logger *slog.Logger) (Registrar, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if strings.TrimSpace(root) == "" {
		return nil, errors.New("root_path is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root: %w", err)
	}
	return &registrar{root: abs, projects: projects, documents: documents, logger: logger}, nil
}

// ProjectFor returns the project ID a path under root belongs to.
func ProjectFor(root, path string) (string, error) {
	rel, err := filepath.Rel(root, path)
	if err != nil {
		return "", err
	}
	parts := strings.Split(filepath.ToSlash(rel), "/")
	if len(parts) < 2 || parts[0] == ".." || parts[0] == "." || parts[0] == "" {
		return "", fmt.Errorf("%s is not inside a project directory of %s", path, root)
	}
	return parts[0], nil
}

func (r *registrar) Register(ctx context.Context, path string) (Result, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return Result{Path: path, Err: err.Error()}, err
	}
	res := Result{Path: abs}
	fail := func(err error) (Result, error) {
		res.Err = err.Error()
		r.logger.Warn("ingest.register_failed", "path", abs, "error", err)
		return res, err
	}

	if !AllowedExt(filepath.Ext(abs)) {
		return fail(common.NewAppError("VALIDATION_ERROR", "unsupported extension "+filepath.Ext(abs), common.ErrInvalidInput))
	}
	res.ProjectID, err = ProjectFor(r.root, abs)
	if err != nil {
		return fail(common.NewAppError("VALIDATION_ERROR", err.Error(), common.ErrInvalidInput))
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fail(err)
	}
	if info.IsDir() {
		return fail(common.NewAppError("VALIDATION_ERROR", abs+" is a directory", common.ErrInvalidInput))
	}

	if _, err := r.projects.Get(ctx, res.ProjectID); err != nil {
		if !errors.Is(err, common.ErrNotFound) {
			return fail(err)
		}
		if _, err := r.projects.EnsureProject(ctx, res.ProjectID, res.ProjectID, ""); err != nil {
			return fail(err)
		}
		r.logger.Info("ingest.project_created", "project_id", res.ProjectID)
	}

	filed := info.ModTime().UTC()
	title := strings.TrimSuffix(filepath.Base(abs), filepath.Ext(abs))
	res.Document, err = r.documents.Add(ctx, entity.ProjectDocument{
		ProjectID: res.ProjectID,
		SourceRef: fileRef(abs),
		Title:     title,
		FiledAt:   &filed,
	})
	if err != nil {
		return fail(err)
	}
	r.logger.Info("ingest.registered", "project_id", res.ProjectID, "path", abs, "document_id", res.Document.ID)
	return res, nil
}

func (r *registrar) Scan(ctx context.Context) ([]Result, DirStats, error) {
	var (
		results []Result
		stats   DirStats
	)
	err := filepath.WalkDir(r.root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			stats.Failed++
			results = append(results, Result{Path: path, Err: walkErr.Error()})
			return nil
		}
		if path != r.root && IsHidden(path) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		stats.Scanned++
		if !AllowedExt(filepath.Ext(path)) {
			return nil
		}
		if _, err := ProjectFor(r.root, path); err != nil {
			return nil
		}
		stats.Matched++
		res, err := r.Register(ctx, path)
		results = append(results, res)
		if err != nil {
			stats.Failed++
		} else {
			stats.Succeeded++
		}
		return nil
	})
	r.logger.Info("ingest.scan",
		"root", r.root,
		"scanned", stats.Scanned,
		"matched", stats.Matched,
		"succeeded", stats.Succeeded,
		"failed", stats.Failed,
	)
	return results, stats, err
}

// fileRef escapes abs so names containing '#' or '%' survive url.Parse.
func fileRef(abs string) string {
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String()
}
