package template

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// @MX:ANCHOR: [AUTO] Deployer writes component templates into a project tree. Existing files are never replaced.
// @MX:REASON: fan_in=3, shared by project creation, template listing and auto-repair
// Deployer extracts templates from a filesystem and writes them under a
// project root. Files that already exist are left untouched.
type Deployer interface {
	// Deploy writes every template under projectRoot. Files ending in
	// .tmpl are rendered with tmplCtx and saved without the suffix.
	Deploy(ctx context.Context, projectRoot string, tmplCtx *TemplateContext) (*DeployReport, error)

	// DeployFile writes a single template. It reports false when the
	// destination already existed.
	DeployFile(projectRoot, name string, tmplCtx *TemplateContext) (bool, error)

	// ExtractTemplate returns the raw content of a single template by name.
	ExtractTemplate(name string) ([]byte, error)

	// ListTemplates returns the destination paths of all templates.
	ListTemplates() []string
}

// DeployReport lists the destination paths a Deploy call wrote or skipped.
type DeployReport struct {
	Written []string
	Skipped []string
}

type deployer struct {
	fsys     fs.FS
	renderer Renderer
}

// NewDeployer creates a Deployer backed by the given filesystem.
// In production the fs.FS comes from EmbeddedTemplates; in tests use
// testing/fstest.MapFS.
func NewDeployer(fsys fs.FS) Deployer {
	return &deployer{fsys: fsys, renderer: NewRenderer(fsys)}
}

// Deploy walks the template filesystem and writes every file to projectRoot.
func (d *deployer) Deploy(ctx context.Context, projectRoot string, tmplCtx *TemplateContext) (*DeployReport, error) {
	projectRoot = filepath.Clean(projectRoot)
	report := &DeployReport{}

	err := fs.WalkDir(d.fsys, ".", func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if path == "." || entry.IsDir() {
			return nil
		}

		written, err := d.DeployFile(projectRoot, path, tmplCtx)
		if err != nil {
			return err
		}
		dest := TargetPath(path)
		if written {
			report.Written = append(report.Written, dest)
		} else {
			report.Skipped = append(report.Skipped, dest)
		}
		return nil
	})
	return report, err
}

// DeployFile renders (when needed) and writes one template. The file is
// created exclusively, so a concurrent writer or an existing user file wins.
func (d *deployer) DeployFile(projectRoot, name string, tmplCtx *TemplateContext) (bool, error) {
	if err := validateDeployPath(projectRoot, name); err != nil {
		return false, err
	}

	destRel := TargetPath(name)
	destPath := filepath.Join(projectRoot, filepath.FromSlash(destRel))
	if _, err := os.Lstat(destPath); err == nil {
		return false, nil
	}

	content, err := d.content(name, tmplCtx)
	if err != nil {
		return false, err
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0o755); err != nil {
		return false, fmt.Errorf("template deploy mkdir %q: %w", filepath.Dir(destPath), err)
	}

	perm := fs.FileMode(0o644)
	if strings.HasSuffix(destRel, ".sh") {
		perm = 0o755
	}

	f, err := os.OpenFile(destPath, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return false, nil
		}
		return false, fmt.Errorf("template deploy create %q: %w", destPath, err)
	}
	if _, err := f.Write(content); err != nil {
		_ = f.Close()
		_ = os.Remove(destPath)
		return false, fmt.Errorf("template deploy write %q: %w", destPath, err)
	}
	if err := f.Close(); err != nil {
		return false, fmt.Errorf("template deploy close %q: %w", destPath, err)
	}
	// The umask may have stripped bits from perm.
	if err := os.Chmod(destPath, perm); err != nil {
		return true, fmt.Errorf("template deploy chmod %q: %w", destPath, err)
	}
	return true, nil
}

func (d *deployer) content(name string, tmplCtx *TemplateContext) ([]byte, error) {
	if strings.HasSuffix(name, ".tmpl") && tmplCtx != nil {
		out, err := d.renderer.Render(name, tmplCtx)
		if err != nil {
			return nil, fmt.Errorf("template render %q: %w", name, err)
		}
		return out, nil
	}
	return d.ExtractTemplate(name)
}

// ExtractTemplate returns the content of a single named template.
func (d *deployer) ExtractTemplate(name string) ([]byte, error) {
	data, err := fs.ReadFile(d.fsys, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}
	return data, nil
}

// ListTemplates returns sorted destination paths of all templates.
func (d *deployer) ListTemplates() []string {
	var list []string
	_ = fs.WalkDir(d.fsys, ".", func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if path == "." || entry.IsDir() {
			return nil
		}
		list = append(list, TargetPath(path))
		return nil
	})
	return list
}

// TargetPath maps a template name to its destination path relative to the
// project root.
func TargetPath(name string) string {
	return strings.TrimSuffix(name, ".tmpl")
}

// validateDeployPath ensures a template path does not escape projectRoot.
func validateDeployPath(projectRoot, relPath string) error {
	cleaned := filepath.Clean(filepath.FromSlash(relPath))

	if filepath.IsAbs(cleaned) {
		return fmt.Errorf("%w: absolute path %q", ErrPathTraversal, relPath)
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return fmt.Errorf("%w: parent reference in %q", ErrPathTraversal, relPath)
	}

	absProjectRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return fmt.Errorf("resolve project root: %w", err)
	}
	absPath := filepath.Join(absProjectRoot, cleaned)
	if !strings.HasPrefix(absPath, absProjectRoot+string(filepath.Separator)) {
		return fmt.Errorf("%w: %q escapes project root", ErrPathTraversal, relPath)
	}
	return nil
}
