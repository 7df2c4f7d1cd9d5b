// Package template holds the installation template: the dispatcher's own
// directory with its settings file, and the built-in sub-commands with their
// providers.
package template

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
)

//go:embed all:files
var embedded embed.FS

// Files returns the template tree rooted at the installation root.
func Files() fs.FS {
	sub, err := fs.Sub(embedded, "files")
	if err != nil {
		panic(err)
	}
	return sub
}

// Result lists what Install wrote.
type Result struct {
	Created     []string
	Overwritten []string
}

// Install copies the template into homeDir and creates workingDir. Existing
// directories are merged into; existing template files are overwritten and
// files the template does not know are left alone. Installing twice gives
// the same tree.
func Install(homeDir, workingDir string) (*Result, error) {
	return InstallFS(Files(), homeDir, workingDir)
}

// InstallFS is Install with an explicit template tree.
func InstallFS(src fs.FS, homeDir, workingDir string) (*Result, error) {
	res := &Result{}
	err := fs.WalkDir(src, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		dst := filepath.Join(homeDir, filepath.FromSlash(p))
		if d.IsDir() {
			if err := os.MkdirAll(dst, 0o755); err != nil {
				return fmt.Errorf("creating %s: %w", dst, err)
			}
			return nil
		}

		data, err := fs.ReadFile(src, p)
		if err != nil {
			return err
		}
		rel := path.Clean(p)
		if _, err := os.Stat(dst); err == nil {
			res.Overwritten = append(res.Overwritten, rel)
		} else {
			res.Created = append(res.Created, rel)
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", dst, err)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("installing into %s: %w", homeDir, err)
	}

	if workingDir != "" {
		if err := os.MkdirAll(workingDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating working directory %s: %w", workingDir, err)
		}
	}
	return res, nil
}
