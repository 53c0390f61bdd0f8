package rendering

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"strings"
)

// TemplateFile is a discovered SQL template
type TemplateFile struct {
	// Name is the slash-separated path relative to the discovery root
	Name    string
	Path    string
	Content string
}

// DiscoverTemplates walks root within fsys and returns every .sql file.
// A missing root yields no templates rather than an error.
func DiscoverTemplates(fsys fs.FS, root string) ([]TemplateFile, error) {
	if root == "" {
		root = "."
	}

	var files []TemplateFile

	err := fs.WalkDir(fsys, root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil // Skip if directory doesn't exist
			}
			return err
		}

		if d.IsDir() {
			return nil
		}

		if strings.ToLower(path.Ext(p)) != ".sql" {
			return nil
		}

		content, readErr := fs.ReadFile(fsys, p)
		if readErr != nil {
			return fmt.Errorf("failed to read template %s: %w", p, readErr)
		}

		name := strings.TrimPrefix(p, root)
		name = strings.TrimPrefix(name, "/")
		if root == "." {
			name = p
		}

		files = append(files, TemplateFile{
			Name:    name,
			Path:    p,
			Content: string(content),
		})

		return nil
	})

	return files, err
}
