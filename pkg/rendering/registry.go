// Package rendering renders SQL templates with text/template and Sprig
// functions, collecting positional parameters as placeholders are emitted.
package rendering

import (
	"bytes"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"sync"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/sirupsen/logrus"
)

// Registry holds every parsed SQL template under its logical path. It is
// filled at startup and only read afterwards; each render works on a clone so
// concurrent renders never share parameter state.
type Registry struct {
	log logrus.FieldLogger

	mu    sync.RWMutex
	root  *template.Template
	names map[string]bool
}

// NewRegistry creates an empty registry
func NewRegistry(log logrus.FieldLogger) *Registry {
	return &Registry{
		log:   log.WithField("component", "rendering"),
		root:  template.New("").Option("missingkey=error").Funcs(baseFuncMap()),
		names: map[string]bool{},
	}
}

func baseFuncMap() template.FuncMap {
	funcs := sprig.TxtFuncMap()

	// Parse-time stand-ins; every render swaps in a fresh collector.
	for name, fn := range newParamCollector().funcMap() {
		funcs[name] = fn
	}

	return funcs
}

// Load parses every .sql template under root in fsys
func (r *Registry) Load(fsys fs.FS, root string) error {
	files, err := DiscoverTemplates(fsys, root)
	if err != nil {
		return fmt.Errorf("failed to discover templates: %w", err)
	}

	for _, file := range files {
		if err := r.Add(file.Name, file.Content); err != nil {
			return err
		}

		r.log.WithField("template", file.Name).Debug("Loaded SQL template")
	}

	r.log.WithFields(logrus.Fields{
		"root":      root,
		"templates": len(files),
	}).Info("Loaded SQL templates")

	return nil
}

// LoadDirs parses the templates of each directory on disk. Later directories
// override templates of the same name.
func (r *Registry) LoadDirs(dirs []string) error {
	for _, dir := range dirs {
		if err := r.Load(os.DirFS(dir), "."); err != nil {
			return fmt.Errorf("failed to load templates from %s: %w", dir, err)
		}
	}

	return nil
}

// Add parses content under name
func (r *Registry) Add(name, content string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, err := r.root.New(name).Parse(content); err != nil {
		return fmt.Errorf("%w %s: %w", ErrTemplateParse, name, err)
	}

	r.names[name] = true

	return nil
}

// Has reports whether a template is registered under name
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return r.names[name]
}

// Names returns the registered template names, sorted
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.names))
	for name := range r.names {
		names = append(names, name)
	}

	sort.Strings(names)

	return names
}

// GenerateSQL renders the named template with data. It returns the SQL text
// and the parameters for its %s placeholders in emission order. On failure no
// SQL is returned.
func (r *Registry) GenerateSQL(name string, data map[string]any) (string, []any, error) {
	tmpl, err := r.clone(name)
	if err != nil {
		return "", nil, err
	}

	// Template columns render through the registry again while this template
	// executes, so the lock must not be held here.
	collector := newParamCollector()
	tmpl.Funcs(collector.funcMap())

	var buf bytes.Buffer
	if err := tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", nil, fmt.Errorf("%w %s: %w", ErrRenderFailed, name, err)
	}

	return buf.String(), collector.params, nil
}

func (r *Registry) clone(name string) (*template.Template, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !r.names[name] {
		return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, name)
	}

	tmpl, err := r.root.Clone()
	if err != nil {
		return nil, fmt.Errorf("%w %s: %w", ErrRenderFailed, name, err)
	}

	return tmpl, nil
}
