package stats

import (
	"embed"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/statsql/pkg/rendering"
)

// Templates holds the built-in breakdown and column templates
//
//go:embed sql
var Templates embed.FS

// TemplateRoot is the directory of Templates holding the .sql files
const TemplateRoot = "sql"

// Query templates
const (
	templateBreakdown        = "breakdown.sql"
	templateBreakdownTopRows = "breakdown_top_rows.sql"
)

// LoadTemplates returns a registry with the built-in templates, overridden
// by same-named files found in dirs.
func LoadTemplates(log logrus.FieldLogger, dirs []string) (*rendering.Registry, error) {
	reg := rendering.NewRegistry(log)

	if err := reg.Load(Templates, TemplateRoot); err != nil {
		return nil, err
	}

	if err := reg.LoadDirs(dirs); err != nil {
		return nil, err
	}

	return reg, nil
}
