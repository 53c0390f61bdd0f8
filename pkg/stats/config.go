package stats

// Config controls how breakdown requests are turned into queries
type Config struct {
	// TempTableThreshold is the IN-list size from which values move into a
	// temp table. Zero keeps every list inline.
	TempTableThreshold int `yaml:"tempTableThreshold" default:"1000"`
	// TemplateDirs are searched after the built-in templates; a file there
	// replaces the built-in template of the same name.
	TemplateDirs []string `yaml:"templateDirs"`
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.TempTableThreshold < 0 {
		return ErrInvalidTempThreshold
	}

	return nil
}
