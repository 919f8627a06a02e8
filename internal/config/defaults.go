package config

import "gopkg.in/yaml.v2"

// Default returns the configuration written on first run
func Default() Config {
	return Config{
		Core: Core{
			Restore: RestoreConfig{
				Conflict: "rename",
			},
			EmptyTrash: EmptyTrashConfig{
				Concurrency: 4,
			},
			TrashList: TrashListConfig{
				Include: IncludeConfig{
					Period: 0,
				},
				Exclude: ExcludeConfig{
					Files: []string{
						// Finder metadata, never worth listing
						".DS_Store",
					},
					Patterns: []string{},
					Globs:    []string{},
				},
			},
		},
		Logging: LoggingConfig{
			Enabled: false,
			Level:   "info",
			Format:  "text",
			Rotation: RotationConfig{
				MaxSize:  "10MB",
				MaxFiles: 3,
			},
		},
		Providers: []Provider{
			{
				ID:       "home",
				Type:     "xdg",
				Root:     "~/",
				Patterns: []string{"/**"},
				Trash: TrashConfig{
					Retention:   "30d",
					NativeEmpty: true,
				},
			},
		},
	}
}

// DefaultContents is Default as YAML
func DefaultContents() string {
	content, _ := yaml.Marshal(Default())
	return string(content)
}
