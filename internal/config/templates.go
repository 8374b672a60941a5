package config

import (
	"os"
	"path/filepath"
)

const configTemplate = `# Portfolio-Lab Configuration

[database]
# Path to the SQLite database file.
# path = "~/.config/portfolio-lab/portfolio.db"

[source]
# Market data provider endpoints.
chart_url = "https://query1.finance.yahoo.com/v8/finance/chart"
search_url = "https://query2.finance.yahoo.com/v1/finance/search"
# HTTP timeout in seconds
timeout_seconds = 30

[logging]
# Log level: debug, info, warn, error
level = "info"
# Write logs to a rotated file under the config directory
file = true
max_size_mb = 50
max_backups = 5
max_age_days = 30

[ui]
# Enable colored output
color_enabled = true
# Date format
date_format = "2006-01-02"
`

// createTemplateConfig writes a default config.toml so the user has
// something to edit on first run.
func createTemplateConfig(configDir string) error {
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return err
	}

	path := filepath.Join(configDir, "config.toml")
	if _, err := os.Stat(path); err == nil {
		return nil
	}

	return os.WriteFile(path, []byte(configTemplate), 0644)
}
