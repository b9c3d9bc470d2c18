package backup

import (
	"fmt"

	"focus-blocks/internal/models"
)

const (
	// FormatName identifies focus-blocks backup files.
	FormatName = "focus-blocks-backup"
	// CurrentVersion is incremented on incompatible backup schema changes.
	CurrentVersion = 1
)

var (
	// ErrInvalidSnapshot indicates backup payload validation failure.
	ErrInvalidSnapshot = fmt.Errorf("%w: invalid backup snapshot", models.ErrValidation)
)

// Snapshot is the export/import payload. Sessions, bypasses and statistics
// are runtime state and are not part of it.
type Snapshot struct {
	Format     string            `json:"format"`
	Version    int               `json:"version"`
	ExportedAt int64             `json:"exportedAt"`
	Settings   models.Settings   `json:"settings"`
	Lists      models.BlockLists `json:"lists"`
	Schedules  []models.Schedule `json:"schedules"`
}

// ImportResult includes non-fatal warnings encountered during restore.
type ImportResult struct {
	Warnings []string `json:"warnings,omitempty"`
}
