// Package schema loads the database catalog and retrieves the slice of it
// relevant to a question.
package schema

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/crewquery/engine/pkg/apperrors"
	"github.com/crewquery/engine/pkg/models"
)

// tokensPerColumn is the rough prompt cost of one column, used to decide
// between full-dump and semantic retrieval.
const tokensPerColumn = 15

// Snapshot is one immutable view of the catalog. Requests read a snapshot
// and never see a partially reloaded catalog.
type Snapshot struct {
	Entries  []models.SchemaEntry
	Stats    models.SchemaStats
	LoadedAt time.Time
}

// Aliases returns the distinct database aliases in the snapshot.
func (s *Snapshot) Aliases() []string {
	seen := make(map[string]bool)
	var out []string
	for _, e := range s.Entries {
		if !seen[e.Database] {
			seen[e.Database] = true
			out = append(out, e.Database)
		}
	}
	return out
}

// Catalog holds the current snapshot behind an atomic pointer. Reload builds
// a new snapshot off to the side and publishes it in one swap.
type Catalog struct {
	path    string
	current atomic.Pointer[Snapshot]
	logger  *zap.Logger
}

// NewCatalog creates an unloaded catalog for the given schema file.
func NewCatalog(path string, logger *zap.Logger) *Catalog {
	return &Catalog{
		path:   path,
		logger: logger.Named("catalog"),
	}
}

// Load reads the schema file and publishes the resulting snapshot. Safe to
// call concurrently with readers; in-flight requests keep their old snapshot.
func (c *Catalog) Load() error {
	snap, err := loadSnapshot(c.path)
	if err != nil {
		return err
	}

	c.current.Store(snap)
	c.logger.Info("catalog loaded",
		zap.Int("databases", snap.Stats.TotalDatabases),
		zap.Int("tables", snap.Stats.TotalTables),
		zap.Int("columns", snap.Stats.TotalColumns),
		zap.Int("estimated_tokens", snap.Stats.EstimatedTokens))
	return nil
}

// Snapshot returns the current snapshot, or ErrCatalogUnavailable when no
// load has succeeded yet.
func (c *Catalog) Snapshot() (*Snapshot, error) {
	snap := c.current.Load()
	if snap == nil {
		return nil, apperrors.ErrCatalogUnavailable
	}
	return snap, nil
}

// Loaded reports whether a snapshot is available.
func (c *Catalog) Loaded() bool {
	return c.current.Load() != nil
}

// schemaFile mirrors the on-disk catalog layout.
type schemaFile struct {
	Databases []struct {
		Name   string `json:"name"`
		Tables []struct {
			Name        string `json:"name"`
			Description string `json:"description"`
			Columns     []struct {
				Name     string `json:"name"`
				DataType string `json:"data_type"`
				Nullable bool   `json:"nullable"`
			} `json:"columns"`
			SampleRows []map[string]any `json:"sample_rows"`
		} `json:"tables"`
	} `json:"databases"`
}

func loadSnapshot(path string) (*Snapshot, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read schema file: %w", err)
	}

	var file schemaFile
	if err := json.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse schema file: %w", err)
	}

	snap := &Snapshot{LoadedAt: time.Now()}
	totalColumns := 0
	for _, db := range file.Databases {
		for _, tbl := range db.Tables {
			entry := models.SchemaEntry{
				Database:    db.Name,
				Table:       tbl.Name,
				Description: tbl.Description,
				SampleRows:  tbl.SampleRows,
			}
			for _, col := range tbl.Columns {
				entry.Columns = append(entry.Columns, models.Column{
					Name:     col.Name,
					Type:     col.DataType,
					Nullable: col.Nullable,
				})
			}
			totalColumns += len(entry.Columns)
			snap.Entries = append(snap.Entries, entry)
		}
	}

	if len(snap.Entries) == 0 {
		return nil, fmt.Errorf("schema file %s contains no tables", path)
	}

	snap.Stats = models.SchemaStats{
		TotalDatabases:  len(file.Databases),
		TotalTables:     len(snap.Entries),
		TotalColumns:    totalColumns,
		EstimatedTokens: totalColumns * tokensPerColumn,
	}
	return snap, nil
}

// FormatEntries renders schema entries in the layout the SQL generation
// prompt expects.
func FormatEntries(entries []models.SchemaEntry) string {
	var sb strings.Builder
	lastDB := ""
	for _, e := range entries {
		if e.Database != lastDB {
			fmt.Fprintf(&sb, "Database: %s\n", e.Database)
			lastDB = e.Database
		}
		fmt.Fprintf(&sb, "  Table: %s.%s\n", e.Database, e.Table)
		if e.Description != "" {
			fmt.Fprintf(&sb, "    Description: %s\n", e.Description)
		}
		for _, col := range e.Columns {
			nullable := ""
			if col.Nullable {
				nullable = " NULL"
			}
			fmt.Fprintf(&sb, "    - %s (%s%s)\n", col.Name, col.Type, nullable)
		}
	}
	return sb.String()
}
