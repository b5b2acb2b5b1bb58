package models

// Column describes one column of a catalogued table.
type Column struct {
	Name     string `json:"name"`
	Type     string `json:"type"`
	Nullable bool   `json:"nullable"`
}

// SchemaEntry describes one table reachable by the execution engine.
// Entries are immutable once a catalog snapshot is built; consumers
// receive copies via Clone.
type SchemaEntry struct {
	Database    string           `json:"database"`
	Table       string           `json:"table"`
	Columns     []Column         `json:"columns"`
	Description string           `json:"description"`
	SampleRows  []map[string]any `json:"sample_rows,omitempty"`
}

// QualifiedName returns the database-qualified table reference used in
// generated SQL, e.g. "crew_management.crew_members".
func (e *SchemaEntry) QualifiedName() string {
	return e.Database + "." + e.Table
}

// Clone returns a deep copy of the entry so catalog internals are never
// shared with callers.
func (e *SchemaEntry) Clone() SchemaEntry {
	out := SchemaEntry{
		Database:    e.Database,
		Table:       e.Table,
		Description: e.Description,
	}
	out.Columns = make([]Column, len(e.Columns))
	copy(out.Columns, e.Columns)
	if e.SampleRows != nil {
		out.SampleRows = make([]map[string]any, len(e.SampleRows))
		for i, row := range e.SampleRows {
			cp := make(map[string]any, len(row))
			for k, v := range row {
				cp[k] = v
			}
			out.SampleRows[i] = cp
		}
	}
	return out
}

// SchemaStats summarizes a catalog snapshot for the schema info endpoint.
type SchemaStats struct {
	TotalDatabases  int `json:"total_databases"`
	TotalTables     int `json:"total_tables"`
	TotalColumns    int `json:"total_columns"`
	EstimatedTokens int `json:"estimated_tokens"`
}
