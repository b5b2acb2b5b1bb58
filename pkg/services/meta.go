package services

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/crewquery/engine/pkg/models"
	"github.com/crewquery/engine/pkg/schema"
)

// metaPatterns detect questions about the catalog itself. These are answered
// straight from the snapshot, no model or SQL involved.
var metaPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\b(list|show|what|which|get|display)\b.*\b(database|databases|db|dbs)\b`),
	regexp.MustCompile(`\bdatabases?\s*(available|exist|do (we|you) have)`),
	regexp.MustCompile(`\bhow many\b.*\bdatabases?\b`),
	regexp.MustCompile(`\b(list|show|what|which|get|display)\b.*\btables?\b`),
	regexp.MustCompile(`\btables?\s*(available|exist|in)\b`),
	regexp.MustCompile(`\bhow many\b.*\btables?\b`),
	regexp.MustCompile(`\b(describe|structure|schema|columns?)\b.*\b(database|table|db)\b`),
	regexp.MustCompile(`\bavailable\b.*\b(database|table)`),
	regexp.MustCompile(`\bwhat (is|are) the (schema|structure|columns)`),
	regexp.MustCompile(`\b(how many|count|number of)\b.*\b(table|column|database)`),
}

var (
	metaDatabasesPattern = regexp.MustCompile(`\b(list|show|what|which|get|display|available|how many|count|number of)\b.*\bdatabases?\b`)
	metaTablesPattern    = regexp.MustCompile(`\b(list|show|what|which|get|display|available|how many|count|number of)\b.*\btables?\b`)
	metaDescribePattern  = regexp.MustCompile(`\b(describe|columns?|structure|schema)\b`)
)

// IsMetaQuestion reports whether the question asks about catalog structure.
func IsMetaQuestion(question string) bool {
	lower := strings.ToLower(question)
	for _, p := range metaPatterns {
		if p.MatchString(lower) {
			return true
		}
	}
	return false
}

// AnswerMetaQuestion answers a catalog-structure question from the snapshot.
func AnswerMetaQuestion(question string, snap *schema.Snapshot) string {
	lower := strings.ToLower(question)

	if metaDescribePattern.MatchString(lower) {
		if answer := describeTable(lower, snap); answer != "" {
			return answer
		}
	}

	if metaDatabasesPattern.MatchString(lower) {
		return listDatabases(snap)
	}

	if metaTablesPattern.MatchString(lower) {
		return listTables(lower, snap)
	}

	// Generic fallback: overall catalog shape.
	return fmt.Sprintf("The catalog has %d databases with %d tables and %d columns in total.",
		snap.Stats.TotalDatabases, snap.Stats.TotalTables, snap.Stats.TotalColumns)
}

func listDatabases(snap *schema.Snapshot) string {
	counts := make(map[string]int)
	var order []string
	for _, e := range snap.Entries {
		if counts[e.Database] == 0 {
			order = append(order, e.Database)
		}
		counts[e.Database]++
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "There are %d databases available:\n", len(order))
	for _, db := range order {
		fmt.Fprintf(&sb, "  - %s (%d tables)\n", db, counts[db])
	}
	return strings.TrimRight(sb.String(), "\n")
}

const maxListedTables = 50

func listTables(lower string, snap *schema.Snapshot) string {
	// Narrow to one database when the question names it.
	dbFilter := ""
	for _, alias := range snap.Aliases() {
		if strings.Contains(lower, strings.ToLower(alias)) {
			dbFilter = alias
			break
		}
	}

	var tables []string
	for _, e := range snap.Entries {
		if dbFilter != "" && e.Database != dbFilter {
			continue
		}
		tables = append(tables, e.QualifiedName())
	}

	qualifier := ""
	if dbFilter != "" {
		qualifier = fmt.Sprintf(" in %s", dbFilter)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "There are %d tables%s:\n", len(tables), qualifier)
	for i, t := range tables {
		if i == maxListedTables {
			fmt.Fprintf(&sb, "  ... and %d more\n", len(tables)-maxListedTables)
			break
		}
		fmt.Fprintf(&sb, "  - %s\n", t)
	}
	return strings.TrimRight(sb.String(), "\n")
}

func describeTable(lower string, snap *schema.Snapshot) string {
	var match *models.SchemaEntry
	for i := range snap.Entries {
		e := &snap.Entries[i]
		if strings.Contains(lower, strings.ToLower(e.Table)) ||
			strings.Contains(lower, strings.ToLower(e.QualifiedName())) {
			match = e
			break
		}
	}
	if match == nil {
		return ""
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Table: %s\n", match.QualifiedName())
	if match.Description != "" {
		fmt.Fprintf(&sb, "Description: %s\n", match.Description)
	}
	fmt.Fprintf(&sb, "Columns (%d):\n", len(match.Columns))
	for _, col := range match.Columns {
		nullable := ""
		if col.Nullable {
			nullable = " [nullable]"
		}
		fmt.Fprintf(&sb, "  - %s: %s%s\n", col.Name, col.Type, nullable)
	}
	return strings.TrimRight(sb.String(), "\n")
}
