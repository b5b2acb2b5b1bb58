// Package sql statically checks generated statements before execution.
package sql

import (
	"fmt"
	"strings"

	libinjection "github.com/corazawaf/libinjection-go"

	"github.com/crewquery/engine/pkg/apperrors"
)

// denyList holds the mutating, DDL and permission keywords that are never
// allowed in a generated statement, checked as whole tokens.
var denyList = map[string]bool{
	"INSERT":   true,
	"UPDATE":   true,
	"DELETE":   true,
	"DROP":     true,
	"ALTER":    true,
	"CREATE":   true,
	"TRUNCATE": true,
	"GRANT":    true,
	"REVOKE":   true,
	"EXEC":     true,
	"EXECUTE":  true,
	"PRAGMA":   true,
	"ATTACH":   true,
	"DETACH":   true,
	"VACUUM":   true,
	"REINDEX":  true,
}

// Validator rejects statements that are not a single read-only SELECT over
// the known database aliases.
type Validator struct {
	aliases map[string]bool
}

// NewValidator creates a validator for the given set of attached database
// aliases. Aliases are matched case-insensitively.
func NewValidator(aliases []string) *Validator {
	m := make(map[string]bool, len(aliases))
	for _, a := range aliases {
		m[strings.ToUpper(a)] = true
	}
	return &Validator{aliases: m}
}

// Validate checks a candidate statement. A nil return means the statement
// may be executed; a non-nil return wraps ErrValidationRejected with the
// reason, which also feeds the correction prompt.
func (v *Validator) Validate(sqlText string) error {
	trimmed := strings.TrimSpace(sqlText)
	if trimmed == "" {
		return fmt.Errorf("%w: empty statement", apperrors.ErrValidationRejected)
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return fmt.Errorf("%w: %s", apperrors.ErrValidationRejected, err)
	}
	if len(tokens) == 0 {
		return fmt.Errorf("%w: statement contains only comments", apperrors.ErrValidationRejected)
	}

	// A single trailing semicolon is tolerated.
	if last := tokens[len(tokens)-1]; last.kind == tokenPunct && last.text == ";" {
		tokens = tokens[:len(tokens)-1]
	}

	if first := tokens[0]; first.kind != tokenWord || first.text != "SELECT" {
		return fmt.Errorf("%w: statement must begin with SELECT", apperrors.ErrValidationRejected)
	}

	for _, t := range tokens {
		switch t.kind {
		case tokenPunct:
			if t.text == ";" {
				return fmt.Errorf("%w: multiple statements are not allowed", apperrors.ErrValidationRejected)
			}
		case tokenWord:
			if denyList[t.text] {
				return fmt.Errorf("%w: forbidden keyword %s", apperrors.ErrValidationRejected, t.text)
			}
		case tokenString:
			if injected, _ := libinjection.IsSQLi(t.text); injected {
				return fmt.Errorf("%w: string literal looks like an injection payload", apperrors.ErrValidationRejected)
			}
		}
	}

	if err := v.checkQualifiers(tokens); err != nil {
		return err
	}

	return nil
}

// checkQualifiers verifies that every FROM/JOIN target of the form
// qualifier.table uses a known database alias. Derived tables (subqueries)
// and unqualified tables are left to the execution engine to reject.
func (v *Validator) checkQualifiers(tokens []token) error {
	if len(v.aliases) == 0 {
		return nil
	}

	for i := 0; i < len(tokens); i++ {
		t := tokens[i]
		if t.kind != tokenWord || (t.text != "FROM" && t.text != "JOIN") {
			continue
		}
		j := i + 1
		if j >= len(tokens) {
			continue
		}
		// Subquery target
		if tokens[j].kind == tokenPunct && tokens[j].text == "(" {
			continue
		}
		if tokens[j].kind != tokenWord {
			continue
		}
		// qualifier.table form
		if j+2 < len(tokens) && tokens[j+1].kind == tokenPunct && tokens[j+1].text == "." && tokens[j+2].kind == tokenWord {
			if !v.aliases[tokens[j].text] {
				return fmt.Errorf("%w: unknown database qualifier %q", apperrors.ErrValidationRejected, strings.ToLower(tokens[j].text))
			}
		}
	}

	return nil
}
