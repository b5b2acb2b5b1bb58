package prompts

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// FewShotExample pairs a natural-language question with the SQL that
// answers it.
type FewShotExample struct {
	Question string `yaml:"question"`
	SQL      string `yaml:"sql"`
}

type fewShotFile struct {
	Examples []FewShotExample `yaml:"examples"`
}

// LoadFewShot reads few-shot examples from a YAML file. A missing file is
// not an error; generation simply runs without examples.
func LoadFewShot(path string) ([]FewShotExample, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read few-shot file: %w", err)
	}

	var file fewShotFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse few-shot file: %w", err)
	}

	var out []FewShotExample
	for _, ex := range file.Examples {
		if strings.TrimSpace(ex.Question) == "" || strings.TrimSpace(ex.SQL) == "" {
			continue
		}
		out = append(out, ex)
	}
	return out, nil
}

// FormatFewShot renders examples for inclusion in the generation prompt.
func FormatFewShot(examples []FewShotExample) string {
	if len(examples) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, ex := range examples {
		fmt.Fprintf(&sb, "Q: %s\nSQL: %s\n\n", ex.Question, strings.TrimSpace(ex.SQL))
	}
	return strings.TrimSpace(sb.String())
}
