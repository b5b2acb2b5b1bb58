// Package pii masks personally identifiable information before text leaves
// the process and restores it in responses.
package pii

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"
)

// Categories of PII the masker detects, in detection order. Longer or more
// specific patterns run first so that e.g. a credit card number is not
// partially consumed by the phone pattern.
const (
	CategoryEmail      = "EMAIL"
	CategorySSN        = "SSN"
	CategoryCreditCard = "CREDIT_CARD"
	CategoryPhone      = "PHONE"
	CategoryPassport   = "PASSPORT"
	CategoryEmployeeID = "EMPLOYEE_ID"
)

type pattern struct {
	category string
	re       *regexp.Regexp
}

// Detection order matters: specific formats before the greedy phone pattern.
var patterns = []pattern{
	{CategoryEmail, regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)},
	{CategorySSN, regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`)},
	{CategoryCreditCard, regexp.MustCompile(`\b(?:\d[ -]?){13,16}\b`)},
	{CategoryPhone, regexp.MustCompile(`(?:\+?\d{1,3}[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`)},
	{CategoryPassport, regexp.MustCompile(`\b[A-Z]{1,2}\d{7,8}\b`)},
	{CategoryEmployeeID, regexp.MustCompile(`\b(?:EMP|emp)[-_]?\d{4,8}\b`)},
}

// placeholderPattern matches any placeholder this masker could have emitted.
var placeholderPattern = regexp.MustCompile(`\[(?:EMAIL|SSN|CREDIT_CARD|PHONE|PASSPORT|EMPLOYEE_ID)_\d+\]`)

// Masker replaces detected PII with placeholders of the form [CATEGORY_N]
// and restores them on the way out. Counters are per-category, so one
// request sees [EMAIL_1], [EMAIL_2], [PHONE_1] rather than one global
// sequence. Mappings live only as long as the masker itself; callers scope
// a masker to a single request so raw values never outlive the turn.
type Masker struct {
	logger *zap.Logger

	// placeholder -> original value
	values map[string]string
	// original value -> placeholder, so a value repeated across turns keeps
	// its placeholder
	assigned map[string]string
	counters map[string]int
}

// NewMasker creates an empty masker. One masker serves one request.
func NewMasker(logger *zap.Logger) *Masker {
	return &Masker{
		logger:   logger.Named("pii"),
		values:   make(map[string]string),
		assigned: make(map[string]string),
		counters: make(map[string]int),
	}
}

// Mask replaces every detected PII value in text with its placeholder and
// returns the masked text. Detection is deterministic for a given input.
//
// Placeholder-shaped spans the user typed literally are claimed as masked
// values of their own first, so Unmask restores the literal text instead of
// substituting a value issued for someone else's PII.
func (m *Masker) Mask(text string) string {
	masked := placeholderPattern.ReplaceAllStringFunc(text, func(span string) string {
		return m.placeholderFor(placeholderCategory(span), span)
	})
	for _, p := range patterns {
		masked = p.re.ReplaceAllStringFunc(masked, func(match string) string {
			// Skip anything already turned into a placeholder.
			if placeholderPattern.MatchString(match) {
				return match
			}
			return m.placeholderFor(p.category, match)
		})
	}

	if masked != text {
		m.logger.Debug("masked PII", zap.Int("placeholders", len(m.values)))
	}
	return masked
}

// placeholderCategory extracts the category from a placeholder-shaped span,
// e.g. "[EMAIL_2]" -> "EMAIL".
func placeholderCategory(span string) string {
	trimmed := strings.Trim(span, "[]")
	return trimmed[:strings.LastIndex(trimmed, "_")]
}

func (m *Masker) placeholderFor(category, value string) string {
	if ph, ok := m.assigned[value]; ok {
		return ph
	}
	m.counters[category]++
	ph := fmt.Sprintf("[%s_%d]", category, m.counters[category])
	m.assigned[value] = ph
	m.values[ph] = value
	return ph
}

// UnmaskResult reports what Unmask restored and what it could not.
type UnmaskResult struct {
	Text string
	// Unresolved lists placeholders present in the input that this masker
	// never issued. They are replaced with "[redacted]" in Text.
	Unresolved []string
}

// Unmask restores original values for every placeholder this masker issued.
// Placeholders it cannot resolve (typically invented by the model) are
// replaced with "[redacted]" and reported so the caller can log them.
func (m *Masker) Unmask(text string) UnmaskResult {
	result := UnmaskResult{}
	result.Text = placeholderPattern.ReplaceAllStringFunc(text, func(ph string) string {
		if v, ok := m.values[ph]; ok {
			return v
		}
		result.Unresolved = append(result.Unresolved, ph)
		return "[redacted]"
	})

	if len(result.Unresolved) > 0 {
		m.logger.Error("unresolved PII placeholders in response",
			zap.Strings("placeholders", result.Unresolved))
	}
	return result
}

// HasMappings reports whether any PII was masked so far.
func (m *Masker) HasMappings() bool {
	return len(m.values) > 0
}

// Placeholders returns the issued placeholders in sorted order.
func (m *Masker) Placeholders() []string {
	out := make([]string, 0, len(m.values))
	for ph := range m.values {
		out = append(out, ph)
	}
	sort.Strings(out)
	return out
}

// ContainsPlaceholder reports whether text holds any masking placeholder.
func ContainsPlaceholder(text string) bool {
	return strings.Contains(text, "[") && placeholderPattern.MatchString(text)
}
