// Package grounding is the anti-hallucination gate for generative-model
// output.  Every extracted field is checked against the normalised source
// text and removed or nulled when it cannot be located there.  Matching is
// deliberately permissive within bounds: minor rephrasing passes, invention
// does not.
//
// The validator runs only on generative output.  Pattern-extractor output is
// exempt because its values are substrings of the input by construction.
package grounding

import (
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/clinomic/ordersense/internal/infrastructure/monitoring/logging"
	"github.com/clinomic/ordersense/internal/infrastructure/monitoring/prometheus"
)

// conditionGap bounds the filler allowed between consecutive significant
// words of a condition.  It tolerates inserted prepositions and minor
// reordering while rejecting words scattered across the document.
const conditionGap = 20

// Validator checks extracted maps against their source text.  It never
// fails; the worst outcome is a structure with fewer fields.
type Validator struct {
	log     logging.Logger
	metrics prometheus.PipelineMetrics
}

// NewValidator constructs a Validator.  Nil arguments are replaced with nop
// implementations.
func NewValidator(log logging.Logger, metrics prometheus.PipelineMetrics) *Validator {
	if log == nil {
		log = logging.NewNopLogger()
	}
	if metrics == nil {
		metrics = prometheus.NewNopPipelineMetrics()
	}
	return &Validator{log: log.Named("grounding"), metrics: metrics}
}

// normalizeSource applies NFKC, lower-cases, and collapses whitespace.  It
// runs once per Validate call and is reused across every field check.
func normalizeSource(text string) string {
	return strings.Join(strings.Fields(strings.ToLower(norm.NFKC.String(text))), " ")
}

// Validate returns a same-shaped copy of extracted with every unverifiable
// field removed or nulled.  It never fails and never mutates its input.
func (v *Validator) Validate(extracted map[string]interface{}, sourceText, requestID string) map[string]interface{} {
	if extracted == nil {
		return map[string]interface{}{}
	}

	source := normalizeSource(sourceText)
	log := v.log.With(logging.String("request_id", requestID))

	out := make(map[string]interface{}, len(extracted))
	for k, val := range extracted {
		out[k] = val
	}

	if raw, ok := extracted["medications"]; ok {
		out["medications"] = v.validateMedications(asMapSlice(raw), source, log)
	}
	if raw, ok := extracted["conditions"]; ok {
		out["conditions"] = v.validateConditions(asMapSlice(raw), source, log)
	}
	if raw, ok := extracted["patients"]; ok {
		out["patients"] = v.validatePatients(asStringSlice(raw), source, log)
	}
	if raw, ok := extracted["lab_tests"]; ok {
		out["lab_tests"] = v.validateNamedEntries(asMapSlice(raw), source, "lab_test", log)
	}
	if raw, ok := extracted["procedures"]; ok {
		out["procedures"] = v.validateNamedEntries(asMapSlice(raw), source, "procedure", log)
	}

	return out
}

// validateMedications keeps an entry only when its name appears in the
// source.  Dosage and frequency are re-checked independently and nulled, not
// entry-dropped, when absent; the reconstructed entry then carries a safety
// flag downstream.
func (v *Validator) validateMedications(entries []map[string]interface{}, source string, log logging.Logger) []map[string]interface{} {
	kept := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		name := strings.ToLower(strings.TrimSpace(asString(entry["name"])))
		if name == "" || !strings.Contains(source, name) {
			v.reject(log, "medication", name, "name not found in source")
			continue
		}

		copied := make(map[string]interface{}, len(entry))
		for k, val := range entry {
			copied[k] = val
		}

		for _, field := range []string{"dosage", "frequency"} {
			value := strings.ToLower(strings.TrimSpace(asString(entry[field])))
			if value == "" {
				continue
			}
			if !strings.Contains(source, value) {
				v.reject(log, field, name, field+" "+value+" not found in source")
				copied[field] = nil
			}
		}
		kept = append(kept, copied)
	}
	return kept
}

// validateConditions requires every significant word (length > 2) of the
// name to appear in the source, and additionally in the recorded order with
// at most conditionGap characters of filler between consecutive words.
func (v *Validator) validateConditions(entries []map[string]interface{}, source string, log logging.Logger) []map[string]interface{} {
	kept := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		name := strings.ToLower(strings.TrimSpace(asString(entry["name"])))
		if name == "" {
			v.reject(log, "condition", name, "empty name")
			continue
		}

		var significant []string
		for _, w := range strings.Fields(name) {
			if len(w) > 2 {
				significant = append(significant, w)
			}
		}
		if len(significant) == 0 {
			v.reject(log, "condition", name, "no significant words to verify")
			continue
		}

		allPresent := true
		for _, w := range significant {
			if !strings.Contains(source, w) {
				allPresent = false
				break
			}
		}
		if !allPresent || !orderedWithinGap(source, significant) {
			v.reject(log, "condition", name, "significant words not grounded in order")
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}

// orderedWithinGap reports whether words occur in source in order with at
// most conditionGap characters between consecutive words.
func orderedWithinGap(source string, words []string) bool {
	quoted := make([]string, 0, len(words))
	for _, w := range words {
		quoted = append(quoted, regexp.QuoteMeta(w))
	}
	pattern := strings.Join(quoted, `.{0,`+strconv.Itoa(conditionGap)+`}?`)
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false
	}
	return re.MatchString(source)
}

// validatePatients keeps a name when the full lower-cased form is a
// substring, or, as a fallback for names split across line breaks, when
// every individual word appears somewhere in the source.
func (v *Validator) validatePatients(names []string, source string, log logging.Logger) []string {
	kept := make([]string, 0, len(names))
	for _, name := range names {
		lower := strings.ToLower(strings.TrimSpace(name))
		if lower == "" {
			continue
		}
		if strings.Contains(source, lower) {
			kept = append(kept, name)
			continue
		}
		allWords := true
		for _, w := range strings.Fields(lower) {
			if !strings.Contains(source, w) {
				allWords = false
				break
			}
		}
		if allWords {
			kept = append(kept, name)
			continue
		}
		v.reject(log, "patient", lower, "patient name not found in source")
	}
	return kept
}

// validateNamedEntries keeps an entry only when its lower-cased name is an
// exact substring of the source.  No partial-word leniency.
func (v *Validator) validateNamedEntries(entries []map[string]interface{}, source, field string, log logging.Logger) []map[string]interface{} {
	kept := make([]map[string]interface{}, 0, len(entries))
	for _, entry := range entries {
		name := strings.ToLower(strings.TrimSpace(asString(entry["name"])))
		if name == "" || !strings.Contains(source, name) {
			v.reject(log, field, name, "name not found in source")
			continue
		}
		kept = append(kept, entry)
	}
	return kept
}

func (v *Validator) reject(log logging.Logger, field, name, reason string) {
	log.Info("grounding rejection",
		logging.String("field", field),
		logging.String("entity", name),
		logging.String("reason", reason),
	)
	v.metrics.RecordGroundingRejection(field)
}

// ---------------------------------------------------------------------------
// Tolerant decode helpers
// ---------------------------------------------------------------------------

func asString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	return ""
}

func asStringSlice(v interface{}) []string {
	switch vv := v.(type) {
	case []string:
		return append([]string{}, vv...)
	case []interface{}:
		out := make([]string, 0, len(vv))
		for _, item := range vv {
			if s, ok := item.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		return []string{}
	}
}

func asMapSlice(v interface{}) []map[string]interface{} {
	switch vv := v.(type) {
	case []map[string]interface{}:
		return vv
	case []interface{}:
		out := make([]map[string]interface{}, 0, len(vv))
		for _, item := range vv {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	default:
		return nil
	}
}
