package pattern_extractor

import (
	"sort"
	"strings"

	"github.com/clinomic/ordersense/internal/infrastructure/monitoring/logging"
	"github.com/clinomic/ordersense/pkg/types/clinical"
)

// ---------------------------------------------------------------------------
// Lab tests and procedures
// ---------------------------------------------------------------------------

// matchTerms finds every occurrence of the ordered term list, claiming the
// matched span so that a later, shorter term cannot re-match inside an
// earlier hit ("chest x-ray" claims before "x-ray", "hemoglobin a1c" before
// "a1c").
func matchTerms(lower string, terms []termMatcher) []string {
	type span struct{ start, end int }
	var claimed []span
	overlaps := func(start, end int) bool {
		for _, c := range claimed {
			if start < c.end && end > c.start {
				return true
			}
		}
		return false
	}

	var found []string
	for _, tm := range terms {
		for _, loc := range tm.re.FindAllStringIndex(lower, -1) {
			if overlaps(loc[0], loc[1]) {
				continue
			}
			claimed = append(claimed, span{loc[0], loc[1]})
			found = append(found, tm.term)
		}
	}
	return found
}

var (
	fastingKeyword  = "fasting"
	contrastKeyword = "with contrast"
)

func (e *Extractor) extractLabTests(s *clinical.Structure, lower string, urgency clinical.Urgency) {
	fasting := strings.Contains(lower, fastingKeyword)
	for _, name := range matchTerms(lower, e.labTerms) {
		lab, err := clinical.NewLabTest(clinical.LabTestParams{
			Name:            name,
			Urgency:         urgency,
			FastingRequired: fasting || strings.Contains(name, fastingKeyword),
		})
		if err != nil {
			e.log.Warn("skipping invalid lab test candidate",
				logging.String("candidate", name),
				logging.Err(err))
			continue
		}
		s.LabTests = append(s.LabTests, lab)
	}
}

func (e *Extractor) extractProcedures(s *clinical.Structure, lower string, urgency clinical.Urgency) {
	contrast := strings.Contains(lower, contrastKeyword)
	for _, name := range matchTerms(lower, e.procTerms) {
		proc, err := clinical.NewDiagnosticProcedure(clinical.ProcedureParams{
			Name:           name,
			Urgency:        urgency,
			ContrastNeeded: contrast,
		})
		if err != nil {
			e.log.Warn("skipping invalid procedure candidate",
				logging.String("candidate", name),
				logging.Err(err))
			continue
		}
		s.Procedures = append(s.Procedures, proc)
	}
}

// ---------------------------------------------------------------------------
// Conditions
// ---------------------------------------------------------------------------

// extractConditions unions three strategies: generic "for X" / "diagnosis
// of X" captures, the curated phrase lexicon, and single-word common
// conditions.  The union is deduplicated by normalised name and filtered
// against the condition stoplist.
func (e *Extractor) extractConditions(s *clinical.Structure, lower string) {
	candidates := map[string]struct{}{}

	for _, re := range e.condGeneric {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			candidates[strings.TrimSpace(m[1])] = struct{}{}
		}
	}
	for _, tm := range e.condPhrases {
		if tm.re.MatchString(lower) {
			candidates[tm.term] = struct{}{}
		}
	}
	for _, tm := range e.condCommon {
		if tm.re.MatchString(lower) {
			candidates[tm.term] = struct{}{}
		}
	}

	names := make([]string, 0, len(candidates))
	for name := range candidates {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		name = trimLeadingArticle(name)
		if name == "" {
			continue
		}
		if _, stopped := e.condStop[name]; stopped {
			continue
		}
		// Generic captures starting with a digit are durations ("7 days"),
		// not conditions.  Lexicon phrases like "type 2 diabetes" start
		// with a letter and are unaffected.
		if name[0] >= '0' && name[0] <= '9' {
			continue
		}
		cond, err := clinical.NewMedicalCondition(clinical.ConditionParams{Name: name})
		if err != nil {
			e.log.Warn("skipping invalid condition candidate",
				logging.String("candidate", name),
				logging.Err(err))
			continue
		}
		s.Conditions = append(s.Conditions, cond)
	}
}

func trimLeadingArticle(name string) string {
	for _, article := range []string{"the ", "a ", "an ", "his ", "her "} {
		if strings.HasPrefix(name, article) {
			return strings.TrimSpace(strings.TrimPrefix(name, article))
		}
	}
	return name
}
