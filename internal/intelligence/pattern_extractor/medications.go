package pattern_extractor

import (
	"regexp"
	"strings"

	"github.com/clinomic/ordersense/internal/infrastructure/monitoring/logging"
	"github.com/clinomic/ordersense/pkg/types/clinical"
)

// ---------------------------------------------------------------------------
// Medication extraction
// ---------------------------------------------------------------------------

// extractMedications applies the ordered medication patterns.  Overlapping
// patterns can match the same mention more than once; duplicates are kept
// deliberately so downstream consumers see every pattern hit.
func (e *Extractor) extractMedications(s *clinical.Structure, lower string, route clinical.Route) {
	for _, p := range e.medPatterns {
		for _, match := range p.re.FindAllStringSubmatch(lower, -1) {
			name := strings.TrimSpace(match[p.nameGroup])
			if !e.acceptMedName(name) {
				continue
			}

			dosage := ""
			if p.doseGroup > 0 {
				dosage = strings.TrimSpace(match[p.doseGroup])
			}
			frequency := ""
			if p.freqGroup > 0 {
				frequency = strings.TrimSpace(match[p.freqGroup])
			}

			// Secondary look-backs anchored on the name recover dosage and
			// frequency the primary pattern did not capture.
			if dosage == "" {
				dosage = e.lookupDosage(lower, name)
			}
			if frequency == "" {
				frequency = e.lookupFrequency(lower, name)
			}

			duration := ""
			if m := e.durationRe.FindStringSubmatch(lower); m != nil {
				duration = m[1]
			}

			med, err := clinical.NewMedicationOrder(clinical.MedicationParams{
				Name:      name,
				Dosage:    dosage,
				Frequency: frequency,
				Route:     route,
				Duration:  duration,
			})
			if err != nil {
				e.log.Warn("skipping invalid medication candidate",
					logging.String("candidate", name),
					logging.Err(err))
				continue
			}
			s.Medications = append(s.Medications, med)
		}
	}
}

// acceptMedName rejects candidates under 3 characters or in the generic-word
// stoplist.
func (e *Extractor) acceptMedName(name string) bool {
	if len(name) < 3 {
		return false
	}
	_, stopped := e.medStop[name]
	return !stopped
}

// lookupDosage searches for a dose expression after the name within the same
// clause, then for a dose immediately before it.
func (e *Extractor) lookupDosage(lower, name string) string {
	quoted := regexp.QuoteMeta(name)

	after, err := regexp.Compile(`\b` + quoted + `\b[^.;\n]{0,40}?(` + e.doseRe.String() + `)`)
	if err == nil {
		if m := after.FindStringSubmatch(lower); m != nil {
			return strings.TrimSpace(m[1])
		}
	}

	before, err := regexp.Compile(`(` + e.doseRe.String() + `)\s+(?:of\s+)?\b` + quoted + `\b`)
	if err == nil {
		if m := before.FindStringSubmatch(lower); m != nil {
			return strings.TrimSpace(m[1])
		}
	}
	return ""
}

// lookupFrequency searches for a frequency expression in the clause
// following the name.
func (e *Extractor) lookupFrequency(lower, name string) string {
	re, err := regexp.Compile(`\b` + regexp.QuoteMeta(name) + `\b[^.;\n]{0,80}?(` + e.freqRe.String() + `)`)
	if err != nil {
		return ""
	}
	if m := re.FindStringSubmatch(lower); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}
