package pattern_extractor

import (
	"strings"

	"github.com/clinomic/ordersense/pkg/types/clinical"
)

// ---------------------------------------------------------------------------
// Instructions, safety alerts, patients
// ---------------------------------------------------------------------------

// extractInstructions sweeps imperative clauses led by an instruction verb.
func (e *Extractor) extractInstructions(s *clinical.Structure, lower string) {
	for _, m := range e.instructions.FindAllStringSubmatch(lower, -1) {
		clause := strings.TrimSpace(m[1])
		if clause != "" {
			s.ClinicalInstructions = append(s.ClinicalInstructions, clause)
		}
	}
}

// extractAlerts combines clause sweeps ("allergy to penicillin",
// "contraindicated in renal failure") with the fixed keyword-to-alert map.
func (e *Extractor) extractAlerts(s *clinical.Structure, lower string) {
	seen := map[string]struct{}{}
	add := func(alert string) {
		alert = strings.TrimSpace(alert)
		if alert == "" {
			return
		}
		if _, dup := seen[alert]; dup {
			return
		}
		seen[alert] = struct{}{}
		s.PatientSafetyAlerts = append(s.PatientSafetyAlerts, alert)
	}

	for _, re := range e.alertSweeps {
		for _, m := range re.FindAllStringSubmatch(lower, -1) {
			add(m[1])
		}
	}
	for _, keyword := range e.alertKeys {
		if strings.Contains(lower, keyword) {
			add(e.tables.AlertKeywords[keyword])
		}
	}
}

// extractPatients captures "patient Firstname Lastname" mentions from the
// original-case text; capitalisation carries the signal here.
func (e *Extractor) extractPatients(s *clinical.Structure, text string) {
	for _, m := range e.patientRe.FindAllStringSubmatch(text, -1) {
		name := strings.TrimSpace(m[1])
		dup := false
		for _, existing := range s.Patients {
			if existing == name {
				dup = true
				break
			}
		}
		if !dup {
			s.Patients = append(s.Patients, name)
		}
	}
}
