// Package escalation decides whether the generative extractor is worth its
// cost, given the deterministic extractor's output and the raw text.  The
// six rules and their lexicons are empirically tuned; their order and
// membership drive the pipeline's cost/recall balance.
package escalation

import (
	"regexp"
	"strings"

	"github.com/clinomic/ordersense/internal/infrastructure/monitoring/logging"
	"github.com/clinomic/ordersense/internal/lexicon"
	"github.com/clinomic/ordersense/pkg/types/clinical"
)

// Rule names, used for logging and metric labels.
const (
	RuleZeroYield             = "zero_yield"
	RuleNoiseOnlyYield        = "noise_only_yield"
	RuleHardMedicationMissed  = "hard_medication_missed"
	RuleDosingWithoutMed      = "dosing_without_medication"
	RuleActionVerbsLowQuality = "action_verbs_low_quality"
	RulePatientNameMissed     = "patient_name_missed"
)

// Decision is the policy outcome.  Rule names the first rule that fired, or
// is empty when extraction was judged sufficient.
type Decision struct {
	Escalate bool
	Rule     string
}

// Policy evaluates the escalation rules.  It is pure apart from logging and
// safe for concurrent use.
type Policy struct {
	tables    *lexicon.Tables
	log       logging.Logger
	stopwords map[string]struct{}
	patientRe *regexp.Regexp
}

// NewPolicy builds a Policy over the given tables.  Nil arguments fall back
// to the built-in defaults and a nop logger.
func NewPolicy(tables *lexicon.Tables, log logging.Logger) *Policy {
	if tables == nil {
		tables = lexicon.Default()
	}
	if log == nil {
		log = logging.NewNopLogger()
	}
	stop := make(map[string]struct{}, len(tables.EscalationStopwords))
	for _, w := range tables.EscalationStopwords {
		stop[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return &Policy{
		tables:    tables,
		log:       log.Named("escalation"),
		stopwords: stop,
		patientRe: regexp.MustCompile(`\b[Pp]atient\s+[A-Z][a-z]+\s+[A-Z][a-z]+\b`),
	}
}

// ShouldEscalate evaluates the six rules in order and returns the first that
// fires.  If none fire, the deterministic result stands.
func (p *Policy) ShouldEscalate(s *clinical.Structure, text string) Decision {
	if s == nil {
		s = clinical.NewStructure()
	}
	lower := strings.ToLower(text)

	total := s.TotalEntityCount()
	quality := p.qualityEntityCount(s)

	// 1. Zero yield: nothing extracted at all.
	if total == 0 {
		return p.fire(RuleZeroYield, "no entities extracted")
	}

	// 2. Noise-only yield: entities exist but none carry signal.
	if quality == 0 {
		return p.fire(RuleNoiseOnlyYield, "no quality entities among extractions")
	}

	// 3. Known-hard medication present in text but absent from the
	// extracted medication list.
	extractedMeds := make(map[string]struct{}, len(s.Medications))
	for _, m := range s.Medications {
		extractedMeds[m.Name] = struct{}{}
	}
	for _, hard := range p.tables.HardMedications {
		hard = strings.ToLower(hard)
		if !strings.Contains(lower, hard) {
			continue
		}
		if _, found := extractedMeds[hard]; !found {
			return p.fire(RuleHardMedicationMissed, "text mentions "+hard+" but extraction missed it")
		}
	}

	// 4. Dosing language with zero extracted medications.
	if len(s.Medications) == 0 {
		for _, kw := range p.tables.DosingKeywords {
			if strings.Contains(lower, strings.ToLower(kw)) {
				return p.fire(RuleDosingWithoutMed, "dosing keyword "+kw+" without any medication")
			}
		}
	}

	// 5. Medical action verbs with fewer than two quality entities.
	if quality < 2 {
		for _, verb := range p.tables.ActionVerbs {
			if strings.Contains(lower, strings.ToLower(verb)) {
				return p.fire(RuleActionVerbsLowQuality, "action verb "+verb+" with low quality yield")
			}
		}
	}

	// 6. Capitalised patient-name pattern present but no patient extracted.
	if len(s.Patients) == 0 && p.patientRe.MatchString(text) {
		return p.fire(RulePatientNameMissed, "patient name pattern in text but none extracted")
	}

	p.log.Debug("extraction judged sufficient",
		logging.Int("total_entities", total),
		logging.Int("quality_entities", quality),
	)
	return Decision{}
}

func (p *Policy) fire(rule, reason string) Decision {
	p.log.Info("escalation rule fired",
		logging.String("rule", rule),
		logging.String("reason", reason),
	)
	return Decision{Escalate: true, Rule: rule}
}

// qualityEntityCount counts extracted names that carry signal: longer than
// two characters and not a stopword.
func (p *Policy) qualityEntityCount(s *clinical.Structure) int {
	count := 0
	check := func(name string) {
		name = strings.ToLower(strings.TrimSpace(name))
		if len(name) <= 2 {
			return
		}
		if _, stopped := p.stopwords[name]; stopped {
			return
		}
		count++
	}
	for _, m := range s.Medications {
		check(m.Name)
	}
	for _, l := range s.LabTests {
		check(l.Name)
	}
	for _, pr := range s.Procedures {
		check(pr.Name)
	}
	for _, c := range s.Conditions {
		check(c.Name)
	}
	return count
}
