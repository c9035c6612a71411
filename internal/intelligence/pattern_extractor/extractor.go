// Package pattern_extractor implements the deterministic tier of the order
// extraction pipeline: ordered regex and lexicon matching over a single text
// blob, producing a clinical.Structure in tens of milliseconds with no
// network I/O.
//
// Extract never fails.  Per-entity construction errors are logged and that
// entity is skipped; internal panics degrade to a partial structure.  The
// output is trusted without grounding validation because every extracted
// value is by construction a substring of the input.
package pattern_extractor

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/clinomic/ordersense/internal/infrastructure/monitoring/logging"
	"github.com/clinomic/ordersense/internal/lexicon"
	"github.com/clinomic/ordersense/pkg/errors"
	"github.com/clinomic/ordersense/pkg/types/clinical"
)

// ---------------------------------------------------------------------------
// Extractor
// ---------------------------------------------------------------------------

// routeOrder fixes the scan order for the document-level route classifier.
// Routes not listed here (custom overlay tables) are scanned afterwards in
// sorted order so that extraction stays deterministic.
var routeOrder = []string{
	"oral", "intravenous", "intramuscular", "sublingual", "topical", "inhalation",
}

// medPattern is one entry in the ordered medication pattern list.  Group
// indices are into the compiled regex's submatches; 0 means "not captured by
// this pattern".
type medPattern struct {
	re        *regexp.Regexp
	nameGroup int
	doseGroup int
	freqGroup int
}

type routeMatcher struct {
	route clinical.Route
	re    *regexp.Regexp
}

type termMatcher struct {
	term string
	re   *regexp.Regexp
}

// Extractor is the deterministic pattern extractor.  It is immutable after
// construction and safe for concurrent use.
type Extractor struct {
	tables        *lexicon.Tables
	log           logging.Logger
	maxTextLength int

	medPatterns  []medPattern
	doseRe       *regexp.Regexp
	freqRe       *regexp.Regexp
	durationRe   *regexp.Regexp
	routes       []routeMatcher
	labTerms     []termMatcher
	procTerms    []termMatcher
	condGeneric  []*regexp.Regexp
	condPhrases  []termMatcher
	condCommon   []termMatcher
	instructions *regexp.Regexp
	alertSweeps  []*regexp.Regexp
	alertKeys    []string
	patientRe    *regexp.Regexp

	medStop  map[string]struct{}
	condStop map[string]struct{}
}

// NewExtractor compiles the pattern set from the given tables.  A nil tables
// argument uses the built-in defaults; a nil logger is replaced with a nop.
// maxTextLength ≤ 0 disables the input length cap.
func NewExtractor(tables *lexicon.Tables, maxTextLength int, log logging.Logger) (*Extractor, error) {
	if tables == nil {
		tables = lexicon.Default()
	}
	if err := tables.Validate(); err != nil {
		return nil, err
	}
	if log == nil {
		log = logging.NewNopLogger()
	}

	e := &Extractor{
		tables:        tables,
		log:           log.Named("pattern_extractor"),
		maxTextLength: maxTextLength,
		medStop:       toSet(tables.MedicationStopwords),
		condStop:      toSet(tables.ConditionStopwords),
	}
	if err := e.compile(); err != nil {
		return nil, err
	}
	return e, nil
}

func toSet(words []string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	return set
}

// alternation builds a non-capturing, longest-first alternation of literal
// terms so that "orally" wins over "oral" at the same position.
func alternation(terms []string) string {
	sorted := make([]string, len(terms))
	copy(sorted, terms)
	sort.Slice(sorted, func(i, j int) bool { return len(sorted[i]) > len(sorted[j]) })
	quoted := make([]string, 0, len(sorted))
	for _, t := range sorted {
		quoted = append(quoted, regexp.QuoteMeta(strings.ToLower(t)))
	}
	return "(?:" + strings.Join(quoted, "|") + ")"
}

func (e *Extractor) compile() error {
	t := e.tables

	dose := `\d+(?:\.\d+)?\s*` + alternation(t.DoseUnits) + `\b`
	freqAlts := make([]string, 0, len(t.FrequencyPatterns))
	for _, p := range t.FrequencyPatterns {
		freqAlts = append(freqAlts, "(?:"+p+")")
	}
	freq := "(?:" + strings.Join(freqAlts, "|") + ")"
	name := `[a-z][a-z\-]{2,}`

	var err error
	if e.doseRe, err = regexp.Compile(dose); err != nil {
		return errors.Wrap(err, errors.ErrCodeLexiconInvalid, "dose pattern failed to compile")
	}
	if e.freqRe, err = regexp.Compile(freq); err != nil {
		return errors.Wrap(err, errors.ErrCodeLexiconInvalid, "frequency pattern failed to compile")
	}
	e.durationRe = regexp.MustCompile(`for\s+(\d+\s+(?:day|days|week|weeks|month|months))\b`)

	// Ordered medication patterns.  Order matters: richer templates first,
	// bare lexicon hits last.
	compiled := []struct {
		expr                            string
		nameGroup, doseGroup, freqGroup int
	}{
		// dose-then-name: "500mg of amoxicillin"
		{`(` + dose + `)\s+(?:of\s+)?(` + name + `)`, 2, 1, 0},
		// name-then-dose-then-frequency: "amoxicillin 500mg three times daily"
		{`(` + name + `)\s+(` + dose + `)\s+(` + freq + `)`, 1, 2, 3},
		// name-then-dose: "metformin 1000mg"
		{`(` + name + `)\s+(` + dose + `)`, 1, 2, 0},
		// known-drug lexicon
		{`\b(` + alternation(t.MedicationNames) + `)\b`, 1, 0, 0},
		// specialty formulations: "fentanyl patch", "metoprolol xl"
		{`(` + name + `)\s+(?:xl|sr|cr|er|xr|la|patch|patches)\b`, 1, 0, 0},
	}
	for _, c := range compiled {
		re, err := regexp.Compile(c.expr)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeLexiconInvalid,
				fmt.Sprintf("medication pattern %q failed to compile", c.expr))
		}
		e.medPatterns = append(e.medPatterns, medPattern{
			re: re, nameGroup: c.nameGroup, doseGroup: c.doseGroup, freqGroup: c.freqGroup,
		})
	}

	// Route classifier, canonical routes first, overlay extras after.
	seen := map[string]bool{}
	addRoute := func(key string) error {
		kws, ok := t.RouteKeywords[key]
		if !ok || seen[key] {
			return nil
		}
		seen[key] = true
		re, err := regexp.Compile(`\b` + alternation(kws) + `\b`)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeLexiconInvalid,
				fmt.Sprintf("route %q keywords failed to compile", key))
		}
		e.routes = append(e.routes, routeMatcher{route: clinical.ParseRoute(key), re: re})
		return nil
	}
	for _, key := range routeOrder {
		if err := addRoute(key); err != nil {
			return err
		}
	}
	extras := make([]string, 0)
	for key := range t.RouteKeywords {
		if !seen[key] {
			extras = append(extras, key)
		}
	}
	sort.Strings(extras)
	for _, key := range extras {
		if err := addRoute(key); err != nil {
			return err
		}
	}

	if e.labTerms, err = compileTerms(t.LabTestTerms); err != nil {
		return err
	}
	if e.procTerms, err = compileTerms(t.ProcedureTerms); err != nil {
		return err
	}

	// Condition strategies: generic captures, curated phrases, single words.
	condCapture := `([a-z0-9][a-z0-9\s\-]{2,50}?)(?:[.,;\n]|$)`
	for _, expr := range []string{
		`(?:diagnosis of|diagnosed with)\s+` + condCapture,
		`(?:patient has|history of|presenting with|suffers from|suffering from)\s+` + condCapture,
		`for\s+` + condCapture,
	} {
		re, err := regexp.Compile(expr)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeLexiconInvalid,
				fmt.Sprintf("condition pattern %q failed to compile", expr))
		}
		e.condGeneric = append(e.condGeneric, re)
	}
	if e.condPhrases, err = compileTerms(t.ConditionPhrases); err != nil {
		return err
	}
	if e.condCommon, err = compileTerms(t.CommonConditions); err != nil {
		return err
	}

	e.instructions, err = regexp.Compile(`(?:^|[.;!?]\s*)(` + alternation(t.InstructionVerbs) + `\b[^.;\n]*)`)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeLexiconInvalid, "instruction pattern failed to compile")
	}

	for _, expr := range []string{
		`(allerg(?:y|ic|ies) to\s+[a-z0-9\s\-,]+?)(?:[.;\n]|$)`,
		`(contraindicated[^.;\n]*)`,
		`(do not [^.;\n]*)`,
	} {
		re, err := regexp.Compile(expr)
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeLexiconInvalid,
				fmt.Sprintf("alert pattern %q failed to compile", expr))
		}
		e.alertSweeps = append(e.alertSweeps, re)
	}
	// Sorted keyword list keeps alert ordering deterministic across calls.
	e.alertKeys = make([]string, 0, len(t.AlertKeywords))
	for k := range t.AlertKeywords {
		e.alertKeys = append(e.alertKeys, k)
	}
	sort.Strings(e.alertKeys)

	// Capitalised "patient Firstname Lastname" mention; runs on the
	// original-case text.
	e.patientRe = regexp.MustCompile(`\b[Pp]atient\s+([A-Z][a-z]+\s+[A-Z][a-z]+)\b`)

	return nil
}

func compileTerms(terms []string) ([]termMatcher, error) {
	out := make([]termMatcher, 0, len(terms))
	for _, term := range terms {
		norm := strings.ToLower(strings.TrimSpace(term))
		if norm == "" {
			continue
		}
		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(norm) + `\b`)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeLexiconInvalid,
				fmt.Sprintf("term %q failed to compile", term))
		}
		out = append(out, termMatcher{term: norm, re: re})
	}
	return out, nil
}

// ---------------------------------------------------------------------------
// Extract
// ---------------------------------------------------------------------------

// Extract runs every pattern class over text and returns the aggregate.  It
// never fails: entity-level problems are logged and skipped, and a panic in
// any matching stage degrades to whatever was extracted before it.
func (e *Extractor) Extract(text string) (s *clinical.Structure) {
	s = clinical.NewStructure()

	defer func() {
		if r := recover(); r != nil {
			e.log.Error("pattern extraction panicked, returning partial structure",
				logging.Any("panic", r))
		}
	}()

	if e.maxTextLength > 0 && len(text) > e.maxTextLength {
		e.log.Warn("input text truncated",
			logging.Int("length", len(text)),
			logging.Int("max_length", e.maxTextLength))
		text = text[:e.maxTextLength]
	}

	lower := strings.ToLower(text)

	docUrgency := e.scanUrgency(lower)
	docSetting := e.scanSetting(lower)
	docRoute := e.scanRoute(lower)

	s.UrgencyLevel = docUrgency
	s.ClinicalSetting = docSetting

	e.extractMedications(s, lower, docRoute)
	e.extractLabTests(s, lower, docUrgency)
	e.extractProcedures(s, lower, docUrgency)
	e.extractConditions(s, lower)
	e.extractInstructions(s, lower)
	e.extractAlerts(s, lower)
	e.extractPatients(s, text)

	return s
}

// ---------------------------------------------------------------------------
// Document-level context scans
// ---------------------------------------------------------------------------

var (
	urgencyStatRe   = regexp.MustCompile(`\b(?:stat|emergency)\b`)
	urgencyUrgentRe = regexp.MustCompile(`\burgent\b`)
	urgencyASAPRe   = regexp.MustCompile(`\basap\b`)

	settingICURe       = regexp.MustCompile(`\b(?:icu|intensive care)\b`)
	settingEmergencyRe = regexp.MustCompile(`\b(?:emergency|er|urgent care)\b`)
	settingInpatientRe = regexp.MustCompile(`\b(?:hospital|inpatient|admission|admit|admitted|ward)\b`)
)

func (e *Extractor) scanUrgency(lower string) clinical.Urgency {
	switch {
	case urgencyStatRe.MatchString(lower):
		return clinical.UrgencyStat
	case urgencyUrgentRe.MatchString(lower):
		return clinical.UrgencyUrgent
	case urgencyASAPRe.MatchString(lower):
		return clinical.UrgencyASAP
	default:
		return clinical.UrgencyRoutine
	}
}

// scanSetting checks the most specific setting first; "icu" implies
// "hospital", so intensive care must win over inpatient.
func (e *Extractor) scanSetting(lower string) clinical.Setting {
	switch {
	case settingICURe.MatchString(lower):
		return clinical.SettingIntensiveCare
	case settingEmergencyRe.MatchString(lower):
		return clinical.SettingEmergency
	case settingInpatientRe.MatchString(lower):
		return clinical.SettingInpatient
	default:
		return clinical.SettingOutpatient
	}
}

// scanRoute classifies the administration route from the whole text.  Route
// is a document-level signal in this design; entity-local attribution is not
// attempted.
func (e *Extractor) scanRoute(lower string) clinical.Route {
	for _, rm := range e.routes {
		if rm.re.MatchString(lower) {
			return rm.route
		}
	}
	return clinical.RouteUnknown
}
