// Package clinical defines the typed entity records produced by the
// extraction pipeline: medication orders, lab tests, diagnostic procedures,
// medical conditions, and the Structure aggregate that carries them.
//
// All records are value objects constructed once per extracted mention and
// never persisted beyond a single request.  Constructors enforce the
// normalisation and cross-field rules; in particular the medication safety
// flag is derived at construction and cannot be set directly.
package clinical

import (
	"strings"

	"github.com/clinomic/ordersense/pkg/errors"
)

// ---------------------------------------------------------------------------
// Enumerations
// ---------------------------------------------------------------------------

// Route is the administration route of a medication order.
type Route string

const (
	RouteOral          Route = "oral"
	RouteIntravenous   Route = "intravenous"
	RouteIntramuscular Route = "intramuscular"
	RouteSublingual    Route = "sublingual"
	RouteTopical       Route = "topical"
	RouteInhalation    Route = "inhalation"
	RouteUnknown       Route = "unknown"
)

// ParseRoute maps a string to a Route, defaulting to RouteUnknown.
func ParseRoute(s string) Route {
	switch Route(strings.ToLower(strings.TrimSpace(s))) {
	case RouteOral, RouteIntravenous, RouteIntramuscular,
		RouteSublingual, RouteTopical, RouteInhalation:
		return Route(strings.ToLower(strings.TrimSpace(s)))
	default:
		return RouteUnknown
	}
}

// Urgency is the priority of an order, either per entity class or for the
// whole document.
type Urgency string

const (
	UrgencyRoutine Urgency = "routine"
	UrgencyUrgent  Urgency = "urgent"
	UrgencyStat    Urgency = "stat"
	UrgencyASAP    Urgency = "asap"
)

// ParseUrgency maps a string to an Urgency, defaulting to UrgencyRoutine.
func ParseUrgency(s string) Urgency {
	switch Urgency(strings.ToLower(strings.TrimSpace(s))) {
	case UrgencyUrgent, UrgencyStat, UrgencyASAP:
		return Urgency(strings.ToLower(strings.TrimSpace(s)))
	default:
		return UrgencyRoutine
	}
}

// Setting is the clinical setting inferred for the whole document.
type Setting string

const (
	SettingOutpatient    Setting = "outpatient"
	SettingInpatient     Setting = "inpatient"
	SettingEmergency     Setting = "emergency"
	SettingIntensiveCare Setting = "intensive_care"
	SettingUnknown       Setting = "unknown"
)

// ParseSetting maps a string to a Setting, defaulting to SettingUnknown.
func ParseSetting(s string) Setting {
	switch Setting(strings.ToLower(strings.TrimSpace(s))) {
	case SettingOutpatient, SettingInpatient, SettingEmergency, SettingIntensiveCare:
		return Setting(strings.ToLower(strings.TrimSpace(s)))
	default:
		return SettingUnknown
	}
}

// normaliseName lower-cases, trims, and collapses internal whitespace.
func normaliseName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// ---------------------------------------------------------------------------
// MedicationOrder
// ---------------------------------------------------------------------------

// MedicationParams carries the constructor inputs for a MedicationOrder.
// Empty optional fields mean "not determined from the text".
type MedicationParams struct {
	Name                string
	Dosage              string
	Frequency           string
	Route               Route
	Indication          string
	Duration            string
	SpecialInstructions []string
}

// MedicationOrder is a single extracted medication mention.  The safety flag
// is derived: it is true whenever dosage or frequency could not be
// determined, marking the order for human review.
type MedicationOrder struct {
	Name                string
	Dosage              string
	Frequency           string
	Route               Route
	Indication          string
	Duration            string
	SpecialInstructions []string

	safetyFlag bool
}

// NewMedicationOrder validates and normalises params into a MedicationOrder.
// The name is lower-cased and trimmed; an empty name is rejected.
func NewMedicationOrder(p MedicationParams) (*MedicationOrder, error) {
	name := normaliseName(p.Name)
	if name == "" {
		return nil, errors.New(errors.ErrCodeEntityNameEmpty, "medication name must not be empty")
	}
	route := p.Route
	if route == "" {
		route = RouteUnknown
	}
	m := &MedicationOrder{
		Name:                name,
		Dosage:              strings.TrimSpace(p.Dosage),
		Frequency:           strings.TrimSpace(p.Frequency),
		Route:               route,
		Indication:          strings.TrimSpace(p.Indication),
		Duration:            strings.TrimSpace(p.Duration),
		SpecialInstructions: append([]string(nil), p.SpecialInstructions...),
	}
	m.safetyFlag = m.Dosage == "" || m.Frequency == ""
	return m, nil
}

// SafetyFlag reports whether the order needs human review because dosage
// and/or frequency could not be determined.
func (m *MedicationOrder) SafetyFlag() bool { return m.safetyFlag }

// ---------------------------------------------------------------------------
// LabTest
// ---------------------------------------------------------------------------

// LabTestParams carries the constructor inputs for a LabTest.
type LabTestParams struct {
	Name                string
	TestType            string
	Urgency             Urgency
	FastingRequired     bool
	SpecialInstructions []string
	ExpectedTurnaround  string
}

// LabTest is a single extracted laboratory test order.
type LabTest struct {
	Name                string
	TestType            string
	Urgency             Urgency
	FastingRequired     bool
	SpecialInstructions []string
	ExpectedTurnaround  string
}

// NewLabTest validates and normalises params into a LabTest.
func NewLabTest(p LabTestParams) (*LabTest, error) {
	name := normaliseName(p.Name)
	if name == "" {
		return nil, errors.New(errors.ErrCodeEntityNameEmpty, "lab test name must not be empty")
	}
	testType := p.TestType
	if testType == "" {
		testType = "laboratory"
	}
	urgency := p.Urgency
	if urgency == "" {
		urgency = UrgencyRoutine
	}
	return &LabTest{
		Name:                name,
		TestType:            testType,
		Urgency:             urgency,
		FastingRequired:     p.FastingRequired,
		SpecialInstructions: append([]string(nil), p.SpecialInstructions...),
		ExpectedTurnaround:  strings.TrimSpace(p.ExpectedTurnaround),
	}, nil
}

// ---------------------------------------------------------------------------
// DiagnosticProcedure
// ---------------------------------------------------------------------------

// ProcedureParams carries the constructor inputs for a DiagnosticProcedure.
type ProcedureParams struct {
	Name           string
	ProcedureType  string
	Urgency        Urgency
	BodySite       string
	ContrastNeeded bool
	SpecialPrep    []string
}

// DiagnosticProcedure is a single extracted diagnostic procedure order.
type DiagnosticProcedure struct {
	Name           string
	ProcedureType  string
	Urgency        Urgency
	BodySite       string
	ContrastNeeded bool
	SpecialPrep    []string
}

// NewDiagnosticProcedure validates and normalises params.
func NewDiagnosticProcedure(p ProcedureParams) (*DiagnosticProcedure, error) {
	name := normaliseName(p.Name)
	if name == "" {
		return nil, errors.New(errors.ErrCodeEntityNameEmpty, "procedure name must not be empty")
	}
	procType := p.ProcedureType
	if procType == "" {
		procType = "diagnostic"
	}
	urgency := p.Urgency
	if urgency == "" {
		urgency = UrgencyRoutine
	}
	return &DiagnosticProcedure{
		Name:           name,
		ProcedureType:  procType,
		Urgency:        urgency,
		BodySite:       strings.TrimSpace(p.BodySite),
		ContrastNeeded: p.ContrastNeeded,
		SpecialPrep:    append([]string(nil), p.SpecialPrep...),
	}, nil
}

// ---------------------------------------------------------------------------
// MedicalCondition
// ---------------------------------------------------------------------------

// ConditionParams carries the constructor inputs for a MedicalCondition.
type ConditionParams struct {
	Name     string
	Severity string
	Onset    string
	Status   string
}

// MedicalCondition is a single extracted condition / diagnosis mention.
type MedicalCondition struct {
	Name     string
	Severity string
	Onset    string
	Status   string
}

// NewMedicalCondition validates and normalises params.
func NewMedicalCondition(p ConditionParams) (*MedicalCondition, error) {
	name := normaliseName(p.Name)
	if name == "" {
		return nil, errors.New(errors.ErrCodeEntityNameEmpty, "condition name must not be empty")
	}
	status := p.Status
	if status == "" {
		status = "active"
	}
	return &MedicalCondition{
		Name:     name,
		Severity: strings.TrimSpace(p.Severity),
		Onset:    strings.TrimSpace(p.Onset),
		Status:   status,
	}, nil
}

// ---------------------------------------------------------------------------
// Structure: the aggregate root
// ---------------------------------------------------------------------------

// Structure is the aggregate of everything extracted from one text blob.
// Entity lists are independent siblings; entities never reference each
// other (cross-linking belongs to the downstream record-assembly layer).
//
// Medication lists may contain repeats when overlapping patterns matched the
// same mention; consumers must tolerate duplicates.
type Structure struct {
	Medications          []*MedicationOrder
	LabTests             []*LabTest
	Procedures           []*DiagnosticProcedure
	Conditions           []*MedicalCondition
	Patients             []string
	ClinicalInstructions []string
	UrgencyLevel         Urgency
	ClinicalSetting      Setting
	PatientSafetyAlerts  []string
}

// NewStructure returns an empty Structure with default document-level values.
func NewStructure() *Structure {
	return &Structure{
		Medications:          []*MedicationOrder{},
		LabTests:             []*LabTest{},
		Procedures:           []*DiagnosticProcedure{},
		Conditions:           []*MedicalCondition{},
		Patients:             []string{},
		ClinicalInstructions: []string{},
		UrgencyLevel:         UrgencyRoutine,
		ClinicalSetting:      SettingUnknown,
		PatientSafetyAlerts:  []string{},
	}
}

// TotalEntityCount returns medications + lab tests + procedures + conditions.
func (s *Structure) TotalEntityCount() int {
	return len(s.Medications) + len(s.LabTests) + len(s.Procedures) + len(s.Conditions)
}

// Warnings reports soft-invariant violations.  An all-empty extraction is
// legitimate, so violations are surfaced for logging, never as errors.
func (s *Structure) Warnings() []string {
	var warnings []string
	if len(s.Medications) == 0 && len(s.LabTests) == 0 && len(s.Procedures) == 0 {
		warnings = append(warnings, "no medications, lab tests, or procedures extracted")
	}
	return warnings
}

// optStr converts an empty string to nil for the map contract, where absent
// optional fields are null rather than "".
func optStr(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// ToMap serialises the Structure into the plain nested map that is the sole
// contract with the downstream record-assembly layer.  Key names and nesting
// are stable; downstream mapping code keys off them by exact name.
func (s *Structure) ToMap() map[string]interface{} {
	meds := make([]map[string]interface{}, 0, len(s.Medications))
	for _, m := range s.Medications {
		meds = append(meds, map[string]interface{}{
			"name":                 m.Name,
			"dosage":               optStr(m.Dosage),
			"frequency":            optStr(m.Frequency),
			"route":                string(m.Route),
			"indication":           optStr(m.Indication),
			"duration":             optStr(m.Duration),
			"special_instructions": append([]string{}, m.SpecialInstructions...),
			"safety_flag":          m.SafetyFlag(),
		})
	}

	labs := make([]map[string]interface{}, 0, len(s.LabTests))
	for _, l := range s.LabTests {
		labs = append(labs, map[string]interface{}{
			"name":                 l.Name,
			"test_type":            l.TestType,
			"urgency":              string(l.Urgency),
			"fasting_required":     l.FastingRequired,
			"special_instructions": append([]string{}, l.SpecialInstructions...),
			"expected_turnaround":  optStr(l.ExpectedTurnaround),
		})
	}

	procs := make([]map[string]interface{}, 0, len(s.Procedures))
	for _, p := range s.Procedures {
		procs = append(procs, map[string]interface{}{
			"name":            p.Name,
			"procedure_type":  p.ProcedureType,
			"urgency":         string(p.Urgency),
			"body_site":       optStr(p.BodySite),
			"contrast_needed": p.ContrastNeeded,
			"special_prep":    append([]string{}, p.SpecialPrep...),
		})
	}

	conds := make([]map[string]interface{}, 0, len(s.Conditions))
	for _, c := range s.Conditions {
		conds = append(conds, map[string]interface{}{
			"name":     c.Name,
			"severity": optStr(c.Severity),
			"onset":    optStr(c.Onset),
			"status":   c.Status,
		})
	}

	return map[string]interface{}{
		"medications":           meds,
		"lab_tests":             labs,
		"procedures":            procs,
		"conditions":            conds,
		"patients":              append([]string{}, s.Patients...),
		"clinical_instructions": append([]string{}, s.ClinicalInstructions...),
		"urgency_level":         string(s.UrgencyLevel),
		"clinical_setting":      string(s.ClinicalSetting),
		"patient_safety_alerts": append([]string{}, s.PatientSafetyAlerts...),
	}
}

// ---------------------------------------------------------------------------
// StructureFromMap
// ---------------------------------------------------------------------------

// StructureFromMap reconstructs a Structure from the nested map shape, e.g.
// validated generative-model output.  Every entity passes back through its
// constructor so derived fields (safety flags) are recomputed.  Entries that
// fail construction (empty names) are skipped; the decode itself never
// fails and tolerates missing or wrongly-typed fields.
func StructureFromMap(m map[string]interface{}) *Structure {
	s := NewStructure()
	if m == nil {
		return s
	}

	for _, raw := range asMapSlice(m["medications"]) {
		med, err := NewMedicationOrder(MedicationParams{
			Name:                asString(raw["name"]),
			Dosage:              asString(raw["dosage"]),
			Frequency:           asString(raw["frequency"]),
			Route:               ParseRoute(asString(raw["route"])),
			Indication:          asString(raw["indication"]),
			Duration:            asString(raw["duration"]),
			SpecialInstructions: asStringSlice(raw["special_instructions"]),
		})
		if err != nil {
			continue
		}
		s.Medications = append(s.Medications, med)
	}

	for _, raw := range asMapSlice(m["lab_tests"]) {
		lab, err := NewLabTest(LabTestParams{
			Name:                asString(raw["name"]),
			TestType:            asString(raw["test_type"]),
			Urgency:             ParseUrgency(asString(raw["urgency"])),
			FastingRequired:     asBool(raw["fasting_required"]),
			SpecialInstructions: asStringSlice(raw["special_instructions"]),
			ExpectedTurnaround:  asString(raw["expected_turnaround"]),
		})
		if err != nil {
			continue
		}
		s.LabTests = append(s.LabTests, lab)
	}

	for _, raw := range asMapSlice(m["procedures"]) {
		proc, err := NewDiagnosticProcedure(ProcedureParams{
			Name:           asString(raw["name"]),
			ProcedureType:  asString(raw["procedure_type"]),
			Urgency:        ParseUrgency(asString(raw["urgency"])),
			BodySite:       asString(raw["body_site"]),
			ContrastNeeded: asBool(raw["contrast_needed"]),
			SpecialPrep:    asStringSlice(raw["special_prep"]),
		})
		if err != nil {
			continue
		}
		s.Procedures = append(s.Procedures, proc)
	}

	for _, raw := range asMapSlice(m["conditions"]) {
		cond, err := NewMedicalCondition(ConditionParams{
			Name:     asString(raw["name"]),
			Severity: asString(raw["severity"]),
			Onset:    asString(raw["onset"]),
			Status:   asString(raw["status"]),
		})
		if err != nil {
			continue
		}
		s.Conditions = append(s.Conditions, cond)
	}

	s.Patients = asStringSlice(m["patients"])
	s.ClinicalInstructions = asStringSlice(m["clinical_instructions"])
	s.UrgencyLevel = ParseUrgency(asString(m["urgency_level"]))
	s.ClinicalSetting = ParseSetting(asString(m["clinical_setting"]))
	s.PatientSafetyAlerts = asStringSlice(m["patient_safety_alerts"])
	return s
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

func asBool(v interface{}) bool {
	if b, ok := v.(bool); ok {
		return b
	}
	return false
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
