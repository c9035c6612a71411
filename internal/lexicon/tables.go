// Package lexicon holds the pattern and keyword tables used by the
// deterministic extractor and the escalation policy.  The tables are data,
// not control flow: matching code is generic over their content so that
// clinical vocabularies can be extended through the YAML overlay without
// touching the extraction logic.
//
// Several tables (escalation stopwords, hard medications, dosing keywords,
// action verbs) are empirically tuned; their exact membership drives
// rule-firing behaviour and must not be re-derived casually.
package lexicon

import (
	"github.com/clinomic/ordersense/pkg/errors"
)

// Tables is the full set of extraction vocabularies.
type Tables struct {
	// MedicationNames is the known-drug lexicon matched as whole words.
	MedicationNames []string `mapstructure:"medication_names" yaml:"medication_names"`

	// MedicationStopwords are generic words rejected as medication names.
	MedicationStopwords []string `mapstructure:"medication_stopwords" yaml:"medication_stopwords"`

	// DoseUnits are the units recognised inside dosage expressions.
	DoseUnits []string `mapstructure:"dose_units" yaml:"dose_units"`

	// FrequencyPatterns are regex fragments for frequency expressions,
	// ordered longest-first so alternation prefers the fullest match.
	FrequencyPatterns []string `mapstructure:"frequency_patterns" yaml:"frequency_patterns"`

	// RouteKeywords maps an administration route to its trigger keywords.
	// Route is a document-level signal: keywords are matched against the
	// whole text, not entity-local context.
	RouteKeywords map[string][]string `mapstructure:"route_keywords" yaml:"route_keywords"`

	// LabTestTerms are lab test names matched case-insensitively.
	LabTestTerms []string `mapstructure:"lab_test_terms" yaml:"lab_test_terms"`

	// ProcedureTerms are diagnostic procedure names matched
	// case-insensitively.
	ProcedureTerms []string `mapstructure:"procedure_terms" yaml:"procedure_terms"`

	// ConditionPhrases is the curated lexicon of known multi-word
	// condition phrases, matched as whole phrases.
	ConditionPhrases []string `mapstructure:"condition_phrases" yaml:"condition_phrases"`

	// CommonConditions are single-word conditions matched as whole words.
	CommonConditions []string `mapstructure:"common_conditions" yaml:"common_conditions"`

	// ConditionStopwords are captures discarded as non-conditions.
	ConditionStopwords []string `mapstructure:"condition_stopwords" yaml:"condition_stopwords"`

	// InstructionVerbs lead the imperative clauses swept into
	// clinical_instructions.
	InstructionVerbs []string `mapstructure:"instruction_verbs" yaml:"instruction_verbs"`

	// AlertKeywords maps a trigger keyword to the fixed safety alert it
	// raises (e.g. "pregnancy" → "Consider pregnancy").
	AlertKeywords map[string]string `mapstructure:"alert_keywords" yaml:"alert_keywords"`

	// EscalationStopwords defines the "quality entity" test: an extracted
	// name that is ≤2 characters or in this set carries no signal.
	EscalationStopwords []string `mapstructure:"escalation_stopwords" yaml:"escalation_stopwords"`

	// HardMedications are medication names regex patterns typically miss;
	// their presence in text without a matching extraction forces
	// escalation.
	HardMedications []string `mapstructure:"hard_medications" yaml:"hard_medications"`

	// DosingKeywords signal dosing language; combined with zero extracted
	// medications they force escalation.
	DosingKeywords []string `mapstructure:"dosing_keywords" yaml:"dosing_keywords"`

	// ActionVerbs signal medical orders; combined with a low quality-entity
	// count they force escalation.
	ActionVerbs []string `mapstructure:"action_verbs" yaml:"action_verbs"`
}

// Validate checks that every table a matcher depends on is populated.
func (t *Tables) Validate() error {
	switch {
	case len(t.MedicationNames) == 0:
		return errors.New(errors.ErrCodeLexiconInvalid, "medication_names must not be empty")
	case len(t.DoseUnits) == 0:
		return errors.New(errors.ErrCodeLexiconInvalid, "dose_units must not be empty")
	case len(t.FrequencyPatterns) == 0:
		return errors.New(errors.ErrCodeLexiconInvalid, "frequency_patterns must not be empty")
	case len(t.RouteKeywords) == 0:
		return errors.New(errors.ErrCodeLexiconInvalid, "route_keywords must not be empty")
	case len(t.LabTestTerms) == 0:
		return errors.New(errors.ErrCodeLexiconInvalid, "lab_test_terms must not be empty")
	case len(t.ProcedureTerms) == 0:
		return errors.New(errors.ErrCodeLexiconInvalid, "procedure_terms must not be empty")
	case len(t.EscalationStopwords) == 0:
		return errors.New(errors.ErrCodeLexiconInvalid, "escalation_stopwords must not be empty")
	case len(t.HardMedications) == 0:
		return errors.New(errors.ErrCodeLexiconInvalid, "hard_medications must not be empty")
	case len(t.DosingKeywords) == 0:
		return errors.New(errors.ErrCodeLexiconInvalid, "dosing_keywords must not be empty")
	case len(t.ActionVerbs) == 0:
		return errors.New(errors.ErrCodeLexiconInvalid, "action_verbs must not be empty")
	}
	return nil
}

// Default returns the built-in tables.  The escalation tables are preserved
// verbatim from the tuned production values.
func Default() *Tables {
	return &Tables{
		MedicationNames: []string{
			"amoxicillin", "azithromycin", "ciprofloxacin", "doxycycline",
			"penicillin", "cephalexin", "metronidazole", "clindamycin",
			"metformin", "insulin", "glipizide", "lisinopril", "losartan",
			"amlodipine", "metoprolol", "atenolol", "carvedilol",
			"hydrochlorothiazide", "furosemide", "spironolactone",
			"atorvastatin", "simvastatin", "aspirin", "warfarin",
			"ibuprofen", "acetaminophen", "naproxen", "tramadol",
			"morphine", "oxycodone", "prednisone", "albuterol",
			"omeprazole", "ranitidine", "ondansetron", "sertraline",
			"fluoxetine", "citalopram", "trazodone", "alprazolam",
			"lorazepam", "zolpidem", "levothyroxine", "nitroglycerin",
			"fentanyl", "clonidine", "digoxin", "amiodarone",
		},
		MedicationStopwords: []string{
			"patient", "mg", "daily", "take", "tablet", "capsule", "dose",
			"medication", "drug", "oral", "with", "the", "and", "for",
			"once", "twice", "three", "four", "times", "every",
			"administer", "prescribe", "prescribed", "give", "given",
			"order", "start", "initiate", "inject", "apply",
		},
		DoseUnits: []string{
			"mg", "mcg", "g", "ml", "units", "unit", "meq", "iu", "puffs", "drops",
		},
		FrequencyPatterns: []string{
			`three times (?:a day|daily|per day)`,
			`four times (?:a day|daily|per day)`,
			`twice (?:a day|daily|per day)`,
			`once (?:a day|daily|per day)`,
			`every \d+(?:-\d+)? hours`,
			`every (?:morning|evening|night|other day)`,
			`at bedtime`,
			`with meals`,
			`as needed`,
			`q\d+h`,
			`qid|tid|bid|qd|qhs|prn`,
			`daily|nightly|weekly|monthly`,
		},
		RouteKeywords: map[string][]string{
			"oral":          {"orally", "by mouth", "po", "oral"},
			"intravenous":   {"intravenous", "intravenously", "iv push", "iv"},
			"intramuscular": {"intramuscular", "intramuscularly", "im injection"},
			"sublingual":    {"sublingual", "sublingually", "under the tongue"},
			"topical":       {"topical", "topically", "apply to skin", "cream", "ointment"},
			"inhalation":    {"inhaled", "inhalation", "nebulizer", "inhaler", "puffs"},
		},
		LabTestTerms: []string{
			"complete blood count", "cbc", "basic metabolic panel", "bmp",
			"comprehensive metabolic panel", "cmp", "lipid panel",
			"liver function tests", "lfts", "thyroid stimulating hormone",
			"tsh", "hemoglobin a1c", "hba1c", "a1c", "blood glucose",
			"fasting glucose", "urinalysis", "urine culture", "blood culture",
			"troponin", "inr", "pt/inr", "prothrombin time", "d-dimer",
			"creatinine", "electrolytes", "vitamin d level", "iron studies",
			"esr", "crp",
		},
		ProcedureTerms: []string{
			"chest x-ray", "x-ray", "ct scan", "ct angiography", "mri",
			"ultrasound", "echocardiogram", "ekg", "ecg",
			"electrocardiogram", "stress test", "colonoscopy", "endoscopy",
			"biopsy", "mammogram", "dexa scan", "pet scan",
			"pulmonary function test", "doppler",
		},
		ConditionPhrases: []string{
			"acute bacterial sinusitis", "community acquired pneumonia",
			"chronic obstructive pulmonary disease", "congestive heart failure",
			"type 2 diabetes", "type 1 diabetes", "diabetes mellitus",
			"atrial fibrillation", "coronary artery disease",
			"chronic kidney disease", "urinary tract infection",
			"deep vein thrombosis", "pulmonary embolism",
			"gastroesophageal reflux disease", "rheumatoid arthritis",
			"major depressive disorder", "generalized anxiety disorder",
			"acute otitis media", "iron deficiency anemia",
			"benign prostatic hyperplasia", "obstructive sleep apnea",
		},
		CommonConditions: []string{
			"diabetes", "hypertension", "asthma", "pneumonia", "copd",
			"anxiety", "depression", "migraine", "arthritis", "anemia",
			"hypothyroidism", "hyperlipidemia", "insomnia", "gerd",
			"bronchitis", "cellulitis", "sepsis", "uti", "gout",
		},
		ConditionStopwords: []string{
			"patient", "monitoring", "screening", "evaluation",
			"assessment", "routine",
		},
		InstructionVerbs: []string{
			"take", "start", "begin", "continue", "stop", "hold",
			"monitor", "check", "follow up", "return", "avoid",
			"increase", "decrease", "taper", "apply",
		},
		AlertKeywords: map[string]string{
			"pregnancy":      "Consider pregnancy",
			"pregnant":       "Consider pregnancy",
			"breastfeeding":  "Consider lactation exposure",
			"renal failure":  "Consider renal dosing",
			"kidney disease": "Consider renal dosing",
			"liver disease":  "Consider hepatic dosing",
			"elderly":        "Consider geriatric dosing",
		},
		// Tuned escalation tables; membership is behaviour, do not prune.
		EscalationStopwords: []string{
			"the", "a", "an", "to", "for", "with", "of", "in", "on", "at",
			"by", "from",
		},
		HardMedications: []string{
			"tadalafil", "sildenafil", "levetiracetam", "gabapentin",
			"pregabalin", "hydroxychloroquine", "escitalopram", "duloxetine",
			"venlafaxine", "rivaroxaban", "apixaban", "clopidogrel",
			"rosuvastatin", "pantoprazole", "esomeprazole", "montelukast",
			"liraglutide", "semaglutide", "empagliflozin", "dapagliflozin",
		},
		DosingKeywords: []string{
			"mg", "daily", "twice", "three times", "orally", "iv", "prn",
			"as needed",
		},
		ActionVerbs: []string{
			"prescribe", "administer", "give", "start", "initiate", "order",
			"discontinue", "increase", "decrease",
		},
	}
}
