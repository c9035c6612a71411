package escalation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinomic/ordersense/internal/intelligence/pattern_extractor"
	"github.com/clinomic/ordersense/pkg/types/clinical"
)

func structureWithMedications(t *testing.T, names ...string) *clinical.Structure {
	t.Helper()
	s := clinical.NewStructure()
	for _, name := range names {
		med, err := clinical.NewMedicationOrder(clinical.MedicationParams{
			Name:      name,
			Dosage:    "500mg",
			Frequency: "twice daily",
		})
		require.NoError(t, err)
		s.Medications = append(s.Medications, med)
	}
	return s
}

func TestShouldEscalate_ZeroYieldAlwaysFires(t *testing.T) {
	p := NewPolicy(nil, nil)

	for _, text := range []string{
		"",
		"The weather is nice today.",
		"Prescribe amoxicillin 500mg.",
	} {
		d := p.ShouldEscalate(clinical.NewStructure(), text)
		assert.True(t, d.Escalate, "text: %q", text)
		assert.Equal(t, RuleZeroYield, d.Rule)
	}
}

func TestShouldEscalate_NilStructureTreatedAsEmpty(t *testing.T) {
	p := NewPolicy(nil, nil)
	d := p.ShouldEscalate(nil, "anything")
	assert.True(t, d.Escalate)
	assert.Equal(t, RuleZeroYield, d.Rule)
}

func TestShouldEscalate_NoiseOnlyYield(t *testing.T) {
	p := NewPolicy(nil, nil)

	s := clinical.NewStructure()
	cond, err := clinical.NewMedicalCondition(clinical.ConditionParams{Name: "the"})
	require.NoError(t, err)
	s.Conditions = append(s.Conditions, cond)

	d := p.ShouldEscalate(s, "some text")
	assert.True(t, d.Escalate)
	assert.Equal(t, RuleNoiseOnlyYield, d.Rule)
}

func TestShouldEscalate_HardMedicationMissed(t *testing.T) {
	p := NewPolicy(nil, nil)

	// Other entities were found, but tadalafil in the text never made it
	// into the medication list.
	s := structureWithMedications(t, "aspirin")
	cond, err := clinical.NewMedicalCondition(clinical.ConditionParams{Name: "hypertension"})
	require.NoError(t, err)
	s.Conditions = append(s.Conditions, cond)

	d := p.ShouldEscalate(s, "Continue tadalafil as previously discussed alongside aspirin.")
	assert.True(t, d.Escalate)
	assert.Equal(t, RuleHardMedicationMissed, d.Rule)
}

func TestShouldEscalate_HardMedicationExtractedDoesNotFire(t *testing.T) {
	p := NewPolicy(nil, nil)

	s := structureWithMedications(t, "tadalafil", "aspirin")
	d := p.ShouldEscalate(s, "Continue tadalafil and aspirin.")
	assert.False(t, d.Escalate)
}

func TestShouldEscalate_DosingLanguageWithoutMedication(t *testing.T) {
	p := NewPolicy(nil, nil)

	s := clinical.NewStructure()
	lab, err := clinical.NewLabTest(clinical.LabTestParams{Name: "cbc"})
	require.NoError(t, err)
	cond, err := clinical.NewMedicalCondition(clinical.ConditionParams{Name: "anemia"})
	require.NoError(t, err)
	s.LabTests = append(s.LabTests, lab)
	s.Conditions = append(s.Conditions, cond)

	d := p.ShouldEscalate(s, "Check CBC for anemia; continue 40mg daily as before.")
	assert.True(t, d.Escalate)
	assert.Equal(t, RuleDosingWithoutMed, d.Rule)
}

func TestShouldEscalate_ActionVerbsWithLowQualityYield(t *testing.T) {
	p := NewPolicy(nil, nil)

	s := structureWithMedications(t, "aspirin")
	d := p.ShouldEscalate(s, "Discontinue current therapy and reassess.")
	assert.True(t, d.Escalate)
	assert.Equal(t, RuleActionVerbsLowQuality, d.Rule)
}

func TestShouldEscalate_PatientNamePatternMissed(t *testing.T) {
	p := NewPolicy(nil, nil)

	s := structureWithMedications(t, "aspirin", "metformin")
	d := p.ShouldEscalate(s, "Reviewed with patient John Smith today; no changes to aspirin or metformin.")
	assert.True(t, d.Escalate)
	assert.Equal(t, RulePatientNameMissed, d.Rule)
}

func TestShouldEscalate_RichExtractionDoesNotEscalate(t *testing.T) {
	p := NewPolicy(nil, nil)

	s := structureWithMedications(t, "amoxicillin", "metformin")
	d := p.ShouldEscalate(s, "amoxicillin 500mg twice daily and metformin 1000mg twice daily")
	assert.False(t, d.Escalate)
	assert.Empty(t, d.Rule)
}

func TestShouldEscalate_FullPipelineSentenceIsSufficient(t *testing.T) {
	e, err := pattern_extractor.NewExtractor(nil, 0, nil)
	require.NoError(t, err)
	p := NewPolicy(nil, nil)

	text := "Prescribed patient Mary Johnson amoxicillin 500mg three times daily for acute bacterial sinusitis."
	s := e.Extract(text)

	d := p.ShouldEscalate(s, text)
	assert.False(t, d.Escalate, "rule fired: %s", d.Rule)
}
