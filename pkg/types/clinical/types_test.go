package clinical

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMedicationOrder_NormalisesName(t *testing.T) {
	m, err := NewMedicationOrder(MedicationParams{Name: "  Amoxicillin  ", Dosage: "500mg", Frequency: "three times daily"})
	require.NoError(t, err)
	assert.Equal(t, "amoxicillin", m.Name)
	assert.Equal(t, RouteUnknown, m.Route)
	assert.False(t, m.SafetyFlag())
}

func TestNewMedicationOrder_EmptyNameRejected(t *testing.T) {
	_, err := NewMedicationOrder(MedicationParams{Name: "   "})
	assert.Error(t, err)
}

func TestNewMedicationOrder_SafetyFlagDerived(t *testing.T) {
	tests := []struct {
		name      string
		dosage    string
		frequency string
		want      bool
	}{
		{"both present", "500mg", "daily", false},
		{"missing dosage", "", "daily", true},
		{"missing frequency", "500mg", "", true},
		{"both missing", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMedicationOrder(MedicationParams{Name: "insulin", Dosage: tt.dosage, Frequency: tt.frequency})
			require.NoError(t, err)
			assert.Equal(t, tt.want, m.SafetyFlag())
		})
	}
}

func TestParseRoute(t *testing.T) {
	assert.Equal(t, RouteOral, ParseRoute("Oral"))
	assert.Equal(t, RouteIntravenous, ParseRoute(" intravenous "))
	assert.Equal(t, RouteUnknown, ParseRoute("rectal"))
	assert.Equal(t, RouteUnknown, ParseRoute(""))
}

func TestParseUrgency(t *testing.T) {
	assert.Equal(t, UrgencyStat, ParseUrgency("STAT"))
	assert.Equal(t, UrgencyRoutine, ParseUrgency("whenever"))
}

func TestNewLabTest_Defaults(t *testing.T) {
	l, err := NewLabTest(LabTestParams{Name: "CBC"})
	require.NoError(t, err)
	assert.Equal(t, "cbc", l.Name)
	assert.Equal(t, "laboratory", l.TestType)
	assert.Equal(t, UrgencyRoutine, l.Urgency)
}

func TestNewDiagnosticProcedure_Defaults(t *testing.T) {
	p, err := NewDiagnosticProcedure(ProcedureParams{Name: "Chest X-Ray"})
	require.NoError(t, err)
	assert.Equal(t, "chest x-ray", p.Name)
	assert.Equal(t, "diagnostic", p.ProcedureType)
}

func TestNewMedicalCondition_Defaults(t *testing.T) {
	c, err := NewMedicalCondition(ConditionParams{Name: "Acute Bacterial Sinusitis"})
	require.NoError(t, err)
	assert.Equal(t, "acute bacterial sinusitis", c.Name)
	assert.Equal(t, "active", c.Status)
}

func TestStructure_TotalEntityCount(t *testing.T) {
	s := NewStructure()
	assert.Equal(t, 0, s.TotalEntityCount())

	med, _ := NewMedicationOrder(MedicationParams{Name: "insulin"})
	cond, _ := NewMedicalCondition(ConditionParams{Name: "diabetes"})
	s.Medications = append(s.Medications, med)
	s.Conditions = append(s.Conditions, cond)
	assert.Equal(t, 2, s.TotalEntityCount())
}

func TestStructure_Warnings(t *testing.T) {
	s := NewStructure()
	assert.Len(t, s.Warnings(), 1)

	lab, _ := NewLabTest(LabTestParams{Name: "cbc"})
	s.LabTests = append(s.LabTests, lab)
	assert.Empty(t, s.Warnings())
}

func TestToMap_StableContract(t *testing.T) {
	s := NewStructure()
	med, _ := NewMedicationOrder(MedicationParams{Name: "insulin", Route: RouteOral})
	s.Medications = append(s.Medications, med)
	s.Patients = append(s.Patients, "mary johnson")

	m := s.ToMap()
	for _, key := range []string{
		"medications", "lab_tests", "procedures", "conditions", "patients",
		"clinical_instructions", "urgency_level", "clinical_setting",
		"patient_safety_alerts",
	} {
		assert.Contains(t, m, key)
	}

	meds := m["medications"].([]map[string]interface{})
	require.Len(t, meds, 1)
	assert.Equal(t, "insulin", meds[0]["name"])
	assert.Nil(t, meds[0]["dosage"])
	assert.Nil(t, meds[0]["frequency"])
	assert.Equal(t, "oral", meds[0]["route"])
	assert.Equal(t, true, meds[0]["safety_flag"])
}

func TestToMap_EmptyStructureSerialisable(t *testing.T) {
	_, err := json.Marshal(NewStructure().ToMap())
	assert.NoError(t, err)
}

func TestStructureFromMap_RoundTrip(t *testing.T) {
	s := NewStructure()
	med, _ := NewMedicationOrder(MedicationParams{Name: "amoxicillin", Dosage: "500mg", Frequency: "three times daily"})
	cond, _ := NewMedicalCondition(ConditionParams{Name: "acute bacterial sinusitis"})
	s.Medications = append(s.Medications, med)
	s.Conditions = append(s.Conditions, cond)
	s.UrgencyLevel = UrgencyUrgent
	s.ClinicalSetting = SettingOutpatient

	got := StructureFromMap(s.ToMap())
	require.Len(t, got.Medications, 1)
	assert.Equal(t, "amoxicillin", got.Medications[0].Name)
	assert.False(t, got.Medications[0].SafetyFlag())
	require.Len(t, got.Conditions, 1)
	assert.Equal(t, UrgencyUrgent, got.UrgencyLevel)
	assert.Equal(t, SettingOutpatient, got.ClinicalSetting)
}

func TestStructureFromMap_RecomputesSafetyFlag(t *testing.T) {
	// Dosage nulled by the grounding validator: the reconstructed record
	// must come back flagged even though the map carried safety_flag=false.
	m := map[string]interface{}{
		"medications": []interface{}{
			map[string]interface{}{
				"name":        "insulin",
				"dosage":      nil,
				"frequency":   "daily",
				"safety_flag": false,
			},
		},
	}
	s := StructureFromMap(m)
	require.Len(t, s.Medications, 1)
	assert.True(t, s.Medications[0].SafetyFlag())
}

func TestStructureFromMap_SkipsInvalidEntries(t *testing.T) {
	m := map[string]interface{}{
		"medications": []interface{}{
			map[string]interface{}{"name": ""},
			map[string]interface{}{"name": "metformin"},
			"not a map",
		},
		"lab_tests": "not a list",
	}
	s := StructureFromMap(m)
	require.Len(t, s.Medications, 1)
	assert.Equal(t, "metformin", s.Medications[0].Name)
	assert.Empty(t, s.LabTests)
}

func TestStructureFromMap_NilInput(t *testing.T) {
	s := StructureFromMap(nil)
	assert.NotNil(t, s)
	assert.Equal(t, 0, s.TotalEntityCount())
}
