package coverage

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/sf86-validator/internal/mapping"
	"github.com/a3tai/sf86-validator/internal/pdf/extraction"
)

func field(id string, value any) extraction.ExtractedField {
	return extraction.ExtractedField{PDFFieldID: id, Value: value, FieldType: mapping.FieldTypeText}
}

func TestCompute_Scenarios(t *testing.T) {
	tests := []struct {
		name        string
		fields      []extraction.ExtractedField
		expected    []string
		matched     []string
		missing     []string
		summaryText string
	}{
		{
			name:        "exact match",
			fields:      []extraction.ExtractedField{field("F1", "UNIQUE_TEST_123")},
			expected:    []string{"UNIQUE_TEST_123"},
			matched:     []string{"UNIQUE_TEST_123"},
			missing:     []string{},
			summaryText: "Found 1/1 expected values (100.0% success rate)",
		},
		{
			name:        "substring match",
			fields:      []extraction.ExtractedField{field("F1", "Name: UNIQUE_TEST_123")},
			expected:    []string{"UNIQUE_TEST_123"},
			matched:     []string{"UNIQUE_TEST_123"},
			missing:     []string{},
			summaryText: "Found 1/1 expected values (100.0% success rate)",
		},
		{
			name:        "no match",
			fields:      []extraction.ExtractedField{field("F1", "unrelated")},
			expected:    []string{"UNIQUE_TEST_123"},
			matched:     []string{},
			missing:     []string{"UNIQUE_TEST_123"},
			summaryText: "Found 0/1 expected values (0.0% success rate)",
		},
		{
			name:        "nothing expected",
			fields:      []extraction.ExtractedField{field("F1", "anything")},
			expected:    nil,
			matched:     []string{},
			missing:     []string{},
			summaryText: "Found 0/0 expected values (0.0% success rate)",
		},
		{
			name: "partial with rounding",
			fields: []extraction.ExtractedField{
				field("F1", "alpha"),
				field("F2", true),
				field("F3", nil),
			},
			expected:    []string{"alpha", "beta", "gamma"},
			matched:     []string{"alpha"},
			missing:     []string{"beta", "gamma"},
			summaryText: "Found 1/3 expected values (33.3% success rate)",
		},
		{
			name: "duplicates count once and empty strings are dropped",
			fields: []extraction.ExtractedField{
				field("F1", "Arlington"),
				field("F2", "Arlington"),
			},
			expected:    []string{"Arlington", "", "Arlington", "VA"},
			matched:     []string{"Arlington"},
			missing:     []string{"VA"},
			summaryText: "Found 1/2 expected values (50.0% success rate)",
		},
		{
			name: "whitespace-only values are expected content",
			fields: []extraction.ExtractedField{
				field("F1", "Suite 200"),
				field("F2", "Arlington"),
			},
			expected:    []string{" ", "Arlington", "  ", "VA"},
			matched:     []string{" ", "Arlington"},
			missing:     []string{"  ", "VA"},
			summaryText: "Found 2/4 expected values (50.0% success rate)",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Compute(tt.fields, tt.expected)

			assert.Equal(t, tt.matched, res.MatchedValues)
			assert.Equal(t, tt.missing, res.MissingValues)
			assert.Equal(t, len(tt.matched), res.MatchedCount)
			assert.Equal(t, tt.summaryText, res.SummaryText)
		})
	}
}

func TestCompute_Partition(t *testing.T) {
	fields := []extraction.ExtractedField{
		field("F1", "John Smith"),
		field("F2", "Fort Bragg, NC"),
		field("F3", false),
	}
	expected := []string{"John", "Smith", "Fort Bragg", "28310", "John", "Camp Lejeune"}

	res := Compute(fields, expected)

	assert.Equal(t, res.TotalExpected, len(res.MatchedValues)+len(res.MissingValues))
	missing := make(map[string]bool)
	for _, m := range res.MissingValues {
		missing[m] = true
	}
	for _, m := range res.MatchedValues {
		assert.False(t, missing[m], "%q is both matched and missing", m)
	}
	assert.Equal(t, 5, res.TotalExpected)
}

func TestCompute_Idempotent(t *testing.T) {
	fields := []extraction.ExtractedField{field("F1", "Name: UNIQUE_TEST_123"), field("F2", "x")}
	expected := []string{"UNIQUE_TEST_123", "y", "x"}

	first := Compute(fields, expected)
	second := Compute(fields, expected)

	assert.Equal(t, first.MatchedCount, second.MatchedCount)
	assert.ElementsMatch(t, first.MatchedValues, second.MatchedValues)
	assert.Equal(t, first.SummaryText, second.SummaryText)
}

func TestResult_Percent(t *testing.T) {
	assert.Zero(t, Result{}.Percent())
	assert.False(t, Result{}.Complete())

	r := Compute([]extraction.ExtractedField{field("F1", "a b")}, []string{"a", "b"})
	assert.Equal(t, 100.0, r.Percent())
	assert.True(t, r.Complete())
}

type fakeTable map[string]mapping.Entry

func (f fakeTable) EntryForPDFField(id string) (mapping.Entry, bool, error) {
	e, ok := f[id]
	return e, ok, nil
}

func TestCompareFields(t *testing.T) {
	table := fakeTable{
		"F1": {UIPath: "section13.federalEmployment.entries[0].supervisorName", PDFFieldID: "F1"},
		"F3": {UIPath: "section13.federalEmployment.entries[0].supervisorName", PDFFieldID: "F3", Legacy: true},
	}
	fields := []extraction.ExtractedField{
		field("F1", "SGT Alvarez"),
		field("F2", "unrelated"),
		field("F3", ""),
		{PDFFieldID: "F4", Value: true, FieldType: mapping.FieldTypeCheckbox},
	}

	got := CompareFields(fields, table, []string{"Alvarez"})
	require.Len(t, got, 4)

	assert.True(t, got[0].Mapped)
	assert.True(t, got[0].Matched)
	assert.True(t, got[0].HasValue)
	assert.Equal(t, "section13.federalEmployment.entries[0].supervisorName", got[0].UIPath)

	assert.False(t, got[1].Mapped)
	assert.False(t, got[1].Matched)

	assert.True(t, got[2].Legacy)
	assert.False(t, got[2].HasValue)

	assert.True(t, got[3].HasValue)
	assert.False(t, got[3].Matched)

	mapped, unmapped := Counts(got)
	assert.Equal(t, 2, mapped)
	assert.Equal(t, 2, unmapped)

	assert.Len(t, CompareFields(fields, nil, nil), 4)
}
