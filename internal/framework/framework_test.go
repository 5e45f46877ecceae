package framework

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteness_ScoreGrowsWithRequiredFields(t *testing.T) {
	t.Parallel()

	for _, st := range Default().Stages() {
		required := st.RequiredFields()
		if len(required) == 0 {
			continue
		}

		empty := st.Completeness(map[string]string{})
		assert.False(t, empty.OK, "stage %s", st.Key)
		assert.Equal(t, 0.0, empty.Score, "stage %s", st.Key)
		assert.Equal(t, required, empty.Missing, "stage %s", st.Key)

		inputs := map[string]string{}
		for i, id := range required {
			inputs[id] = validValueFor(t, st, id)
			c := st.Completeness(inputs)
			assert.InDelta(t, float64(i+1)/float64(len(required)), c.Score, 1e-9, "stage %s after %s", st.Key, id)
			assert.Equal(t, i+1 == len(required), c.OK, "stage %s after %s", st.Key, id)
		}
	}
}

func validValueFor(t *testing.T, st Stage, id string) string {
	t.Helper()
	f, ok := st.Field(id)
	require.True(t, ok)
	if len(f.Options) > 0 {
		return f.Options[0]
	}
	return "a sufficiently long answer for " + id
}

func TestCompleteness_OptionalFieldsDoNotAffectOK(t *testing.T) {
	t.Parallel()

	st := Stage{
		Key: "s",
		Fields: []Field{
			{ID: "a", Required: true},
			{ID: "b"},
		},
		Output: []OutputField{{Name: "x", Type: OutputString}},
	}
	c := st.Completeness(map[string]string{"a": "value"})
	assert.True(t, c.OK)
	assert.Equal(t, 1.0, c.Score)

	c = st.Completeness(map[string]string{"a": "   "})
	assert.False(t, c.OK)
	assert.Equal(t, []string{"a"}, c.Missing)
}

func TestCompleteness_NoRequiredFieldsScoresOne(t *testing.T) {
	t.Parallel()

	st := Stage{Key: "s", Fields: []Field{{ID: "opt"}}}
	c := st.Completeness(nil)
	assert.True(t, c.OK)
	assert.Equal(t, 1.0, c.Score)
}

func TestCompleteness_ReportsValidatorFailures(t *testing.T) {
	t.Parallel()

	st, err := Default().Stage(StageBusinessModel)
	require.NoError(t, err)

	c := st.Completeness(map[string]string{
		"revenue_model": "subscription",
		"pricing":       "$10",
		"channels":      "seo",
		"gross_margin":  "140",
	})
	assert.False(t, c.OK)
	assert.Empty(t, c.Missing)
	require.Len(t, c.Invalid, 1)
	assert.Equal(t, "gross_margin", c.Invalid[0].Field)

	err = st.CheckComplete(map[string]string{"pricing": "$10"})
	var incomplete *IncompleteInputsError
	require.True(t, errors.As(err, &incomplete))
	assert.Equal(t, []string{"revenue_model", "channels"}, incomplete.Missing)
}

func TestValidator_Check(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		v       Validator
		value   string
		wantErr bool
	}{
		{name: "non empty blank", v: NonEmpty(), value: " ", wantErr: true},
		{name: "non empty ok", v: NonEmpty(), value: "x"},
		{name: "min length short", v: MinLength(5), value: "abc", wantErr: true},
		{name: "min length counts runes", v: MinLength(3), value: "äöü"},
		{name: "numeric ok", v: Predicate("numeric", ""), value: "1,200"},
		{name: "numeric bad", v: Predicate("numeric", ""), value: "twelve", wantErr: true},
		{name: "percentage ok", v: Predicate("percentage", ""), value: "45%"},
		{name: "percentage out of range", v: Predicate("percentage", ""), value: "101", wantErr: true},
		{name: "currency ok", v: Predicate("currency", ""), value: "$2.5M"},
		{name: "url bad", v: Predicate("url", ""), value: "not a url", wantErr: true},
		{name: "unknown kind", v: Validator{Kind: "regex"}, value: "x", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			err := tt.v.Check(tt.value)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRegistry_NavigationIsInverse(t *testing.T) {
	t.Parallel()

	r := Default()
	order := r.Order()
	require.Len(t, order, 5)

	assert.Equal(t, NoStage, r.Previous(order[0]))
	assert.Equal(t, NoStage, r.Next(order[len(order)-1]))
	assert.Equal(t, NoStage, r.Next("nope"))
	assert.Equal(t, NoStage, r.Previous("nope"))

	for _, k := range order[1 : len(order)-1] {
		assert.Equal(t, k, r.Next(r.Previous(k)))
		assert.Equal(t, k, r.Previous(r.Next(k)))
	}
}

func TestRegistry_UnknownStage(t *testing.T) {
	t.Parallel()

	_, err := Default().Stage("pitch_deck")
	var unknown *UnknownStageError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "pitch_deck", unknown.Key)
}

func TestRegistry_RejectsInvalidDefinitions(t *testing.T) {
	t.Parallel()

	out := []OutputField{{Name: "x", Type: OutputString}}
	tests := []struct {
		name   string
		stages []Stage
	}{
		{name: "empty"},
		{name: "duplicate key", stages: []Stage{{Key: "a", Output: out}, {Key: "a", Output: out}}},
		{name: "empty key", stages: []Stage{{Output: out}}},
		{name: "duplicate field", stages: []Stage{{Key: "a", Output: out, Fields: []Field{{ID: "f"}, {ID: "f"}}}}},
		{name: "no output", stages: []Stage{{Key: "a"}}},
		{name: "unknown predicate", stages: []Stage{{Key: "a", Output: out, Fields: []Field{{ID: "f", Validators: []Validator{Predicate("zip", "")}}}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := NewRegistry(tt.stages...)
			assert.Error(t, err)
		})
	}
}

func TestRegistry_StagesAreImmutable(t *testing.T) {
	t.Parallel()

	r := Default()
	st, err := r.Stage(StageProblemClarity)
	require.NoError(t, err)
	st.Fields[0].Label = "changed"
	st.Output = nil

	again, err := r.Stage(StageProblemClarity)
	require.NoError(t, err)
	assert.Equal(t, "Problem statement", again.Fields[0].Label)
	assert.NotEmpty(t, again.Output)

	order := r.Order()
	order[0] = "x"
	assert.Equal(t, StageProblemClarity, r.First())
}

func TestRenderPrompt_IsDeterministicAndMarksMissingOptionals(t *testing.T) {
	t.Parallel()

	st, err := Default().Stage(StageValueProposition)
	require.NoError(t, err)

	inputs := map[string]string{
		"target_customer": "Freelancers",
		"key_benefit":     "Get paid on time\nwithout awkward emails",
		"differentiator":  "Automatic reminders",
	}
	first := st.RenderPrompt(inputs)
	assert.Equal(t, first, st.RenderPrompt(inputs))

	assert.Contains(t, first, "- Target customer (target_customer): Freelancers\n")
	assert.Contains(t, first, "Get paid on time\n  without awkward emails")
	assert.Contains(t, first, "- Competitors (competitors): not specified\n")
	assert.Contains(t, first, `"headline" (string)`)
	assert.Contains(t, first, `"gains" (array of strings)`)
	assert.Contains(t, first, "single JSON object")

	// Inputs appear in declared field order.
	assert.Less(t, strings.Index(first, "target_customer"), strings.Index(first, "differentiator"))
}

func TestValidateOutput(t *testing.T) {
	t.Parallel()

	st, err := Default().Stage(StageSolutionConcept)
	require.NoError(t, err)

	valid := map[string]any{
		"solution_summary": "A tiny invoicing tool",
		"mvp_features":     []any{"reminders"},
		"out_of_scope":     []any{},
		"risks":            []any{"payments"},
		"milestones":       map[string]any{"beta": "week 6"},
	}
	require.NoError(t, st.ValidateOutput(valid))

	missing := map[string]any{"solution_summary": "x"}
	err = st.ValidateOutput(missing)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mvp_features")

	wrongType := map[string]any{}
	for k, v := range valid {
		wrongType[k] = v
	}
	wrongType["mvp_features"] = "reminders"
	assert.Error(t, st.ValidateOutput(wrongType))

	assert.Error(t, st.ValidateOutput(nil))
}

func TestExport_Shape(t *testing.T) {
	t.Parallel()

	exports := Default().Export()
	require.Len(t, exports, 5)

	data, err := json.Marshal(exports[0])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, StageProblemClarity, decoded["key"])
	assert.Contains(t, decoded, "outputSchema")

	fields := decoded["fields"].([]any)
	first := fields[0].(map[string]any)
	assert.Equal(t, "problem_statement", first["id"])
	assert.Equal(t, "textarea", first["type"])
	assert.Equal(t, true, first["required"])
	assert.Contains(t, first, "helpText")
	assert.Contains(t, first, "example")
}
