package step

import (
	"errors"
	"testing"

	"github.com/metalagman/blueprint/internal/framework"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testStage() framework.Stage {
	return framework.Stage{
		Key: "problem",
		Fields: []framework.Field{
			{ID: "problem_statement", Required: true},
			{ID: "target_customer", Required: true},
			{ID: "evidence"},
		},
		Output: []framework.OutputField{{Name: "summary", Type: framework.OutputString}},
	}
}

func TestRecordInputs_PartialMerge(t *testing.T) {
	t.Parallel()

	st := New("p1", "problem")
	assert.Equal(t, StatusNotStarted, st.Status)

	_, err := st.RecordInputs(testStage(), map[string]string{"problem_statement": "late invoices"})
	require.NoError(t, err)
	assert.Equal(t, StatusInProgress, st.Status)

	_, err = st.RecordInputs(testStage(), map[string]string{"target_customer": "freelancers"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{
		"problem_statement": "late invoices",
		"target_customer":   "freelancers",
	}, st.Inputs)

	_, err = st.RecordInputs(testStage(), map[string]string{"problem_statement": "slow payments"})
	require.NoError(t, err)
	assert.Equal(t, "freelancers", st.Inputs["target_customer"])
	assert.Equal(t, "slow payments", st.Inputs["problem_statement"])
}

func TestRecordInputs_UnknownFieldWritesNothing(t *testing.T) {
	t.Parallel()

	st := New("p1", "problem")
	_, err := st.RecordInputs(testStage(), map[string]string{
		"problem_statement": "x",
		"pitch":             "y",
	})
	var unknown *framework.UnknownFieldError
	require.True(t, errors.As(err, &unknown))
	assert.Equal(t, "pitch", unknown.Field)
	assert.Empty(t, st.Inputs)
	assert.Equal(t, StatusNotStarted, st.Status)
}

func TestRecordInputs_ReentersInProgressOnlyOnChange(t *testing.T) {
	t.Parallel()

	st := New("p1", "problem")
	_, err := st.RecordInputs(testStage(), map[string]string{"problem_statement": "a"})
	require.NoError(t, err)
	st.RecordGeneration(map[string]any{"summary": "v1"})
	assert.Equal(t, StatusGenerated, st.Status)

	changed, err := st.RecordInputs(testStage(), map[string]string{"problem_statement": "a"})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, StatusGenerated, st.Status)

	changed, err = st.RecordInputs(testStage(), map[string]string{"problem_statement": "b"})
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, StatusInProgress, st.Status)
	assert.Equal(t, map[string]any{"summary": "v1"}, st.AIOutput, "previous output is retained")
}

func TestEffectiveOutput_PrefersUserEdit(t *testing.T) {
	t.Parallel()

	ai := map[string]any{"summary": "ai"}
	edit := map[string]any{"summary": "mine"}

	t.Run("edit after generation", func(t *testing.T) {
		t.Parallel()
		st := New("p", "problem")
		st.RecordGeneration(ai)
		st.RecordUserEdit(edit)
		assert.Equal(t, edit, st.EffectiveOutput())
		assert.Equal(t, StatusEdited, st.Status)
	})

	t.Run("generation after edit", func(t *testing.T) {
		t.Parallel()
		st := New("p", "problem")
		st.RecordUserEdit(edit)
		st.RecordGeneration(ai)
		assert.Equal(t, edit, st.EffectiveOutput())
		assert.Equal(t, ai, st.AIOutput)
		assert.Equal(t, StatusEdited, st.Status)
	})

	t.Run("nothing yet", func(t *testing.T) {
		t.Parallel()
		st := New("p", "problem")
		assert.Nil(t, st.EffectiveOutput())
		assert.False(t, st.HasOutput())
	})
}

func TestClearUserEdit(t *testing.T) {
	t.Parallel()

	st := New("p", "problem")
	st.RecordUserEdit(map[string]any{"summary": "mine"})
	st.ClearUserEdit()
	assert.Equal(t, StatusNotStarted, st.Status)
	assert.Nil(t, st.EffectiveOutput())

	st.RecordGeneration(map[string]any{"summary": "ai"})
	st.RecordUserEdit(map[string]any{"summary": "mine"})
	st.ClearUserEdit()
	assert.Equal(t, StatusGenerated, st.Status)
	assert.Equal(t, "ai", st.EffectiveOutput()["summary"])
}

func TestRecordGeneration_CopiesOutput(t *testing.T) {
	t.Parallel()

	out := map[string]any{"summary": "ai"}
	st := New("p", "problem")
	st.RecordGeneration(out)
	out["summary"] = "mutated"
	assert.Equal(t, "ai", st.AIOutput["summary"])
}

func TestRecordInputs_EmptyPartialIsNoop(t *testing.T) {
	t.Parallel()

	st := New("p1", "problem")
	before := st.UpdatedAt
	changed, err := st.RecordInputs(testStage(), map[string]string{})
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, StatusNotStarted, st.Status)
	assert.Equal(t, before, st.UpdatedAt)

	changed, err = st.RecordInputs(testStage(), nil)
	require.NoError(t, err)
	assert.False(t, changed)
	assert.Equal(t, StatusNotStarted, st.Status)
}
