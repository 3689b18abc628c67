package normalize

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cognicore/kinship/pkg/kinship/inference"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		raw  inference.Result
		want []Value
	}{
		{"fraction", inference.Result{{"0.5"}}, []Value{FloatValue(0.5)}},
		{"integer", inference.Result{{"3"}}, []Value{IntValue(3)}},
		{"name", inference.Result{{"Abebe"}}, []Value{TextValue("Abebe")}},
		{"nil", nil, []Value{}},
		{"empty", inference.Result{}, []Value{}},
		{"empty row", inference.Result{{}}, []Value{}},
		{"dotted text", inference.Result{{"St.Mary"}}, []Value{TextValue("St.Mary")}},
		{
			"depth first",
			inference.Result{{"Kaleb", "Selam"}, {"1.0", "7"}},
			[]Value{TextValue("Kaleb"), TextValue("Selam"), FloatValue(1), IntValue(7)},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(tt.raw)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValueKinds(t *testing.T) {
	assert.Equal(t, "int", IntValue(1).Kind.String())
	assert.Equal(t, "float", FloatValue(0.25).Kind.String())
	assert.Equal(t, "text", TextValue("1").Kind.String())

	assert.Equal(t, int64(4), IntValue(4).Any())
	assert.Equal(t, 0.25, FloatValue(0.25).Any())
	assert.Equal(t, "Hana", TextValue("Hana").Any())
}

func TestRender(t *testing.T) {
	assert.Equal(t, "[]", Render(nil))
	assert.Equal(t, "['Kaleb', 'Selam']", Render([]Value{TextValue("Kaleb"), TextValue("Selam")}))
	assert.Equal(t, "[0.25]", Render([]Value{FloatValue(0.25)}))
	assert.Equal(t, "[1.0, 2]", Render([]Value{FloatValue(1), IntValue(2)}))
}

func TestMarshalJSON(t *testing.T) {
	out, err := json.Marshal([]Value{TextValue("Genet"), FloatValue(0.75), IntValue(2)})
	require.NoError(t, err)
	assert.JSONEq(t, `["Genet", 0.75, 2]`, string(out))
}
