package toolchain

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAll(t *testing.T) {
	all := All()

	require.Len(t, all, 20)
	assert.Equal(t, V1_34, all[0])
	assert.Equal(t, V1_53, all[len(all)-1])

	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1], all[i])
	}
}

func TestBetween(t *testing.T) {
	assert.Equal(t, []Version{V1_50, V1_51, V1_52, V1_53}, Between(V1_50, Last))
	assert.Equal(t, []Version{V1_45}, Between(V1_45, V1_45))
	assert.Empty(t, Between(V1_46, V1_45))
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Version
		wantErr bool
	}{
		{name: "canonical", input: "1.45.0", want: V1_45},
		{name: "first", input: "1.34.0", want: V1_34},
		{name: "last", input: "1.53.0", want: V1_53},
		{name: "legacy spelling", input: "V1_43", want: V1_43},
		{name: "surrounding space", input: " 1.40.0 ", want: V1_40},
		{name: "below catalog", input: "1.33.0", wantErr: true},
		{name: "above catalog", input: "1.54.0", wantErr: true},
		{name: "patch release", input: "1.45.2", wantErr: true},
		{name: "missing patch", input: "1.45", wantErr: true},
		{name: "garbage", input: "nightly", wantErr: true},
		{name: "empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestVersionText(t *testing.T) {
	assert.Equal(t, "1.45.0", V1_45.String())

	data, err := json.Marshal(map[string]Version{"min": V1_47})
	require.NoError(t, err)
	assert.JSONEq(t, `{"min":"1.47.0"}`, string(data))

	var decoded map[string]Version
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, V1_47, decoded["min"])

	_, err = Version(12).MarshalText()
	require.Error(t, err)
}
