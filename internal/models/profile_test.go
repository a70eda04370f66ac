package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProfile_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantID  string
		wantRaw string
		wantErr error
	}{
		{
			name:    "numeric id",
			input:   `{"id": 17, "city": "Lahore", "raw_profile_text": "Quiet student near campus"}`,
			wantID:  "17",
			wantRaw: "Quiet student near campus",
		},
		{
			name:    "string id",
			input:   `{"id": "p-3", "raw_profile_text": "Early riser"}`,
			wantID:  "p-3",
			wantRaw: "Early riser",
		},
		{
			name:    "missing fields decode empty",
			input:   `{"city": "Karachi"}`,
			wantID:  "",
			wantRaw: "",
		},
		{
			name:    "id of wrong type",
			input:   `{"id": true, "raw_profile_text": "x"}`,
			wantErr: ErrProfileIDType,
		},
		{
			name:    "raw text of wrong type",
			input:   `{"id": 1, "raw_profile_text": 5}`,
			wantErr: ErrProfileRawTextType,
		},
		{
			name:    "null record",
			input:   `null`,
			wantErr: ErrProfileNotObject,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Profile

			err := json.Unmarshal([]byte(tt.input), &p)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.wantID, p.ID)
			assert.Equal(t, tt.wantRaw, p.RawProfileText)
		})
	}
}

func TestProfile_MarshalJSON_PreservesAttributes(t *testing.T) {
	input := `{"area":"DHA","budget_PKR":25000,"city":"Lahore","id":2,"raw_profile_text":"Clean and quiet"}`

	var p Profile
	require.NoError(t, json.Unmarshal([]byte(input), &p))

	out, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, input, string(out))

	v, ok := p.Attribute("budget_PKR")
	require.True(t, ok)
	assert.Equal(t, json.Number("25000"), v)
}

func TestProfile_Clone(t *testing.T) {
	var p Profile
	require.NoError(t, json.Unmarshal([]byte(`{"id":1,"raw_profile_text":"x","city":"Lahore"}`), &p))

	c := p.Clone()
	c.Attributes["city"] = "Karachi"

	assert.Equal(t, "Lahore", p.Attributes["city"])
}
