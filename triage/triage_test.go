package triage

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"retroscan/models"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		text string
		want Label
	}{
		{
			name: "intervention and outcome",
			text: "The cool roof retrofit reduced overheating hours during the heatwave.",
			want: LabelExtractable,
		},
		{
			name: "intervention only",
			text: "External insulation was applied to the facade of the dwelling.",
			want: LabelMaybe,
		},
		{
			name: "outcome only",
			text: "Operative temperature exceeded the TM52 threshold in all rooms.",
			want: LabelNoData,
		},
		{
			name: "neither",
			text: "This paper surveys urban planning policy in coastal cities.",
			want: LabelNoData,
		},
		{
			name: "case insensitive",
			text: "RETROFIT measures against OVERHEATING in schools.",
			want: LabelExtractable,
		},
		{
			name: "empty text",
			text: "",
			want: LabelNoData,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.text))
		})
	}
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, models.StatusTriagedExtractable, StatusFor(LabelExtractable))
	assert.Equal(t, models.StatusTriagedMaybe, StatusFor(LabelMaybe))
	assert.Equal(t, models.StatusTriagedNoData, StatusFor(LabelNoData))

	// Maybe und NoData sind terminal: dort endet die automatische Pipeline.
	assert.True(t, StatusFor(LabelMaybe).IsTerminal())
	assert.True(t, StatusFor(LabelNoData).IsTerminal())
	assert.False(t, StatusFor(LabelExtractable).IsTerminal())
}
