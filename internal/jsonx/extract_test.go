package jsonx

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type summaryShape struct {
	Summary     string   `json:"summary"`
	KeyFindings []string `json:"key_findings"`
}

func TestExtractObject(t *testing.T) {
	tests := []struct {
		name     string
		response string
		wantText string
		wantErr  bool
	}{
		{
			name:     "pure JSON",
			response: `{"summary":"order delayed","key_findings":["ORD-102 stuck"]}`,
			wantText: "order delayed",
		},
		{
			name:     "markdown fenced",
			response: "```json\n{\"summary\":\"fenced\"}\n```",
			wantText: "fenced",
		},
		{
			name:     "embedded in prose",
			response: `Here is what I found: {"summary":"embedded"} hope that helps!`,
			wantText: "embedded",
		},
		{
			name:     "no JSON at all",
			response: "the customer seemed satisfied",
			wantErr:  true,
		},
		{
			name:     "unbalanced braces",
			response: `{"summary": "broken`,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got summaryShape
			err := ExtractObject(tt.response, &got)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantText, got.Summary)
		})
	}
}
