package utils

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestParseCSV(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected []string
	}{
		{
			name:     "empty string",
			input:    "",
			expected: nil,
		},
		{
			name:     "only separators and spaces",
			input:    " , ,, ",
			expected: nil,
		},
		{
			name:     "single value",
			input:    "ITSA4",
			expected: []string{"ITSA4"},
		},
		{
			name:     "mixed spacing around values",
			input:    "  ITSA4  ,  HGLG11  ",
			expected: []string{"ITSA4", "HGLG11"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseCSV(tt.input))
		})
	}
}

func TestParseIdentifiers(t *testing.T) {
	assert.Nil(t, ParseIdentifiers(""))
	assert.Equal(t, []string{"ITSA4", "HGLG11"}, ParseIdentifiers("itsa4, HGLG11,ITSA4"))
}

func TestOperationTimer(t *testing.T) {
	stop := OperationTimer("noop", zerolog.Nop())
	time.Sleep(time.Millisecond)
	assert.Greater(t, stop(), time.Duration(0))
}
