package internal

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_ExpectedActivities(t *testing.T) {
	tests := []struct {
		input    MidInput
		expected int
	}{
		{MidInput{FanOut: 2, Depth: 2, LeafFanOut: 2, Activities: 2}, 16},
		{MidInput{FanOut: 2, Depth: 1, LeafFanOut: 3, Activities: 1}, 6},
		{MidInput{FanOut: 3, Depth: 0, LeafFanOut: 1, Activities: 2}, 6},
	}

	for _, tt := range tests {
		require.Equal(t, tt.expected, ExpectedActivities(&tt.input))
	}
}

func Test_RandSeq(t *testing.T) {
	require.Len(t, randSeq(100), 100)
	require.Equal(t, randSeq(10), randSeq(10))
}
