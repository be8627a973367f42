package main

import (
	"testing"

	"github.com/stretchr/testify/require"

	"irqos/kernel/syscall"
)

func TestScenarioFromFlags(t *testing.T) {
	defer func(args []uint, scancodes []uint) {
		*fArgs, *fScancodes = args, scancodes
	}(*fArgs, *fScancodes)

	*fArgs = []uint{1, 2, 3}
	*fScancodes = []uint{0x1c, 0x9c}

	s, err := scenarioFromFlags()
	require.NoError(t, err)
	require.Equal(t, syscall.Args{A: 1, B: 2, C: 3}, s.Args)
	require.Equal(t, []uint8{0x1c, 0x9c}, s.Scancodes)

	*fArgs = []uint{1, 2, 3, 4, 5, 6}
	_, err = scenarioFromFlags()
	require.Error(t, err)

	*fArgs = nil
	*fScancodes = []uint{0x100}
	_, err = scenarioFromFlags()
	require.Error(t, err)
}
