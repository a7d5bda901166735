package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func Test_Bench_Memory(t *testing.T) {
	var out bytes.Buffer

	cli := &Bench{
		Backend:    "memory",
		Timeout:    20 * time.Second,
		Runs:       2,
		Depth:      1,
		FanOut:     2,
		LeafFanOut: 1,
		Activities: 2,
		ResultSize: 10,
		Format:     "text",
		CacheSize:  16,
	}

	require.NoError(t, cli.Run(&out))
	require.Contains(t, out.String(), "Ran 2 root orchestrations")
	require.Contains(t, out.String(), "Activities executed: 8")
}

func Test_Bench_CSV(t *testing.T) {
	var out bytes.Buffer

	cli := &Bench{
		Backend:     "memory",
		Monoprocess: true,
		Timeout:     20 * time.Second,
		Runs:        1,
		Depth:       0,
		FanOut:      1,
		LeafFanOut:  1,
		Activities:  1,
		ResultSize:  1,
		Format:      "csv",
		CacheSize:   0,
	}

	require.NoError(t, cli.Run(&out))
	require.Regexp(t, `^memory,[0-9.e-]+,1,0,1,1,1,1\n$`, out.String())
}
