package pbs_test

import (
	"strings"
	"testing"
	"uit-client/internal/pbs"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse_RoundTrip(t *testing.T) {
	testCases := []struct {
		name string
		opts pbs.Options
	}{
		{name: "Compute", opts: pbs.Options{System: "topaz", NumNodes: 5, ProcessesPerNode: 12, MaxTime: "20:30:30", Queue: "standard"}},
		{name: "Gpu", opts: pbs.Options{System: "onyx", NodeType: "gpu", NumNodes: 2, ProcessesPerNode: 11, MaxTime: "1:00:00"}},
		{name: "Transfer", opts: pbs.Options{System: "narwhal", NodeType: "transfer", NumNodes: 1, MaxTime: "0:10:00", Queue: "transfer"}},
		{name: "Array", opts: pbs.Options{System: "onyx", NumNodes: 1, ProcessesPerNode: 44, MaxTime: "4:00:00", Array: &pbs.ArrayRange{Start: 0, End: 9, Step: 3}}},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			original := newScript(t, tc.opts)
			original.SetDirective("-m", "be")
			original.SetDirective("-o", "$JOB_NUMBER.out")
			original.ModuleUse("/p/modules")
			original.LoadModule("gcc")
			original.SwapModule("mpt", "openmpi")
			original.SetEnvironmentVariable("OMP_NUM_THREADS", "4")
			original.ConfigureJobDir = true
			original.ExecutionBlock = "## User Script --------\nmpiexec ./a.out\n"

			rendered, err := original.Render()
			require.NoError(t, err)

			parsed, err := pbs.Parse(rendered, tc.opts.System)
			require.NoError(t, err)

			assert.Equal(t, original.Name, parsed.Name)
			assert.Equal(t, original.ProjectID, parsed.ProjectID)
			assert.Equal(t, original.NumNodes, parsed.NumNodes)
			assert.Equal(t, original.ProcessesPerNode, parsed.ProcessesPerNode)
			assert.Equal(t, original.Queue, parsed.Queue)
			assert.Equal(t, original.NodeType, parsed.NodeType)
			assert.Equal(t, original.Walltime(), parsed.Walltime())
			assert.Equal(t, original.ArrayIndices(), parsed.ArrayIndices())
			assert.Equal(t, original.OptionalDirectives(), parsed.OptionalDirectives())
			assert.Equal(t, original.Modules(), parsed.Modules())
			assert.Equal(t, original.EnvironmentVariables(), parsed.EnvironmentVariables())
			assert.True(t, parsed.ConfigureJobDir)
			assert.Equal(t, original.ExecutionBlock, parsed.ExecutionBlock)

			again, err := parsed.Render()
			require.NoError(t, err)
			assert.Equal(t, rendered, again)
		})
	}
}

func TestParseDirectives(t *testing.T) {
	text := strings.Join([]string{
		"#!/bin/bash",
		"#PBS -N test1",
		"  #PBS -l select=5:ncpus=36:mpiprocs=10  ",
		"#PBS -l walltime=20:30:30",
		"# PBS -q not-a-directive",
		"echo done",
	}, "\n")

	directives := pbs.ParseDirectives(text)
	assert.Equal(t, []pbs.Directive{
		{Flag: "-N", Options: "test1"},
		{Flag: "-l", Options: "select=5:ncpus=36:mpiprocs=10"},
		{Flag: "-l", Options: "walltime=20:30:30"},
	}, directives)

	assert.Equal(t, map[string][]string{
		"-N": {"test1"},
		"-l": {"select=5:ncpus=36:mpiprocs=10", "walltime=20:30:30"},
	}, pbs.DirectiveMap(directives))
}

func TestParse_PlainScript(t *testing.T) {
	text := strings.Join([]string{
		"#!/bin/bash",
		"#PBS -N plain",
		"#PBS -A P001",
		"#PBS -q debug",
		"#PBS -l select=2:ncpus=44:mpiprocs=22",
		"#PBS -l walltime=01:00:00",
		"#PBS -j oe",
		"",
		"module load gcc",
		"./run.sh",
	}, "\n")

	script, err := pbs.Parse(text, "onyx")
	require.NoError(t, err)

	assert.Equal(t, "plain", script.Name)
	assert.Equal(t, 2, script.NumNodes)
	assert.Equal(t, 22, script.ProcessesPerNode)
	assert.Equal(t, "1:00:00", script.Walltime())
	assert.Equal(t, "oe", script.FirstDirective("-j", ""))
	assert.Equal(t, "module load gcc\n./run.sh", script.ExecutionBlock)
}

func TestParse_Errors(t *testing.T) {
	valid := []string{
		"#PBS -N test1",
		"#PBS -A P001",
		"#PBS -q debug",
		"#PBS -l select=5:ncpus=44:mpiprocs=1",
		"#PBS -l walltime=20:30:30",
	}

	without := func(prefix string) string {
		var lines []string
		for _, line := range valid {
			if !strings.HasPrefix(line, prefix) {
				lines = append(lines, line)
			}
		}
		return strings.Join(lines, "\n")
	}

	testCases := []struct {
		name       string
		text       string
		system     string
		validation bool
	}{
		{name: "Missing name", text: without("#PBS -N"), system: "onyx"},
		{name: "Missing select", text: without("#PBS -l select"), system: "onyx"},
		{name: "Missing walltime", text: without("#PBS -l walltime"), system: "onyx"},
		{name: "Core count of another system", text: strings.Join(valid, "\n"), system: "topaz", validation: true},
		{name: "Unknown system", text: strings.Join(valid, "\n"), system: "fake", validation: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			script, err := pbs.Parse(tc.text, tc.system)
			assert.Nil(t, script)
			if tc.validation {
				assert.True(t, pbs.IsValidationError(err))
				return
			}
			assert.ErrorIs(t, err, pbs.ErrMissingDirective)
		})
	}
}
