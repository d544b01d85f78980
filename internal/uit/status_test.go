package uit_test

import (
	"testing"
	"uit-client/internal/uit"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const qstatTable = `
Job id            Name             User              Time Use S Queue
----------------  ---------------- ----------------  -------- - -----
4470612.pbs01     test1            user1             00:01:05 R debug
4470613[].pbs01   sweep            user1                    0 B standard
4470613[0].pbs01  sweep            user1             00:00:00 X standard
`

func TestStatusCommand(t *testing.T) {
	testCases := []struct {
		name     string
		ids      []string
		full     bool
		expected string
	}{
		{name: "Single", ids: []string{"4470612.pbs01"}, expected: "qstat -x 4470612"},
		{name: "Array parent", ids: []string{"4470613[].pbs01", "4470612"}, expected: "qstat -x 4470613[] 4470612"},
		{name: "Full", ids: []string{"4470612.pbs01"}, full: true, expected: "qstat -x -f -F json 4470612"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.expected, uit.StatusCommand(tc.ids, tc.full))
		})
	}
}

func TestParseStatus(t *testing.T) {
	records, err := uit.ParseStatus(qstatTable)
	require.NoError(t, err)

	require.Len(t, records, 3)
	assert.Equal(t, uit.JobStatus{
		JobID:       "4470612.pbs01",
		Name:        "test1",
		Username:    "user1",
		ElapsedTime: "00:01:05",
		Status:      "R",
		Queue:       "debug",
	}, records[0])
	assert.Equal(t, "4470613[].pbs01", records[1].JobID)
	assert.Equal(t, "B", records[1].Status)
	assert.Equal(t, "X", records[2].Status)
}

func TestParseStatus_Malformed(t *testing.T) {
	_, err := uit.ParseStatus("Job id Name\n----- ----\n123.pbs01 name\n")
	assert.Error(t, err)
}

func TestParseStatus_Empty(t *testing.T) {
	records, err := uit.ParseStatus("")
	require.NoError(t, err)
	assert.Empty(t, records)
}

func TestParseFullStatus(t *testing.T) {
	output := `{
		"Jobs": {
			"12345.pbs01": {
				"Job_Name": "second",
				"Job_Owner": "user1@onyx01.erdc.hpc.mil",
				"job_state": "Q",
				"queue": "standard"
			},
			"1234.pbs01": {
				"Job_Name": "first",
				"Job_Owner": "user1@onyx01.erdc.hpc.mil",
				"job_state": "F",
				"queue": "debug",
				"resources_used": {"walltime": "00:10:00"}
			}
		}
	}`

	records, err := uit.ParseFullStatus(output, []string{"12345.pbs01", "1234"})
	require.NoError(t, err)

	require.Len(t, records, 2)
	assert.Equal(t, "12345.pbs01", records[0].JobID)
	assert.Equal(t, "second", records[0].Name)
	assert.Equal(t, "Q", records[0].Status)

	assert.Equal(t, "1234.pbs01", records[1].JobID)
	assert.Equal(t, "user1", records[1].Username)
	assert.Equal(t, "00:10:00", records[1].ElapsedTime)
	assert.Equal(t, "F", records[1].Status)
	assert.Equal(t, "debug", records[1].Attributes["queue"])
}

func TestParseFullStatus_InvalidJSON(t *testing.T) {
	_, err := uit.ParseFullStatus("qstat: Unknown Job Id 1234.pbs01", []string{"1234"})
	assert.Error(t, err)
}
