package uit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// StatusCommand builds the qstat invocation for jobIDs, including finished jobs.
func StatusCommand(jobIDs []string, full bool) string {
	ids := make([]string, len(jobIDs))
	for i, id := range jobIDs {
		ids[i], _, _ = strings.Cut(id, ".")
	}

	cmd := "qstat -x"
	if full {
		cmd += " -f -F json"
	}
	return cmd + " " + strings.Join(ids, " ")
}

// ParseStatus reads the default qstat table:
//
//	Job id            Name             User              Time Use S Queue
//	----------------  ---------------- ----------------  -------- - -----
//	4470612.pbs01     test1            user              00:00:00 F debug
func ParseStatus(output string) ([]JobStatus, error) {
	var records []JobStatus

	inBody := false
	scanner := bufio.NewScanner(strings.NewReader(output))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if strings.HasPrefix(line, "---") {
			inBody = true
			continue
		}
		if !inBody {
			continue
		}

		fields := strings.Fields(line)
		if len(fields) < 6 {
			return nil, fmt.Errorf("malformed qstat line %q", line)
		}
		records = append(records, JobStatus{
			JobID:       fields[0],
			Name:        fields[1],
			Username:    fields[2],
			ElapsedTime: fields[3],
			Status:      fields[4],
			Queue:       fields[5],
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}

	return records, nil
}

type fullStatusResponse struct {
	Jobs map[string]map[string]any `json:"Jobs"`
}

// ParseFullStatus reads "qstat -f -F json" output. JSON objects are unordered, so records are
// returned in the order of jobIDs, followed by any unrequested records sorted by id.
func ParseFullStatus(output string, jobIDs []string) ([]JobStatus, error) {
	var response fullStatusResponse
	if err := json.Unmarshal([]byte(output), &response); err != nil {
		return nil, fmt.Errorf("failed to parse qstat json output: %w", err)
	}

	keys := make([]string, 0, len(response.Jobs))
	for k := range response.Jobs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var records []JobStatus
	used := make(map[string]bool)
	for _, id := range jobIDs {
		number, _, _ := strings.Cut(id, ".")
		for _, k := range keys {
			if used[k] || (k != number && !strings.HasPrefix(k, number+".")) {
				continue
			}
			records = append(records, fullRecord(k, response.Jobs[k]))
			used[k] = true
			break
		}
	}
	for _, k := range keys {
		if !used[k] {
			records = append(records, fullRecord(k, response.Jobs[k]))
		}
	}

	return records, nil
}

func fullRecord(id string, attrs map[string]any) JobStatus {
	str := func(key string) string {
		if v, ok := attrs[key].(string); ok {
			return v
		}
		return ""
	}

	owner, _, _ := strings.Cut(str("Job_Owner"), "@")
	elapsed := ""
	if used, ok := attrs["resources_used"].(map[string]any); ok {
		elapsed, _ = used["walltime"].(string)
	}

	return JobStatus{
		JobID:       id,
		Name:        str("Job_Name"),
		Username:    owner,
		ElapsedTime: elapsed,
		Status:      str("job_state"),
		Queue:       str("queue"),
		Attributes:  attrs,
	}
}
