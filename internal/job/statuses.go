package job

import (
	"context"
	"fmt"
	"strings"
	"uit-client/internal/uit"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

// Statuses are scheduler records in the order of the jobs they were requested for.
type Statuses []uit.JobStatus

var StatusColumns = []string{"Job ID", "Name", "User", "Time Use", "S", "Queue"}

// Table projects the records into rows matching StatusColumns.
func (s Statuses) Table() [][]string {
	rows := make([][]string, 0, len(s))
	for _, record := range s {
		rows = append(rows, []string{record.JobID, record.Name, record.Username, record.ElapsedTime, record.Status, record.Queue})
	}
	return rows
}

// UpdateStatuses refreshes many jobs with a single scheduler query through the first job's client.
// Records pair with jobs by position. A record whose id is not a prefix of its job's id means the
// scheduler and this package disagree on ordering, and UpdateStatuses panics.
func UpdateStatuses(ctx context.Context, jobs ...*Job) (Statuses, error) {
	if len(jobs) == 0 {
		return nil, ErrNoJobs
	}

	traceCtx, span := otel.Tracer("job/job").Start(ctx, "UpdateStatuses")
	defer span.End()
	logger := logutil.WithContext(traceCtx, jobs[0].logger)

	ids := make([]string, 0, len(jobs))
	for _, j := range jobs {
		if j.jobID == "" {
			err := fmt.Errorf("%w: %s", ErrNotSubmitted, j.Name())
			span.RecordError(err)
			return nil, err
		}
		ids = append(ids, j.jobID)
	}

	records, err := jobs[0].client.Status(traceCtx, ids, false)
	if err != nil {
		logger.Error("failed to query job statuses", zap.Strings("job_ids", ids), zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	for i, record := range records {
		if i >= len(jobs) {
			break
		}
		listed := strings.TrimRight(record.JobID, "*")
		if !strings.HasPrefix(jobs[i].jobID, listed) {
			panic(fmt.Sprintf("job: status record %q does not belong to job %q", record.JobID, jobs[i].jobID))
		}
		jobs[i].status = record.Status
	}

	return Statuses(records), nil
}
