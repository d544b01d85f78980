package job

import (
	"context"
	"path"
	"strconv"
	"strings"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/spf13/afero"
	"go.uber.org/zap"
)

const (
	LogStdout = "o"
	LogStderr = "e"

	unknownJobID = "Unknown Job Id"
)

// StdoutLog returns the job's standard output so far. Remote failures are returned as the log text;
// the only errors are for jobs that have no log of their own.
func (j *Job) StdoutLog(ctx context.Context) (string, error) {
	return j.Log(ctx, LogStdout)
}

func (j *Job) StderrLog(ctx context.Context) (string, error) {
	return j.Log(ctx, LogStderr)
}

// Log reads the "o" or "e" log. A finished job's log is read from its file; a live job is peeked
// with qpeek, falling back to the file once the scheduler has forgotten the job.
func (j *Job) Log(ctx context.Context, logType string) (string, error) {
	if err := j.require(opLog); err != nil {
		return "", err
	}
	if logType != LogStdout && logType != LogStderr {
		return "", ErrInvalidLogType
	}
	if j.jobID == "" {
		return "", ErrNotSubmitted
	}

	traceCtx, span := j.tracer.Start(ctx, "Log")
	defer span.End()
	logger := logutil.WithContext(traceCtx, j.logger)

	if j.finished() {
		return j.readLogFile(traceCtx, logType), nil
	}

	result, err := j.client.Exec(traceCtx, "qpeek "+j.jobID, j.workingDir)
	if err != nil {
		logger.Warn("failed to peek job log", zap.String("job_id", j.jobID), zap.Error(err))
		span.RecordError(err)
		return err.Error(), nil
	}

	if strings.Contains(result.Stdout+result.Stderr+result.Error, unknownJobID) {
		return j.readLogFile(traceCtx, logType), nil
	}
	if !result.OK() && result.Error != "" {
		return result.Error, nil
	}
	if logType == LogStdout {
		return result.Stdout, nil
	}
	return result.Stderr, nil
}

func (j *Job) readLogFile(ctx context.Context, logType string) string {
	logPath := j.LogPath(logType)
	out, err := j.client.Call(ctx, "cat "+logPath, j.workingDir)
	if err != nil {
		logutil.WithContext(ctx, j.logger).Warn("failed to read job log", zap.String("path", logPath), zap.Error(err))
		return err.Error()
	}
	return out
}

// LogPath is where the scheduler writes the log: the -o/-e directive when set, otherwise
// <working dir>/<name>.<o|e><job number>, with .<index> appended for sub-jobs.
func (j *Job) LogPath(logType string) string {
	if custom := j.script.FirstDirective("-"+logType, ""); custom != "" {
		return j.ResolvePath(custom)
	}

	name := j.Name() + "." + logType + j.JobNumber()
	if j.kind == KindSubJob {
		name += "." + strconv.Itoa(j.index)
	}
	return path.Join(j.workingDir, name)
}

// DownloadLog saves the log to localPath on the job's local filesystem and returns its text. A
// finished job's log file is downloaded as is; a live job's qpeek output is written instead.
func (j *Job) DownloadLog(ctx context.Context, logType, localPath string) (string, error) {
	if !j.finished() {
		out, err := j.Log(ctx, logType)
		if err != nil {
			return "", err
		}
		if err := afero.WriteFile(j.fs, localPath, []byte(out), 0o644); err != nil {
			return "", err
		}
		return out, nil
	}

	if err := j.require(opLog); err != nil {
		return "", err
	}
	if logType != LogStdout && logType != LogStderr {
		return "", ErrInvalidLogType
	}
	if j.jobID == "" {
		return "", ErrNotSubmitted
	}

	traceCtx, span := j.tracer.Start(ctx, "DownloadLog")
	defer span.End()
	logger := logutil.WithContext(traceCtx, j.logger)

	logPath := j.LogPath(logType)
	if _, err := j.client.GetFile(traceCtx, logPath, localPath); err != nil {
		logger.Error("failed to download job log", zap.String("path", logPath), zap.String("local_path", localPath), zap.Error(err))
		span.RecordError(err)
		return "", err
	}

	content, err := afero.ReadFile(j.fs, localPath)
	if err != nil {
		span.RecordError(err)
		return "", err
	}
	return string(content), nil
}
