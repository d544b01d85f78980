package job

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"uit-client/internal/pbs"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/google/uuid"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// Scheduler status codes. Codes not listed here are kept verbatim.
const (
	StatusQueued     = "Q"
	StatusRunning    = "R"
	StatusFinished   = "F"
	StatusHeld       = "H"
	StatusExiting    = "E"
	StatusArrayBegun = "B"
	StatusExpired    = "X"
)

type Kind int

const (
	KindSingle Kind = iota
	KindArray
	KindSubJob
)

func (k Kind) String() string {
	switch k {
	case KindSingle:
		return "single"
	case KindArray:
		return "array"
	case KindSubJob:
		return "subjob"
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

func (k Kind) article() string {
	switch k {
	case KindArray:
		return "an array job"
	case KindSubJob:
		return "an array sub-job"
	}
	return "a single job"
}

const (
	opSubmit  = "submit"
	opLog     = "log retrieval"
	opSubJobs = "sub-job expansion"
)

var unsupported = map[Kind]map[string]bool{
	KindSingle: {opSubJobs: true},
	KindArray:  {opLog: true},
	KindSubJob: {opSubmit: true, opSubJobs: true},
}

type Option func(*Job)

func WithWorkingDir(dir string) Option {
	return func(j *Job) {
		j.workingDir = dir
	}
}

// WithFs sets the local filesystem used for temporary scripts and downloaded logs.
func WithFs(fs afero.Fs) Option {
	return func(j *Job) {
		j.fs = fs
	}
}

// Job is one PBS submission. An array job fans out into sub-jobs that share its script and client
// but carry their own id and index.
type Job struct {
	logger *zap.Logger
	tracer trace.Tracer
	client Client
	fs     afero.Fs

	script     *pbs.Script
	kind       Kind
	jobID      string
	workingDir string
	status     string

	index   int
	parent  *Job
	subJobs []*Job
}

func New(logger *zap.Logger, script *pbs.Script, client Client, opts ...Option) *Job {
	j := &Job{
		logger: logger,
		tracer: otel.Tracer("job/job"),
		client: client,
		fs:     afero.NewOsFs(),
		script: script,
		kind:   KindSingle,
	}
	if script.IsArray() {
		j.kind = KindArray
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Restore rebuilds a job that was submitted earlier, e.g. by another process.
func Restore(logger *zap.Logger, script *pbs.Script, client Client, jobID, workingDir, status string, opts ...Option) *Job {
	j := New(logger, script, client, opts...)
	j.jobID = jobID
	j.workingDir = workingDir
	j.status = status
	return j
}

// FromRemoteScript reads a submitted script from the remote host and restores its job. The working
// directory is the script's directory.
func FromRemoteScript(ctx context.Context, logger *zap.Logger, client Client, remotePath, system, jobID string, opts ...Option) (*Job, error) {
	traceCtx, span := otel.Tracer("job/job").Start(ctx, "FromRemoteScript")
	defer span.End()
	logger = logutil.WithContext(traceCtx, logger)

	text, err := client.Call(traceCtx, "cat "+remotePath, "")
	if err != nil {
		logger.Error("failed to read remote script", zap.String("path", remotePath), zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	script, err := pbs.Parse(text, system)
	if err != nil {
		logger.Error("failed to parse remote script", zap.String("path", remotePath), zap.Error(err))
		span.RecordError(err)
		return nil, err
	}

	return Restore(logger, script, client, jobID, path.Dir(remotePath), "", opts...), nil
}

func (j *Job) Name() string {
	return j.script.Name
}

func (j *Job) JobID() string {
	return j.jobID
}

// JobNumber is the numeric part of the id, without the server suffix or array brackets.
func (j *Job) JobNumber() string {
	number, _, _ := strings.Cut(j.jobID, ".")
	number, _, _ = strings.Cut(number, "[")
	return number
}

func (j *Job) WorkingDir() string {
	return j.workingDir
}

// Status is the code cached by the last status refresh, or "" if there has been none.
func (j *Job) Status() string {
	return j.status
}

func (j *Job) Script() *pbs.Script {
	return j.script
}

func (j *Job) Kind() Kind {
	return j.kind
}

// Index is the array index of a sub-job. It is -1 for other kinds.
func (j *Job) Index() int {
	if j.kind != KindSubJob {
		return -1
	}
	return j.index
}

func (j *Job) Parent() *Job {
	return j.parent
}

func (j *Job) Submitted() bool {
	return j.jobID != ""
}

func (j *Job) finished() bool {
	return j.status == StatusFinished || j.status == StatusExpired
}

func (j *Job) require(op string) error {
	if unsupported[j.kind][op] {
		return &CapabilityError{Operation: op, Kind: j.kind}
	}
	return nil
}

type SubmitOptions struct {
	// WorkingDir defaults to the job's working directory, then $WORKDIR/<name>, then $HOME/<name>.
	WorkingDir string
	// RemoteName defaults to <name>_run.pbs.
	RemoteName string
	// LocalTempDir holds the rendered script until it is uploaded. Defaults to os.TempDir().
	LocalTempDir string
	// ScriptPath uploads an existing local file instead of rendering the script.
	ScriptPath string
	// ScriptText uploads the given text instead of rendering the script.
	ScriptText string
}

// Submit uploads the script and queues it with qsub, returning the scheduler's job id. Submitting
// an already submitted job returns its id without contacting the remote host.
func (j *Job) Submit(ctx context.Context, opts SubmitOptions) (string, error) {
	if err := j.require(opSubmit); err != nil {
		return "", err
	}
	if j.jobID != "" {
		return j.jobID, nil
	}

	traceCtx, span := j.tracer.Start(ctx, "Submit")
	defer span.End()
	logger := logutil.WithContext(traceCtx, j.logger)

	workingDir, err := j.resolveWorkingDir(traceCtx, opts.WorkingDir)
	if err != nil {
		logger.Error("failed to resolve working directory", zap.String("name", j.Name()), zap.Error(err))
		span.RecordError(err)
		return "", err
	}

	if _, err := j.client.Call(traceCtx, "mkdir -p "+workingDir, ""); err != nil {
		logger.Error("failed to create working directory", zap.String("working_dir", workingDir), zap.Error(err))
		span.RecordError(err)
		return "", &SubmissionError{Message: err.Error(), Err: err}
	}

	localPath, temporary, err := j.localScript(opts)
	if err != nil {
		logger.Error("failed to prepare local script", zap.String("name", j.Name()), zap.Error(err))
		span.RecordError(err)
		return "", err
	}

	remoteName := opts.RemoteName
	if remoteName == "" {
		remoteName = j.Name() + "_run.pbs"
	}
	remotePath := path.Join(workingDir, remoteName)

	response, err := j.client.PutFile(traceCtx, localPath, remotePath)
	if err != nil {
		logger.Error("failed to upload script", zap.String("remote_path", remotePath), zap.Error(err))
		span.RecordError(err)
		return "", &SubmissionError{Message: err.Error(), Err: err}
	}
	if response.Failed() {
		err := &SubmissionError{Message: response.Error}
		logger.Error("gateway rejected script upload", zap.String("remote_path", remotePath), zap.String("local_path", localPath), zap.Error(err))
		span.RecordError(err)
		return "", err
	}

	output, err := j.client.Call(traceCtx, "qsub "+remoteName, workingDir)
	if err != nil {
		logger.Error("failed to run qsub", zap.String("remote_path", remotePath), zap.Error(err))
		span.RecordError(err)
		return "", &SubmissionError{Message: err.Error(), Err: err}
	}

	j.jobID = strings.TrimSpace(output)
	j.workingDir = workingDir

	if temporary {
		if err := j.fs.Remove(localPath); err != nil {
			logger.Warn("failed to remove temporary script", zap.String("path", localPath), zap.Error(err))
		}
	}

	logger.Info("submitted job", zap.String("name", j.Name()), zap.String("job_id", j.jobID), zap.String("working_dir", workingDir))
	return j.jobID, nil
}

func (j *Job) resolveWorkingDir(ctx context.Context, explicit string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if j.workingDir != "" {
		return j.workingDir, nil
	}

	for _, name := range []string{"WORKDIR", "HOME"} {
		base, err := j.client.Getenv(ctx, name)
		if err != nil {
			return "", err
		}
		if base != "" {
			return path.Join(base, j.Name()), nil
		}
	}
	return "", fmt.Errorf("neither $WORKDIR nor $HOME is set on the remote host")
}

// localScript returns the file to upload and whether it was created here.
func (j *Job) localScript(opts SubmitOptions) (string, bool, error) {
	if opts.ScriptPath != "" {
		return opts.ScriptPath, false, nil
	}

	dir := opts.LocalTempDir
	if dir == "" {
		dir = os.TempDir()
	}
	if err := j.fs.MkdirAll(dir, 0o755); err != nil {
		return "", false, err
	}
	localPath := filepath.Join(dir, uuid.NewString())

	if opts.ScriptText != "" {
		return localPath, true, afero.WriteFile(j.fs, localPath, []byte(opts.ScriptText), 0o644)
	}
	return localPath, true, j.script.WriteFs(j.fs, localPath)
}

// UpdateStatus queries the scheduler for this job alone and caches the status code. For an array
// job this is the status of the whole array.
func (j *Job) UpdateStatus(ctx context.Context) (string, error) {
	if j.jobID == "" {
		return "", ErrNotSubmitted
	}

	traceCtx, span := j.tracer.Start(ctx, "UpdateStatus")
	defer span.End()
	logger := logutil.WithContext(traceCtx, j.logger)

	records, err := j.client.Status(traceCtx, []string{j.jobID}, false)
	if err != nil {
		logger.Error("failed to query job status", zap.String("job_id", j.jobID), zap.Error(err))
		span.RecordError(err)
		return "", err
	}
	if len(records) == 0 {
		err := fmt.Errorf("%w: %s", ErrStatusNotFound, j.jobID)
		span.RecordError(err)
		return "", err
	}

	j.status = records[0].Status
	return j.status, nil
}

// Terminate asks the scheduler to delete the job. The cached status is left alone; the next
// status refresh shows the effect.
func (j *Job) Terminate(ctx context.Context) error {
	if j.jobID == "" {
		return ErrNotSubmitted
	}

	traceCtx, span := j.tracer.Start(ctx, "Terminate")
	defer span.End()
	logger := logutil.WithContext(traceCtx, j.logger)

	if _, err := j.client.Call(traceCtx, "qdel "+j.jobID, j.workingDir); err != nil {
		logger.Error("failed to delete job", zap.String("job_id", j.jobID), zap.Error(err))
		span.RecordError(err)
		return err
	}

	logger.Info("requested job deletion", zap.String("job_id", j.jobID))
	return nil
}

// ResolvePath substitutes $JOB_ID, $JOB_NUMBER and, for sub-jobs, $JOB_INDEX in p. Relative
// results are joined to the working directory.
func (j *Job) ResolvePath(p string) string {
	pairs := []string{"$JOB_ID", j.jobID, "$JOB_NUMBER", j.JobNumber()}
	if j.kind == KindSubJob {
		pairs = append(pairs, "$JOB_INDEX", strconv.Itoa(j.index))
	}
	p = strings.NewReplacer(pairs...).Replace(p)

	if path.IsAbs(p) {
		return p
	}
	return path.Join(j.workingDir, p)
}

// SubJobs returns one job per array index. The set is built on first use and cached.
func (j *Job) SubJobs() ([]*Job, error) {
	if err := j.require(opSubJobs); err != nil {
		return nil, err
	}
	if j.jobID == "" {
		return nil, ErrNotSubmitted
	}
	if j.subJobs != nil {
		return j.subJobs, nil
	}
	if !strings.Contains(j.jobID, "[]") {
		return nil, fmt.Errorf("%w: array job id %q has no [] placeholder", ErrMalformedJobID, j.jobID)
	}

	indices := j.script.ArrayIndices()
	subJobs := make([]*Job, 0, len(indices))
	for _, index := range indices {
		subJobs = append(subJobs, &Job{
			logger:     j.logger,
			tracer:     j.tracer,
			client:     j.client,
			fs:         j.fs,
			script:     j.script,
			kind:       KindSubJob,
			jobID:      strings.Replace(j.jobID, "[]", "["+strconv.Itoa(index)+"]", 1),
			workingDir: j.workingDir,
			index:      index,
			parent:     j,
		})
	}
	j.subJobs = subJobs
	return j.subJobs, nil
}
