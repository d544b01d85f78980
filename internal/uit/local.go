package uit

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os/exec"
	"path/filepath"
	"strconv"

	logutil "github.com/NYCU-SDC/summer/pkg/log"
	"github.com/spf13/afero"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// LocalClient satisfies the same contract as Client but runs every command in a local bash and
// treats the local filesystem as the remote one. It is always connected.
type LocalClient struct {
	logger *zap.Logger
	tracer trace.Tracer
	fs     afero.Fs
	shell  string
	env    *Env
}

func NewLocalClient(logger *zap.Logger, fs afero.Fs) *LocalClient {
	if fs == nil {
		fs = afero.NewOsFs()
	}
	c := &LocalClient{
		logger: logger,
		tracer: otel.Tracer("uit/local"),
		fs:     fs,
		shell:  "bash",
	}
	c.env = NewEnv(c)
	return c
}

func (c *LocalClient) Connected() bool {
	return true
}

func (c *LocalClient) Env() *Env {
	return c.env
}

func (c *LocalClient) Getenv(ctx context.Context, name string) (string, error) {
	return c.env.Get(ctx, name)
}

func (c *LocalClient) Exec(ctx context.Context, command, workingDir string) (ExecResult, error) {
	traceCtx, span := c.tracer.Start(ctx, "Exec")
	defer span.End()
	logger := logutil.WithContext(traceCtx, c.logger)

	cmd := exec.CommandContext(traceCtx, c.shell, "-c", command)
	if workingDir != "" && workingDir != "." {
		cmd.Dir = workingDir
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	logger.Debug("exec", zap.String("command", command), zap.String("working_dir", workingDir))

	err := cmd.Run()
	result := ExecResult{Success: "true", Stdout: stdout.String(), Stderr: stderr.String()}

	var exitErr *exec.ExitError
	switch {
	case err == nil:
	case errors.As(err, &exitErr):
		result.Success = "false"
		result.Error = exitErr.Error() + ": " + stderr.String()
	default:
		logger.Error("failed to start command", zap.String("command", command), zap.Error(err))
		span.RecordError(err)
		return ExecResult{}, err
	}

	return result, nil
}

func (c *LocalClient) Call(ctx context.Context, command, workingDir string) (string, error) {
	result, err := c.Exec(ctx, command, workingDir)
	if err != nil {
		return "", err
	}
	return commandOutput(command, result)
}

func (c *LocalClient) PutFile(ctx context.Context, localPath, remotePath string) (PutFileResponse, error) {
	_, span := c.tracer.Start(ctx, "PutFile")
	defer span.End()

	if err := c.copy(localPath, remotePath); err != nil {
		span.RecordError(err)
		return PutFileResponse{Success: "false", Error: err.Error()}, nil
	}
	return PutFileResponse{Success: "true", File: remotePath}, nil
}

func (c *LocalClient) GetFile(ctx context.Context, remotePath, localPath string) (string, error) {
	_, span := c.tracer.Start(ctx, "GetFile")
	defer span.End()

	if err := c.copy(remotePath, localPath); err != nil {
		span.RecordError(err)
		return "", err
	}
	return localPath, nil
}

func (c *LocalClient) ListDir(ctx context.Context, path string) (DirListing, error) {
	traceCtx, span := c.tracer.Start(ctx, "ListDir")
	defer span.End()

	if path == "" {
		home, err := c.env.Get(traceCtx, "HOME")
		if err != nil {
			span.RecordError(err)
			return DirListing{}, err
		}
		path = home
	}

	infos, err := afero.ReadDir(c.fs, path)
	if err != nil {
		span.RecordError(err)
		return DirListing{Success: "false", Error: err.Error()}, nil
	}

	listing := DirListing{Path: path}
	for _, info := range infos {
		entry := DirEntry{
			Perms:        info.Mode().Perm().String(),
			Type:         "f",
			Size:         json.Number(strconv.FormatInt(info.Size(), 10)),
			LastModified: info.ModTime().Format("2006-01-02 15:04"),
			Path:         filepath.Join(path, info.Name()),
			Name:         info.Name(),
		}
		if info.IsDir() {
			entry.Type = "d"
			listing.Dirs = append(listing.Dirs, entry)
			continue
		}
		listing.Files = append(listing.Files, entry)
	}
	return listing, nil
}

func (c *LocalClient) Status(ctx context.Context, jobIDs []string, full bool) ([]JobStatus, error) {
	output, err := c.Call(ctx, StatusCommand(jobIDs, full), "")
	if err != nil {
		return nil, err
	}
	if full {
		return ParseFullStatus(output, jobIDs)
	}
	return ParseStatus(output)
}

func (c *LocalClient) copy(src, dst string) error {
	content, err := afero.ReadFile(c.fs, src)
	if err != nil {
		return err
	}
	if err := c.fs.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return afero.WriteFile(c.fs, dst, content, 0o644)
}
