package job

import (
	"context"
	"uit-client/internal/uit"
)

// Client is what a Job needs from a connected gateway. Both uit.Client and uit.LocalClient satisfy it.
//
//go:generate mockery --name=Client
type Client interface {
	Call(ctx context.Context, command, workingDir string) (string, error)
	Exec(ctx context.Context, command, workingDir string) (uit.ExecResult, error)
	PutFile(ctx context.Context, localPath, remotePath string) (uit.PutFileResponse, error)
	GetFile(ctx context.Context, remotePath, localPath string) (string, error)
	Status(ctx context.Context, jobIDs []string, full bool) ([]uit.JobStatus, error)
	Getenv(ctx context.Context, name string) (string, error)
}
