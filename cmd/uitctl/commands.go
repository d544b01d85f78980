package main

import (
	"fmt"
	"slices"
	"uit-client/internal/job"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRenderCommand(a *app) *cobra.Command {
	var f scriptFlags
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Print the PBS script described by the flags",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := f.build(a.fs, a.cfg.System)
			if err != nil {
				return err
			}
			rendered, err := script.Render()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), rendered)
			return err
		},
	}
	f.register(cmd.Flags())
	return cmd
}

func newSubmitCommand(a *app) *cobra.Command {
	var f scriptFlags
	var workingDir, remoteName string
	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Upload the PBS script described by the flags and queue it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			script, err := f.build(a.fs, a.cfg.System)
			if err != nil {
				return err
			}

			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}

			j := job.New(a.logger, script, client, job.WithWorkingDir(workingDir), job.WithFs(a.fs))
			id, err := j.Submit(cmd.Context(), job.SubmitOptions{
				RemoteName:   remoteName,
				LocalTempDir: a.cfg.LocalTempDir,
			})
			if err != nil {
				return err
			}

			_, err = fmt.Fprintln(cmd.OutOrStdout(), id)
			return err
		},
	}
	f.register(cmd.Flags())
	cmd.Flags().StringVar(&workingDir, "workdir", "", "remote working directory, defaults to $WORKDIR/<name>")
	cmd.Flags().StringVar(&remoteName, "remote-name", "", "remote script file name, defaults to <name>_run.pbs")
	return cmd
}

func newStatusCommand(a *app) *cobra.Command {
	var full bool
	cmd := &cobra.Command{
		Use:   "status <job id>...",
		Short: "Show the scheduler status of jobs",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}

			records, err := client.Status(cmd.Context(), args, full)
			if err != nil {
				return err
			}

			return renderStatusTable(cmd.OutOrStdout(), job.Statuses(records))
		},
	}
	cmd.Flags().BoolVar(&full, "full", false, "query full job records")
	return cmd
}

// remoteJobFlags identify a submitted job by its id and the script it was submitted with.
type remoteJobFlags struct {
	script string
	index  int
}

func (f *remoteJobFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.script, "script", "", "remote path of the submitted script")
	cmd.Flags().IntVar(&f.index, "index", -1, "array index of a sub-job")
	_ = cmd.MarkFlagRequired("script")
}

func (f *remoteJobFlags) load(cmd *cobra.Command, a *app, jobID string) (*job.Job, error) {
	client, err := a.connect(cmd.Context())
	if err != nil {
		return nil, err
	}

	j, err := job.FromRemoteScript(cmd.Context(), a.logger, client, f.script, a.cfg.System, jobID, job.WithFs(a.fs))
	if err != nil {
		return nil, err
	}
	if f.index < 0 {
		return j, nil
	}

	subJobs, err := j.SubJobs()
	if err != nil {
		return nil, err
	}
	i := slices.IndexFunc(subJobs, func(sub *job.Job) bool { return sub.Index() == f.index })
	if i < 0 {
		return nil, fmt.Errorf("job %s has no array index %d", jobID, f.index)
	}
	return subJobs[i], nil
}

func newLogCommand(a *app) *cobra.Command {
	var f remoteJobFlags
	var stderr bool
	var output string
	cmd := &cobra.Command{
		Use:   "log <job id>",
		Short: "Print the stdout or stderr log of a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := f.load(cmd, a, args[0])
			if err != nil {
				return err
			}

			if _, err := j.UpdateStatus(cmd.Context()); err != nil {
				a.logger.Warn("Failed to refresh job status, peeking the live log", zap.String("job_id", j.JobID()), zap.Error(err))
			}

			logType := job.LogStdout
			if stderr {
				logType = job.LogStderr
			}

			var out string
			if output != "" {
				out, err = j.DownloadLog(cmd.Context(), logType, output)
			} else {
				out, err = j.Log(cmd.Context(), logType)
			}
			if err != nil {
				return err
			}

			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&stderr, "stderr", false, "print the stderr log instead of stdout")
	cmd.Flags().StringVarP(&output, "output", "o", "", "also write the log to this local file")
	return cmd
}

func newDeleteCommand(a *app) *cobra.Command {
	var f remoteJobFlags
	cmd := &cobra.Command{
		Use:   "delete <job id>",
		Short: "Ask the scheduler to delete a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			j, err := f.load(cmd, a, args[0])
			if err != nil {
				return err
			}
			return j.Terminate(cmd.Context())
		},
	}
	f.register(cmd)
	return cmd
}

func newEnvCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "env <name>...",
		Short: "Print remote environment variables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}

			for _, name := range args {
				value, err := client.Getenv(cmd.Context(), name)
				if err != nil {
					return err
				}
				if _, err := fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", name, value); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
