package main

import (
	"fmt"
	"strings"
	"uit-client/internal/pbs"

	"github.com/spf13/afero"
	"github.com/spf13/pflag"
)

type scriptFlags struct {
	name       string
	project    string
	nodes      int
	ppn        int
	walltime   string
	queue      string
	nodeType   string
	array      string
	modules    []string
	directives []string
	env        []string
	execFile   string
	jobDir     bool
}

func (f *scriptFlags) register(flags *pflag.FlagSet) {
	flags.StringVar(&f.name, "name", "", "job name")
	flags.StringVar(&f.project, "project", "", "project id charged for the job")
	flags.IntVar(&f.nodes, "nodes", 1, "number of nodes")
	flags.IntVar(&f.ppn, "ppn", 0, "processes per node, defaults to every core of the node type")
	flags.StringVar(&f.walltime, "walltime", "", "maximum wall time as HH:MM:SS, MM:SS or SS")
	flags.StringVar(&f.queue, "queue", pbs.DefaultQueue, "queue")
	flags.StringVar(&f.nodeType, "node-type", pbs.DefaultNodeType, "node type: compute, gpu, bigmem, transfer or knl")
	flags.StringVar(&f.array, "array", "", "array range as start-end[:step]")
	flags.StringArrayVar(&f.modules, "module", nil, "module action: load:NAME, unload:NAME, swap:OLD:NEW or use:PATH")
	flags.StringArrayVar(&f.directives, "directive", nil, `extra directive, e.g. "-m be"`)
	flags.StringArrayVar(&f.env, "env", nil, "environment variable as KEY=VALUE")
	flags.StringVar(&f.execFile, "exec", "", "file holding the execution block")
	flags.BoolVar(&f.jobDir, "jobdir", false, "create and enter a per-job directory before running")
}

func (f *scriptFlags) build(fs afero.Fs, system string) (*pbs.Script, error) {
	system = strings.ToLower(system)
	if system == "" {
		system = pbs.DefaultSystem
	}

	ppn := f.ppn
	if ppn == 0 {
		cores, err := pbs.CoresPerNode(system, strings.ToLower(f.nodeType))
		if err != nil {
			return nil, err
		}
		ppn = cores
	}

	opts := pbs.Options{
		Name:             f.name,
		ProjectID:        f.project,
		NumNodes:         f.nodes,
		ProcessesPerNode: ppn,
		MaxTime:          f.walltime,
		Queue:            f.queue,
		NodeType:         f.nodeType,
		System:           system,
	}
	if f.array != "" {
		r, err := pbs.ParseArrayRange(f.array)
		if err != nil {
			return nil, err
		}
		opts.Array = &r
	}

	script, err := pbs.New(opts)
	if err != nil {
		return nil, err
	}

	for _, m := range f.modules {
		if err := applyModule(script, m); err != nil {
			return nil, err
		}
	}
	for _, d := range f.directives {
		flag, options, _ := strings.Cut(strings.TrimSpace(d), " ")
		if !strings.HasPrefix(flag, "-") {
			return nil, fmt.Errorf("directive %q must start with a flag", d)
		}
		script.SetDirective(flag, strings.TrimSpace(options))
	}
	for _, e := range f.env {
		key, value, ok := strings.Cut(e, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("environment variable %q must be KEY=VALUE", e)
		}
		script.SetEnvironmentVariable(key, value)
	}

	if f.execFile != "" {
		body, err := afero.ReadFile(fs, f.execFile)
		if err != nil {
			return nil, err
		}
		script.ExecutionBlock = string(body)
	}
	script.ConfigureJobDir = f.jobDir

	return script, nil
}

func applyModule(script *pbs.Script, spec string) error {
	parts := strings.Split(spec, ":")
	switch {
	case len(parts) == 2 && parts[0] == "load":
		script.LoadModule(parts[1])
	case len(parts) == 2 && parts[0] == "unload":
		script.UnloadModule(parts[1])
	case len(parts) == 2 && parts[0] == "use":
		script.ModuleUse(parts[1])
	case len(parts) == 3 && parts[0] == "swap":
		script.SwapModule(parts[1], parts[2])
	default:
		return fmt.Errorf("invalid module action %q", spec)
	}
	return nil
}
