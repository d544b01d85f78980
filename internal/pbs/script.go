package pbs

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"uit-client/internal"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
)

const (
	DefaultQueue    = "debug"
	DefaultNodeType = NodeTypeCompute
	DefaultSystem   = "onyx"

	shebang     = "#!/bin/bash"
	headerWidth = 50
)

const jobDirConfiguration = `JOBID=` + "`echo ${PBS_JOBID} | cut -d '.' -f 1 | cut -d '[' -f 1`" + `
JOBDIR=$PBS_O_WORKDIR/$PBS_JOBNAME.$JOBID
if [ ! -d ${JOBDIR} ]; then
  mkdir -p ${JOBDIR}
fi
# cd $JOBDIR

`

var validate = internal.NewValidator()

// Options are the parameters a Script is built from. System, NodeType and Queue fall back to
// DefaultSystem, DefaultNodeType and DefaultQueue when empty.
type Options struct {
	Name             string `validate:"required"`
	ProjectID        string `validate:"required"`
	NumNodes         int    `validate:"gte=1"`
	ProcessesPerNode int    `validate:"gte=1"`
	MaxTime          string `validate:"required,walltime"`
	Queue            string
	NodeType         string
	System           string
	Array            *ArrayRange
}

var optionFields = map[string]string{
	"Name":             "name",
	"ProjectID":        "project_id",
	"NumNodes":         "num_nodes",
	"ProcessesPerNode": "processes_per_node",
	"MaxTime":          "max_time",
}

type module struct {
	name   string
	action string
}

type envVar struct {
	key   string
	value string
}

// Script is a PBS batch script under construction.
type Script struct {
	Name             string
	ProjectID        string
	NumNodes         int
	ProcessesPerNode int
	MaxTime          time.Duration
	Queue            string
	NodeType         string
	System           string

	// ExecutionBlock is the user-provided shell body, rendered verbatim.
	ExecutionBlock string
	// ConfigureJobDir prepends a snippet creating a per-job directory under the submit directory.
	ConfigureJobDir bool

	array              *ArrayRange
	optionalDirectives []Directive
	moduleUse          []string
	modules            []module
	environment        []envVar
}

// New validates opts and returns a Script ready for rendering.
func New(opts Options) (*Script, error) {
	if err := validate.Struct(opts); err != nil {
		return nil, optionsError(err, opts)
	}

	maxTime, err := ParseWalltime(opts.MaxTime)
	if err != nil {
		return nil, err
	}

	s := &Script{
		Name:             opts.Name,
		ProjectID:        opts.ProjectID,
		NumNodes:         opts.NumNodes,
		ProcessesPerNode: opts.ProcessesPerNode,
		MaxTime:          maxTime,
		Queue:            withDefault(opts.Queue, DefaultQueue),
		NodeType:         strings.ToLower(withDefault(opts.NodeType, DefaultNodeType)),
		System:           strings.ToLower(withDefault(opts.System, DefaultSystem)),
	}

	if opts.Array != nil {
		if err := opts.Array.validate(); err != nil {
			return nil, err
		}
		r := *opts.Array
		s.array = &r
	}

	if err := ValidateProcessesPerNode(s.System, s.NodeType, s.ProcessesPerNode); err != nil {
		return nil, err
	}

	return s, nil
}

func optionsError(err error, opts Options) error {
	var fieldErrors validator.ValidationErrors
	if !errors.As(err, &fieldErrors) || len(fieldErrors) == 0 {
		return err
	}

	fe := fieldErrors[0]
	field := optionFields[fe.StructField()]
	value := fmt.Sprint(fe.Value())

	switch fe.Tag() {
	case "required":
		return &ValidationError{Field: field, Value: value, Reason: "parameter is required"}
	case "walltime":
		return &ValidationError{Field: field, Value: opts.MaxTime, Reason: `must be in the form "HH:MM:SS"`}
	default:
		return &ValidationError{Field: field, Value: value, Reason: "must be at least 1"}
	}
}

func withDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}

// ParseWalltime parses "HH:MM:SS", "MM:SS" or "SS" into a duration.
func ParseWalltime(s string) (time.Duration, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) > 3 {
		return 0, &ValidationError{Field: "max_time", Value: s, Reason: `must be in the form "HH:MM:SS"`}
	}

	units := []time.Duration{time.Second, time.Minute, time.Hour}
	var total time.Duration
	for i := range parts {
		n, err := strconv.Atoi(parts[len(parts)-1-i])
		if err != nil || n < 0 {
			return 0, &ValidationError{Field: "max_time", Value: s, Reason: `must be in the form "HH:MM:SS"`}
		}
		total += time.Duration(n) * units[i]
	}

	if total <= 0 {
		return 0, &ValidationError{Field: "max_time", Value: s, Reason: "must be greater than zero"}
	}
	return total, nil
}

// Walltime formats MaxTime as H:MM:SS. Hours are not wrapped at 24.
func (s *Script) Walltime() string {
	total := int(s.MaxTime / time.Second)
	return fmt.Sprintf("%d:%02d:%02d", total/3600, total%3600/60, total%60)
}

func (s *Script) IsArray() bool {
	return s.array != nil
}

// ArrayRange returns the job array range, or false for a single job.
func (s *Script) ArrayRange() (ArrayRange, bool) {
	if s.array == nil {
		return ArrayRange{}, false
	}
	return *s.array, true
}

// ArrayIndices returns every sub-job index of the array, or nil for a single job.
func (s *Script) ArrayIndices() []int {
	if s.array == nil {
		return nil
	}
	return s.array.Indices()
}

func (s *Script) NumberOfSubJobs() int {
	return len(s.ArrayIndices())
}

// SetDirective appends an optional directive. Repeated flags are kept in order.
func (s *Script) SetDirective(flag, options string) {
	s.optionalDirectives = append(s.optionalDirectives, Directive{Flag: flag, Options: options})
}

// Directive returns the options of every optional directive with the given flag.
func (s *Script) Directive(flag string) []string {
	var options []string
	for _, d := range s.optionalDirectives {
		if d.Flag == flag {
			options = append(options, d.Options)
		}
	}
	return options
}

// FirstDirective returns the options of the first optional directive with the given flag, or fallback.
func (s *Script) FirstDirective(flag, fallback string) string {
	if options := s.Directive(flag); len(options) > 0 {
		return options[0]
	}
	return fallback
}

func (s *Script) OptionalDirectives() []Directive {
	return append([]Directive(nil), s.optionalDirectives...)
}

func (s *Script) ModuleUse(path string) {
	s.moduleUse = append(s.moduleUse, path)
}

func (s *Script) LoadModule(name string) {
	s.setModule(name, "load")
}

func (s *Script) UnloadModule(name string) {
	s.setModule(name, "unload")
}

// SwapModule replaces the loaded module old with replacement.
func (s *Script) SwapModule(old, replacement string) {
	s.setModule(old, replacement)
}

// setModule records the latest action for name, keeping its original position.
func (s *Script) setModule(name, action string) {
	for i := range s.modules {
		if s.modules[i].name == name {
			s.modules[i].action = action
			return
		}
	}
	s.modules = append(s.modules, module{name: name, action: action})
}

// Modules returns module names mapped to "load", "unload" or the name of the module swapped in.
func (s *Script) Modules() map[string]string {
	modules := make(map[string]string, len(s.modules))
	for _, m := range s.modules {
		modules[m.name] = m.action
	}
	return modules
}

// SetEnvironmentVariable exports key in the script. Setting an existing key replaces its value in place.
func (s *Script) SetEnvironmentVariable(key, value string) {
	for i := range s.environment {
		if s.environment[i].key == key {
			s.environment[i].value = value
			return
		}
	}
	s.environment = append(s.environment, envVar{key: key, value: value})
}

func (s *Script) EnvironmentVariables() map[string]string {
	env := make(map[string]string, len(s.environment))
	for _, e := range s.environment {
		env[e.key] = e.value
	}
	return env
}

// NumNodesProcessDirective builds the "-l select=..." resource request. The processes per node are
// validated again since the fields may have changed after construction.
func (s *Script) NumNodesProcessDirective() (Directive, error) {
	if err := ValidateProcessesPerNode(s.System, s.NodeType, s.ProcessesPerNode); err != nil {
		return Directive{}, err
	}

	return Directive{Flag: "-l", Options: FormatSelect(s.System, s.NodeType, s.NumNodes, s.ProcessesPerNode)}, nil
}

// FormatSelect composes a select statement without validating its inputs. ncpus is always the full
// core count of the node type so that whole nodes are reserved.
func FormatSelect(system, nodeType string, numNodes, processesPerNode int) string {
	options := fmt.Sprintf("select=%d:ncpus=%d", numNodes, NodeTypes[system][nodeType])
	if nodeType != NodeTypeTransfer {
		options += fmt.Sprintf(":mpiprocs=%d", processesPerNode)
	}
	if arg, ok := NodeArgs[nodeType]; ok {
		options += fmt.Sprintf(":%s=1", arg)
	}
	return options
}

// ArrayDirectives returns the "-J" and "-r y" pair for array jobs, or nil.
func (s *Script) ArrayDirectives() []Directive {
	if s.array == nil {
		return nil
	}
	return []Directive{
		{Flag: "-J", Options: s.array.String()},
		{Flag: "-r", Options: "y"},
	}
}

func (s *Script) RequiredDirectives() ([]Directive, error) {
	selectDirective, err := s.NumNodesProcessDirective()
	if err != nil {
		return nil, err
	}

	directives := []Directive{
		{Flag: "-N", Options: s.Name},
		{Flag: "-A", Options: s.ProjectID},
		{Flag: "-q", Options: s.Queue},
		selectDirective,
		{Flag: "-l", Options: "walltime=" + s.Walltime()},
	}
	return append(directives, s.ArrayDirectives()...), nil
}

func (s *Script) RenderRequiredDirectives() (string, error) {
	directives, err := s.RequiredDirectives()
	if err != nil {
		return "", err
	}
	return renderDirectives("Required PBS Directives", directives), nil
}

func (s *Script) RenderOptionalDirectives() string {
	return renderDirectives("Optional Directives", s.optionalDirectives)
}

func (s *Script) RenderModules() string {
	lines := []string{blockHeader("Modules")}
	for _, path := range s.moduleUse {
		lines = append(lines, "module use --append "+path)
	}
	for _, m := range s.modules {
		switch m.action {
		case "load", "unload":
			lines = append(lines, fmt.Sprintf("module %s %s", m.action, m.name))
		default:
			lines = append(lines, fmt.Sprintf("module swap %s %s", m.name, m.action))
		}
	}
	return strings.Join(lines, "\n")
}

func (s *Script) RenderEnvironment() string {
	lines := []string{blockHeader("Environment")}
	for _, e := range s.environment {
		lines = append(lines, fmt.Sprintf(`export %s="%s"`, e.key, e.value))
	}
	return strings.Join(lines, "\n")
}

func (s *Script) RenderExecutionBlock() string {
	var b strings.Builder
	b.WriteString(blockHeader("Execution Block"))
	b.WriteString("\n")
	if s.ConfigureJobDir {
		b.WriteString(jobDirConfiguration)
	}
	b.WriteString(s.ExecutionBlock)
	return b.String()
}

// Render produces the complete script text. It has no side effects and fails without partial output.
func (s *Script) Render() (string, error) {
	required, err := s.RenderRequiredDirectives()
	if err != nil {
		return "", err
	}

	return strings.Join([]string{
		shebang,
		required,
		s.RenderOptionalDirectives(),
		s.RenderModules(),
		s.RenderEnvironment(),
		s.RenderExecutionBlock(),
	}, "\n\n"), nil
}

func (s *Script) String() string {
	rendered, err := s.Render()
	if err != nil {
		return fmt.Sprintf("<invalid pbs script %s: %v>", s.Name, err)
	}
	return rendered
}

// Write renders the script to path on the local disk.
func (s *Script) Write(path string) error {
	return s.WriteFs(afero.NewOsFs(), path)
}

// WriteFs renders the script to path on fs with LF line endings.
func (s *Script) WriteFs(fs afero.Fs, path string) error {
	rendered, err := s.Render()
	if err != nil {
		return err
	}
	return afero.WriteFile(fs, path, []byte(rendered), 0o644)
}

func renderDirectives(title string, directives []Directive) string {
	lines := []string{blockHeader(title)}
	for _, d := range directives {
		lines = append(lines, d.String())
	}
	return strings.Join(lines, "\n")
}

func blockHeader(title string) string {
	title += " "
	if len(title) < headerWidth {
		title += strings.Repeat("-", headerWidth-len(title))
	}
	return "## " + title
}
