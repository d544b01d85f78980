package pbs

import (
	"bufio"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

var (
	directivePattern = regexp.MustCompile(`^\s*#PBS\s+(\S+)\s*(.*?)\s*$`)
	exportPattern    = regexp.MustCompile(`^export\s+([A-Za-z_][A-Za-z0-9_]*)="(.*)"$`)
)

// ParseDirectives returns every "#PBS" line of text in order of appearance.
func ParseDirectives(text string) []Directive {
	var directives []Directive

	scanner := bufio.NewScanner(strings.NewReader(text))
	for scanner.Scan() {
		if m := directivePattern.FindStringSubmatch(scanner.Text()); m != nil {
			directives = append(directives, Directive{Flag: m[1], Options: m[2]})
		}
	}
	return directives
}

// DirectiveMap groups directives by flag, preserving the order of repeated flags.
func DirectiveMap(directives []Directive) map[string][]string {
	m := make(map[string][]string)
	for _, d := range directives {
		m[d.Flag] = append(m[d.Flag], d.Options)
	}
	return m
}

// Parse rebuilds a Script from rendered script text. The system cannot be recovered from the
// text alone and must be supplied; the core count in the select statement is checked against it.
func Parse(text, system string) (*Script, error) {
	text = strings.ReplaceAll(text, "\r\n", "\n")
	system = strings.ToLower(withDefault(system, DefaultSystem))
	if err := ValidateSystem(system); err != nil {
		return nil, err
	}

	sections := splitSections(text)
	directives := ParseDirectives(text)
	if _, ok := sections["Execution Block"]; ok {
		directives = ParseDirectives(sections["Required PBS Directives"] + "\n" + sections["Optional Directives"])
	}

	required, optional := partitionDirectives(directives)
	flags := DirectiveMap(required)

	opts := Options{System: system}
	for _, flag := range []string{"-N", "-A", "-q"} {
		if len(flags[flag]) == 0 {
			return nil, fmt.Errorf("%w: %s", ErrMissingDirective, flag)
		}
	}
	opts.Name = flags["-N"][0]
	opts.ProjectID = flags["-A"][0]
	opts.Queue = flags["-q"][0]

	var ncpus int
	var haveSelect, haveWalltime bool
	for _, resource := range flags["-l"] {
		switch {
		case strings.HasPrefix(resource, "select="):
			var err error
			ncpus, err = parseSelect(resource, &opts)
			if err != nil {
				return nil, err
			}
			haveSelect = true
		case strings.HasPrefix(resource, "walltime="):
			opts.MaxTime = strings.TrimPrefix(resource, "walltime=")
			haveWalltime = true
		}
	}
	if !haveSelect {
		return nil, fmt.Errorf("%w: -l select", ErrMissingDirective)
	}
	if !haveWalltime {
		return nil, fmt.Errorf("%w: -l walltime", ErrMissingDirective)
	}

	if err := ValidateNodeType(system, opts.NodeType); err != nil {
		return nil, err
	}
	if cores := NodeTypes[system][opts.NodeType]; cores != ncpus {
		return nil, &ValidationError{
			Field:  "ncpus",
			Value:  strconv.Itoa(ncpus),
			Reason: fmt.Sprintf("%s %s nodes have %d cores", system, opts.NodeType, cores),
		}
	}

	if arrays := flags["-J"]; len(arrays) > 0 {
		r, err := ParseArrayRange(arrays[0])
		if err != nil {
			return nil, err
		}
		opts.Array = &r
	}

	script, err := New(opts)
	if err != nil {
		return nil, err
	}

	for _, d := range optional {
		script.SetDirective(d.Flag, d.Options)
	}

	body, hasBlocks := sections["Execution Block"]
	if !hasBlocks {
		script.ExecutionBlock = plainBody(text)
		return script, nil
	}

	parseModules(sections["Modules"], script)
	parseEnvironment(sections["Environment"], script)

	if strings.HasPrefix(body, jobDirConfiguration) {
		script.ConfigureJobDir = true
		body = strings.TrimPrefix(body, jobDirConfiguration)
	}
	script.ExecutionBlock = body

	return script, nil
}

// splitSections cuts rendered text at its block headers. Everything after the execution header is
// kept verbatim, including any "##" lines the user wrote.
func splitSections(text string) map[string]string {
	sections := make(map[string]string)

	title := ""
	var lines []string
	flush := func() {
		if title != "" {
			sections[title] = strings.Join(lines, "\n")
		}
		lines = nil
	}

	rest := text
	for rest != "" {
		line, remaining, _ := strings.Cut(rest, "\n")
		rest = remaining

		if strings.HasPrefix(line, "## ") && strings.HasSuffix(line, "-") {
			flush()
			title = strings.TrimRight(strings.TrimPrefix(line, "## "), "- ")
			if title == "Execution Block" {
				sections[title] = rest
				return sections
			}
			continue
		}
		lines = append(lines, line)
	}
	flush()
	return sections
}

func partitionDirectives(directives []Directive) (required, optional []Directive) {
	isArray := false
	for _, d := range directives {
		if d.Flag == "-J" {
			isArray = true
		}
	}

	for _, d := range directives {
		switch {
		case d.Flag == "-N", d.Flag == "-A", d.Flag == "-q", d.Flag == "-J":
			required = append(required, d)
		case d.Flag == "-l" && (strings.HasPrefix(d.Options, "select=") || strings.HasPrefix(d.Options, "walltime=")):
			required = append(required, d)
		case d.Flag == "-r" && d.Options == "y" && isArray:
			required = append(required, d)
		default:
			optional = append(optional, d)
		}
	}
	return required, optional
}

// parseSelect fills node count, processes per node and node type from a select statement and
// returns the requested core count.
func parseSelect(resource string, opts *Options) (int, error) {
	invalid := &ValidationError{Field: "select", Value: resource, Reason: "malformed resource request"}

	values := make(map[string]string)
	for _, chunk := range strings.Split(resource, ":") {
		key, value, ok := strings.Cut(chunk, "=")
		if !ok {
			return 0, invalid
		}
		values[key] = value
	}

	var err error
	if opts.NumNodes, err = strconv.Atoi(values["select"]); err != nil {
		return 0, invalid
	}
	ncpus, err := strconv.Atoi(values["ncpus"])
	if err != nil {
		return 0, invalid
	}

	opts.NodeType = NodeTypeCompute
	for nodeType, arg := range NodeArgs {
		if _, ok := values[arg]; ok {
			opts.NodeType = nodeType
		}
	}

	mpiprocs, ok := values["mpiprocs"]
	if !ok {
		opts.NodeType = NodeTypeTransfer
		opts.ProcessesPerNode = 1
		return ncpus, nil
	}
	if opts.ProcessesPerNode, err = strconv.Atoi(mpiprocs); err != nil {
		return 0, invalid
	}
	return ncpus, nil
}

func parseModules(block string, script *Script) {
	for _, line := range strings.Split(block, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 3 || fields[0] != "module" {
			continue
		}
		switch fields[1] {
		case "use":
			script.ModuleUse(fields[len(fields)-1])
		case "load":
			script.LoadModule(fields[2])
		case "unload":
			script.UnloadModule(fields[2])
		case "swap":
			if len(fields) == 4 {
				script.SwapModule(fields[2], fields[3])
			}
		}
	}
}

func parseEnvironment(block string, script *Script) {
	for _, line := range strings.Split(block, "\n") {
		if m := exportPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			script.SetEnvironmentVariable(m[1], m[2])
		}
	}
}

// plainBody strips the shebang and directive lines from a script written without block headers.
func plainBody(text string) string {
	var lines []string
	for i, line := range strings.Split(text, "\n") {
		if i == 0 && strings.HasPrefix(line, "#!") {
			continue
		}
		if directivePattern.MatchString(line) {
			continue
		}
		lines = append(lines, line)
	}
	return strings.TrimLeft(strings.Join(lines, "\n"), "\n")
}
