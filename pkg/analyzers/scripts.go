package analyzers

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"

	"github.com/abdala/minicon/pkg/config"
	"github.com/abdala/minicon/pkg/logging"
	"github.com/abdala/minicon/pkg/system"
)

// envLauncher is the portable interpreter launcher whose shebang argument
// names the real program.
const envLauncher = "env"

// recognizedInterpreters are the interpreter families the analyzer knows
// how to enrich. Versioned names (python3, perl5.36) match by prefix.
var recognizedInterpreters = []string{"bash", "sh", "perl", "python", envLauncher}

// ScriptsAnalyzer inspects script commands: the shebang interpreter is
// enqueued, env-launched programs are resolved through the system path, and
// with the includefolders parameter the interpreter's library search paths
// are pulled in as well.
type ScriptsAnalyzer struct{}

func (a *ScriptsAnalyzer) Name() string {
	return config.PluginScripts
}

func (a *ScriptsAnalyzer) Run(ctx *Context, item string) (Verdict, error) {
	logger := logging.GetLogger("analyzers.scripts")

	filePath, ok := ctx.Tools.Path(system.ToolFile)
	if !ok {
		return Continue, nil
	}

	out, err := ctx.Runner.Output(filePath, "-b", item)
	if err != nil {
		logger.Debug().Err(err).Str("command", item).Msg("file classification failed")
		return Continue, nil
	}
	if !strings.Contains(strings.ToLower(string(out)), "script") {
		return Continue, nil
	}

	interpreter, args, err := readShebang(item)
	if err != nil {
		logger.Debug().Err(err).Str("command", item).Msg("no shebang line")
		return Continue, nil
	}

	ctx.Queue.Enqueue(interpreter)

	effective := interpreter
	if filepath.Base(interpreter) == envLauncher {
		program := envProgram(args)
		if program == "" {
			logger.Warn().Str("command", item).Msg("env shebang names no program")
			return Stop, nil
		}
		resolved, err := system.Which(program)
		if err != nil {
			logger.Warn().Str("program", program).Msg("env program not found on PATH")
			return Stop, nil
		}
		ctx.Queue.Enqueue(resolved)
		effective = resolved
	}

	family := interpreterFamily(filepath.Base(effective))
	if family == "" {
		logger.Warn().Str("interpreter", effective).Str("command", item).Msg("unrecognized interpreter")
		return Stop, nil
	}

	if ctx.Plugins.BoolParam(config.PluginScripts, "includefolders", false) {
		for _, dir := range interpreterLibDirs(ctx, family, effective) {
			ctx.Queue.Enqueue(dir)
		}
	}

	return Continue, nil
}

// readShebang returns the interpreter path and its arguments from the
// leading #! line of the script.
func readShebang(path string) (string, []string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	if !scanner.Scan() {
		return "", nil, os.ErrInvalid
	}
	line := strings.TrimSpace(scanner.Text())
	if !strings.HasPrefix(line, "#!") {
		return "", nil, os.ErrInvalid
	}

	fields := strings.Fields(strings.TrimPrefix(line, "#!"))
	if len(fields) == 0 {
		return "", nil, os.ErrInvalid
	}
	return fields[0], fields[1:], nil
}

// envProgram picks the program argument out of an env shebang, skipping
// env's own flags.
func envProgram(args []string) string {
	for _, arg := range args {
		if strings.HasPrefix(arg, "-") {
			continue
		}
		if strings.Contains(arg, "=") {
			continue
		}
		return arg
	}
	return ""
}

// interpreterFamily maps an interpreter basename to its family, or the
// empty string when the interpreter is not recognized.
func interpreterFamily(base string) string {
	for _, family := range recognizedInterpreters {
		if base == family || strings.HasPrefix(base, family) {
			return family
		}
	}
	return ""
}

// interpreterLibDirs asks the interpreter for its library search paths.
// Entries under /home and relative entries are filtered out.
func interpreterLibDirs(ctx *Context, family, interpreter string) []string {
	logger := logging.GetLogger("analyzers.scripts")

	var out []byte
	var err error
	switch family {
	case "perl":
		out, err = ctx.Runner.Output(interpreter, "-e", `print join("\n", @INC)`)
	case "python":
		out, err = ctx.Runner.Output(interpreter, "-c", `import sys; print("\n".join(sys.path))`)
	default:
		return nil
	}
	if err != nil {
		logger.Debug().Err(err).Str("interpreter", interpreter).Msg("cannot read library paths")
		return nil
	}

	var dirs []string
	for _, line := range strings.Split(string(out), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "/") {
			continue
		}
		if strings.HasPrefix(line, "/home") {
			continue
		}
		dirs = append(dirs, line)
	}
	return dirs
}
