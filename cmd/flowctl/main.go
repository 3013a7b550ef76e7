// Command flowctl serves the flow editor and runs its document tools from
// the command line.
package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/goliatone/go-errors"
	"github.com/goliatone/go-logger/glog"

	designer "github.com/goliatone/go-flow-designer"
	"github.com/goliatone/go-flow-designer/config"
)

type globals struct {
	Config    string `help:"YAML config file." short:"c" type:"path" env:"FLOWCTL_CONFIG"`
	LogLevel  string `help:"Override log.level." enum:",trace,debug,info,warn,error,fatal" default:""`
	LogFormat string `help:"Override log.format." enum:",console,json" default:""`
}

// app is bound into every command's Run method.
type app struct {
	cfg    config.Config
	logger designer.Logger
	out    io.Writer
	in     io.Reader
}

// command is one CLI entry mounted with kong.DynamicCommand.
type command struct {
	name    string
	help    string
	group   string
	handler any
	aliases []string
}

func commands() []command {
	return []command{
		{name: "serve", help: "Serve the editor websocket and HTTP API.", group: "server", handler: &serveCmd{}},
		{name: "graph", help: "Convert a flow document into editor nodes and edges.", group: "documents", handler: &graphCmd{}},
		{name: "document", help: "Convert editor nodes and edges back into a flow document.", group: "documents", handler: &documentCmd{}},
		{name: "layout", help: "Lay out a flow document.", group: "documents", handler: &layoutCmd{}},
		{name: "validate", help: "Report diagnostics for a flow document.", group: "documents", handler: &validateCmd{}, aliases: []string{"lint"}},
		{name: "vars", help: "List variable references per node.", group: "documents", handler: &varsCmd{}},
		{name: "schemas", help: "Describe the node type schemas.", group: "reference", handler: &schemasCmd{}},
		{name: "sample", help: "Print the embedded sample flow.", group: "reference", handler: &sampleCmd{}},
		{name: "jsonschema", help: "Print the JSON Schema of flow documents.", group: "reference", handler: &jsonSchemaCmd{}},
	}
}

func cliOptions(cmds []command) ([]kong.Option, error) {
	seen := map[string]bool{}
	opts := make([]kong.Option, 0, len(cmds))
	for _, c := range cmds {
		if seen[c.name] {
			return nil, errors.New("cli command already registered", errors.CategoryConflict).
				WithTextCode("CLI_PATH_CONFLICT").
				WithMetadata(map[string]any{"command": c.name})
		}
		seen[c.name] = true

		var tags []string
		if len(c.aliases) > 0 {
			tags = append(tags, "aliases:"+strings.Join(c.aliases, ","))
		}
		opts = append(opts, kong.DynamicCommand(c.name, c.help, c.group, c.handler, tags...))
	}
	return opts, nil
}

func newLogger(cfg config.LogConfig, w io.Writer) designer.Logger {
	var base glog.Logger
	if cfg.Format == "json" {
		base = glog.NewLogger(glog.WithWriter(w), glog.WithLevel(cfg.Level), glog.WithLoggerTypeJSON())
	} else {
		base = glog.NewLogger(glog.WithWriter(w), glog.WithLevel(cfg.Level))
	}
	return designer.NewGlogLogger(base)
}

func newApp(g globals, out, logOut io.Writer, in io.Reader) (*app, error) {
	cfg, err := config.Load(g.Config)
	if err != nil {
		return nil, err
	}
	if g.LogLevel != "" {
		cfg.Log.Level = g.LogLevel
	}
	if g.LogFormat != "" {
		cfg.Log.Format = g.LogFormat
	}
	return &app{cfg: cfg, logger: newLogger(cfg.Log, logOut), out: out, in: in}, nil
}

// run parses args and executes the selected command.
func run(args []string, out, logOut io.Writer, in io.Reader, extra ...kong.Option) error {
	var g globals
	opts, err := cliOptions(commands())
	if err != nil {
		return err
	}
	opts = append(opts,
		kong.Name("flowctl"),
		kong.Description("Flow definition editor tools."),
		kong.Writers(out, logOut),
		kong.UsageOnError(),
	)
	opts = append(opts, extra...)

	parser, err := kong.New(&g, opts...)
	if err != nil {
		return err
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	a, err := newApp(g, out, logOut, in)
	if err != nil {
		return err
	}
	return kctx.Run(a)
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr, os.Stdin); err != nil {
		fmt.Fprintf(os.Stderr, "flowctl: %v\n", err)
		if code := designer.ErrorCode(err); code != "" {
			fmt.Fprintf(os.Stderr, "code: %s\n", code)
		}
		os.Exit(1)
	}
}
