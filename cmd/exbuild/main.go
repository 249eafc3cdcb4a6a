// Command exbuild compiles the package example with the Dart toolchain and
// logs the build timeline.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/alecthomas/kong"
	"github.com/bigdouble/exbuild"
	"github.com/bigdouble/exbuild/internal/build"
	"github.com/bigdouble/exbuild/internal/buildlog"
	"github.com/bigdouble/exbuild/internal/config"
	exbmcp "github.com/bigdouble/exbuild/internal/mcp"
	"github.com/bigdouble/exbuild/internal/metrics"
	"github.com/bigdouble/exbuild/internal/report"
	"github.com/bigdouble/exbuild/internal/runner"
	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type CLI struct {
	Build   BuildCmd   `cmd:"" default:"withargs" help:"Compile the example (default command)."`
	Show    ShowCmd    `cmd:"" help:"Print a stored build result."`
	MCP     MCPCmd     `cmd:"" name:"mcp" help:"Start the MCP server."`
	Version VersionCmd `cmd:"" help:"Print the version."`
}

// env carries the process streams into command Run methods.
type env struct {
	stdout io.Writer
	stderr io.Writer
}

// exitStatus is returned by a command that completed but must exit non-zero.
type exitStatus int

func (e exitStatus) Error() string { return fmt.Sprintf("exit status %d", int(e)) }

func main() {
	log.SetFlags(0)
	log.SetPrefix("exbuild: ")
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	var cli CLI
	parser, err := kong.New(&cli,
		kong.Name("exbuild"),
		kong.Description("Compile the package example with dart compile and log the build."),
		kong.Writers(stdout, stderr),
		kong.UsageOnError(),
	)
	if err != nil {
		fmt.Fprintf(stderr, "exbuild: %v\n", err)
		return 1
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		fmt.Fprintf(stderr, "exbuild: %v\n", err)
		return 2
	}

	err = kctx.Run(&env{stdout: stdout, stderr: stderr})
	var status exitStatus
	switch {
	case err == nil:
		return 0
	case errors.As(err, &status):
		return int(status)
	default:
		fmt.Fprintf(stderr, "exbuild: %v\n", err)
		return 1
	}
}

// --- build ---

type BuildCmd struct {
	Executable  string `help:"Compiler launcher (default: dart.bat on Windows, dart elsewhere)."`
	Target      string `help:"dart compile target kind (default: exe)."`
	Source      string `help:"Entry point, relative to --dir (default: example/main.dart)."`
	Dir         string `help:"Working directory for the compiler (default: .)."`
	Label       string `help:"Name shown in log records (default: DART_BUILD)."`
	Timeout     string `help:"Kill the compiler after this long, e.g. 5m (default: no limit). A timed-out build exits 124."`
	FailOpen    bool   `name:"fail-open" help:"Exit 0 even when the compiler fails."`
	ReportDir   string `name:"report-dir" type:"path" help:"Save the run record as JSON in this directory."`
	MetricsFile string `name:"metrics-file" type:"path" help:"Write Prometheus metrics for the run to this textfile."`
	JSON        bool   `name:"json" help:"Print the run record as JSON on stdout; log records go to stderr."`
}

func (c *BuildCmd) Run(e *env) error {
	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}

	loaded, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	cfg := loaded.Config
	if err := c.apply(cfg); err != nil {
		return err
	}

	logOut := e.stdout
	if c.JSON {
		logOut = e.stderr
	}
	logger := buildlog.New(logOut, cfg.Logger(), buildlog.ParseLevel(cfg.LogLevel))

	eng := &build.Engine{
		Invocation: cfg.Invocation(),
		Runner: &runner.Runner{
			Workspace: workspace,
			Timeout:   cfg.Timeout(),
			MaxOutput: cfg.MaxOutputBytes(),
			Log:       logger,
		},
		Log: logger,
	}
	if c.ReportDir != "" {
		eng.Store = report.NewDiskStore(c.ReportDir)
	}
	if c.MetricsFile != "" {
		eng.Metrics = metrics.NewCollector()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	result, err := eng.Build(ctx)
	if err != nil {
		return err
	}

	if eng.Metrics != nil {
		if err := eng.Metrics.WriteTextfile(c.MetricsFile); err != nil {
			return fmt.Errorf("writing metrics: %w", err)
		}
	}

	if c.JSON {
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(result.RunResult); err != nil {
			return err
		}
	}

	if code := result.ExitStatus(cfg.FailOpen); code != 0 {
		return exitStatus(code)
	}
	return nil
}

// apply overlays flags that were set onto the loaded config.
func (c *BuildCmd) apply(cfg *config.Config) error {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Build.Executable, c.Executable)
	set(&cfg.Build.Target, c.Target)
	set(&cfg.Build.Source, c.Source)
	set(&cfg.Build.Dir, c.Dir)
	set(&cfg.Build.Label, c.Label)
	set(&cfg.RawTimeout, c.Timeout)
	if c.FailOpen {
		cfg.FailOpen = true
	}
	return cfg.Validate()
}

// --- show ---

type ShowCmd struct {
	RunID     string `arg:"" name:"run-id" help:"Run ID printed by a previous build."`
	ReportDir string `name:"report-dir" required:"" type:"path" help:"Directory the run was saved to."`
	JSON      bool   `name:"json" help:"Print the record as JSON."`
}

func (c *ShowCmd) Run(e *env) error {
	rr, err := report.NewDiskStore(c.ReportDir).Load(c.RunID)
	if err != nil {
		return err
	}
	if c.JSON {
		enc := json.NewEncoder(e.stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(rr)
	}
	_, err = fmt.Fprint(e.stdout, rr.String())
	return err
}

// --- mcp ---

type MCPCmd struct {
	Instructions bool   `help:"Print model instructions and exit."`
	HTTP         string `name:"http" help:"Serve over HTTP on this address (e.g. :9090) instead of stdio."`
	ReportDir    string `name:"report-dir" type:"path" help:"Directory for run records (default: a temporary directory)."`
}

func (c *MCPCmd) Run(e *env) error {
	if c.Instructions {
		_, err := fmt.Fprint(e.stdout, exbmcp.Instructions)
		return err
	}

	workspace, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("determining workspace: %w", err)
	}
	loaded, err := config.Load(workspace)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	store := report.NewLRUStore(5, report.NewDiskStore(c.ReportDir))
	collector := metrics.NewCollector()

	// stdout carries the protocol; build records go to stderr.
	server := exbmcp.NewServer(loaded.Config, store, workspace,
		exbmcp.WithLogOutput(e.stderr),
		exbmcp.WithMetrics(collector),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if c.HTTP != "" {
		return serveHTTP(ctx, server, collector, c.HTTP)
	}
	return server.Run(ctx, &mcpsdk.StdioTransport{})
}

func serveHTTP(ctx context.Context, server *mcpsdk.Server, collector *metrics.Collector, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(collector.Registry(), promhttp.HandlerOpts{}))
	mux.Handle("/", mcpsdk.NewStreamableHTTPHandler(
		func(_ *http.Request) *mcpsdk.Server { return server },
		nil,
	))

	httpServer := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		<-ctx.Done()
		_ = httpServer.Close()
	}()

	log.Printf("listening on %s", addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

// --- version ---

type VersionCmd struct{}

func (VersionCmd) Run(e *env) error {
	_, err := fmt.Fprintln(e.stdout, exbuild.Version)
	return err
}
