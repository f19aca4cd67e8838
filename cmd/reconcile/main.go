// Command reconcile runs one reconciliation audit and prints the report.
//
// Exit status: 0 when clean, 3 when divergence was found, 1 when the audit could
// not complete.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/pflag"

	"roster/internal/app"
	"roster/internal/platform/config"
	"roster/internal/platform/logger"
	"roster/internal/reconcile"
	id "roster/pkg/domain"
)

const (
	exitClean     = 0
	exitFailure   = 1
	exitDivergent = 3
)

type options struct {
	configPath string
	tenant     string
	format     string
	remediate  bool
}

func main() {
	var opts options
	fs := pflag.NewFlagSet("reconcile", pflag.ExitOnError)
	fs.StringVarP(&opts.configPath, "config", "c", "", "path to YAML config (defaults to $"+config.EnvConfigPath+")")
	fs.StringVar(&opts.tenant, "tenant", "", "audit a single tenant (default: all tenants)")
	fs.StringVar(&opts.format, "format", "text", "report format: text or json")
	fs.BoolVar(&opts.remediate, "remediate", false, "disable identity accounts of removed memberships that are still enabled")
	_ = fs.Parse(os.Args[1:])

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, opts, os.Stdout, os.Stderr))
}

func run(ctx context.Context, opts options, stdout, stderr io.Writer) int {
	if opts.format != "text" && opts.format != "json" {
		fmt.Fprintf(stderr, "unknown --format %q (want text or json)\n", opts.format)
		return exitFailure
	}
	var scope reconcile.Scope
	if opts.tenant != "" {
		tenantID, err := id.ParseTenantID(opts.tenant)
		if err != nil {
			fmt.Fprintf(stderr, "invalid --tenant: %v\n", err)
			return exitFailure
		}
		scope.TenantID = tenantID
	}

	cfg, err := config.Load(opts.configPath)
	if err != nil {
		fmt.Fprintf(stderr, "load config: %v\n", err)
		return exitFailure
	}
	log := logger.NewWithWriter(stderr, cfg.Log.Level, cfg.Log.Format)

	deps, err := app.Build(ctx, cfg, log)
	if err != nil {
		log.Error("failed to initialise dependencies", "error", err)
		return exitFailure
	}
	defer deps.Close()

	_, coordinator := deps.Membership()
	report, err := deps.Runner(coordinator, opts.remediate).RunOnce(ctx, scope)
	if err != nil {
		log.Error("reconciliation failed", "scope", scope.String(), "error", err)
		return exitFailure
	}

	if err := render(stdout, report, opts.format); err != nil {
		log.Error("failed to write report", "error", err)
		return exitFailure
	}
	if !report.Clean() {
		return exitDivergent
	}
	return exitClean
}

func render(w io.Writer, report *reconcile.Report, format string) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	return report.WriteText(w)
}
