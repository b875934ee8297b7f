// Command fluxctl is the CLI surface named in spec §6.2: exec runs one
// workflow to completion or pause; start launches the HTTP server. Both
// subcommands take a <catalog-path> argument, but fluxctl does not read
// anything from that path: workflows are registered by the Loader a
// concrete build passes to Run, the adaptation of original_source/flux's
// reflective module scan forced by Go's lack of an importlib equivalent
// (see internal/catalog's package doc).
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"

	"go.fluxrun.dev/flux/client"
	"go.fluxrun.dev/flux/httpapi"
	"go.fluxrun.dev/flux/internal/config"
	"go.fluxrun.dev/flux/internal/telemetry"
)

// Loader is implemented by a catalog package: it registers every workflow
// it knows about onto c. Concrete catalog packages are wired in by a
// caller-supplied build (Go has no runtime plugin loading story portable
// enough to rely on here), so fluxctl itself only defines the contract.
type Loader func(c *client.Client) error

// Run is fluxctl's entry point, parameterized by the catalog loader a
// concrete build supplies (see cmd/fluxctl's own package doc).
func Run(args []string, load Loader) int {
	if len(args) < 1 {
		usage()
		return 2
	}

	switch args[0] {
	case "exec":
		return runExec(args[1:], load)
	case "start":
		return runStart(args[1:], load)
	default:
		usage()
		return 2
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: fluxctl exec <catalog-path> <workflow> [--input JSON] [--execution-id ID]")
	fmt.Fprintln(os.Stderr, "       fluxctl start <catalog-path>")
}

func runExec(args []string, load Loader) int {
	fs := flag.NewFlagSet("exec", flag.ContinueOnError)
	input := fs.String("input", "", "JSON input value")
	executionID := fs.String("execution-id", "", "resume/rerun an existing execution")
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	rest := fs.Args()
	if len(rest) < 2 {
		usage()
		return 2
	}
	workflowName := rest[1]
	if err := fs.Parse(rest[2:]); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fluxctl: loading config:", err)
		return 1
	}

	c, err := client.New(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fluxctl: building client:", err)
		return 1
	}
	defer c.Close()

	if err := load(c); err != nil {
		fmt.Fprintln(os.Stderr, "fluxctl: loading catalog:", err)
		return 1
	}

	var inputValue any
	if *input != "" {
		if err := json.Unmarshal([]byte(*input), &inputValue); err != nil {
			fmt.Fprintln(os.Stderr, "fluxctl: parsing --input:", err)
			return 2
		}
	}

	var ec any
	if *executionID != "" {
		ec, err = c.Resume(context.Background(), workflowName, *executionID, inputValue)
	} else {
		ec, err = c.Start(context.Background(), workflowName, inputValue)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "fluxctl: execution failed:", err)
		return 1
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(ec)
	return 0
}

func runStart(args []string, load Loader) int {
	fs := flag.NewFlagSet("start", flag.ContinueOnError)
	configPath := fs.String("config", "", "path to a YAML config file")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "fluxctl: loading config:", err)
		return 1
	}

	tel, err := telemetry.New("fluxctl")
	if err != nil {
		fmt.Fprintln(os.Stderr, "fluxctl: building telemetry:", err)
		return 1
	}
	defer tel.Close()

	c, err := client.New(cfg, client.WithTelemetry(tel))
	if err != nil {
		fmt.Fprintln(os.Stderr, "fluxctl: building client:", err)
		return 1
	}
	defer c.Close()

	if err := load(c); err != nil {
		fmt.Fprintln(os.Stderr, "fluxctl: loading catalog:", err)
		return 1
	}

	addr := fmt.Sprintf("%s:%d", cfg.ServerHost, cfg.ServerPort)
	tel.Logger.Sugar().Infof("fluxctl: serving on %s", addr)
	server := httpapi.New(c, tel)
	if err := http.ListenAndServe(addr, server); err != nil {
		fmt.Fprintln(os.Stderr, "fluxctl: server exited:", err)
		return 1
	}
	return 0
}

func main() {
	os.Exit(Run(os.Args[1:], func(*client.Client) error { return nil }))
}
