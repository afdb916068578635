// Package cli implements the startable command-line tool.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/startable/internal/config"
	"github.com/JonMunkholm/startable/internal/core"
	"github.com/JonMunkholm/startable/internal/logging"
	"github.com/JonMunkholm/startable/internal/startable"
)

// app carries what every subcommand shares.
type app struct {
	cfg     *config.Config
	service *core.Service
	stdout  io.Writer
	stderr  io.Writer

	logLevel string
}

// NewRootCommand builds the command tree writing to stdout and stderr.
func NewRootCommand(stdout, stderr io.Writer) *cobra.Command {
	a := &app{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "startable",
		Short:         "Decode StarTable files",
		Long:          "Split StarTable CSV or Excel files into blocks and decode them into typed tables.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn or error")

	root.AddCommand(a.parseCommand(), a.spansCommand(), a.renderCommand())
	return root
}

// init loads configuration and routes logs to stderr, keeping stdout for output.
func (a *app) init() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	a.cfg = cfg
	// Local files are not subject to the upload deadline.
	a.cfg.Upload.Timeout = 0

	slog.SetDefault(logging.New(a.stderr, a.logLevel, cfg.Logging.Format))
	a.service = core.NewService(a.cfg, nil)
	return nil
}

// Execute runs the CLI and returns the process exit code.
func Execute() int {
	cmd := NewRootCommand(os.Stdout, os.Stderr)
	if err := cmd.Execute(); err != nil {
		printError(os.Stderr, err)
		return 1
	}
	return 0
}

// printError writes err in red. Parse issues were already listed, so only a
// summary line is added for them.
func printError(w io.Writer, err error) {
	red := color.New(color.FgRed, color.Bold)
	var issue *startable.Issue
	if errors.As(err, &issue) {
		red.Fprintf(w, "parse stopped: %s\n", issue.Error())
		return
	}
	red.Fprintf(w, "Error: %v\n", err)
	if msg := core.MapError(err); msg.Code != "ERR000" {
		fmt.Fprintf(w, "%s (%s)\n", msg.Action, msg.Code)
	}
}

// printIssues lists issues on w, errors in red and warnings in yellow.
func printIssues(w io.Writer, issues startable.Issues) {
	errColor := color.New(color.FgRed)
	warnColor := color.New(color.FgYellow)
	for i := range issues {
		is := &issues[i]
		c := warnColor
		if is.Severity == startable.SeverityError {
			c = errColor
		}
		c.Fprintf(w, "%-7s %s\n", is.Severity, is.Error())
	}
}
