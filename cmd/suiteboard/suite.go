package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/caevv/suiteboard/internal/domain"
)

var suiteCmd = &cobra.Command{
	Use:   "suite",
	Short: "Manage registered test suites",
	Long: `Manage test suites in the persisted store.

These commands open the store directly; stop a running server first when
using the bbolt driver.

Subcommands:
  add     - Register a new test suite
  list    - List registered test suites
  remove  - Remove a test suite

Examples:
  suiteboard suite add --name mdm-smoke --target-url https://ci.example.com/mdm \
    --product MDM --environment PROD --type health-check
  suiteboard suite list
  suiteboard suite remove 3f6c2a9e-...`,
}

var addSuiteCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a new test suite",
	RunE:  runAddSuite,
}

var listSuitesCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered test suites",
	RunE:  runListSuites,
}

var removeSuiteCmd = &cobra.Command{
	Use:   "remove <suite-id>",
	Short: "Remove a test suite",
	Args:  cobra.ExactArgs(1),
	RunE:  runRemoveSuite,
}

func init() {
	suiteCmd.AddCommand(addSuiteCmd)
	suiteCmd.AddCommand(listSuitesCmd)
	suiteCmd.AddCommand(removeSuiteCmd)

	f := addSuiteCmd.Flags()
	f.String("name", "", "Suite name (required)")
	f.String("agent", "default-agent", "Agent: harness-delegator, temporal-agent or default-agent")
	f.String("target-url", "", "http(s) URL of the suite (required)")
	f.StringSlice("product", nil, "Product (repeatable, at least one)")
	f.StringSlice("cloud", nil, "Cloud provider (repeatable)")
	f.StringSlice("environment", nil, "Environment (repeatable, at least one)")
	f.StringSlice("pod", nil, "Pod name (repeatable)")
	f.String("type", "health-check", "Suite type: health-check, functional or full-test")
	f.StringSlice("email", nil, "Notification email (repeatable or comma-separated)")
	f.StringSlice("notify-on", nil, "Notification condition: success, failure, on-trigger or all")
	f.Int("retry", 0, "Retry count (0-10)")
	f.Int("timeout", domain.DefaultTimeoutMinutes, "Timeout in minutes (1-120)")
	f.String("doc-url", "", "Documentation URL")
}

// withRegistry opens the configured store without the scheduler and runs fn.
func withRegistry(cmd *cobra.Command, fn func(*app) error) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	a, err := newApp(context.Background(), cfg, appOptions{logOutput: "discard", debug: debugEnabled(cmd)})
	if err != nil {
		return err
	}
	if err := fn(a); err != nil {
		a.Close()
		return err
	}
	return a.Close()
}

func runAddSuite(cmd *cobra.Command, args []string) error {
	f := cmd.Flags()
	var spec domain.SuiteSpec
	spec.Name, _ = f.GetString("name")
	spec.Agent, _ = f.GetString("agent")
	spec.TargetURL, _ = f.GetString("target-url")
	spec.Products, _ = f.GetStringSlice("product")
	spec.CloudProviders, _ = f.GetStringSlice("cloud")
	spec.Environments, _ = f.GetStringSlice("environment")
	spec.PodNames, _ = f.GetStringSlice("pod")
	spec.TestSuiteType, _ = f.GetString("type")
	spec.NotificationEmails, _ = f.GetStringSlice("email")
	spec.NotificationConditions, _ = f.GetStringSlice("notify-on")
	spec.RetryCount, _ = f.GetInt("retry")
	spec.TimeoutMinutes, _ = f.GetInt("timeout")
	spec.DocumentationURL, _ = f.GetString("doc-url")

	return withRegistry(cmd, func(a *app) error {
		suite, err := a.reg.AddSuite(spec)
		if err != nil {
			printValidation(cmd.ErrOrStderr(), err)
			return fmt.Errorf("failed to add suite: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Suite '%s' registered\n", suite.Name)
		fmt.Fprintf(cmd.OutOrStdout(), "  ID: %s\n", suite.ID)
		return nil
	})
}

func runListSuites(cmd *cobra.Command, args []string) error {
	return withRegistry(cmd, func(a *app) error {
		suites := a.reg.Suites()
		if len(suites) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No test suites registered")
			return nil
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tTYPE\tPRODUCTS\tENVIRONMENTS\tAGENT")
		for _, s := range suites {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				s.ID,
				s.Name,
				s.TestSuiteType,
				strings.Join(s.Products, ","),
				strings.Join(s.Environments, ","),
				s.Agent)
		}
		return w.Flush()
	})
}

func runRemoveSuite(cmd *cobra.Command, args []string) error {
	return withRegistry(cmd, func(a *app) error {
		if _, ok := a.reg.Suite(args[0]); !ok {
			return fmt.Errorf("suite '%s' not found", args[0])
		}
		if err := a.reg.DeleteSuite(args[0]); err != nil {
			return fmt.Errorf("failed to remove suite: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "✓ Suite '%s' removed\n", args[0])
		return nil
	})
}

// printValidation lists each failing field of a validation error.
func printValidation(w io.Writer, err error) {
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return
	}
	for _, k := range ve.Keys() {
		fmt.Fprintf(w, "  %s: %s\n", k, ve.Fields[k])
	}
}
