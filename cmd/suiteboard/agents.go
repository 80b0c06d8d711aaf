package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/caevv/suiteboard/internal/config"
	"github.com/caevv/suiteboard/internal/notify"
)

var agentsCmd = &cobra.Command{
	Use:   "agents",
	Short: "Manage notification agents",
	Long: `Manage the executables run on suite notification events.

Agents are discovered in notifications.agent_paths, ./agents/,
$SUITEBOARD_HOME/agents and /usr/local/lib/suiteboard/agents/.

Subcommands:
  add   - Configure an agent
  list  - List configured and discovered agents`,
}

var addAgentCmd = &cobra.Command{
	Use:   "add <agent>",
	Short: "Configure a notification agent",
	Long: `Add a notification agent to the configuration file.

Examples:
  suiteboard agents add slack-notify --with channel=#qa --with mention=@oncall
  suiteboard agents add pager.sh --env PAGER_ROUTE=qa-oncall`,
	Args: cobra.ExactArgs(1),
	RunE: runAddAgent,
}

var listAgentsCmd = &cobra.Command{
	Use:   "list",
	Short: "List configured and discovered agents",
	RunE:  runListAgents,
}

func init() {
	agentsCmd.AddCommand(addAgentCmd)
	agentsCmd.AddCommand(listAgentsCmd)

	addAgentCmd.Flags().StringSlice("with", nil, "Agent configuration (KEY=VALUE, repeatable)")
	addAgentCmd.Flags().StringToString("env", nil, "Extra environment for the agent (KEY=VALUE, repeatable)")
}

func runAddAgent(cmd *cobra.Command, args []string) error {
	path := configPath(cmd)
	pairs, _ := cmd.Flags().GetStringSlice("with")

	with := make(map[string]any, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok || k == "" {
			return fmt.Errorf("invalid --with value: %s (expected KEY=VALUE)", kv)
		}
		with[k] = v
	}

	env, _ := cmd.Flags().GetStringToString("env")
	if len(env) == 0 {
		env = nil
	}

	agent := config.Agent{Agent: args[0], With: with, Env: env}
	if err := config.AddAgent(path, agent); err != nil {
		return fmt.Errorf("failed to add agent: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "✓ Agent '%s' added to %s\n", agent.Agent, path)
	return nil
}

func runListAgents(cmd *cobra.Command, args []string) error {
	cfg, _, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	paths := append(append([]string{}, cfg.Notifications.AgentPaths...), notify.DefaultAgentPaths()...)
	discovered, err := notify.DiscoverAgents(paths)
	if err != nil {
		return fmt.Errorf("agent discovery failed: %w", err)
	}

	configured := make(map[string]bool, len(cfg.Notifications.Agents))
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 3, ' ', 0)
	fmt.Fprintln(w, "AGENT\tCONFIGURED\tPATH")
	for _, a := range cfg.Notifications.Agents {
		configured[a.Agent] = true
		p, ok := discovered[a.Agent]
		if !ok {
			p = "(not found)"
		}
		fmt.Fprintf(w, "%s\tyes\t%s\n", a.Agent, p)
	}
	for _, name := range notify.AgentNames(discovered) {
		if !configured[name] {
			fmt.Fprintf(w, "%s\tno\t%s\n", name, discovered[name])
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}

	if len(discovered) == 0 {
		fmt.Fprintf(cmd.ErrOrStderr(), "no agents found in %s\n", strings.Join(paths, ", "))
	}
	return nil
}
