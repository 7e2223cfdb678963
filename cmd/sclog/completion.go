package main

import (
	"strings"

	"github.com/spf13/cobra"
)

var completionCmd = &cobra.Command{
	Use:   "completion [bash|zsh|fish|powershell]",
	Short: "Generate shell completion scripts",
	Long: `Generate a shell completion script for sclog and write it to stdout.

Star Citizen runs on Windows, so PowerShell is the usual choice:

  PS> sclog completion powershell | Out-String | Invoke-Expression

Add that line to $PROFILE to load completions in every session.

Other shells:

  bash  $ source <(sclog completion bash)
  zsh   $ sclog completion zsh > "${fpath[1]}/_sclog"
  fish  $ sclog completion fish > ~/.config/fish/completions/sclog.fish
`,
	DisableFlagsInUseLine: true,
	ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
	Args:                  cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Usage()
		}

		root := cmd.Root()
		out := cmd.OutOrStdout()

		switch args[0] {
		case "bash":
			return root.GenBashCompletionV2(out, true)
		case "zsh":
			return root.GenZshCompletion(out)
		case "fish":
			return root.GenFishCompletion(out, true)
		case "powershell":
			return root.GenPowerShellCompletionWithDesc(out)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(completionCmd)
}

// completeList completes a comma-separated list flag from candidates.
// Values already typed or already set on the flag are not offered again,
// and every suggestion carries the typed prefix so shells replace the
// whole word.
func completeList(flagName string, candidates func() []string) cobra.CompletionFunc {
	return func(cmd *cobra.Command, _ []string, toComplete string) ([]cobra.Completion, cobra.ShellCompDirective) {
		parts := strings.Split(toComplete, ",")
		typed, current := parts[:len(parts)-1], parts[len(parts)-1]
		current = strings.ToLower(strings.TrimSpace(current))

		prefix := strings.Join(typed, ",")
		if prefix != "" {
			prefix += ","
		}

		used := make(map[string]bool)
		for _, v := range typed {
			used[strings.ToLower(strings.TrimSpace(v))] = true
		}
		if vals, err := cmd.Flags().GetStringSlice(flagName); err == nil {
			for _, v := range vals {
				used[strings.ToLower(strings.TrimSpace(v))] = true
			}
		}

		var out []cobra.Completion
		for _, c := range candidates() {
			if !used[c] && strings.HasPrefix(c, current) {
				out = append(out, prefix+c)
			}
		}
		return out, cobra.ShellCompDirectiveNoSpace | cobra.ShellCompDirectiveNoFileComp
	}
}

func completeEventTypes(flagName string) cobra.CompletionFunc {
	return completeList(flagName, ValidEventTypeNames)
}

// registerEventTypeCompletion registers completion for an event type flag.
func registerEventTypeCompletion(cmd *cobra.Command, flagName string) {
	_ = cmd.RegisterFlagCompletionFunc(flagName, completeEventTypes(flagName))
}

// registerFormatCompletion offers the output formats for --format.
func registerFormatCompletion(cmd *cobra.Command) {
	_ = cmd.RegisterFlagCompletionFunc("format", cobra.FixedCompletions(formatNames(), cobra.ShellCompDirectiveNoFileComp))
}

var logLevels = []string{"debug", "info", "warn", "error"}
