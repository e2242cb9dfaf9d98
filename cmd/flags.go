package cmd

import (
	"strings"

	"github.com/spf13/cobra"
)

var providerNames = []string{"anthropic", "openai", "gemini", "bedrock"}

// AddProviderFlag adds the --provider/-p flag with completion
func AddProviderFlag(cmd *cobra.Command, dest *string) {
	cmd.Flags().StringVarP(dest, "provider", "p", "", "Override provider, optionally with model (e.g., openai:gpt-4o)")
	if err := cmd.RegisterFlagCompletionFunc("provider", ProviderFlagCompletion); err != nil {
		panic("failed to register provider completion: " + err.Error())
	}
}

// AddUserFlag adds the --user/-u flag
func AddUserFlag(cmd *cobra.Command, dest *string) {
	cmd.Flags().StringVarP(dest, "user", "u", "", "User id that owns the chats")
}

func ProviderFlagCompletion(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var out []string
	for _, name := range providerNames {
		if strings.HasPrefix(name, toComplete) {
			out = append(out, name)
		}
	}
	return out, cobra.ShellCompDirectiveNoFileComp
}
