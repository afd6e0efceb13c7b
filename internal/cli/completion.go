package cli

import (
	"github.com/spf13/cobra"

	"github.com/rip-project/rip/pkg/errclass"
)

// writeCompletions prints the completion script for shell.
//
// To load completions:
//
//	bash:       source <(rip --completions bash)
//	zsh:        rip --completions zsh > "${fpath[1]}/_rip"
//	fish:       rip --completions fish | source
//	powershell: rip --completions powershell | Out-String | Invoke-Expression
func writeCompletions(cmd *cobra.Command, shell string) error {
	root := cmd.Root()
	out := cmd.OutOrStdout()
	switch shell {
	case "bash":
		return root.GenBashCompletionV2(out, true)
	case "zsh":
		return root.GenZshCompletion(out)
	case "fish":
		return root.GenFishCompletion(out, true)
	case "powershell":
		return root.GenPowerShellCompletionWithDesc(out)
	default:
		return errclass.ErrInvalidArgs.WithMessagef("unsupported shell %q (bash, zsh, fish, powershell)", shell)
	}
}
