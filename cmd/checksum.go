package cmd

import (
	"fmt"
	"strings"

	"github.com/Mohsinsiddi/w3scan/internal/checksum"
	"github.com/Mohsinsiddi/w3scan/internal/ui"
	"github.com/spf13/cobra"
)

var checksumQuiet bool

var checksumCmd = &cobra.Command{
	Use:   "checksum <address>",
	Short: "Convert an address to EIP-55 checksum form and validate it",
	Long: `Convert any EVM address to its EIP-55 checksummed form and report
whether the input was already correctly checksummed.

Examples:
  w3scan checksum 0xd8da6bf26964af9d7eed9e03e53415d37aa96045
  w3scan checksum -q 0xD8DA6BF26964AF9D7EED9E03E53415D37AA96045`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		input := strings.TrimSpace(args[0])
		out := cmd.OutOrStdout()

		checksummed, err := checksum.Encode(input)
		if err != nil {
			return fmt.Errorf("%q: %w", input, err)
		}
		if checksumQuiet {
			fmt.Fprintln(out, checksummed)
			return nil
		}

		fmt.Fprintln(out, ui.KeyValueBlock("EIP-55 Checksum", [][2]string{
			{"Input", input},
			{"Checksummed", ui.Addr(checksummed)},
			{"Checksum", checksumVerdict(input, checksummed)},
			{"Well-formed", fmt.Sprintf("%t", checksum.Validate(input))},
		}))
		return nil
	},
}

// checksumVerdict classifies input against its checksummed form by the 40
// hex digits alone; the prefix carries no checksum. Addresses written in a
// single case carry no checksum at all.
func checksumVerdict(input, checksummed string) string {
	body := input[len(input)-40:]
	switch {
	case body == checksummed[2:]:
		return ui.Success("address is correctly checksummed")
	case body == strings.ToLower(body) || body == strings.ToUpper(body):
		return ui.Warn("valid address but not checksummed")
	default:
		return ui.Err("checksum mismatch: expected " + checksummed)
	}
}

func init() {
	checksumCmd.Flags().BoolVarP(&checksumQuiet, "quiet", "q", false, "print only the checksummed address")
}
