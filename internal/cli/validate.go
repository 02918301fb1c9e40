package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/narrow/internal/narrow"
)

// ValidationResult describes a narrow whose term shapes are valid.
type ValidationResult struct {
	Valid  bool          `json:"valid"`
	Narrow narrow.Narrow `json:"narrow"`

	// SpectatorCompatible means an anonymous viewer may use the narrow;
	// WebPublic that it also selects the web-public channels, which
	// anonymous fetches require.
	SpectatorCompatible bool `json:"spectator_compatible"`
	WebPublic           bool `json:"web_public"`

	// UnknownOperators are left for the compiler to reject.
	UnknownOperators []string `json:"unknown_operators,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <narrow>",
		Short: "Check the term shapes of a narrow",
		Long: `Parse a narrow and check the shape of every term without touching the
store. The narrow is JSON: a list of [operator, operand] pairs or
{"operator", "operand", "negated"} objects. Pass "-" to read stdin or
"@file" to read a file.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(rootOpts, args[0], cmd)
		},
	}
}

func runValidate(opts *RootOptions, arg string, cmd *cobra.Command) error {
	formatter := opts.formatter(cmd)

	n, err := loadNarrow(arg, cmd.InOrStdin())
	if err != nil {
		return formatter.Fail("invalid narrow", err)
	}
	formatter.VerboseLog("Parsed %d term(s)", len(n))

	result := ValidationResult{
		Valid:               true,
		Narrow:              n,
		SpectatorCompatible: narrow.IsSpectatorCompatible(n),
		WebPublic:           narrow.IsWebPublicNarrow(n),
	}
	for _, t := range n {
		if t.Op == narrow.OpUnknown {
			result.UnknownOperators = append(result.UnknownOperators, t.Operator)
		}
	}

	return formatter.Success(result, func(w io.Writer) {
		fmt.Fprintf(w, "✓ %d term(s) valid\n", len(n))
		for _, t := range n {
			fmt.Fprintf(w, "  %s\n", formatTerm(t))
		}
		if len(result.UnknownOperators) > 0 {
			fmt.Fprintf(w, "  unknown operators: %v\n", result.UnknownOperators)
		}
		fmt.Fprintf(w, "  spectator compatible: %t\n", result.SpectatorCompatible)
	})
}

func formatTerm(t narrow.Term) string {
	sign := ""
	if t.Negated {
		sign = "-"
	}
	return fmt.Sprintf("%s%s:%s", sign, t.Operator, narrow.Text(t.Operand))
}
