package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"weddingsync/internal/calc"
	"weddingsync/internal/core"
)

func newCalcCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "calc <expression>",
		Short:   "Evaluate an amount expression such as \"1200/3\"",
		Example: "  weddingsync calc '(450 + 80) * 2'",
		Args:    cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			result, err := calc.Eval(strings.Join(args, " "))
			if err != nil {
				return err
			}
			amount, err := core.FromDecimal(result)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), amount.Decimal().StringFixed(2))
			return err
		},
	}
}
