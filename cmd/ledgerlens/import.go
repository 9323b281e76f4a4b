package main

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/ledgerlens/ledgerlens/internal/cli"
)

func importCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Parse a transaction export and show the display set",
		Long: `Detect the export's layout, normalize its rows, and resolve refund and
family-payment pairs. Prints the resulting display set without classifying
or persisting anything.`,
		Args: cobra.ExactArgs(1),
		RunE: runImport,
	}
}

func runImport(cmd *cobra.Command, args []string) error {
	txns, rowErrs, result, err := importFile(args[0])
	if err != nil {
		return err
	}

	slog.Info("imported file",
		"path", args[0],
		"rows_parsed", len(txns),
		"rows_skipped", len(rowErrs),
		"pairs", len(result.Pairs))

	cmd.Print(cli.RenderTransactions(result.Display))

	if len(rowErrs) > 0 {
		msgs := make([]string, len(rowErrs))
		for i, e := range rowErrs {
			msgs[i] = e.Error()
		}
		cmd.Print(cli.RenderParseErrors(msgs))
	}

	cmd.Println(cli.SubtleStyle.Render(fmt.Sprintf("%d transactions, %d pairs", len(result.Display), len(result.Pairs))))
	return nil
}
