package main

import (
	"encoding/json"
	"fmt"
	"log"

	"github.com/spf13/cobra"
)

// ledgerCommands prints an account's balance and recent ledger entries.
func ledgerCommands(app *engineInstance) *cobra.Command {
	var limit, offset int
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "ledger [account_id]",
		Short: "show an account's credit balance and ledger entries",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := cmd.Context()
			summary, err := app.engine.GetAccountSummary(ctx, args[0])
			if err != nil {
				log.Fatal(err)
			}
			entries, err := app.engine.GetLedgerEntries(ctx, args[0], limit, offset)
			if err != nil {
				log.Fatal(err)
			}

			if !asJSON {
				fmt.Printf("%s (%s) balance: %d\n", summary.Name, summary.AccountID, summary.Balance)
				fmt.Println(renderLedgerTable(entries))
				return
			}

			data, err := json.MarshalIndent(map[string]interface{}{
				"account": summary,
				"entries": entries,
			}, "", "    ")
			if err != nil {
				log.Fatal(err)
			}
			fmt.Println(string(data))
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of entries to show")
	cmd.Flags().IntVar(&offset, "offset", 0, "number of entries to skip")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the account and entries as JSON")

	return cmd
}
