package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"getquote/pkg/clients/leadstore"
)

var leadsCmd = &cobra.Command{
	Use:   "leads",
	Short: "List the leads captured for an agent, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, _ := cmd.Flags().GetString("agent")
		asJSON, _ := cmd.Flags().GetBool("json")
		if agent == "" {
			agent = cfg.DefaultAgentID
		}

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		records, err := a.quoter.Leads(cmd.Context(), agent)
		if err != nil {
			var lsErr *leadstore.Error
			if errors.As(err, &lsErr) && lsErr.Hint != "" {
				return fmt.Errorf("%w\n%s", err, lsErr.Hint)
			}
			return err
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(records)
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderLeads(records))
		return nil
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the local cache",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Drop cached agent data and/or the benefit catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		agent, _ := cmd.Flags().GetString("agent")
		benefits, _ := cmd.Flags().GetBool("benefits")
		if agent == "" && !benefits {
			return errors.New("nothing to clear: pass --agent and/or --benefits")
		}

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		if agent != "" {
			if err := a.rates.InvalidateAgent(cmd.Context(), agent); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Cleared cached profile and rates for %s\n", agent)
		}
		if benefits {
			if err := a.rates.InvalidateBenefits(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Cleared cached benefits")
		}
		return nil
	},
}

func init() {
	leadsCmd.Flags().StringP("agent", "a", "", "Agent id (default: configured default agent)")
	leadsCmd.Flags().Bool("json", false, "Print the leads as JSON")

	cacheClearCmd.Flags().StringP("agent", "a", "", "Agent whose profile and rates to drop")
	cacheClearCmd.Flags().Bool("benefits", false, "Drop the benefit catalog")
	cacheCmd.AddCommand(cacheClearCmd)
}
