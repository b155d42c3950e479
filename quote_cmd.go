package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"getquote/pkg/models"
	"getquote/pkg/quote"
	"getquote/pkg/services"
)

var quoteCmd = &cobra.Command{
	Use:   "quote",
	Short: "Price a plan for one customer and record the lead",
	Long: `Runs the same flow as the quotation page: loads the agent's profile and
rate tables, prices the plan and posts the lead to the agent's sheet.

Example:
  getquote quote --agent bj --plan hibah --name Ahmad --dob 01/01/1994 \
    --phone 0123456789 --occupation Guru --gender lelaki --smoker tidak`,
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		agent, _ := flags.GetString("agent")
		asJSON, _ := flags.GetBool("json")
		novaAddon, _ := flags.GetString("nova-addon")
		chintaAddon, _ := flags.GetString("chinta-addon")

		var inputs models.CustomerInputs
		plan, _ := flags.GetString("plan")
		inputs.PlanType = models.PlanType(plan)
		inputs.Name, _ = flags.GetString("name")
		inputs.DOB, _ = flags.GetString("dob")
		inputs.Phone, _ = flags.GetString("phone")
		inputs.Occupation, _ = flags.GetString("occupation")
		gender, _ := flags.GetString("gender")
		inputs.Gender = models.Gender(gender)
		smoker, _ := flags.GetString("smoker")
		inputs.Smoker = models.Smoker(smoker)

		if agent == "" {
			agent = cfg.DefaultAgentID
		}

		a, err := newApp(cfg, logger)
		if err != nil {
			return err
		}
		defer a.close()

		ctx := cmd.Context()
		session, err := a.quoter.Open(ctx, agent, services.WithoutRatePrefetch())
		if err != nil {
			return err
		}
		result, err := a.quoter.Quote(ctx, session, inputs)
		if err != nil {
			return err
		}

		if asJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		fmt.Fprintln(cmd.OutOrStdout(), renderQuote(session, result, quote.Addon(novaAddon), quote.Addon(chintaAddon)))
		return nil
	},
}

func init() {
	f := quoteCmd.Flags()
	f.StringP("agent", "a", "", "Agent id (default: configured default agent)")
	f.StringP("plan", "p", "", "Plan type: medical or hibah")
	f.String("name", "", "Customer name")
	f.String("dob", "", "Date of birth, DD/MM/YYYY")
	f.String("phone", "", "Customer phone number")
	f.String("occupation", "", "Customer occupation")
	f.String("gender", "", "lelaki or perempuan")
	f.String("smoker", "", "ya or tidak")
	f.String("nova-addon", "", "Show Hibah Nova with an addon: waiver or ci")
	f.String("chinta-addon", "", "Show Hibah Chinta with an addon: waiver or ci")
	f.Bool("json", false, "Print the result as JSON")
}
