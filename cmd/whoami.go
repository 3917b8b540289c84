package cmd

import (
	"time"

	"github.com/dnitsch/lambda-url-auth/internal/apperr"
	"github.com/dnitsch/lambda-url-auth/internal/credentialexchange"
	"github.com/dnitsch/lambda-url-auth/internal/flow"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami <flags>",
	Short: "Sign in and show the AWS identity the exchanged credentials resolve to",
	RunE:  whoami,
}

func init() {
	addBrowserFlags(whoamiCmd)
	RootCmd.AddCommand(whoamiCmd)
}

func whoami(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), flow.Target{})
	if err != nil {
		return err
	}
	defer a.flow.Wait()
	if err := a.flow.SignIn(cmd.Context()); err != nil {
		return err
	}
	creds, err := a.flow.Exchange(cmd.Context())
	if err != nil {
		return err
	}
	arn, err := credentialexchange.WhoAmI(cmd.Context(), creds, a.sts)
	if err != nil {
		return apperr.New(apperr.KindExchange, "whoami", err)
	}
	valid, err := credentialexchange.IsValid(cmd.Context(), creds, a.conf.ReloadBefore, a.sts)
	if err != nil {
		return apperr.New(apperr.KindExchange, "whoami", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendRows([]table.Row{
		{"User", a.flow.Session().Username()},
		{"Identity", creds.IdentityID},
		{"Arn", arn},
		{"Expires", creds.Expires.Format(time.RFC3339)},
		{"Valid", valid},
	})
	t.Render()
	return nil
}
