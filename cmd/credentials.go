package cmd

import (
	"github.com/dnitsch/lambda-url-auth/internal/credentialexchange"
	"github.com/dnitsch/lambda-url-auth/internal/flow"
	"github.com/spf13/cobra"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials <flags>",
	Short: "Sign in and write the identity pool credentials to stdout in the credential_process format",
	Long: `Sign in and write the identity pool credentials to stdout in the credential_process format.
The credentials are never written to disk.`,
	RunE: getCredentials,
}

func init() {
	addBrowserFlags(credentialsCmd)
	RootCmd.AddCommand(credentialsCmd)
}

func getCredentials(cmd *cobra.Command, args []string) error {
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
	return credentialexchange.SetCredentials(creds, cmd.OutOrStdout())
}
