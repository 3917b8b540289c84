package cmd

import (
	"fmt"

	"github.com/dnitsch/lambda-url-auth/internal/flow"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	logoutNoBrowser bool
	logoutCmd       = &cobra.Command{
		Use:   "logout <flags>",
		Short: "End the hosted UI session and drop any pending sign in",
		RunE:  logout,
	}
)

func init() {
	addBrowserFlags(logoutCmd)
	logoutCmd.PersistentFlags().BoolVarP(&logoutNoBrowser, "no-browser", "", false, "Only print the logout URL")
	RootCmd.AddCommand(logoutCmd)
}

func logout(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd.Context(), flow.Target{})
	if err != nil {
		return err
	}
	logoutURL, err := a.flow.SignOut(a.conf.LogoutUri)
	if err != nil {
		return err
	}
	if logoutNoBrowser {
		fmt.Fprintln(cmd.OutOrStdout(), logoutURL)
		return nil
	}
	// the browser profile keeps the hosted UI cookie until the logout endpoint is visited
	if _, err := a.web.CaptureRedirect(cmd.Context(), logoutURL, a.conf.LogoutUri); err != nil {
		log.Warn().Err(err).Str("url", logoutURL).Msg("hosted UI logout did not complete, open the url to finish")
		return nil
	}
	log.Info().Msg("signed out")
	return nil
}
