package cmd

import (
	"fmt"
	"net/http"

	"github.com/dnitsch/lambda-url-auth/internal/flow"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	callMethod  string
	callUrl     string
	callHeaders []string
	callData    string
	noBrowser   bool
	callCmd     = &cobra.Command{
		Use:   "call <flags>",
		Short: "Sign in and call the function URL, the response body is written to stdout",
		Long: `Sign in through the hosted UI in a browser, exchange the identity token for temporary
credentials and call the function URL with a SigV4 signed request.

With --no-browser the hosted UI URL is printed instead, open it anywhere and pass the URL
you are redirected to, to the resume command.`,
		RunE: call,
	}
)

func addTargetFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().StringVarP(&callMethod, "method", "X", http.MethodGet, "HTTP method")
	cmd.PersistentFlags().StringVarP(&callUrl, "url", "u", "", "Override the configured function URL")
	cmd.PersistentFlags().StringArrayVarP(&callHeaders, "header", "H", nil, "Extra request header 'Key: Value', can be repeated")
	cmd.PersistentFlags().StringVarP(&callData, "data", "d", "", "Request body")
}

func addBrowserFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().BoolVarP(&headless, "headless", "", false, "Run the browser without a window")
	cmd.PersistentFlags().IntVarP(&browserTimeout, "browser-timeout", "", 120, "Seconds to wait for the sign in to complete")
}

func init() {
	addTargetFlags(callCmd)
	addBrowserFlags(callCmd)
	callCmd.PersistentFlags().BoolVarP(&noBrowser, "no-browser", "", false, "Print the sign in URL and exit, complete with the resume command")
	RootCmd.AddCommand(callCmd)
}

func target() (flow.Target, error) {
	h, err := parseHeaders(callHeaders)
	if err != nil {
		return flow.Target{}, err
	}
	t := flow.Target{Method: callMethod, URL: callUrl, Header: h}
	if callData != "" {
		t.Body = []byte(callData)
	}
	return t, nil
}

func call(cmd *cobra.Command, args []string) error {
	t, err := target()
	if err != nil {
		return err
	}
	a, err := newApp(cmd.Context(), t)
	if err != nil {
		return err
	}

	if noBrowser {
		authURL, err := a.flow.Begin(cmd.Context())
		if err != nil {
			return err
		}
		log.Info().Msgf("open the URL below, then run: %s resume '<redirected url>'", RootCmd.Name())
		fmt.Fprintln(cmd.OutOrStdout(), authURL)
		return nil
	}

	if err := a.flow.SignIn(cmd.Context()); err != nil {
		return err
	}
	return invokeAndPrint(cmd, a)
}

func invokeAndPrint(cmd *cobra.Command, a *app) error {
	defer a.flow.Wait()
	resp, err := a.flow.Call(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), resp.Body)
	return nil
}
