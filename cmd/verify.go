package cmd

import (
	"fmt"
	"sort"

	"github.com/dnitsch/lambda-url-auth/internal/config"
	"github.com/dnitsch/lambda-url-auth/internal/verify"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	tokenUse  string
	verifyCmd = &cobra.Command{
		Use:   "verify <token>",
		Short: "Verify a user pool token against the pool key set and print its claims",
		Args:  cobra.ExactArgs(1),
		RunE:  verifyToken,
	}
)

func init() {
	verifyCmd.PersistentFlags().StringVarP(&tokenUse, "token-use", "", verify.TOKEN_USE_ACCESS, "Expected token_use [access|id]")
	RootCmd.AddCommand(verifyCmd)
}

func verifyToken(cmd *cobra.Command, args []string) error {
	conf, err := config.Load(viper.GetViper())
	if err != nil {
		return err
	}
	v, err := verify.New(verify.Config{
		Issuer:   conf.Authority,
		Audience: conf.ClientId,
		TokenUse: tokenUse,
		JwksURL:  conf.JwksUrl,
	})
	if err != nil {
		return err
	}
	claims, err := v.Verify(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	keys := make([]string, 0, len(claims))
	for k := range claims {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Claim", "Value"})
	for _, k := range keys {
		t.AppendRow(table.Row{k, fmt.Sprint(claims[k])})
	}
	t.Render()
	return nil
}
