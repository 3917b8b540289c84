package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/dnitsch/lambda-url-auth/internal/apperr"
	"github.com/dnitsch/lambda-url-auth/internal/config"
	"github.com/dnitsch/lambda-url-auth/internal/logging"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgFile   string
	verbose   bool
	logFormat string
	noColor   bool
	RootCmd   = &cobra.Command{
		Use:   config.SELF_NAME,
		Short: "Sign in to a Cognito user pool and call an IAM protected function URL",
		Long: `Signs in through the Cognito hosted UI (authorization code with PKCE),
exchanges the identity token for temporary AWS credentials via an identity pool,
and calls a Lambda function URL with a SigV4 signed request.

Configuration is read from LAMBDA_URL_AUTH_* environment variables or $HOME/.lambda-url-auth.yaml.
Logs go to stderr, responses and credentials to stdout.`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(logging.Options{Verbose: verbose, Format: logFormat, NoColor: noColor})
		},
	}
)

// Execute runs the root command. Fatal errors exit 1, errors that can be
// retried by running the command again exit 2.
func Execute() {
	if err := RootCmd.Execute(); err != nil {
		exit(err)
	}
}

func exit(err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Status != 0 && ae.Body != "" {
		log.Error().Err(err).Str("body", ae.Body).Msg("request failed")
	} else {
		log.Error().Err(err).Msg("failed")
	}
	if apperr.IsFatal(err) {
		os.Exit(1)
	}
	os.Exit(2)
}

func init() {
	logging.InitDefault()
	cobra.OnInitialize(initConfig)
	RootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", fmt.Sprintf("config file (default is $HOME/.%s.yaml)", config.SELF_NAME))
	RootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Verbose output")
	RootCmd.PersistentFlags().StringVarP(&logFormat, "log-format", "", logging.FormatConsole, "Log format [console|json]")
	RootCmd.PersistentFlags().BoolVarP(&noColor, "no-color", "", false, "Disable colored log output")
	RootCmd.PersistentFlags().DurationP("timeout", "t", config.DEFAULT_TIMEOUT, "Timeout for calls to the function URL")
	_ = viper.BindPFlag(config.KeyTimeout, RootCmd.PersistentFlags().Lookup("timeout"))
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.SetConfigType("yaml")
		viper.SetConfigName(fmt.Sprintf(".%s", config.SELF_NAME))
	}

	config.SetDefaults(viper.GetViper())

	if err := viper.ReadInConfig(); err == nil {
		log.Debug().Str("file", viper.ConfigFileUsed()).Msg("using config file")
	}
}
