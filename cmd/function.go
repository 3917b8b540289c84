package cmd

import (
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/dnitsch/lambda-url-auth/internal/function"
	"github.com/spf13/cobra"
)

var functionCmd = &cobra.Command{
	Use:    "function",
	Short:  "Run as the Lambda function behind the function URL",
	Long:   `Starts the Lambda runtime loop, only useful inside the Lambda execution environment.`,
	Hidden: true,
	Run: func(cmd *cobra.Command, args []string) {
		lambda.Start(function.Handler)
	},
}

func init() {
	RootCmd.AddCommand(functionCmd)
}
