// Package function is the handler behind the IAM protected function URL.
package function

import (
	"context"
	"net/http"

	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog/log"
)

const GREETING = "CORS works!"

// Handler answers every request with a fixed plain text greeting. Requests
// only reach it once the function URL has verified the SigV4 signature.
func Handler(ctx context.Context, req events.LambdaFunctionURLRequest) (events.LambdaFunctionURLResponse, error) {
	l := log.Info().
		Str("method", req.RequestContext.HTTP.Method).
		Str("path", req.RequestContext.HTTP.Path)
	if a := req.RequestContext.Authorizer; a != nil && a.IAM != nil {
		l = l.Str("caller", a.IAM.UserARN)
	}
	l.Msg("request received")

	return events.LambdaFunctionURLResponse{
		StatusCode: http.StatusOK,
		Headers:    map[string]string{"Content-Type": "text/plain"},
		Body:       GREETING,
	}, nil
}
