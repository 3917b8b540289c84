package credentialexchange

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrUnableAssume         = errors.New("unable to assume")
	ErrNoIdentityToken      = errors.New("no identity token, sign in first")
	ErrIdentityTokenExpired = errors.New("identity token expired")
	ErrUnknownPool          = errors.New("identity pool not found")
	ErrNotAuthorized        = errors.New("identity token rejected by the identity pool")
	ErrServiceUnavailable   = errors.New("identity service unavailable")
	ErrMissingIdentityPool  = errors.New("identity pool id is empty")
)

type CognitoIdentityApi interface {
	GetId(ctx context.Context, params *cognitoidentity.GetIdInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetIdOutput, error)
	GetCredentialsForIdentity(ctx context.Context, params *cognitoidentity.GetCredentialsForIdentityInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetCredentialsForIdentityOutput, error)
	GetOpenIdToken(ctx context.Context, params *cognitoidentity.GetOpenIdTokenInput, optFns ...func(*cognitoidentity.Options)) (*cognitoidentity.GetOpenIdTokenOutput, error)
}

type AuthWebTokenApi interface {
	AssumeRoleWithWebIdentity(ctx context.Context, params *sts.AssumeRoleWithWebIdentityInput, optFns ...func(*sts.Options)) (*sts.AssumeRoleWithWebIdentityOutput, error)
}

type AuthCallerIdentityApi interface {
	GetCallerIdentity(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func logins(conf IdentityPoolConfig, idToken string) map[string]string {
	return map[string]string{conf.ProviderName: idToken}
}

// LoginIdentityPool exchanges the identity token for credentials
// using the enhanced (simplified) authflow
func LoginIdentityPool(ctx context.Context, idToken string, conf IdentityPoolConfig, svc CognitoIdentityApi) (*AWSCredentials, error) {
	if conf.IdentityPoolId == "" {
		return nil, ErrMissingIdentityPool
	}

	id, err := svc.GetId(ctx, &cognitoidentity.GetIdInput{
		IdentityPoolId: aws.String(conf.IdentityPoolId),
		Logins:         logins(conf, idToken),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get identity id: %s, %w", err, classifyServiceErr(err))
	}

	resp, err := svc.GetCredentialsForIdentity(ctx, &cognitoidentity.GetCredentialsForIdentityInput{
		IdentityId: id.IdentityId,
		Logins:     logins(conf, idToken),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve credentials for identity: %s, %w", err, classifyServiceErr(err))
	}
	if resp.Credentials == nil {
		return nil, fmt.Errorf("identity pool returned no credentials, %w", ErrUnableAssume)
	}

	return &AWSCredentials{
		AWSAccessKey:    aws.ToString(resp.Credentials.AccessKeyId),
		AWSSecretKey:    aws.ToString(resp.Credentials.SecretKey),
		AWSSessionToken: aws.ToString(resp.Credentials.SessionToken),
		IdentityID:      aws.ToString(resp.IdentityId),
		Expires:         aws.ToTime(resp.Credentials.Expiration).Local(),
	}, nil
}

// LoginIdentityPoolBasic exchanges the identity token for an identity pool
// OpenID token and then assumes conf.RoleArn with it
func LoginIdentityPoolBasic(ctx context.Context, idToken string, conf IdentityPoolConfig, svc CognitoIdentityApi, stsSvc AuthWebTokenApi) (*AWSCredentials, error) {
	if conf.IdentityPoolId == "" {
		return nil, ErrMissingIdentityPool
	}

	id, err := svc.GetId(ctx, &cognitoidentity.GetIdInput{
		IdentityPoolId: aws.String(conf.IdentityPoolId),
		Logins:         logins(conf, idToken),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get identity id: %s, %w", err, classifyServiceErr(err))
	}

	oidcToken, err := svc.GetOpenIdToken(ctx, &cognitoidentity.GetOpenIdTokenInput{
		IdentityId: id.IdentityId,
		Logins:     logins(conf, idToken),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get open id token: %s, %w", err, classifyServiceErr(err))
	}

	duration := conf.Duration
	if duration == 0 {
		duration = DEFAULT_DURATION
	}

	sessionName := SessionName(conf.Username, SELF_NAME)
	resp, err := stsSvc.AssumeRoleWithWebIdentity(ctx, &sts.AssumeRoleWithWebIdentityInput{
		RoleArn:          aws.String(conf.RoleArn),
		RoleSessionName:  aws.String(sessionName),
		WebIdentityToken: oidcToken.Token,
		DurationSeconds:  aws.Int32(int32(duration)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve STS credentials using identity pool token: %s, %w", err, ErrUnableAssume)
	}

	return &AWSCredentials{
		AWSAccessKey:    aws.ToString(resp.Credentials.AccessKeyId),
		AWSSecretKey:    aws.ToString(resp.Credentials.SecretAccessKey),
		AWSSessionToken: aws.ToString(resp.Credentials.SessionToken),
		PrincipalARN:    aws.ToString(resp.AssumedRoleUser.Arn),
		IdentityID:      aws.ToString(oidcToken.IdentityId),
		Expires:         aws.ToTime(resp.Credentials.Expiration).Local(),
	}, nil
}

// classifyServiceErr maps identity pool API errors onto the package sentinels
func classifyServiceErr(err error) error {
	var oe smithy.APIError
	if !errors.As(err, &oe) {
		return ErrServiceUnavailable
	}
	switch oe.ErrorCode() {
	case "ResourceNotFoundException":
		return ErrUnknownPool
	case "NotAuthorizedException", "InvalidParameterException", "InvalidIdentityPoolConfigurationException":
		return ErrNotAuthorized
	case "TooManyRequestsException", "InternalErrorException", "LimitExceededException":
		return ErrServiceUnavailable
	}
	return ErrUnableAssume
}

// checkIdentityToken rejects empty tokens and tokens that decode as a JWT
// whose exp is already in the past. Anything that does not decode is left
// for the identity pool to judge.
func checkIdentityToken(idToken string, now time.Time) error {
	if idToken == "" {
		return ErrNoIdentityToken
	}
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(idToken, claims); err != nil {
		return nil
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil
	}
	if !exp.After(now) {
		return fmt.Errorf("expired at %s, %w", exp.Time.Format(time.RFC3339), ErrIdentityTokenExpired)
	}
	return nil
}

// IsValid checks current credentials and
// returns them if they are still valid
// if reloadTimeBefore is less than time left on the creds
// then it will re-request a login
func IsValid(ctx context.Context, currentCreds *AWSCredentials, reloadBeforeTime int, svc AuthCallerIdentityApi) (bool, error) {
	if currentCreds == nil {
		return false, nil
	}

	if _, err := WhoAmI(ctx, currentCreds, svc); err != nil {
		var oe smithy.APIError
		if errors.As(err, &oe) {
			if oe.ErrorCode() == "ExpiredToken" {
				return false, nil
			}
		}
		return false, err
	}

	return !ReloadBeforeExpiry(time.Now(), currentCreds.Expires, reloadBeforeTime), nil
}

// WhoAmI returns the caller identity ARN the credentials resolve to
func WhoAmI(ctx context.Context, creds *AWSCredentials, svc AuthCallerIdentityApi) (string, error) {
	out, err := svc.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{}, func(o *sts.Options) {
		o.Credentials = credentials.NewStaticCredentialsProvider(creds.AWSAccessKey, creds.AWSSecretKey, creds.AWSSessionToken)
	})
	if err != nil {
		return "", fmt.Errorf("the incorrect credentials have been provided: %w", err)
	}
	return aws.ToString(out.Arn), nil
}
