package config

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/dnitsch/lambda-url-auth/internal/apperr"
	"github.com/spf13/viper"
)

const (
	SELF_NAME  = "lambda-url-auth"
	ENV_PREFIX = "LAMBDA_URL_AUTH"

	DEFAULT_REDIRECT_URI  = "http://localhost:5173/"
	DEFAULT_SCOPES        = "phone openid email"
	DEFAULT_SERVICE       = "lambda"
	DEFAULT_RELOAD_BEFORE = 60
	DEFAULT_TIMEOUT       = 30 * time.Second
)

// Keys as seen by viper. With the env prefix and the "." → "_" replacer
// `user_pool_id` resolves from LAMBDA_URL_AUTH_USER_POOL_ID.
const (
	KeyUserPoolId     = "user_pool_id"
	KeyIdentityPoolId = "identity_pool_id"
	KeyClientId       = "client_id"
	KeyAuthority      = "authority"
	KeyFunctionUrl    = "function_url"
	KeyDomain         = "domain"
	KeyRegion         = "region"
	KeyRedirectUri    = "redirect_uri"
	KeyLogoutUri      = "logout_uri"
	KeyScopes         = "scopes"
	KeyRoleArn        = "role_arn"
	KeyService        = "service"
	KeyReloadBefore   = "reload_before"
	KeyTimeout        = "timeout"
	KeyJwksUrl        = "jwks_url"
)

var requiredKeys = []string{
	KeyUserPoolId,
	KeyIdentityPoolId,
	KeyClientId,
	KeyAuthority,
	KeyFunctionUrl,
	KeyDomain,
	KeyRegion,
}

// Config holds every external identifier the flow needs.
// It is resolved once at process start.
type Config struct {
	UserPoolId     string
	IdentityPoolId string
	ClientId       string
	Authority      string
	FunctionUrl    string
	Domain         string
	Region         string
	RedirectUri    string
	LogoutUri      string
	Scopes         []string
	// RoleArn switches the exchange to the basic (GetOpenIdToken + STS) flow.
	RoleArn      string
	Service      string
	ReloadBefore int
	Timeout      time.Duration
	JwksUrl      string
}

// SetDefaults registers defaults and env binding on v.
func SetDefaults(v *viper.Viper) {
	v.SetEnvPrefix(ENV_PREFIX)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	v.SetDefault(KeyRedirectUri, DEFAULT_REDIRECT_URI)
	v.SetDefault(KeyScopes, DEFAULT_SCOPES)
	v.SetDefault(KeyService, DEFAULT_SERVICE)
	v.SetDefault(KeyReloadBefore, DEFAULT_RELOAD_BEFORE)
	v.SetDefault(KeyTimeout, DEFAULT_TIMEOUT)

	// AutomaticEnv only resolves keys viper already knows about
	for _, k := range append(requiredKeys, KeyLogoutUri, KeyRoleArn, KeyJwksUrl) {
		_ = v.BindEnv(k)
	}
}

// Load resolves the configuration from v. All missing required values are
// reported together as a single configuration error.
func Load(v *viper.Viper) (*Config, error) {
	missing := []string{}
	for _, k := range requiredKeys {
		if strings.TrimSpace(v.GetString(k)) == "" {
			missing = append(missing, EnvName(k))
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, apperr.New(apperr.KindConfiguration, "load",
			fmt.Errorf("missing required values: %s, %w", strings.Join(missing, ", "), ErrMissingValue))
	}

	conf := &Config{
		UserPoolId:     v.GetString(KeyUserPoolId),
		IdentityPoolId: v.GetString(KeyIdentityPoolId),
		ClientId:       v.GetString(KeyClientId),
		Authority:      strings.TrimSuffix(v.GetString(KeyAuthority), "/"),
		FunctionUrl:    v.GetString(KeyFunctionUrl),
		Domain:         strings.TrimSuffix(v.GetString(KeyDomain), "/"),
		Region:         v.GetString(KeyRegion),
		RedirectUri:    v.GetString(KeyRedirectUri),
		LogoutUri:      v.GetString(KeyLogoutUri),
		Scopes:         strings.Fields(v.GetString(KeyScopes)),
		RoleArn:        v.GetString(KeyRoleArn),
		Service:        v.GetString(KeyService),
		ReloadBefore:   v.GetInt(KeyReloadBefore),
		Timeout:        v.GetDuration(KeyTimeout),
		JwksUrl:        v.GetString(KeyJwksUrl),
	}
	if conf.LogoutUri == "" {
		conf.LogoutUri = conf.RedirectUri
	}

	for _, u := range []struct{ key, val string }{
		{KeyAuthority, conf.Authority},
		{KeyFunctionUrl, conf.FunctionUrl},
		{KeyDomain, conf.Domain},
		{KeyRedirectUri, conf.RedirectUri},
	} {
		if err := absoluteURL(u.val); err != nil {
			return nil, apperr.New(apperr.KindConfiguration, "load",
				fmt.Errorf("%s: %s, %w", EnvName(u.key), err, ErrInvalidValue))
		}
	}

	// tokens are issued by the authority, the identity pool knows the provider by pool and region
	if want := "https://" + conf.ProviderName(); conf.Authority != want {
		return nil, apperr.New(apperr.KindConfiguration, "load",
			fmt.Errorf("%s: %q does not match %s and %s, expected %q, %w",
				EnvName(KeyAuthority), conf.Authority, EnvName(KeyUserPoolId), EnvName(KeyRegion), want, ErrInvalidValue))
	}
	return conf, nil
}

// ProviderName is the login provider key the identity pool expects,
// cognito-idp.<region>.amazonaws.com/<userPoolId>.
func (c *Config) ProviderName() string {
	return fmt.Sprintf("cognito-idp.%s.amazonaws.com/%s", c.Region, c.UserPoolId)
}

// EnvName returns the environment variable that backs key.
func EnvName(key string) string {
	return ENV_PREFIX + "_" + strings.ToUpper(key)
}

func absoluteURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute url", raw)
	}
	return nil
}
