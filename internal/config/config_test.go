package config_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dnitsch/lambda-url-auth/internal/apperr"
	"github.com/dnitsch/lambda-url-auth/internal/config"
	"github.com/spf13/viper"
)

func fullEnv(t *testing.T) {
	t.Helper()
	t.Setenv("LAMBDA_URL_AUTH_USER_POOL_ID", "ap-southeast-2_abc123")
	t.Setenv("LAMBDA_URL_AUTH_IDENTITY_POOL_ID", "ap-southeast-2:1111-2222")
	t.Setenv("LAMBDA_URL_AUTH_CLIENT_ID", "client123")
	t.Setenv("LAMBDA_URL_AUTH_AUTHORITY", "https://cognito-idp.ap-southeast-2.amazonaws.com/ap-southeast-2_abc123")
	t.Setenv("LAMBDA_URL_AUTH_FUNCTION_URL", "https://abc.lambda-url.ap-southeast-2.on.aws/")
	t.Setenv("LAMBDA_URL_AUTH_DOMAIN", "https://some-prefix.auth.ap-southeast-2.amazoncognito.com/")
	t.Setenv("LAMBDA_URL_AUTH_REGION", "ap-southeast-2")
}

func Test_Load_with(t *testing.T) {
	ttests := map[string]struct {
		setup     func(t *testing.T)
		expectErr bool
		errTyp    error
		check     func(t *testing.T, c *config.Config)
	}{
		"all required values and defaults": {
			setup: fullEnv,
			check: func(t *testing.T, c *config.Config) {
				if c.RedirectUri != config.DEFAULT_REDIRECT_URI {
					t.Errorf("got %s, wanted %s", c.RedirectUri, config.DEFAULT_REDIRECT_URI)
				}
				if c.LogoutUri != c.RedirectUri {
					t.Errorf("logout uri should default to the redirect uri, got %s", c.LogoutUri)
				}
				if strings.Join(c.Scopes, ",") != "phone,openid,email" {
					t.Errorf("incorrect scopes: %v", c.Scopes)
				}
				if c.Domain != "https://some-prefix.auth.ap-southeast-2.amazoncognito.com" {
					t.Errorf("trailing slash not trimmed: %s", c.Domain)
				}
				if c.Timeout != 30*time.Second {
					t.Errorf("got %s, wanted 30s", c.Timeout)
				}
				if c.Service != "lambda" {
					t.Errorf("got %s, wanted lambda", c.Service)
				}
			},
		},
		"overrides from env": {
			setup: func(t *testing.T) {
				fullEnv(t)
				t.Setenv("LAMBDA_URL_AUTH_ROLE_ARN", "arn:aws:iam::111122223333:role/caller")
				t.Setenv("LAMBDA_URL_AUTH_TIMEOUT", "5s")
				t.Setenv("LAMBDA_URL_AUTH_RELOAD_BEFORE", "120")
			},
			check: func(t *testing.T, c *config.Config) {
				if c.RoleArn != "arn:aws:iam::111122223333:role/caller" {
					t.Errorf("role not read: %s", c.RoleArn)
				}
				if c.Timeout != 5*time.Second {
					t.Errorf("got %s, wanted 5s", c.Timeout)
				}
				if c.ReloadBefore != 120 {
					t.Errorf("got %d, wanted 120", c.ReloadBefore)
				}
			},
		},
		"missing values": {
			setup: func(t *testing.T) {
				t.Setenv("LAMBDA_URL_AUTH_CLIENT_ID", "client123")
			},
			expectErr: true,
			errTyp:    config.ErrMissingValue,
		},
		"authority for another user pool": {
			setup: func(t *testing.T) {
				fullEnv(t)
				t.Setenv("LAMBDA_URL_AUTH_AUTHORITY", "https://cognito-idp.ap-southeast-2.amazonaws.com/ap-southeast-2_other")
			},
			expectErr: true,
			errTyp:    config.ErrInvalidValue,
		},
		"authority in another region": {
			setup: func(t *testing.T) {
				fullEnv(t)
				t.Setenv("LAMBDA_URL_AUTH_REGION", "eu-west-1")
			},
			expectErr: true,
			errTyp:    config.ErrInvalidValue,
		},
		"trailing slash on the authority": {
			setup: func(t *testing.T) {
				fullEnv(t)
				t.Setenv("LAMBDA_URL_AUTH_AUTHORITY", "https://cognito-idp.ap-southeast-2.amazonaws.com/ap-southeast-2_abc123/")
			},
			check: func(t *testing.T, c *config.Config) {
				if c.ProviderName() != "cognito-idp.ap-southeast-2.amazonaws.com/ap-southeast-2_abc123" {
					t.Errorf("incorrect provider name: %s", c.ProviderName())
				}
			},
		},
		"authority not a url": {
			setup: func(t *testing.T) {
				fullEnv(t)
				t.Setenv("LAMBDA_URL_AUTH_AUTHORITY", "cognito-idp")
			},
			expectErr: true,
			errTyp:    config.ErrInvalidValue,
		},
	}
	for name, tt := range ttests {
		t.Run(name, func(t *testing.T) {
			tt.setup(t)
			v := viper.New()
			config.SetDefaults(v)
			got, err := config.Load(v)
			if tt.expectErr {
				if err == nil {
					t.Fatalf("got <nil>, wanted %s", tt.errTyp)
				}
				if !errors.Is(err, tt.errTyp) {
					t.Errorf("got %s, wanted %s", err, tt.errTyp)
				}
				if !errors.Is(err, apperr.ErrConfiguration) {
					t.Errorf("error not classified as configuration: %s", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("got %s, wanted <nil>", err)
			}
			tt.check(t, got)
		})
	}
}

func Test_Load_reports_every_missing_value(t *testing.T) {
	v := viper.New()
	config.SetDefaults(v)
	_, err := config.Load(v)
	if err == nil {
		t.Fatal("got <nil>, wanted an error")
	}
	for _, want := range []string{"LAMBDA_URL_AUTH_USER_POOL_ID", "LAMBDA_URL_AUTH_REGION", "LAMBDA_URL_AUTH_DOMAIN"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("%s not reported in: %s", want, err)
		}
	}
}

func Test_ProviderName(t *testing.T) {
	c := &config.Config{Region: "ap-southeast-2", UserPoolId: "ap-southeast-2_abc123"}
	want := "cognito-idp.ap-southeast-2.amazonaws.com/ap-southeast-2_abc123"
	if got := c.ProviderName(); got != want {
		t.Errorf("got %s, wanted %s", got, want)
	}
}
