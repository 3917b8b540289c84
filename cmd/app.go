package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os/user"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/cognitoidentity"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/dnitsch/lambda-url-auth/internal/apperr"
	"github.com/dnitsch/lambda-url-auth/internal/auth"
	"github.com/dnitsch/lambda-url-auth/internal/config"
	"github.com/dnitsch/lambda-url-auth/internal/credentialexchange"
	"github.com/dnitsch/lambda-url-auth/internal/flow"
	"github.com/dnitsch/lambda-url-auth/internal/invoke"
	"github.com/dnitsch/lambda-url-auth/internal/secret"
	"github.com/dnitsch/lambda-url-auth/internal/signer"
	"github.com/dnitsch/lambda-url-auth/internal/verify"
	"github.com/dnitsch/lambda-url-auth/internal/web"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

var (
	headless       bool
	browserTimeout int
)

// app holds the wired components for one command run.
type app struct {
	conf  *config.Config
	flow  *flow.Flow
	web   *web.Web
	store *secret.SecretStore
	sts   *sts.Client
}

func dataDir() (string, error) {
	home, err := credentialexchange.HomeDir()
	if err != nil {
		return "", err
	}
	return path.Join(home, fmt.Sprintf(".%s-data", config.SELF_NAME)), nil
}

func webUi() (*web.Web, error) {
	dir, err := dataDir()
	if err != nil {
		return nil, apperr.New(apperr.KindConfiguration, "browser", err)
	}
	conf := web.NewWebConf(dir).WithTimeout(browserTimeout)
	if headless {
		conf = conf.WithHeadless()
	}
	return web.New(conf), nil
}

func newSecretStore() (*secret.SecretStore, string, error) {
	u, err := user.Current()
	if err != nil {
		return nil, "", err
	}
	home, err := credentialexchange.HomeDir()
	if err != nil {
		return nil, "", err
	}
	store, err := secret.NewSecretStore(config.SELF_NAME, home, u.Username)
	if err != nil {
		return nil, "", err
	}
	return store, u.Username, nil
}

func newApp(ctx context.Context, target flow.Target) (*app, error) {
	conf, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err
	}

	store, username, err := newSecretStore()
	if err != nil {
		return nil, apperr.New(apperr.KindConfiguration, "secret store", err)
	}

	webUi, err := webUi()
	if err != nil {
		return nil, err
	}
	acquirer := auth.New(auth.Config{
		ClientID:    conf.ClientId,
		Domain:      conf.Domain,
		RedirectURI: conf.RedirectUri,
		LogoutURI:   conf.LogoutUri,
		Scopes:      conf.Scopes,
	}, store, webUi).WithLogger(log.Logger)

	verifier, err := verify.New(verify.Config{
		Issuer:   conf.Authority,
		Audience: conf.ClientId,
		TokenUse: verify.TOKEN_USE_ACCESS,
		JwksURL:  conf.JwksUrl,
	})
	if err != nil {
		return nil, err
	}

	// identity pool calls are unauthenticated, the identity token is the credential
	cfg, err := awsconfig.LoadDefaultConfig(ctx,
		awsconfig.WithRegion(conf.Region),
		awsconfig.WithCredentialsProvider(aws.AnonymousCredentials{}),
	)
	if err != nil {
		return nil, apperr.New(apperr.KindConfiguration, "aws config", err)
	}
	stsClient := sts.NewFromConfig(cfg)

	exchanger := credentialexchange.NewExchanger(credentialexchange.IdentityPoolConfig{
		IdentityPoolId:   conf.IdentityPoolId,
		ProviderName:     conf.ProviderName(),
		RoleArn:          conf.RoleArn,
		Username:         username,
		ReloadBeforeTime: conf.ReloadBefore,
	}, cognitoidentity.NewFromConfig(cfg), stsClient).WithLogger(log.Logger)

	if target.URL == "" {
		target.URL = conf.FunctionUrl
	}
	target.Region = conf.Region
	target.Service = conf.Service

	f := flow.New(flow.Deps{
		Acquirer:  acquirer,
		Verifier:  verifier,
		Exchanger: exchanger,
		Signer:    signer.New(),
		Invoker:   invoke.New(&http.Client{Timeout: conf.Timeout}).WithLogger(log.Logger),
	}, target).WithLogger(log.Logger)

	return &app{
		conf:  conf,
		flow:  f,
		web:   webUi,
		store: store,
		sts:   stsClient,
	}, nil
}

// parseHeaders turns repeated "Key: Value" flags into a header.
func parseHeaders(raw []string) (http.Header, error) {
	h := http.Header{}
	for _, r := range raw {
		k, v, found := strings.Cut(r, ":")
		if !found || strings.TrimSpace(k) == "" {
			return nil, apperr.New(apperr.KindConfiguration, "header", fmt.Errorf("%q is not in the form 'Key: Value'", r))
		}
		h.Add(strings.TrimSpace(k), strings.TrimSpace(v))
	}
	return h, nil
}
