package credentialexchange

import (
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
)

// AWSCredentials is the temporary credential triple plus its expiry.
// The json tags follow the credential_process output format.
type AWSCredentials struct {
	Version         int
	AWSAccessKey    string    `json:"AccessKeyId"`
	AWSSecretKey    string    `json:"SecretAccessKey"`
	AWSSessionToken string    `json:"SessionToken"`
	PrincipalARN    string    `json:"-"`
	IdentityID      string    `json:"-"`
	Expires         time.Time `json:"Expiration"`
}

// Aws converts to the SDK representation used by the signer.
func (a *AWSCredentials) Aws() aws.Credentials {
	return aws.Credentials{
		AccessKeyID:     a.AWSAccessKey,
		SecretAccessKey: a.AWSSecretKey,
		SessionToken:    a.AWSSessionToken,
		Source:          SELF_NAME,
		CanExpire:       !a.Expires.IsZero(),
		Expires:         a.Expires,
	}
}
