package credentialexchange

const (
	SELF_NAME = "lambda-url-auth"
	// how long the identity pool credentials should be valid for
	// in the basic flow, the enhanced flow is fixed at one hour by the service
	DEFAULT_DURATION = 3600
)

// IdentityPoolConfig describes the identity pool the identity token is
// exchanged against.
type IdentityPoolConfig struct {
	IdentityPoolId string
	// ProviderName is the login provider key, e.g.
	// cognito-idp.<region>.amazonaws.com/<userPoolId>
	ProviderName string
	// RoleArn, when set, switches to the basic flow:
	// GetOpenIdToken followed by sts:AssumeRoleWithWebIdentity
	RoleArn          string
	Username         string
	Duration         int
	ReloadBeforeTime int
}
