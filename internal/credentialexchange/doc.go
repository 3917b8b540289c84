// credentialexchange
//
// Handles exchanging a user pool identity token for temporary AWS credentials
// via a Cognito identity pool.
//
// Supports the enhanced flow (GetId + GetCredentialsForIdentity) and,
// when a role is specified, the basic flow where the identity pool issues an
// OpenID token that is then exchanged with STS.
package credentialexchange
