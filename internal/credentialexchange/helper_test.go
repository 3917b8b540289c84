package credentialexchange_test

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/dnitsch/lambda-url-auth/internal/credentialexchange"
)

func TestReloadBeforeExpirySuccess(t *testing.T) {
	now := time.Now()
	expiry := now.Add(time.Second * 305)

	got := credentialexchange.ReloadBeforeExpiry(now, expiry, 300)

	if got {
		t.Errorf("Expected %v, got: %v", false, got)
	}
}

func TestReloadBeforeExpiryNeedToRefresh(t *testing.T) {
	now := time.Now()
	expiry := now.Add(time.Second * 299)

	got := credentialexchange.ReloadBeforeExpiry(now, expiry, 300)

	if !got {
		t.Errorf("Expected %v, got: %v", true, got)
	}
}

func TestReloadBeforeExpiryUsesGivenTime(t *testing.T) {
	expiry := time.Date(2030, 1, 1, 12, 0, 0, 0, time.UTC)

	if credentialexchange.ReloadBeforeExpiry(expiry.Add(-time.Hour), expiry, 300) {
		t.Error("an hour before expiry should not need a reload")
	}
	if !credentialexchange.ReloadBeforeExpiry(expiry.Add(time.Minute), expiry, 300) {
		t.Error("after expiry a reload is needed")
	}
}

func Test_HomeDirOverwritten(t *testing.T) {
	t.Setenv("HOME", "./.ignore-delete")
	got, err := credentialexchange.HomeDir()
	if err != nil {
		t.Fatalf("got %s, wanted <nil>", err)
	}
	if got != "./.ignore-delete" {
		t.Errorf("got %s, wanted ./.ignore-delete", got)
	}
}

func Test_SessionName_with(t *testing.T) {
	ttests := map[string]struct {
		username string
		expect   string
	}{
		"with username":    {"jane", "jane-lambda-url-auth"},
		"without username": {"", "lambda-url-auth"},
	}
	for name, tt := range ttests {
		t.Run(name, func(t *testing.T) {
			if got := credentialexchange.SessionName(tt.username, credentialexchange.SELF_NAME); got != tt.expect {
				t.Errorf("got %s, wanted %s", got, tt.expect)
			}
		})
	}
}

func Test_SetCredentials_writes_credential_process_json(t *testing.T) {
	b := new(bytes.Buffer)
	creds := &credentialexchange.AWSCredentials{
		AWSAccessKey:    "AKIA123",
		AWSSecretKey:    "secret",
		AWSSessionToken: "session",
		IdentityID:      "ap-southeast-2:abcd",
		Expires:         time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := credentialexchange.SetCredentials(creds, b); err != nil {
		t.Fatalf("got %s, wanted <nil>", err)
	}

	got := map[string]any{}
	if err := json.Unmarshal(b.Bytes(), &got); err != nil {
		t.Fatalf("output is not json: %s", err)
	}
	if got["Version"] != float64(1) {
		t.Errorf("got version %v, wanted 1", got["Version"])
	}
	if got["AccessKeyId"] != "AKIA123" || got["SecretAccessKey"] != "secret" || got["SessionToken"] != "session" {
		t.Errorf("unexpected credential fields: %v", got)
	}
	if _, found := got["IdentityID"]; found {
		t.Error("identity id must not be part of the credential_process output")
	}
	if creds.Version != 0 {
		t.Error("input credentials were mutated")
	}
}
