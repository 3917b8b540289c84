package credentialexchange

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"
)

// HomeDir returns the current user's home directory.
func HomeDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("unable to get the user home dir: %w", err)
	}
	return home, nil
}

func SessionName(username, selfName string) string {
	if username == "" {
		return selfName
	}
	return fmt.Sprintf("%s-%s", username, selfName)
}

// SetCredentials writes creds to w in the credential_process format.
// Credentials are never written to disk.
func SetCredentials(creds *AWSCredentials, w io.Writer) error {
	out := *creds
	out.Version = 1

	jsonBytes, err := json.Marshal(out)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, string(jsonBytes))
	return err
}

// ReloadBeforeExpiry returns true if the time
// to expiry as seen at now is less than the specified time in seconds
// false if there is more than required time in seconds
// before needing to recycle credentials
func ReloadBeforeExpiry(now, expiry time.Time, reloadBeforeSeconds int) bool {
	diff := expiry.Sub(now)
	return diff.Seconds() < float64(reloadBeforeSeconds)
}
