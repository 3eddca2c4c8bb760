package firebase

import (
	"os"
	"strings"
)

// Config holds Firebase project configuration for the identity provider.
type Config struct {
	// ProjectID is the Firebase project ID. Optional when the credentials
	// file already carries it.
	ProjectID string

	// CredentialsFile points at a service-account JSON file. When empty the
	// SDK falls back to GOOGLE_APPLICATION_CREDENTIALS and then to the
	// ambient application-default credentials.
	CredentialsFile string
}

// ConfigFromEnv builds a Config from the conventional environment variables.
func ConfigFromEnv() Config {
	return Config{
		ProjectID:       strings.TrimSpace(os.Getenv("FIREBASE_PROJECT_ID")),
		CredentialsFile: strings.TrimSpace(os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")),
	}
}
