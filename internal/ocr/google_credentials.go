package ocr

import (
	"context"
	"os"

	"google.golang.org/api/option"
)

// googleClientOptions resolves credentials in the order GOOGLE_CREDENTIALS,
// GOOGLE_APPLICATION_CREDENTIALS, then Application Default Credentials.
// The returned source names which one was used for error details.
func googleClientOptions(extra ...option.ClientOption) ([]option.ClientOption, string) {
	opts := append([]option.ClientOption{}, extra...)
	if credJSON := os.Getenv("GOOGLE_CREDENTIALS"); credJSON != "" {
		return append(opts, option.WithCredentialsJSON([]byte(credJSON))), "GOOGLE_CREDENTIALS"
	}
	if credFile := os.Getenv("GOOGLE_APPLICATION_CREDENTIALS"); credFile != "" {
		return append(opts, option.WithCredentialsFile(credFile)), "GOOGLE_APPLICATION_CREDENTIALS"
	}
	return opts, ""
}

// clientContext detaches ctx from cancellation. Google clients keep the
// construction context for token refresh, and they outlive any startup deadline.
func clientContext(ctx context.Context) context.Context {
	return context.WithoutCancel(ctx)
}
