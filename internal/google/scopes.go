package google

import drive "google.golang.org/api/drive/v3"

// DefaultOAuthScopes are the scopes requested during authorization.
// Ownership transfer needs full Drive access; the readonly scopes cannot
// create or update permissions.
var DefaultOAuthScopes = []string{
	drive.DriveScope,
}

// promptSelectAccountConsent forces the account chooser and the consent
// screen on every authorization so that a refresh token is always issued.
const promptSelectAccountConsent = "select_account consent"

// authState is sent as the OAuth state parameter. The redirect is handled by
// a loopback server for a single local user, so the value is not verified.
const authState = "drivetransfer"
