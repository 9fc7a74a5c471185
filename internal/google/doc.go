// Package google loads the OAuth2 client credentials for Google APIs and
// persists the account token between runs.
//
// Credentials come from a client-secret JSON file as downloaded from the
// Google Cloud console ("installed" or "web" application type). The token is
// stored as JSON next to the application and is rewritten whenever the
// access token is refreshed.
package google
