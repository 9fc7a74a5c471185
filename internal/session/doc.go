// Package session holds the OAuth2 state of the single Google account the
// server acts for.
//
// A Session is created once at startup, restores a persisted token if one
// exists, and is then shared by all request handlers. Reads return
// consistent snapshots. Sign-in and sign-out are meant to be driven by one
// user at a time; two of them racing each other leave whichever finished
// last in place.
package session
