// Package server exposes the application over HTTP.
//
// App routes the JSON API used by the front-end, the OAuth redirect page and
// the static files of the public directory:
//
//	GET  /api/auth-status     {authenticated, email}
//	GET  /api/auth-url        {url}
//	POST /api/oauth-callback  {code} -> {success, message, userEmail}
//	POST /api/reset-auth      {success, message}
//	GET  /api/my-files        ?search= -> {success, files}
//	POST /api/transfer        {fileId, receiverEmail} -> {success, message, details}
//	GET  /oauth               HTML confirmation page for Google's redirect
//
// Every request gets an X-Request-ID, a server span, an HTTP metric sample
// and a log line. HealthChecker adds liveness and readiness probes, and
// MetricsServer serves Prometheus metrics on a separate address.
package server
