// Package middleware groups the fiber middleware mounted in front of the
// persistence routes.
//
//   - rayid tags every request with an X-Ray-ID (taken from the caller or
//     generated) so log entries of one request can be correlated.
//   - auth rejects requests whose X-API-Key header does not match the configured
//     key. An empty key disables the check.
package middleware
