// Package version carries the client build version. The app-version
// middleware sends it on every request, and the server compares it against
// its minimum supported version to decide whether to demand an update.
package version
