// Package errors provides the error taxonomy shared by the request pipeline.
// Every failure surfaced to a caller is an *AppError carrying a
// machine-readable code, the HTTP status that produced it (if any), and
// the underlying cause.
package errors
