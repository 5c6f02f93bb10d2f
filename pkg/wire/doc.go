// Package wire defines the secline wire protocol: LF-delimited UTF-8 text,
// one command per line, one response (possibly multi-line, sent as a single
// write) per command.
package wire
