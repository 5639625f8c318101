// Package logx is cronus's structured logger, a thin layer over zerolog.
//
// Components take a Logger by value and derive their own with With. The
// daemon builds one Service from its config: human-readable lines on stderr
// (colored only on a terminal) and, optionally, JSON lines in a file.
package logx
