// Package logx is the structured logger used across gpiojitter.
//
// It is a thin wrapper over zerolog:
//   - Console output goes to stderr so reports on stdout stay clean
//   - Optional JSON file output for unattended runs
//   - Field helpers in the spirit of slog.Attr
package logx
