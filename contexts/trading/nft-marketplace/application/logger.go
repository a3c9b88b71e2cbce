package application

import "log/slog"

const moduleName = "trading/nft-marketplace"

func ResolveLogger(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return slog.Default()
}
