package services

import (
	"log/slog"
	"strings"
)

func orDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.New(slog.DiscardHandler)
	}
	return l
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
