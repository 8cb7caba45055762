package bitstream

import (
	"log/slog"
	"os"
)

// defaultLogger backs two advisory diagnostics: popping an empty
// callback stack, and a stream being abandoned with an open region.
// Neither fails an operation outright -- they are warnings only.
var defaultLogger = slog.New(slog.NewTextHandler(os.Stderr, nil))

// SetLogger overrides the package-level logger used for the advisory
// warnings above. Passing nil restores the default stderr logger.
func SetLogger(l *slog.Logger) {
	if l == nil {
		l = slog.New(slog.NewTextHandler(os.Stderr, nil))
	}
	defaultLogger = l
}

func logger() *slog.Logger {
	return defaultLogger
}
