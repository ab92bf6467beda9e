package cliconfig

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/bft-labs/wsds/pkg/log"
)

// Logger returns a console logger on stderr at the given level. An unknown
// level falls back to info.
func Logger(level string) zerolog.Logger {
	return log.NewZerologAdapterWriter(os.Stderr, log.ParseLevel(level)).Logger()
}
