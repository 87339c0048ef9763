package commands

import (
	"bufio"
	"os"
	"strconv"
	"strings"

	"github.com/feelus/cns-server/internal/logger"
	"github.com/feelus/cns-server/pkg/server"
)

// runConsole reads operator commands from stdin until EOF or a shutdown
// command arrives.
//
// Recognized commands:
//
//	exit | shutdown | halt | close   graceful shutdown
//	force_roll <n>                   pin the die to n (1-6), other values disable
//	set_log <n>                      change the log level (0-5)
//	set_verbose <n>                  alias for set_log
func runConsole(srv *server.Server, cancel func()) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}

		switch fields[0] {
		case "exit", "shutdown", "halt", "close":
			logger.Info("console shutdown requested")
			cancel()
			return

		case "force_roll":
			if len(fields) < 2 {
				logger.Warn("usage: force_roll <n>")
				continue
			}
			n, err := strconv.Atoi(fields[1])
			if err != nil {
				logger.Warn("force_roll: not a number", "arg", fields[1])
				continue
			}
			srv.Games().SetForceRoll(n)
			if n >= 1 && n <= 6 {
				logger.Info("die pinned", "value", n)
			} else {
				logger.Info("die unpinned")
			}

		case "set_log", "set_verbose":
			if len(fields) < 2 {
				logger.Warn("usage: " + fields[0] + " <n>")
				continue
			}
			level, ok := logger.ParseLevel(fields[1])
			if !ok {
				logger.Warn("unknown log level", "arg", fields[1])
				continue
			}
			logger.SetLevel(level.String())
			logger.Info("log level changed", "level", level.String())

		default:
			logger.Warn("unknown console command", "command", fields[0])
		}
	}
}
