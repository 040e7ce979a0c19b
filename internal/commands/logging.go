package commands

import (
	"strings"

	"github.com/goliatone/go-blocksync/internal/logging"
	"github.com/goliatone/go-blocksync/pkg/interfaces"
)

const commandModuleRoot = "blocksync.commands"

// CommandLogger returns a module-scoped logger for command handlers with the
// component fields every command log line carries.
func CommandLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	name := strings.TrimSpace(module)
	if name == "" {
		name = "core"
	}
	logger := logging.ModuleLogger(provider, commandModuleRoot+"."+name)
	return logging.WithFields(logger, map[string]any{
		"component":      "command",
		"command_module": name,
	})
}
