// Package handlers provides explicit registration of all command handlers.
// This replaces the previous init()-based implicit registration pattern,
// making the dependency graph explicit, testable, and free of import side effects.
package handlers

import (
	"github.com/Kargones/apk-restore/internal/command/handlers/help"
	"github.com/Kargones/apk-restore/internal/command/handlers/planhandler"
	"github.com/Kargones/apk-restore/internal/command/handlers/scripthandler"
	"github.com/Kargones/apk-restore/internal/command/handlers/version"
)

// RegisterAll explicitly registers all command handlers in the global registry.
// Call this once from main() before using any commands.
// Returns an error if any handler registration fails.
func RegisterAll() error {
	if err := planhandler.RegisterCmd(); err != nil {
		return err
	}
	if err := scripthandler.RegisterCmd(); err != nil {
		return err
	}
	if err := help.RegisterCmd(); err != nil {
		return err
	}
	if err := version.RegisterCmd(); err != nil {
		return err
	}
	return nil
}
