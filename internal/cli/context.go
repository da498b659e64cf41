// Package cli provides the command-line interface for crawld.
package cli

import (
	"github.com/crawlkit/crawld/internal/app"
)

// Global reference shared across commands; populated once by the root
// command's PersistentPreRunE.
var globalApp *app.Application

// SetApp stores the Application for commands to access
func SetApp(a *app.Application) {
	globalApp = a
}

// GetApp retrieves the Application
func GetApp() *app.Application {
	return globalApp
}
