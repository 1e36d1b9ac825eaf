// @title           WebMarcas Backend API
// @version         1.0.0
// @description     Backend API for notarizing brand assets: SHA-256 fingerprints are registered, anchored with OpenTimestamps and publicly verifiable. Registros debit one credit when confirmed.

// @contact.name   API Support
// @contact.email  support@example.com

// @license.name  MIT
// @license.url   https://opensource.org/licenses/MIT

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "webmarcas",
	Short: "WebMarcas notarization backend",
	Long: `Registers SHA-256 fingerprints of brand assets, anchors them with
OpenTimestamps and serves public verification. Without a subcommand the
HTTP server is started.`,
	SilenceUsage: true,
	RunE:         runServe,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(serveCmd, migrateCmd, anchorCmd, monitorCmd, reconcileCmd)
}
