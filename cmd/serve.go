package cmd

import (
	"github.com/huangsam/apigrade/internal/contract"
	"github.com/huangsam/apigrade/internal/filestore"
	"github.com/huangsam/apigrade/internal/lifecycle"
	"github.com/huangsam/apigrade/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// serveSetup loads the minimal configuration needed to run the reference service.
func serveSetup() error {
	if err := loadConfigFile(); err != nil {
		return err
	}
	colors, err := contract.ParseBoolString(viper.GetString("color"))
	if err != nil {
		return err
	}
	l, err := logging.NewLogger(viper.GetString("log-level"), viper.GetString("log-format"), colors)
	if err != nil {
		return err
	}
	logger = l
	return nil
}

// serveCmd runs the reference file-storage service.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the reference file-storage service.",
	Long: `Serve the file-storage API described by the embedded OpenAPI document.

The service keeps uploads in --dir and listens on --host and --port until
interrupted. Grading it scores a full rating, so it is useful to check a
setup before grading other services.

Examples:
  # Serve on the default port
  apigrade serve

  # Serve on another port and grade it from a second shell
  apigrade serve --port 3000 --dir /tmp/uploads
  apigrade grade --attach --port 3000`,
	Args: cobra.NoArgs,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		return serveSetup()
	},
	Run: func(_ *cobra.Command, _ []string) {
		s, err := filestore.New(viper.GetString("dir"), logger)
		if err != nil {
			contract.LogFatal("Cannot create file storage", err)
		}
		addr := lifecycle.Address(viper.GetString("host"), viper.GetInt("port"))
		if err := filestore.ListenAndServe(rootCtx, addr, s); err != nil {
			contract.LogFatal("File storage service failed", err)
		}
	},
}
