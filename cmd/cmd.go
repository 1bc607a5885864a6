// Package cmd defines the command-line interface for apigrade.
package cmd

import (
	"strings"

	"github.com/huangsam/apigrade/internal/contract"
	"github.com/huangsam/apigrade/schema"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

func init() {
	// Call initConfig on Cobra's initialization
	cobra.OnInitialize(initConfig)

	// Add primary subcommands to the root command
	rootCmd.AddCommand(gradeCmd)
	rootCmd.AddCommand(catalogCmd)
	rootCmd.AddCommand(callCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(runsCmd)

	// Add the runs subcommands to the parent runs command
	runsCmd.AddCommand(runsStatusCmd)
	runsCmd.AddCommand(runsClearCmd)
	runsCmd.AddCommand(runsExportCmd)
	runsCmd.AddCommand(runsMigrateCmd)

	// Bind all persistent flags of rootCmd to Viper
	rootCmd.PersistentFlags().String("spec", "", "Path to the OpenAPI document (defaults to the embedded file-storage document)")
	rootCmd.PersistentFlags().String("host", contract.DefaultHost, "Host the service under test listens on")
	rootCmd.PersistentFlags().IntP("port", "p", contract.DefaultPort, "Port of the service under test (worker i uses port+i)")
	rootCmd.PersistentFlags().String("timeout", contract.DefaultTimeout.String(), "Per-request timeout")
	rootCmd.PersistentFlags().Int("workers", contract.DefaultWorkers, "Number of targets graded at the same time")
	rootCmd.PersistentFlags().Int("precision", contract.DefaultPrecision, "Decimal precision for numeric columns")
	rootCmd.PersistentFlags().StringP("output", "o", string(schema.TextOut), "Output format: text or csv or json or yaml")
	rootCmd.PersistentFlags().String("output-file", "", "Optional path to write output to")
	rootCmd.PersistentFlags().Int("width", 0, "Terminal width override (0 = auto-detect)")
	rootCmd.PersistentFlags().String("color", "yes", "Enable colored labels in output (yes/no/true/false/1/0)")
	rootCmd.PersistentFlags().String("runs-backend", string(schema.SQLiteBackend), "Run history backend: sqlite or mysql or postgresql or none")
	rootCmd.PersistentFlags().String("runs-db-connect", "", "Database connection string for mysql/postgresql (e.g., user:pass@tcp(host:port)/dbname)")
	rootCmd.PersistentFlags().String("log-level", contract.DefaultLogLevel, "Run log level: debug or info or warn or error")
	rootCmd.PersistentFlags().String("log-format", contract.DefaultLogFormat, "Run log format: console or json")
	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	if err := viper.BindPFlags(rootCmd.PersistentFlags()); err != nil {
		contract.LogFatal("Error binding root flags", err)
	}

	// Bind all flags of gradeCmd to Viper
	gradeCmd.Flags().String("startup-timeout", contract.DefaultStartupTimeout.String(), "How long a service may take to accept connections")
	gradeCmd.Flags().String("workdir", "", "Directory where remote targets are checked out")
	gradeCmd.Flags().String("install-cmd", contract.DefaultInstallCmd, "Command that installs the dependencies of a target")
	gradeCmd.Flags().String("start-cmd", contract.DefaultStartCmd, "Command that starts a target (PORT is set in its environment)")
	gradeCmd.Flags().String("required-files", strings.Join(contract.DefaultRequiredFiles, ","), "Comma-separated entry points a target must contain")
	gradeCmd.Flags().Float64("fail-under", 0, "Exit non-zero when any rating is below this value (0 to 1)")
	gradeCmd.Flags().Bool("attach", false, "Grade an already running service at --host and --port")
	gradeCmd.Flags().String("name", "", "Name recorded for a single target")
	gradeCmd.Flags().String("project-id", "", "Project id recorded for a single target")
	if err := viper.BindPFlags(gradeCmd.Flags()); err != nil {
		contract.LogFatal("Error binding grade flags", err)
	}

	// Bind all flags of callCmd to Viper
	callCmd.Flags().StringSlice("body", nil, "Body properties as key=value (repeatable)")
	callCmd.Flags().StringSlice("query", nil, "Query parameters as key=value (repeatable)")
	callCmd.Flags().StringSlice("path", nil, "Path parameters as key=value (repeatable)")
	if err := viper.BindPFlags(callCmd.Flags()); err != nil {
		contract.LogFatal("Error binding call flags", err)
	}

	// Bind all flags of serveCmd to Viper
	serveCmd.Flags().String("dir", "uploads", "Directory where uploaded files are kept")
	if err := viper.BindPFlags(serveCmd.Flags()); err != nil {
		contract.LogFatal("Error binding serve flags", err)
	}

	// Bind all flags of runsMigrateCmd to Viper
	runsMigrateCmd.Flags().Int("target-version", -1, "Target migration version (-1 means latest, 0 means rollback to initial state)")
	if err := viper.BindPFlags(runsMigrateCmd.Flags()); err != nil {
		contract.LogFatal("Error binding runs migrate flags", err)
	}
}
