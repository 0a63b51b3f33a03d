package cmd

import (
	"fmt"
	"os"

	"github.com/bimmerbailey/cyro/internal/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "cyro",
	Short: "Surface rare, high-signal lines from log streams",
	Long: `Cyro learns an online frequency model from a log stream and surfaces
the lines that carry unusual information content: live alerting over a
tailed file, batch ranking of a static file, and score explanations for
individual lines.

Examples:
  cyro watch /var/log/app.log
  cyro rank --top 25 /var/log/app.log
  cyro explain app.log --line "ERROR connection refused"
  cyro tail --level warn /var/log/app.log`,
}

// Execute is called by main.main(). It runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.cyro.yaml)")
	rootCmd.PersistentFlags().StringP("format", "f", "text", "output format (text, json)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "enable verbose output")

	_ = viper.BindPFlag("format", rootCmd.PersistentFlags().Lookup("format"))
	_ = viper.BindPFlag("verbose", rootCmd.PersistentFlags().Lookup("verbose"))
}

func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error finding home directory:", err)
			os.Exit(1)
		}

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigName(".cyro")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("CYRO")
	viper.AutomaticEnv()

	// Set defaults
	viper.SetDefault("format", "text")
	viper.SetDefault("verbose", false)
	viper.SetDefault("timestamp_formats", []string{
		"2006-01-02T15:04:05Z07:00",  // RFC3339
		"2006-01-02 15:04:05",        // Common datetime
		"Jan 02 15:04:05",            // Syslog
		"02/Jan/2006:15:04:05 -0700", // Apache/Nginx
	})

	if err := viper.ReadInConfig(); err == nil {
		if viper.GetBool("verbose") {
			fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
		}
	}

	logLevel := logging.LevelWarn
	if viper.GetBool("verbose") {
		logLevel = logging.LevelDebug
	}
	logging.InitGlobalLogger(logging.Config{Level: logLevel})
}
