/*
Copyright © 2025 Mathias Djärv <mathias.djarv@allbinary.se>
*/
package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/allbin/go-uart"
	"github.com/allbin/go-uart/internal/driver"
)

var (
	cfgFile string
	logger  = zerolog.Nop()
)

// rootCmd runs the driver on stdin and stdout
var rootCmd = &cobra.Command{
	Use:   "uartd",
	Short: "Serial port driver speaking a framed term protocol",
	Long: `uartd owns one serial port on behalf of a host process.

Without a subcommand it reads length-prefixed requests from stdin and
writes replies and notifications to stdout until stdin is closed. Logs
go to stderr, or to the file set with --log-file.

The subcommands are small tools built on the same driver:
  uartd enumerate           print the port list as a framed reply
  uartd ports               list serial ports
  uartd signals <port>      show modem lines
  uartd monitor <port>      interactive terminal`,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		backend, err := uart.NewBackend()
		if err != nil {
			return err
		}
		defer backend.Release()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		loop := driver.NewLoop(backend, os.Stdin, os.Stdout, driver.WithLogger(logger))
		if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
			return err
		}
		return nil
	},
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default is uartd.yaml in ., $HOME/.config/uartd or /etc/uartd)")
	flags.String("log-level", "warn", "Log level: trace, debug, info, warn, error")
	flags.String("log-file", "", "Write logs to a rotated file instead of stderr")
	flags.Int("log-max-size", 10, "Maximum log file size in megabytes before rotation")
	flags.Int("log-max-backups", 3, "Rotated log files to keep")
	flags.String("log-format", "json", "Log format: json or console")
	flags.IntP("baud", "b", 9600, "Default speed for the port tools")
	flags.String("flow-control", "none", "Default flow control for the port tools: none, hardware, software")

	bind := map[string]string{
		"log.level":         "log-level",
		"log.file":          "log-file",
		"log.max_size_mb":   "log-max-size",
		"log.max_backups":   "log-max-backups",
		"log.format":        "log-format",
		"port.speed":        "baud",
		"port.flow_control": "flow-control",
	}
	for key, flag := range bind {
		viper.BindPFlag(key, flags.Lookup(flag))
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig(cmd *cobra.Command, args []string) error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("uartd")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home + "/.config/uartd")
		}
		viper.AddConfigPath("/etc/uartd")
	}
	viper.SetEnvPrefix("UARTD")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || cfgFile != "" {
			return fmt.Errorf("reading config: %w", err)
		}
	}

	l, err := newLogger(os.Stderr)
	if err != nil {
		return err
	}
	logger = l
	if f := viper.ConfigFileUsed(); f != "" {
		logger.Debug().Str("file", f).Msg("loaded config")
	}
	return nil
}

func newLogger(stderr io.Writer) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return zerolog.Nop(), fmt.Errorf("log level: %w", err)
	}

	out := stderr
	if file := viper.GetString("log.file"); file != "" {
		out = &lumberjack.Logger{
			Filename:   file,
			MaxSize:    viper.GetInt("log.max_size_mb"),
			MaxBackups: viper.GetInt("log.max_backups"),
		}
	}
	if viper.GetString("log.format") == "console" {
		out = zerolog.ConsoleWriter{Out: out, NoColor: viper.GetString("log.file") != ""}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Int("pid", os.Getpid()).Logger(), nil
}

// portConfig builds the passive-mode configuration used by the port tools.
func portConfig() (uart.Config, error) {
	fc, ok := uart.ParseFlowControl(viper.GetString("port.flow_control"))
	if !ok {
		return uart.Config{}, fmt.Errorf("invalid flow control %q", viper.GetString("port.flow_control"))
	}
	return uart.NewConfig(
		uart.WithSpeed(viper.GetInt("port.speed")),
		uart.WithFlowControl(fc),
		uart.WithActive(false),
	)
}
