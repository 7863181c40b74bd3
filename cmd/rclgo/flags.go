package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	NodeName        string
	Namespace       string
	MetricsPort     int
	HealthPort      int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool

	// Command and its arguments, taken from the positional tail
	Command string
	Args    []string
}

func parseFlags() *CLIConfig {
	cfg := &CLIConfig{}

	flag.StringVar(&cfg.ConfigPath, "config",
		getEnv("RCLGO_CONFIG", ""),
		"Path to configuration file, empty for defaults (env: RCLGO_CONFIG)")

	flag.StringVar(&cfg.LogLevel, "log-level",
		getEnv("RCLGO_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: RCLGO_LOG_LEVEL)")

	flag.StringVar(&cfg.LogFormat, "log-format",
		getEnv("RCLGO_LOG_FORMAT", "text"),
		"Log format: json, text (env: RCLGO_LOG_FORMAT)")

	flag.StringVar(&cfg.NodeName, "node",
		getEnv("RCLGO_NODE_NAME", "rclgo_cli"),
		"Node name used by pub/echo/graph (env: RCLGO_NODE_NAME)")

	flag.StringVar(&cfg.Namespace, "namespace",
		getEnv("RCLGO_NAMESPACE", "/"),
		"Node namespace (env: RCLGO_NAMESPACE)")

	flag.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("RCLGO_METRICS_PORT", 0),
		"Prometheus metrics port, 0 to disable (env: RCLGO_METRICS_PORT)")

	flag.IntVar(&cfg.HealthPort, "health-port",
		getEnvInt("RCLGO_HEALTH_PORT", 0),
		"Health check port, 0 to disable (env: RCLGO_HEALTH_PORT)")

	flag.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("RCLGO_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: RCLGO_SHUTDOWN_TIMEOUT)")

	flag.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	flag.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	flag.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	flag.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")

	flag.Usage = printDetailedHelp

	flag.Parse()

	if flag.NArg() > 0 {
		cfg.Command = flag.Arg(0)
		cfg.Args = flag.Args()[1:]
	}

	return cfg
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	if cfg.HealthPort < 0 || cfg.HealthPort > 65535 {
		return fmt.Errorf("invalid health port: %d", cfg.HealthPort)
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	return nil
}

func printDetailedHelp() {
	_, _ = fmt.Fprintf(os.Stderr, `%s - ROS 2 client library tooling

Usage: %s [options] <command> [args]

Commands:
  validate                    Validate the configuration and exit
  name <topic>                Resolve a topic name against the node and namespace
  qos <offered> <requested>   Check QoS compatibility between two presets
                              (default, sensor_data, services_default,
                               parameter_events, system_default, action_status)
  pub <topic> <type> <json>   Publish one message
  echo <topic> <type>         Print messages on a topic until interrupted
  graph                       Print known topics, types, and endpoints

Options:
`, appName, os.Args[0])
	flag.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Resolve a private topic name
  %s --node=talker --namespace=/demo name "~/status"

  # Check two QoS presets against each other
  %s qos sensor_data default

  # Echo a topic over NATS
  %s --config=/etc/rclgo/config.json echo /chatter std_msgs/msg/String

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
}

// Environment variable helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
