// Package main implements the rclgo command line tool. It offers small
// diagnostic commands over the client library: configuration validation,
// name resolution, QoS compatibility checks, and publishing, echoing, and
// graph inspection over the configured transport.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"sort"
	"syscall"
	"time"

	"github.com/XiandiShan/rclgo/config"
	"github.com/XiandiShan/rclgo/health"
	"github.com/XiandiShan/rclgo/message"
	"github.com/XiandiShan/rclgo/metric"
	"github.com/XiandiShan/rclgo/names"
	"github.com/XiandiShan/rclgo/natsclient"
	"github.com/XiandiShan/rclgo/node"
	"github.com/XiandiShan/rclgo/qos"
	"github.com/XiandiShan/rclgo/transport"
	"github.com/XiandiShan/rclgo/waitset"
)

// Build information constants
const (
	Version   = "0.1.0"
	BuildTime = "dev"
	appName   = "rclgo"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("Command failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	if cliCfg.ShowVersion {
		fmt.Printf("%s version %s\n", appName, Version)
		return nil
	}
	if cliCfg.ShowHelp || cliCfg.Command == "" {
		printDetailedHelp()
		return nil
	}

	logger := setupLogger(cliCfg.LogLevel, cliCfg.LogFormat)
	slog.SetDefault(logger)

	cfg, err := loadConfig(cliCfg.ConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	switch cliCfg.Command {
	case "validate":
		slog.Info("Configuration is valid",
			"domain_id", cfg.DomainID,
			"implementation", cfg.Implementation)
		return nil
	case "name":
		return runName(cliCfg, cfg)
	case "qos":
		return runQoSCheck(cliCfg)
	case "pub":
		return runPub(cliCfg, cfg, logger)
	case "echo":
		return runEcho(cliCfg, cfg, logger)
	case "graph":
		return runGraph(cliCfg, cfg, logger)
	default:
		return fmt.Errorf("unknown command: %s", cliCfg.Command)
	}
}

// loadConfig returns defaults when no path is supplied. Load and Default
// both apply environment overrides and validate.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		return cfg, nil
	}
	return config.Load(path)
}

func runName(cliCfg *CLIConfig, cfg *config.Config) error {
	if len(cliCfg.Args) != 1 {
		return fmt.Errorf("usage: name <topic>")
	}

	resolved, err := names.ResolveName(cliCfg.Args[0], cliCfg.NodeName, cliCfg.Namespace, cfg.RemapRules)
	if err != nil {
		return fmt.Errorf("resolve %q: %w", cliCfg.Args[0], err)
	}

	fmt.Println(resolved)
	return nil
}

// profileByName maps the preset names accepted on the command line
func profileByName(name string) (qos.Profile, error) {
	switch name {
	case "default":
		return qos.ProfileDefault(), nil
	case "sensor_data":
		return qos.ProfileSensorData(), nil
	case "services_default":
		return qos.ProfileServicesDefault(), nil
	case "parameter_events":
		return qos.ProfileParameterEvents(), nil
	case "system_default":
		return qos.ProfileSystemDefault(), nil
	case "action_status":
		return qos.ProfileActionStatus(), nil
	default:
		return qos.Profile{}, fmt.Errorf("unknown QoS preset: %s", name)
	}
}

func runQoSCheck(cliCfg *CLIConfig) error {
	if len(cliCfg.Args) != 2 {
		return fmt.Errorf("usage: qos <offered> <requested>")
	}

	offered, err := profileByName(cliCfg.Args[0])
	if err != nil {
		return err
	}
	requested, err := profileByName(cliCfg.Args[1])
	if err != nil {
		return err
	}

	result, err := qos.CheckCompatible(offered, requested)
	if err != nil {
		return fmt.Errorf("check compatibility: %w", err)
	}

	fmt.Printf("compatibility: %s\n", result.Compatibility)
	if result.Reason != "" {
		fmt.Printf("reason: %s\n", result.Reason)
	}
	return nil
}

// buildNode creates a node over the configured transport, plus an optional
// metrics server. The returned cleanup stops both.
func buildNode(cliCfg *CLIConfig, cfg *config.Config, logger *slog.Logger) (*node.Node, func(), error) {
	var (
		tr         transport.Transport
		natsClient *natsclient.Client
	)
	registry := metric.NewRegistry()

	switch cfg.Implementation {
	case config.ImplementationNATS:
		client, err := natsclient.NewClient(cfg.NATS.URL,
			natsclient.WithClientName(cfg.NATS.ClientName),
			natsclient.WithMaxReconnects(cfg.NATS.MaxReconnects),
			natsclient.WithTimeout(cfg.NATS.ConnectTimeout),
			natsclient.WithLogger(logger),
			natsclient.WithMetrics(registry.Core()),
		)
		if err != nil {
			return nil, nil, fmt.Errorf("create NATS client: %w", err)
		}

		connectCtx, cancel := context.WithTimeout(context.Background(), cfg.NATS.ConnectTimeout)
		err = client.Connect(connectCtx)
		cancel()
		if err != nil {
			return nil, nil, fmt.Errorf("connect to NATS: %w", err)
		}

		natsClient = client
		tr = transport.NewNATS(client, cfg.DomainID)
	default:
		tr = transport.NewBus()
	}

	n, err := node.New(cliCfg.NodeName,
		node.WithNamespace(cliCfg.Namespace),
		node.WithConfig(cfg),
		node.WithTransport(tr),
		node.WithLogger(logger),
		node.WithMetrics(registry.Core()),
	)
	if err != nil {
		if natsClient != nil {
			_ = natsClient.Close(context.Background())
		}
		return nil, nil, fmt.Errorf("create node: %w", err)
	}

	var metricsServer *metric.Server
	if cliCfg.MetricsPort > 0 {
		metricsServer = metric.NewServer(cliCfg.MetricsPort, "/metrics", registry)
		if err := metricsServer.Start(); err != nil {
			slog.Warn("Metrics server failed to start", "error", err)
			metricsServer = nil
		}
	}

	var healthServer *health.Server
	if cliCfg.HealthPort > 0 {
		monitor := health.NewMonitor()
		monitor.Update("node", health.NewHealthy("node", n.FullyQualifiedName()))
		monitor.RegisterChecker("transport", transportChecker(natsClient))
		healthServer = health.NewServer(cliCfg.HealthPort, appName, monitor)
		if err := healthServer.Start(); err != nil {
			slog.Warn("Health server failed to start", "error", err)
			healthServer = nil
		}
	}

	cleanup := func() {
		ctx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
		defer cancel()
		if metricsServer != nil {
			_ = metricsServer.Stop(ctx)
		}
		if healthServer != nil {
			_ = healthServer.Stop(ctx)
		}
		_ = n.Close()
		if natsClient != nil {
			_ = natsClient.Close(ctx)
		}
	}
	return n, cleanup, nil
}

// transportChecker reports transport health: the in-process bus is always
// healthy, a NATS connection degrades while reconnecting.
func transportChecker(client *natsclient.Client) health.Checker {
	return func() health.Status {
		if client == nil {
			return health.NewHealthy("", "in-process bus")
		}
		switch client.Status() {
		case natsclient.StatusConnected:
			return health.NewHealthy("", "connected")
		case natsclient.StatusConnecting:
			return health.NewDegraded("", "reconnecting")
		default:
			return health.NewUnhealthy("", "disconnected")
		}
	}
}

func runPub(cliCfg *CLIConfig, cfg *config.Config, logger *slog.Logger) error {
	if len(cliCfg.Args) != 3 {
		return fmt.Errorf("usage: pub <topic> <type> <json>")
	}
	topic, typeName, payload := cliCfg.Args[0], cliCfg.Args[1], cliCfg.Args[2]

	if _, err := message.ParseType(typeName); err != nil {
		return err
	}

	n, cleanup, err := buildNode(cliCfg, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	pub, err := n.CreatePublisher(topic, typeName, qos.ProfileDefault())
	if err != nil {
		return fmt.Errorf("create publisher: %w", err)
	}

	msg := &message.Raw{Type: typeName, Data: []byte(payload)}
	if err := pub.Publish(msg); err != nil {
		return fmt.Errorf("publish: %w", err)
	}

	slog.Info("Published", "topic", pub.Topic(), "type", typeName, "bytes", len(payload))
	return nil
}

func runEcho(cliCfg *CLIConfig, cfg *config.Config, logger *slog.Logger) error {
	if len(cliCfg.Args) != 2 {
		return fmt.Errorf("usage: echo <topic> <type>")
	}
	topic, typeName := cliCfg.Args[0], cliCfg.Args[1]

	if _, err := message.ParseType(typeName); err != nil {
		return err
	}

	n, cleanup, err := buildNode(cliCfg, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	sub, err := n.CreateSubscription(topic, typeName, qos.ProfileDefault())
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}

	slog.Info("Echoing", "topic", sub.Topic(), "type", typeName)

	signalCtx, signalCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer signalCancel()

	for {
		ws := waitset.New(waitset.Capacities{Subscriptions: 1},
			waitset.WithMetrics(n.Metrics()))
		if err := ws.Add(sub); err != nil {
			return err
		}
		if _, err := ws.Wait(500 * time.Millisecond); err != nil {
			return err
		}

		if signalCtx.Err() != nil {
			slog.Info("Received shutdown signal")
			return nil
		}

		for {
			raw, env, err := sub.TakeRaw()
			if err != nil {
				break
			}
			fmt.Printf("[%s] %s %s: %s\n",
				env.Stamp.Format(time.RFC3339Nano), env.Publisher, raw.Type, string(raw.Data))
		}
	}
}

func runGraph(cliCfg *CLIConfig, cfg *config.Config, logger *slog.Logger) error {
	n, cleanup, err := buildNode(cliCfg, cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	topics := n.TopicNamesAndTypes()
	topicNames := make([]string, 0, len(topics))
	for name := range topics {
		topicNames = append(topicNames, name)
	}
	sort.Strings(topicNames)

	fmt.Println("Topics:")
	for _, name := range topicNames {
		fmt.Printf("  %s\n", name)
		for _, typeName := range topics[name] {
			fmt.Printf("    %s\n", typeName)
		}
		pubs, err := n.PublishersInfoByTopic(name)
		if err == nil {
			for _, info := range pubs {
				fmt.Printf("    publisher: %s\n", info.Node)
			}
		}
		subs, err := n.SubscriptionsInfoByTopic(name)
		if err == nil {
			for _, info := range subs {
				fmt.Printf("    subscription: %s\n", info.Node)
			}
		}
	}

	services := n.ServiceNamesAndTypes()
	serviceNames := make([]string, 0, len(services))
	for name := range services {
		serviceNames = append(serviceNames, name)
	}
	sort.Strings(serviceNames)

	fmt.Println("Services:")
	for _, name := range serviceNames {
		fmt.Printf("  %s\n", name)
		for _, typeName := range services[name] {
			fmt.Printf("    %s\n", typeName)
		}
	}
	return nil
}
