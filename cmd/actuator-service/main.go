package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"actuator-service/internal/config"
	"actuator-service/internal/core"
	"actuator-service/internal/hardware"
	"actuator-service/internal/logger"
	"actuator-service/internal/messaging"
)

func main() {
	configPath := flag.String("config", config.DefaultPath, "Path to the YAML configuration file")

	// Service log level; overrides log_level from the config file when set
	var serviceLogLevel int
	flag.IntVar(&serviceLogLevel, "log", -1, "Service log level (0=NONE, 1=ERROR, 2=WARN, 3=INFO, 4=DEBUG)")

	backend := flag.String("backend", "", "Hardware backend override (linux, virtual)")
	redisHost := flag.String("redis-host", "", "Redis host override")
	redisPort := flag.Int("redis-port", 0, "Redis port override")

	flag.Parse()

	// Create standard logger with appropriate format
	var stdLogger *log.Logger
	if os.Getenv("INVOCATION_ID") != "" {
		// Running under systemd, use minimal format
		stdLogger = log.New(os.Stdout, "", 0)
	} else {
		// Running interactively, use timestamps
		stdLogger = log.New(os.Stdout, "", log.LstdFlags|log.Lmicroseconds|log.Lmsgprefix)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		if !os.IsNotExist(err) {
			stdLogger.Fatalf("Failed to load config %s: %v", *configPath, err)
		}
		stdLogger.Printf("Config %s not found, using virtual board defaults", *configPath)
		cfg = config.Default()
	}
	if *backend != "" {
		cfg.Backend = *backend
	}
	if *redisHost != "" {
		cfg.Redis.Host = *redisHost
	}
	if *redisPort != 0 {
		cfg.Redis.Port = *redisPort
	}
	if err := cfg.Validate(); err != nil {
		stdLogger.Fatalf("Invalid configuration: %v", err)
	}

	level, err := logger.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		stdLogger.Fatalf("Invalid log level: %v", err)
	}
	if serviceLogLevel >= 0 {
		level = logger.LogLevel(serviceLogLevel)
	}

	// Create leveled logger
	l := logger.NewLogger(stdLogger, level)

	l.Infof("Starting actuator service (backend=%s)...", cfg.Backend)

	var io core.HardwareIO
	if cfg.Backend == config.BackendVirtual {
		io = hardware.NewVirtualIO(l)
	} else {
		io = hardware.NewLinuxHardwareIO(cfg.Consumer, l)
	}
	redis := messaging.NewRedisClient(cfg.Redis.Host, cfg.Redis.Port, l)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	system := core.NewActuatorSystem(io, redis, cfg, l)
	if err := system.Start(ctx); err != nil {
		io.Cleanup()
		l.Fatalf("Failed to start system: %v", err)
	}

	l.Infof("System started successfully")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigChan
	l.Infof("Received signal %v, shutting down...", sig)
	system.Shutdown()
	l.Infof("Shutdown complete")
}
