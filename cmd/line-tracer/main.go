package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"line-tracer/internal/config"
	"line-tracer/internal/core"
	"line-tracer/internal/fsm"
	"line-tracer/internal/hardware"
	"line-tracer/internal/logger"
	"line-tracer/internal/timebase"
)

func main() {
	// Service log level
	var serviceLogLevel string
	flag.StringVar(&serviceLogLevel, "log", "info", "Service log level (none, error, warn, info, debug or 0-4)")

	// Trace engine
	profileName := flag.String("profile", fsm.DefaultProfile, "Trace profile (kit, gap, race)")
	configPath := flag.String("config", "", "Optional JSON tuning file applied on top of the profile")

	// I/O backend
	backend := flag.String("backend", "gpio", "I/O backend: gpio, serial or sim")
	serialPort := flag.String("serial-port", "/dev/ttyS1", "Sensor bar serial device (serial backend)")
	baudRate := flag.Int("baud", 115200, "Sensor bar baud rate (serial backend)")
	scriptPath := flag.String("script", "", "JSON track script (sim backend)")
	tickSource := flag.String("tick", "timerfd", "Tick source: timerfd or ticker")

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

	level, err := logger.ParseLevel(serviceLogLevel)
	if err != nil {
		stdLogger.Fatalf("Invalid log level: %v", err)
	}
	l := logger.NewLogger(stdLogger, level)

	l.Infof("Starting line tracer...")

	var tuning *config.ProfileConfig
	if *configPath != "" {
		tuning, err = config.LoadProfileConfig(*configPath)
		if err != nil {
			l.Fatalf("Failed to load config: %v", err)
		}
	}
	profile, err := tuning.Resolve(*profileName)
	if err != nil {
		l.Fatalf("Failed to resolve profile: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		io  core.HardwareIO
		sim *hardware.ScriptedIO
	)
	switch *backend {
	case "gpio":
		io = hardware.NewLinuxHardwareIO(profile.Actuator.PWMCycle + 1)
	case "serial":
		bar, err := hardware.OpenSerialSensorBar(*serialPort, hardware.PortOptions{BaudRate: *baudRate})
		if err != nil {
			l.Fatalf("Failed to open sensor bar: %v", err)
		}
		io = hardware.NewLinuxHardwareIO(profile.Actuator.PWMCycle + 1).WithSensorBar(bar)
	case "sim":
		if *scriptPath == "" {
			l.Fatalf("The sim backend needs -script")
		}
		script, err := hardware.LoadScript(*scriptPath)
		if err != nil {
			l.Fatalf("Failed to load script: %v", err)
		}
		sim = hardware.NewScriptedIO(script)
		io = sim
	default:
		l.Fatalf("Unknown backend %q", *backend)
	}

	var source timebase.Source
	switch *tickSource {
	case "timerfd":
		source = timebase.NewTimerfdSource()
	case "ticker":
		source = timebase.NewTickerSource()
	default:
		l.Fatalf("Unknown tick source %q", *tickSource)
	}

	controller := core.NewTraceController(io, profile, l.WithTag("trace"))
	if sim != nil {
		controller.AddTickHook(sim.Advance)
		go func() {
			select {
			case <-sim.Done():
				l.Infof("Script finished")
				stop()
			case <-ctx.Done():
			}
		}()
	}

	if err := controller.Start(); err != nil {
		l.Fatalf("Failed to start controller: %v", err)
	}

	l.Infof("Controller started with profile %s", profile.Name)

	if err := controller.Run(ctx, source); err != nil && !errors.Is(err, context.Canceled) {
		l.Errorf("Control loop stopped: %v", err)
	}

	l.Infof("Shutting down in state %s, speed %.2f m/s, %d stall timeouts",
		controller.State(), controller.Speed(), controller.Timeouts())
	controller.Shutdown()
	if sim != nil {
		out := sim.Outputs()
		l.Infof("Final outputs: servo=%d motors=%v indicator=%v writes=%d",
			out.Servo, out.Motors, out.Indicator, out.Writes)
	}
	l.Infof("Shutdown complete")
}
