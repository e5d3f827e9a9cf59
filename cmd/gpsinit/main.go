// gpsinit brings a MediaTek GPS receiver to a known baud rate and protocol
// mode, then optionally runs a command file against it.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"mtk-gps-utils/internal/clock"
	"mtk-gps-utils/internal/config"
	"mtk-gps-utils/internal/mtk"
	"mtk-gps-utils/internal/script"
)

func main() {
	var (
		configPath string
		device     string
		speed      int
		file       string
	)
	flag.StringVar(&configPath, "config", "", "path to YAML config")
	flag.StringVar(&device, "device", "", "serial device, e.g. /dev/ttyUSB0")
	flag.IntVar(&speed, "speed", 0, "target baud rate")
	flag.StringVar(&file, "file", "", "command file to run after synchronization")
	flag.Parse()

	cfg, err := loadConfig(configPath, device, speed)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	os.Exit(run(ctx, cfg, file))
}

// loadConfig merges the config file (or defaults) with command-line
// overrides and validates the result.
func loadConfig(path, device string, speed int) (config.Config, error) {
	cfg := config.Default()
	if path != "" {
		var err error
		cfg, err = config.Load(path)
		if err != nil {
			return config.Config{}, err
		}
	}
	if device != "" {
		cfg.Device.Path = device
	}
	if speed != 0 {
		cfg.Device.Speed = speed
	}
	if cfg.Device.Path == "" {
		return config.Config{}, errors.New("no device given (-device or device.path)")
	}
	if !mtk.SupportedRate(cfg.Device.Speed) {
		return config.Config{}, fmt.Errorf("unsupported baud rate %d", cfg.Device.Speed)
	}
	return cfg, nil
}

func run(ctx context.Context, cfg config.Config, file string) int {
	port, err := mtk.Open(cfg.Device.Path, cfg.Device.Speed, cfg.Device.ReadTimeout)
	if err != nil {
		log.Printf("open failed: %v", err)
		return 1
	}
	defer port.Close()

	sess := mtk.NewSession(port)
	log.Printf("synchronizing device=%s target=%d", cfg.Device.Path, cfg.Device.Speed)
	err = sess.Synchronize(ctx, cfg.Device.Speed, mtk.RetryPolicy{
		Timeout: cfg.Sync.ProbeTimeout,
		Retries: cfg.Sync.Retries,
	})
	if err != nil {
		log.Printf("synchronization failed: %v", err)
		return 1
	}

	if file == "" {
		log.Printf("done device=%s rate=%d", cfg.Device.Path, cfg.Device.Speed)
		return 0
	}

	vars := map[string]string{
		"DEVICE": cfg.Device.Path,
		"SPEED":  strconv.Itoa(cfg.Device.Speed),
	}
	directives, err := script.ParseFile(file, vars)
	if err != nil {
		log.Printf("command file: %v", err)
		return 1
	}

	runner := &script.Runner{
		Sess:   sess,
		Port:   port,
		Policy: mtk.RetryPolicy{Timeout: cfg.Command.Timeout, Retries: cfg.Command.Retries},
		Settle: cfg.Command.SettleDelay,
		Clock: func(ctx context.Context) error {
			return clock.SetFromGPS(ctx, sess, cfg.Clock.Timeout)
		},
	}
	failed, err := runner.RunAll(ctx, directives)
	if err != nil {
		log.Printf("interrupted: %v", err)
		return 1
	}
	if failed > 0 {
		log.Printf("done with %d failed directive(s) device=%s", failed, cfg.Device.Path)
	} else {
		log.Printf("done device=%s rate=%d", cfg.Device.Path, cfg.Device.Speed)
	}
	return 0
}
