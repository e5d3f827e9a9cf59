// gpssh is an interactive console for poking at a MediaTek GPS receiver:
// synchronize the channel, send commands, watch acknowledgements.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/abiosoft/ishell"

	"mtk-gps-utils/internal/clock"
	"mtk-gps-utils/internal/config"
	"mtk-gps-utils/internal/mtk"
)

func main() {
	var (
		configPath string
		device     string
		speed      int
	)
	flag.StringVar(&configPath, "config", "", "path to YAML config")
	flag.StringVar(&device, "device", "", "serial device, e.g. /dev/ttyUSB0")
	flag.IntVar(&speed, "speed", 0, "initial baud rate")
	flag.Parse()

	cfg := config.Default()
	if configPath != "" {
		var err error
		cfg, err = config.Load(configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	if device != "" {
		cfg.Device.Path = device
	}
	if speed != 0 {
		cfg.Device.Speed = speed
	}
	if cfg.Device.Path == "" {
		log.Fatalf("no device given (-device or device.path)")
	}

	port, err := mtk.Open(cfg.Device.Path, cfg.Device.Speed, cfg.Device.ReadTimeout)
	if err != nil {
		log.Fatalf("open failed: %v", err)
	}
	defer port.Close()
	sess := mtk.NewSession(port)
	pol := mtk.RetryPolicy{Timeout: cfg.Command.Timeout, Retries: cfg.Command.Retries}
	ctx := context.Background()

	shell := ishell.New()
	shell.SetPrompt(fmt.Sprintf("%s> ", cfg.Device.Path))
	shell.Println("MTK GPS console. 'help' lists commands; anything else is sent as a raw command body.")

	shell.AddCmd(&ishell.Cmd{
		Name: "sync",
		Help: "sync [RATE]: force the chip to NMEA mode at RATE (default: current port rate)",
		Func: func(c *ishell.Context) {
			target := port.Baud()
			if len(c.Args) > 0 {
				n, err := strconv.Atoi(c.Args[0])
				if err != nil {
					c.Err(fmt.Errorf("bad rate %q", c.Args[0]))
					return
				}
				target = n
			}
			err := sess.Synchronize(ctx, target, mtk.RetryPolicy{
				Timeout: cfg.Sync.ProbeTimeout,
				Retries: cfg.Sync.Retries,
			})
			if err != nil {
				c.Err(err)
				return
			}
			c.Printf("synchronized at %d\n", target)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "send",
		Help: "send BODY: frame BODY with a checksum, send it and await the ack",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("send wants a command body"))
				return
			}
			sendBody(ctx, c, sess, pol, strings.Join(c.Args, " "))
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name:    "speed",
		Aliases: []string{"setspeed"},
		Help:    "speed RATE: move the chip and the local port to RATE",
		Func: func(c *ishell.Context) {
			if len(c.Args) != 1 {
				c.Err(fmt.Errorf("speed wants one rate argument"))
				return
			}
			rate, err := strconv.Atoi(c.Args[0])
			if err != nil || !mtk.SupportedRate(rate) {
				c.Err(fmt.Errorf("unsupported rate %q", c.Args[0]))
				return
			}
			cmd := mtk.Command{Body: fmt.Sprintf("%s,%d", mtk.CmdSetBaud, rate)}
			if err := sess.Send(cmd); err != nil {
				c.Err(err)
				return
			}
			time.Sleep(cfg.Command.SettleDelay)
			if err := port.SetBaud(rate); err != nil {
				c.Err(err)
				return
			}
			c.Printf("port now at %d\n", rate)
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "watch",
		Help: "watch TAG [SECONDS]: print the next sentence carrying TAG",
		Func: func(c *ishell.Context) {
			if len(c.Args) == 0 {
				c.Err(fmt.Errorf("watch wants a tag"))
				return
			}
			wait := 5 * time.Second
			if len(c.Args) > 1 {
				sec, err := strconv.ParseFloat(c.Args[1], 64)
				if err != nil || sec <= 0 {
					c.Err(fmt.Errorf("bad duration %q", c.Args[1]))
					return
				}
				wait = time.Duration(sec * float64(time.Second))
			}
			sent, err := sess.AwaitTag(ctx, wait, c.Args[0])
			if err != nil {
				c.Err(err)
				return
			}
			c.Println(sent.String())
		},
	})

	shell.AddCmd(&ishell.Cmd{
		Name: "clock",
		Help: "clock: set the host clock from the receiver (needs root)",
		Func: func(c *ishell.Context) {
			if err := clock.SetFromGPS(ctx, sess, cfg.Clock.Timeout); err != nil {
				c.Err(err)
				return
			}
			c.Println("host clock set")
		},
	})

	shell.NotFound(func(c *ishell.Context) {
		sendBody(ctx, c, sess, pol, strings.Join(c.Args, " "))
	})

	shell.Run()
}

func sendBody(ctx context.Context, c *ishell.Context, sess *mtk.Session, pol mtk.RetryPolicy, body string) {
	sent, err := sess.ExecuteAck(ctx, mtk.Command{Body: body}, pol)
	if errors.Is(err, mtk.ErrNotAcknowledged) {
		c.Printf("refused: %s\n", sent.String())
		return
	}
	if err != nil {
		c.Err(err)
		return
	}
	c.Printf("ack: %s\n", sent.String())
}
