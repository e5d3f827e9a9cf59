package script

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"time"

	"mtk-gps-utils/internal/mtk"
)

// Commander is the slice of the session the runner drives. *mtk.Session
// satisfies it.
type Commander interface {
	Send(cmd mtk.Command) error
	ExecuteAck(ctx context.Context, cmd mtk.Command, pol mtk.RetryPolicy) (mtk.Sentence, error)
}

// Runner executes parsed directives against one session. A failing line is
// logged and skipped; the rest of the file still runs.
type Runner struct {
	Sess   Commander
	Port   mtk.Port
	Policy mtk.RetryPolicy

	// Settle is how long the chip gets to apply a new rate before the local
	// port is retuned after setspeed.
	Settle time.Duration

	// Clock performs the set_system_clock directive. Left nil when clock
	// sync is unavailable.
	Clock func(ctx context.Context) error
}

// RunAll executes directives in order and returns how many failed. Only
// context cancellation stops the batch early.
func (r *Runner) RunAll(ctx context.Context, ds []Directive) (int, error) {
	failed := 0
	for _, d := range ds {
		if err := ctx.Err(); err != nil {
			return failed, err
		}
		if err := r.Run(ctx, d); err != nil {
			failed++
			log.Printf("directive failed (continuing): %q: %v", d.Line, err)
		}
	}
	return failed, nil
}

// Run executes one directive.
func (r *Runner) Run(ctx context.Context, d Directive) error {
	switch d.Kind {
	case KindSleep:
		sleepCtx(ctx, d.Pause)
		return nil
	case KindSetSpeed:
		return r.setSpeed(d.Speed)
	case KindSetClock:
		if r.Clock == nil {
			return fmt.Errorf("clock sync not available")
		}
		return r.Clock(ctx)
	case KindRun:
		return r.runHelper(ctx, d.Argv)
	case KindCommandNoAck:
		return r.Sess.Send(mtk.Command{Body: d.Body})
	default:
		_, err := r.Sess.ExecuteAck(ctx, mtk.Command{Body: d.Body}, r.Policy)
		return err
	}
}

// setSpeed moves the chip to rate, gives it a moment to apply the change and
// retunes the local port to follow. The chip switches as soon as the command
// is out, so no ack can be awaited at the old rate.
func (r *Runner) setSpeed(rate int) error {
	if !mtk.SupportedRate(rate) {
		return fmt.Errorf("unsupported baud rate %d", rate)
	}
	cmd := mtk.Command{Body: fmt.Sprintf("%s,%d", mtk.CmdSetBaud, rate)}
	if err := r.Sess.Send(cmd); err != nil {
		return err
	}
	if r.Settle > 0 {
		time.Sleep(r.Settle)
	}
	return r.Port.SetBaud(rate)
}

// runHelper hands the device to an external program and takes it back after.
// Some helpers (almanac loaders and the like) need the port to themselves.
func (r *Runner) runHelper(ctx context.Context, argv []string) error {
	sp, ok := r.Port.(mtk.Suspender)
	if !ok {
		return fmt.Errorf("port cannot be released for an external program")
	}
	if err := sp.Suspend(); err != nil {
		return err
	}
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	runErr := cmd.Run()
	if err := sp.Resume(); err != nil {
		return fmt.Errorf("reacquire port: %w", err)
	}
	if runErr != nil {
		return fmt.Errorf("run %s: %w", argv[0], runErr)
	}
	return nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
