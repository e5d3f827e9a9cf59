package mtk

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// Synchronize drives the channel to a known state: the chip in NMEA text
// mode at the target rate, answering checksummed commands. It assumes
// nothing about the chip's current rate or protocol mode. Cancelling ctx
// stops the walk between steps and aborts any wait in progress.
//
// Phase one broadcasts the binary set-rate packet at every supported rate,
// twice per rate in case the chip is mid-byte when the first copy lands.
// Phase two repeats a converge pass up to pol.Retries extra times: send the
// text set-rate command at every supported rate, retune to the target and
// probe with a no-op command. The first acknowledged probe proves both ends
// frame bytes at the same rate; its flag value does not matter.
func (s *Session) Synchronize(ctx context.Context, target int, pol RetryPolicy) error {
	if !SupportedRate(target) {
		return fmt.Errorf("unsupported baud rate %d", target)
	}

	log.Printf("forcing NMEA mode target=%d", target)
	frame := BaudFrame(target)
	for _, rate := range Rates {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.port.SetBaud(rate); err != nil {
			return err
		}
		for i := 0; i < 2; i++ {
			if _, err := s.port.Write(frame); err != nil {
				return err
			}
		}
		if err := s.port.Drain(); err != nil {
			return err
		}
	}

	setBaud := Command{Body: fmt.Sprintf("%s,%d", CmdSetBaud, target)}
	passes := pol.Retries + 1
	if passes < 1 {
		passes = 1
	}
	for pass := 1; pass <= passes; pass++ {
		for _, rate := range Rates {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := s.port.SetBaud(rate); err != nil {
				return err
			}
			if err := s.Send(setBaud); err != nil {
				return err
			}
		}
		if err := s.port.SetBaud(target); err != nil {
			return err
		}
		_, err := s.Execute(ctx, Command{Body: CmdTest}, TagAck, RetryPolicy{Timeout: pol.Timeout})
		if err == nil {
			log.Printf("baud synchronized rate=%d", target)
			return nil
		}
		if !errors.Is(err, ErrTimeout) && !errors.Is(err, ErrDesync) {
			return err
		}
		log.Printf("no answer at %d (pass %d/%d): %v", target, pass, passes, err)
	}
	return ErrSyncFailed
}
