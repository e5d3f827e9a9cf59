// Package clock sets the host realtime clock from a GPS receiver's RMC
// sentences.
package clock

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"mtk-gps-utils/internal/mtk"
)

// ErrPrivilege reports that setting the system clock needs root.
var ErrPrivilege = errors.New("clock: setting the system clock requires root")

// Source is the slice of the session the clock reads from. *mtk.Session
// satisfies it.
type Source interface {
	AwaitTag(ctx context.Context, timeout time.Duration, tags ...string) (mtk.Sentence, error)
}

// Swapped out in tests.
var (
	privileged = isPrivileged
	setClock   = setSystemClock
)

// SetFromGPS waits for a valid RMC sentence and programs the host realtime
// clock from its UTC time. It keeps consuming RMC sentences until one
// carries a valid fix, the timeout runs out or ctx ends.
func SetFromGPS(ctx context.Context, src Source, timeout time.Duration) error {
	if !privileged() {
		return ErrPrivilege
	}
	deadline := time.Now().Add(timeout)
	for {
		remain := time.Until(deadline)
		if remain <= 0 {
			return fmt.Errorf("no valid RMC sentence: %w", mtk.ErrTimeout)
		}
		sent, err := src.AwaitTag(ctx, remain, "GPRMC", "GNRMC")
		if errors.Is(err, mtk.ErrDesync) {
			// A busy sentence mix can trip the unrelated-frame cap before
			// the next RMC shows up; keep waiting.
			continue
		}
		if err != nil {
			return err
		}
		t, err := timeFromRMC(sent)
		if err != nil {
			continue
		}
		if err := setClock(t); err != nil {
			return err
		}
		return nil
	}
}

// timeFromRMC extracts UTC from an RMC sentence: hhmmss.sss in field 1,
// status in field 2 and ddmmyy in field 9. Sentences without a valid fix
// (status other than "A") are rejected, chips report a bogus default date
// until they have one.
func timeFromRMC(s mtk.Sentence) (time.Time, error) {
	if s.Field(2) != "A" {
		return time.Time{}, fmt.Errorf("no fix (status %q)", s.Field(2))
	}
	clk := s.Field(1)
	date := s.Field(9)
	if len(clk) < 6 || len(date) != 6 {
		return time.Time{}, fmt.Errorf("short time %q / date %q", clk, date)
	}
	hh, err1 := strconv.Atoi(clk[0:2])
	mi, err2 := strconv.Atoi(clk[2:4])
	ss, err3 := strconv.Atoi(clk[4:6])
	dd, err4 := strconv.Atoi(date[0:2])
	mo, err5 := strconv.Atoi(date[2:4])
	yy, err6 := strconv.Atoi(date[4:6])
	for _, err := range []error{err1, err2, err3, err4, err5, err6} {
		if err != nil {
			return time.Time{}, fmt.Errorf("bad time %q / date %q", clk, date)
		}
	}
	nsec := 0
	if len(clk) > 7 && clk[6] == '.' {
		frac, err := strconv.ParseFloat(clk[6:], 64)
		if err != nil {
			return time.Time{}, fmt.Errorf("bad time fraction %q", clk)
		}
		nsec = int(frac * float64(time.Second))
	}
	if mo < 1 || mo > 12 || dd < 1 || dd > 31 || hh > 23 || mi > 59 || ss > 60 {
		return time.Time{}, fmt.Errorf("out of range time %q / date %q", clk, date)
	}
	return time.Date(2000+yy, time.Month(mo), dd, hh, mi, ss, nsec, time.UTC), nil
}
