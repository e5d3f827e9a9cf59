package clock

import (
	"context"
	"errors"
	"testing"
	"time"

	"mtk-gps-utils/internal/mtk"
)

func rmc(fields ...string) mtk.Sentence {
	return mtk.Sentence{Fields: fields}
}

func TestTimeFromRMC(t *testing.T) {
	cases := []struct {
		name    string
		in      mtk.Sentence
		want    time.Time
		wantErr bool
	}{
		{
			name: "plain",
			in:   rmc("GPRMC", "123519", "A", "4807.038", "N", "01131.000", "E", "022.4", "084.4", "230394"),
			want: time.Date(2094, 3, 23, 12, 35, 19, 0, time.UTC),
		},
		{
			name: "fractional seconds",
			in:   rmc("GNRMC", "064951.500", "A", "", "", "", "", "", "", "150125"),
			want: time.Date(2025, 1, 15, 6, 49, 51, int(500*time.Millisecond), time.UTC),
		},
		{
			name:    "no fix",
			in:      rmc("GPRMC", "123519", "V", "", "", "", "", "", "", "230394"),
			wantErr: true,
		},
		{
			name:    "missing date",
			in:      rmc("GPRMC", "123519", "A"),
			wantErr: true,
		},
		{
			name:    "short time",
			in:      rmc("GPRMC", "1235", "A", "", "", "", "", "", "", "230394"),
			wantErr: true,
		},
		{
			name:    "garbage digits",
			in:      rmc("GPRMC", "12xx19", "A", "", "", "", "", "", "", "230394"),
			wantErr: true,
		},
		{
			name:    "month out of range",
			in:      rmc("GPRMC", "123519", "A", "", "", "", "", "", "", "231394"),
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := timeFromRMC(tc.in)
			if tc.wantErr {
				if err == nil {
					t.Fatalf("timeFromRMC=%v, want error", got)
				}
				return
			}
			if err != nil {
				t.Fatalf("timeFromRMC: %v", err)
			}
			if !got.Equal(tc.want) {
				t.Fatalf("timeFromRMC=%v want %v", got, tc.want)
			}
		})
	}
}

// fakeSource plays back a fixed sequence of sentences.
type fakeSource struct {
	seq []mtk.Sentence
	err error
}

func (f *fakeSource) AwaitTag(ctx context.Context, timeout time.Duration, tags ...string) (mtk.Sentence, error) {
	if err := ctx.Err(); err != nil {
		return mtk.Sentence{}, err
	}
	if len(f.seq) == 0 {
		return mtk.Sentence{}, f.errOr(mtk.ErrTimeout)
	}
	s := f.seq[0]
	f.seq = f.seq[1:]
	return s, nil
}

func (f *fakeSource) errOr(def error) error {
	if f.err != nil {
		return f.err
	}
	return def
}

func swapHooks(t *testing.T, priv bool, set func(time.Time) error) {
	t.Helper()
	oldPriv, oldSet := privileged, setClock
	privileged = func() bool { return priv }
	setClock = set
	t.Cleanup(func() {
		privileged = oldPriv
		setClock = oldSet
	})
}

func TestSetFromGPS(t *testing.T) {
	var got time.Time
	swapHooks(t, true, func(ts time.Time) error {
		got = ts
		return nil
	})
	src := &fakeSource{seq: []mtk.Sentence{
		rmc("GPRMC", "123519", "V", "", "", "", "", "", "", "230394"),
		rmc("GPRMC", "123520", "A", "", "", "", "", "", "", "230394"),
	}}

	if err := SetFromGPS(context.Background(), src, time.Second); err != nil {
		t.Fatalf("SetFromGPS: %v", err)
	}
	want := time.Date(2094, 3, 23, 12, 35, 20, 0, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("clock set to %v want %v", got, want)
	}
}

func TestSetFromGPSUnprivileged(t *testing.T) {
	swapHooks(t, false, func(time.Time) error {
		t.Fatal("clock set despite missing privilege")
		return nil
	})
	src := &fakeSource{}

	if err := SetFromGPS(context.Background(), src, time.Second); !errors.Is(err, ErrPrivilege) {
		t.Fatalf("err=%v want ErrPrivilege", err)
	}
}

func TestSetFromGPSCancelled(t *testing.T) {
	swapHooks(t, true, func(time.Time) error {
		t.Fatal("clock set after cancellation")
		return nil
	})
	src := &fakeSource{seq: []mtk.Sentence{
		rmc("GPRMC", "123520", "A", "", "", "", "", "", "", "230394"),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := SetFromGPS(ctx, src, time.Second); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

func TestSetFromGPSNoValidFix(t *testing.T) {
	swapHooks(t, true, func(time.Time) error {
		t.Fatal("clock set from an invalid fix")
		return nil
	})
	src := &fakeSource{seq: []mtk.Sentence{
		rmc("GPRMC", "123519", "V", "", "", "", "", "", "", "230394"),
	}}

	err := SetFromGPS(context.Background(), src, time.Second)
	if !errors.Is(err, mtk.ErrTimeout) {
		t.Fatalf("err=%v want ErrTimeout", err)
	}
}
