package mtk

import "errors"

// Failure modes surfaced to callers. The command runner and the CLIs match
// these with errors.Is to decide between retrying, skipping a line and
// aborting outright.
var (
	// ErrTimeout reports that no matching response arrived within the
	// per-attempt deadline, across all attempts.
	ErrTimeout = errors.New("mtk: response timeout")

	// ErrNotAcknowledged reports that the chip answered but refused the
	// command (ack flag other than success).
	ErrNotAcknowledged = errors.New("mtk: command not acknowledged")

	// ErrDesync reports that the inbound stream kept producing frames
	// unrelated to the awaited tag.
	ErrDesync = errors.New("mtk: channel desynchronized")

	// ErrSyncFailed reports that baud synchronization gave up after its
	// retry budget.
	ErrSyncFailed = errors.New("mtk: baud synchronization failed")

	// ErrBusy reports that the serial device is held by another process.
	ErrBusy = errors.New("mtk: device busy")

	// ErrReadTimeout reports a single expired port read. Transient; the
	// session's listener loops over it.
	ErrReadTimeout = errors.New("mtk: port read timed out")

	// ErrNoFrame reports that the byte stream ended before a complete frame.
	ErrNoFrame = errors.New("mtk: stream ended mid-frame")
)
