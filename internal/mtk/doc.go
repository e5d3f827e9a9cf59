// Package mtk talks to MediaTek GPS receivers over a serial line. It frames
// and parses the chip's text and binary command protocols, runs a send/await
// engine with bounded retries on top of an exclusive serial port, and can
// synchronize a channel whose baud rate is unknown on both ends.
package mtk
