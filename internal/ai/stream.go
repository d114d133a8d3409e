package ai

import (
	"context"
	"io"
	"net/http"
)

// relayBufferSize is the chunk granularity of the SSE relay. Small enough
// that tokens reach the client as they arrive.
const relayBufferSize = 4 * 1024

// RelayChatStream forwards the caller's completion payload to the
// upstream streaming endpoint and copies the event stream back chunk by
// chunk, in arrival order, without buffering the whole response.
//
// If the upstream call fails before any byte has been relayed, the error
// is returned so the caller can emit a structured failure. Once relaying
// has begun the response is already partially written; a mid-stream
// upstream failure just ends the stream.
func (c *Client) RelayChatStream(ctx context.Context, payload io.Reader, w http.ResponseWriter) error {
	resp, err := c.openStream(ctx, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	buf := make([]byte, relayBufferSize)
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				// Client went away; stop pulling from upstream.
				return nil
			}
			if flusher != nil {
				flusher.Flush()
			}
		}
		if err != nil {
			// io.EOF is the normal end of stream. Any other failure after
			// bytes have flowed cannot be reported in-band.
			return nil
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}
