package handler

import (
	"bufio"
	"fmt"
	"log/slog"
	"time"

	"github.com/gofiber/fiber/v3"
)

// live is a view kept mounted for the lifetime of an event stream.
type live struct {
	name    string
	mount   func(changed func())
	unmount func()
	render  func() (any, error)
}

// stream sends a snapshot event after every change of v until the client
// goes away or the handler is closed. The view is mounted inside the
// stream writer, so it lives exactly as long as the connection.
func (h *Handler) stream(c fiber.Ctx, v live) error {
	encode := c.App().Config().JSONEncoder

	c.Set("Content-Type", "text/event-stream")
	c.Set("Cache-Control", "no-cache")
	c.Set("Connection", "keep-alive")
	c.Set("X-Accel-Buffering", "no")

	return c.SendStreamWriter(func(w *bufio.Writer) {
		changes := make(chan struct{}, 1)
		v.mount(func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
		defer v.unmount()
		slog.Debug("stream opened", "view", v.name)
		defer slog.Debug("stream closed", "view", v.name)

		keepAlive := time.NewTicker(h.keepAlive)
		defer keepAlive.Stop()

		for {
			select {
			case <-h.done:
				return
			case <-keepAlive.C:
				if _, err := w.WriteString(": ping\n\n"); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
			case <-changes:
				payload, err := v.render()
				event := "snapshot"
				if err != nil {
					_, msg := classify(err)
					event, payload = "error", ErrorResponse{Error: msg}
				}
				data, encErr := encode(payload)
				if encErr != nil {
					slog.Error("failed to encode event", "view", v.name, "error", encErr)
					return
				}
				if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
					return
				}
				if err := w.Flush(); err != nil {
					return
				}
				if event == "error" {
					return
				}
			}
		}
	})
}
