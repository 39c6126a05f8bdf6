package stream

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/star/dopplertrack/internal/metrics"
)

// writeTimeout bounds a single SSE write once the server deadline is cleared.
const writeTimeout = 30 * time.Second

// client writes to one SSE connection.
type client struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
	ip      string
	logger  *slog.Logger

	messages int64
}

// write sends one SSE frame under a fresh write deadline and flushes it.
func (c *client) write(frame string) error {
	if err := c.rc.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		c.logger.Debug("could not set write deadline", "error", err)
	}
	if _, err := io.WriteString(c.w, frame); err != nil {
		return err
	}
	c.flusher.Flush()
	return nil
}

// sendJSON sends v as a "data: {json}\n\n" event.
func (c *client) sendJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := c.write("data: " + string(data) + "\n\n"); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	c.messages++
	metrics.IncStreamMessages()
	return nil
}

// sendKeepalive sends the ":\n\n" comment.
func (c *client) sendKeepalive() error {
	if err := c.write(":\n\n"); err != nil {
		return fmt.Errorf("keepalive write: %w", err)
	}
	return nil
}
