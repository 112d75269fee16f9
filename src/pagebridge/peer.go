package pagebridge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/gorilla/websocket"
)

// Serve runs the peer side of the bridge socket: it announces itself as the
// active page and answers requests with d until ctx ends or the socket
// closes.
func Serve(ctx context.Context, conn *websocket.Conn, d *Dispatcher, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pagebridge_peer")

	var writeMu sync.Mutex
	write := func(v any) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	if err := write(peerFrame{Type: FrameHello, Active: true}); err != nil {
		return fmt.Errorf("failed to send hello: %w", err)
	}

	stop := context.AfterFunc(ctx, func() { conn.Close() })
	defer stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}

		var frame requestFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			logger.Warn("invalid request frame", "error", err)
			continue
		}
		if frame.Type != FrameRequest {
			continue
		}

		req := frame.Request
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp := d.Handle(ctx, &req)
			if err := write(peerFrame{Type: FrameResponse, Response: *resp}); err != nil {
				logger.Warn("failed to send response", "id", req.ID, "error", err)
			}
		}()
	}
}
