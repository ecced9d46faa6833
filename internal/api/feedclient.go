package api

import (
	"context"
	"fmt"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/verte-zerg/keyrace/internal/leaderboard"
)

// DialFeed connects to a /ws/feed endpoint and delivers its entries until ctx
// is done or the server goes away, then closes the channel.
func DialFeed(ctx context.Context, url string, log zerolog.Logger) (<-chan leaderboard.Entry, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to feed: %w", err)
	}
	out := make(chan leaderboard.Entry, sendBuffer)
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()
	go func() {
		defer close(out)
		for {
			var msg OutMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if ctx.Err() == nil && websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Warn().Err(err).Msg("feed connection lost")
				}
				return
			}
			if msg.Type != TypeEntry || msg.Entry == nil {
				continue
			}
			select {
			case out <- *msg.Entry:
			case <-ctx.Done():
				return
			}
		}
	}()
	return out, nil
}
