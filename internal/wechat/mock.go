package wechat

import (
	"context"

	"github.com/rs/zerolog"
)

// MockClient logs outbound messages instead of sending them. Used in dev
// when no gateway is configured.
type MockClient struct {
	Logger zerolog.Logger
}

func (m MockClient) SendText(ctx context.Context, toUser string, content string) error {
	m.Logger.Info().Str("to_user", toUser).Str("content", content).Msg("mock wechat send")
	return nil
}
