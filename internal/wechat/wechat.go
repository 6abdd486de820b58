package wechat

import "context"

// Client sends outbound messages to guests through WeChat Work.
type Client interface {
	SendText(ctx context.Context, toUser string, content string) error
}
