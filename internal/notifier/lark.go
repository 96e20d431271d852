package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/ninja0404/whale-signal/pkg/logger"
)

// larkTextMessageContent 飞书文本消息内容结构
type larkTextMessageContent struct {
	Text string `json:"text"`
}

// larkMessage 飞书机器人消息结构
type larkMessage struct {
	MsgType string                 `json:"msg_type"`
	Content larkTextMessageContent `json:"content"`
}

// larkResponse 飞书机器人响应结构
type larkResponse struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

// LarkClient 飞书机器人 webhook
type LarkClient struct {
	webhookURL string
	httpClient *resty.Client
}

// NewLarkClient httpClient 为空时使用默认超时 10s
func NewLarkClient(webhookURL string, httpClient *resty.Client) *LarkClient {
	if httpClient == nil {
		httpClient = resty.New().SetTimeout(10 * time.Second)
	}
	return &LarkClient{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

// Send 发送文本消息到飞书
func (c *LarkClient) Send(ctx context.Context, messageText string) error {
	if c.webhookURL == "" {
		return fmt.Errorf("飞书 Webhook URL 为空")
	}
	if messageText == "" {
		logger.Warn("尝试发送空消息到飞书，已跳过")
		return nil
	}

	var larkResp larkResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(larkMessage{
			MsgType: "text",
			Content: larkTextMessageContent{Text: messageText},
		}).
		ForceContentType("application/json").
		SetResult(&larkResp).
		SetError(&larkResp).
		Post(c.webhookURL)
	if err != nil {
		return fmt.Errorf("发送飞书消息失败: %w", err)
	}

	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("发送飞书消息返回错误状态码 %d, Code: %d, Msg: %s", resp.StatusCode(), larkResp.Code, larkResp.Msg)
	}
	if larkResp.Code != 0 {
		return fmt.Errorf("飞书API返回错误 Code: %d, Msg: %s", larkResp.Code, larkResp.Msg)
	}

	logger.Debug("成功发送消息到飞书")
	return nil
}
