package alerts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/multierr"

	"github.com/angelmondragon/stockroom/pkg/logger"
)

const (
	telegramBaseURL       = "https://api.telegram.org"
	telegramTimeout       = 5 * time.Second
	defaultPublishTimeout = 10 * time.Second
)

// LogSink writes alerts to the structured log.
type LogSink struct {
	logg *logger.Logger
}

func NewLogSink(logg *logger.Logger) *LogSink {
	return &LogSink{logg: logg}
}

func (s *LogSink) Send(ctx context.Context, alert Alert) error {
	if s == nil || s.logg == nil {
		return nil
	}
	fields := map[string]any{
		"alert_kind":     alert.Kind,
		"alert_severity": alert.Severity,
	}
	for k, v := range alert.Fields {
		fields["alert_"+k] = v
	}
	ctx = s.logg.WithFields(ctx, fields)
	msg := alert.Title
	if alert.Message != "" {
		msg += ": " + strings.ReplaceAll(alert.Message, "\n", "; ")
	}
	if alert.Severity == SeverityInfo {
		s.logg.Info(ctx, msg)
		return nil
	}
	s.logg.Warn(ctx, msg)
	return nil
}

// TelegramSink posts alerts to a chat through the bot API.
type TelegramSink struct {
	botToken string
	chatID   string
	baseURL  string
	client   *http.Client
}

type TelegramOption func(*TelegramSink)

// WithTelegramBaseURL points the sink at another bot API host.
func WithTelegramBaseURL(baseURL string) TelegramOption {
	return func(s *TelegramSink) {
		if trimmed := strings.TrimSpace(baseURL); trimmed != "" {
			s.baseURL = strings.TrimRight(trimmed, "/")
		}
	}
}

func NewTelegramSink(botToken, chatID string, opts ...TelegramOption) (*TelegramSink, error) {
	if strings.TrimSpace(botToken) == "" || strings.TrimSpace(chatID) == "" {
		return nil, errors.New("telegram bot token and chat id are required")
	}
	s := &TelegramSink{
		botToken: botToken,
		chatID:   chatID,
		baseURL:  telegramBaseURL,
		client:   &http.Client{Timeout: telegramTimeout},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s, nil
}

func (s *TelegramSink) Send(ctx context.Context, alert Alert) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)
	form := url.Values{}
	form.Set("chat_id", s.chatID)
	form.Set("text", alert.Text())

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("telegram error: %s", resp.Status)
	}
	return nil
}

type publisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
}

type publishResult interface {
	Get(context.Context) (string, error)
}

// PubSubSink publishes alerts as JSON messages.
type PubSubSink struct {
	pub publisher
}

func NewPubSubSink(p *gcppubsub.Publisher) (*PubSubSink, error) {
	if p == nil {
		return nil, errors.New("pubsub publisher required")
	}
	return &PubSubSink{pub: &gcpPublisher{Publisher: p}}, nil
}

func (s *PubSubSink) Send(ctx context.Context, alert Alert) error {
	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("encode alert: %w", err)
	}
	msg := &gcppubsub.Message{
		Data: data,
		Attributes: map[string]string{
			"alert_kind":     string(alert.Kind),
			"alert_severity": string(alert.Severity),
			"occurred_at":    alert.OccurredAt.Format(time.RFC3339Nano),
		},
	}

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	defer cancel()
	result := s.pub.Publish(publishCtx, msg)
	if result == nil {
		return errors.New("publisher returned nil result")
	}
	if _, err := result.Get(publishCtx); err != nil {
		return fmt.Errorf("publish alert: %w", err)
	}
	return nil
}

type gcpPublisher struct {
	*gcppubsub.Publisher
}

func (p *gcpPublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	if p == nil || p.Publisher == nil {
		return nil
	}
	return p.Publisher.Publish(ctx, msg)
}

// Fanout sends every alert to all sinks and joins their errors.
type Fanout struct {
	sinks []Sink
}

func NewFanout(sinks ...Sink) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

func (f *Fanout) Send(ctx context.Context, alert Alert) error {
	if alert.OccurredAt.IsZero() {
		alert.OccurredAt = time.Now().UTC()
	}
	var err error
	for _, s := range f.sinks {
		err = multierr.Append(err, s.Send(ctx, alert))
	}
	return err
}
