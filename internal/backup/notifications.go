package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"xtrabackup-runner/internal/logging"
)

// AlertSeverity grades cycle events for notification filtering.
type AlertSeverity string

const (
	AlertSeverityInfo     AlertSeverity = "info"
	AlertSeverityWarning  AlertSeverity = "warning"
	AlertSeverityError    AlertSeverity = "error"
	AlertSeverityCritical AlertSeverity = "critical"
)

// CycleAlert is one notification-worthy event from a cycle.
type CycleAlert struct {
	CycleID   string                 `json:"cycle_id"`
	Severity  AlertSeverity          `json:"severity"`
	Title     string                 `json:"title"`
	Message   string                 `json:"message"`
	Timestamp time.Time              `json:"timestamp"`
	Details   map[string]interface{} `json:"details,omitempty"`
	Color     string                 `json:"color,omitempty"`
	IconEmoji string                 `json:"icon_emoji,omitempty"`
}

// NotificationChannel delivers alerts through one transport.
type NotificationChannel interface {
	Send(ctx context.Context, alert CycleAlert) error
	GetType() string
	IsEnabled() bool
}

// Notifier fans cycle alerts out to the configured channels. Delivery
// failures are logged and never affect the cycle outcome.
type Notifier struct {
	cfg      NotificationsConfig
	logger   *logging.Logger
	channels []NotificationChannel
}

// NewNotifier builds a notifier from the configured channels.
func NewNotifier(cfg NotificationsConfig, logger *logging.Logger) *Notifier {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}

	n := &Notifier{
		cfg:    cfg,
		logger: logger,
	}

	if cfg.Webhook != nil {
		n.channels = append(n.channels, NewWebhookChannel(*cfg.Webhook))
	}
	if cfg.Slack != nil {
		n.channels = append(n.channels, NewSlackChannel(*cfg.Slack))
	}
	if cfg.File != nil {
		n.channels = append(n.channels, NewFileChannel(*cfg.File))
	}

	return n
}

// NotifyResult converts a cycle result into an alert and delivers it. The
// returned error is informational; callers log it and move on.
func (n *Notifier) NotifyResult(ctx context.Context, result CycleResult) error {
	alert := alertForResult(result)
	return n.Notify(ctx, alert)
}

// Notify delivers an alert through every enabled channel, honoring the
// minimum-severity filter.
func (n *Notifier) Notify(ctx context.Context, alert CycleAlert) error {
	if !n.cfg.Enabled {
		return nil
	}
	if !severityMeetsThreshold(alert.Severity, AlertSeverity(n.cfg.MinSeverity)) {
		n.logger.WithFields(map[string]interface{}{
			"cycle_id": alert.CycleID,
			"severity": string(alert.Severity),
		}).Debug("Alert below notification threshold, skipped")
		return nil
	}

	decorate(&alert)

	var failures []string
	sent := 0
	for _, channel := range n.channels {
		if !channel.IsEnabled() {
			continue
		}
		if err := channel.Send(ctx, alert); err != nil {
			failures = append(failures, fmt.Sprintf("%s: %v", channel.GetType(), err))
			n.logger.WithFields(map[string]interface{}{
				"channel":  channel.GetType(),
				"cycle_id": alert.CycleID,
				"error":    err.Error(),
			}).Warn("Notification delivery failed")
			continue
		}
		sent++
	}

	if len(failures) > 0 && sent == 0 {
		return fmt.Errorf("all notification channels failed: %s", strings.Join(failures, "; "))
	}

	return nil
}

// alertForResult maps a cycle outcome to an alert. Successful cycles rate
// info; credential rejections rate critical because they never self-heal.
func alertForResult(result CycleResult) CycleAlert {
	alert := CycleAlert{
		CycleID:   result.CycleID,
		Timestamp: time.Now().UTC(),
		Details: map[string]interface{}{
			"decision": string(result.Decision),
			"reason":   string(result.Reason),
			"duration": result.Duration.String(),
		},
	}

	switch result.Status {
	case CycleStatusBackupAdded:
		alert.Severity = AlertSeverityInfo
		alert.Title = "Backup added"
		alert.Message = fmt.Sprintf("Backup cycle added %s", result.TargetDir)
	case CycleStatusArchivedAndBaseAdded:
		alert.Severity = AlertSeverityInfo
		alert.Title = "Chain sealed, fresh base taken"
		alert.Message = "Backup chain archived and a new base backup was taken"
		if result.Archive != nil {
			alert.Details["archive"] = result.Archive.Path
		}
	default:
		alert.Severity = AlertSeverityError
		alert.Title = "Backup cycle failed"
		if result.Err != nil {
			alert.Message = result.Err.Error()
			if IsAuthRejected(result.Err) {
				alert.Severity = AlertSeverityCritical
				alert.Title = "Backup credentials rejected"
			}
		}
	}

	return alert
}

func severityMeetsThreshold(severity, min AlertSeverity) bool {
	levels := map[AlertSeverity]int{
		AlertSeverityInfo:     1,
		AlertSeverityWarning:  2,
		AlertSeverityError:    3,
		AlertSeverityCritical: 4,
	}

	level, ok := levels[severity]
	if !ok {
		return false
	}
	minLevel, ok := levels[min]
	if !ok {
		return true
	}

	return level >= minLevel
}

// decorate assigns visual hints Slack-style channels use.
func decorate(alert *CycleAlert) {
	switch alert.Severity {
	case AlertSeverityInfo:
		alert.Color = "#36a64f"
		alert.IconEmoji = ":information_source:"
	case AlertSeverityWarning:
		alert.Color = "#ff9900"
		alert.IconEmoji = ":warning:"
	default:
		alert.Color = "#ff0000"
		alert.IconEmoji = ":rotating_light:"
	}
}

// WebhookChannel posts alerts as JSON to a generic HTTP endpoint.
type WebhookChannel struct {
	config WebhookChannelConfig
	client *http.Client
}

// NewWebhookChannel creates a webhook notification channel.
func NewWebhookChannel(config WebhookChannelConfig) *WebhookChannel {
	timeout := time.Duration(config.TimeoutSeconds) * time.Second
	if timeout == 0 {
		timeout = 10 * time.Second
	}

	return &WebhookChannel{
		config: config,
		client: &http.Client{Timeout: timeout},
	}
}

// Send posts the alert to the configured URL.
func (wc *WebhookChannel) Send(ctx context.Context, alert CycleAlert) error {
	if wc.config.URL == "" {
		return fmt.Errorf("webhook URL not configured")
	}

	payload, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, wc.config.URL, strings.NewReader(string(payload)))
	if err != nil {
		return fmt.Errorf("failed to create webhook request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	for key, value := range wc.config.Headers {
		req.Header.Set(key, value)
	}

	resp, err := wc.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned error status: %d", resp.StatusCode)
	}

	return nil
}

// GetType returns the channel type.
func (wc *WebhookChannel) GetType() string {
	return "webhook"
}

// IsEnabled checks if the channel is enabled.
func (wc *WebhookChannel) IsEnabled() bool {
	return wc.config.URL != ""
}

// SlackChannel posts alerts to a Slack incoming webhook.
type SlackChannel struct {
	config SlackChannelConfig
	client *http.Client
}

// NewSlackChannel creates a Slack notification channel.
func NewSlackChannel(config SlackChannelConfig) *SlackChannel {
	return &SlackChannel{
		config: config,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// Send posts the alert as a Slack attachment.
func (sc *SlackChannel) Send(ctx context.Context, alert CycleAlert) error {
	if sc.config.WebhookURL == "" {
		return fmt.Errorf("Slack webhook URL not configured")
	}

	fields := []map[string]interface{}{
		{"title": "Cycle", "value": alert.CycleID, "short": true},
		{"title": "Severity", "value": string(alert.Severity), "short": true},
	}
	for key, value := range alert.Details {
		fields = append(fields, map[string]interface{}{
			"title": key,
			"value": fmt.Sprintf("%v", value),
			"short": true,
		})
	}

	payload := map[string]interface{}{
		"text": fmt.Sprintf("%s %s", alert.IconEmoji, alert.Title),
		"attachments": []map[string]interface{}{
			{
				"color":     alert.Color,
				"title":     alert.Title,
				"text":      alert.Message,
				"timestamp": alert.Timestamp.Unix(),
				"fields":    fields,
			},
		},
	}

	if sc.config.Channel != "" {
		payload["channel"] = sc.config.Channel
	}
	if sc.config.Username != "" {
		payload["username"] = sc.config.Username
	}

	jsonPayload, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal Slack payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sc.config.WebhookURL, strings.NewReader(string(jsonPayload)))
	if err != nil {
		return fmt.Errorf("failed to create Slack request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := sc.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Slack notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("Slack returned error status: %d", resp.StatusCode)
	}

	return nil
}

// GetType returns the channel type.
func (sc *SlackChannel) GetType() string {
	return "slack"
}

// IsEnabled checks if the channel is enabled.
func (sc *SlackChannel) IsEnabled() bool {
	return sc.config.WebhookURL != ""
}

// FileChannel appends alerts to a local file, one JSON object per line.
type FileChannel struct {
	config FileChannelConfig
}

// NewFileChannel creates a file notification channel.
func NewFileChannel(config FileChannelConfig) *FileChannel {
	return &FileChannel{config: config}
}

// Send appends the alert to the configured file.
func (fc *FileChannel) Send(ctx context.Context, alert CycleAlert) error {
	if fc.config.Path == "" {
		return fmt.Errorf("notification file path not configured")
	}

	data, err := json.Marshal(alert)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	file, err := os.OpenFile(fc.config.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open notification file: %w", err)
	}
	defer file.Close()

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write notification: %w", err)
	}

	return nil
}

// GetType returns the channel type.
func (fc *FileChannel) GetType() string {
	return "file"
}

// IsEnabled checks if the channel is enabled.
func (fc *FileChannel) IsEnabled() bool {
	return fc.config.Path != ""
}
