package alerts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
)

// deliver sends webhook notifications for a to all configured targets.
// Errors are logged but do not affect the caller.
func (e *Engine) deliver(a *Alert) {
	for _, wh := range e.webhooks {
		target := wh.URL()
		if target == "" {
			continue
		}

		var err error
		switch wh.Type {
		case "slack":
			err = e.sendSlack(target, a)
		case "teams":
			err = e.sendTeams(target, a)
		case "pagerduty":
			err = e.sendPagerDuty(target, a)
		case "http":
			err = e.sendHTTP(target, a)
		default:
			slog.Warn("alerts: unknown webhook type, skipping", "type", wh.Type)
			continue
		}

		if err != nil {
			slog.Error("alerts: webhook delivery failed",
				"type", wh.Type,
				"rule", a.RuleName,
				"dataset", a.DatasetID,
				"err", err,
			)
		} else {
			slog.Debug("alerts: webhook delivered",
				"type", wh.Type,
				"rule", a.RuleName,
				"state", a.State,
			)
		}
	}
}

func (e *Engine) sendSlack(endpoint string, a *Alert) error {
	body, _ := json.Marshal(map[string]string{
		"text": fmt.Sprintf("*%s* %s", severityLabel(a.Severity), a.Message),
	})
	return e.post(endpoint, body)
}

func (e *Engine) sendTeams(endpoint string, a *Alert) error {
	payload := map[string]interface{}{
		"@type":      "MessageCard",
		"@context":   "http://schema.org/extensions",
		"themeColor": severityColor(a.Severity),
		"summary":    a.RuleName,
		"title":      fmt.Sprintf("delayboard alert: %s", a.RuleName),
		"text":       a.Message,
	}
	body, _ := json.Marshal(payload)
	return e.post(endpoint, body)
}

// sendPagerDuty posts an Events API v2 event. The integration key is expected
// in the URL's routing_key query parameter.
func (e *Engine) sendPagerDuty(rawURL string, a *Alert) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("parse url: %w", err)
	}
	q := u.Query()
	routingKey := q.Get("routing_key")
	q.Del("routing_key")
	u.RawQuery = q.Encode()

	action := "trigger"
	if a.State == StateResolved {
		action = "resolve"
	}
	body, _ := json.Marshal(map[string]interface{}{
		"routing_key":  routingKey,
		"event_action": action,
		"dedup_key":    a.RuleName + ":" + a.DatasetID,
		"payload": map[string]interface{}{
			"summary":  a.Message,
			"source":   a.DatasetID,
			"severity": pagerDutySeverity(a.Severity),
			"custom_details": map[string]interface{}{
				"rule":  a.RuleName,
				"value": a.Value,
			},
		},
	})
	return e.post(u.String(), body)
}

func (e *Engine) sendHTTP(endpoint string, a *Alert) error {
	body, _ := json.Marshal(map[string]interface{}{"alert": a})
	return e.post(endpoint, body)
}

func (e *Engine) post(endpoint string, body []byte) error {
	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("http post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("webhook returned HTTP %d", resp.StatusCode)
	}
	return nil
}

func severityLabel(s string) string {
	switch s {
	case "critical":
		return "[CRITICAL]"
	case "warning":
		return "[WARNING]"
	default:
		return "[INFO]"
	}
}

func pagerDutySeverity(s string) string {
	switch s {
	case "critical", "warning":
		return s
	default:
		return "info"
	}
}

func severityColor(s string) string {
	switch s {
	case "critical":
		return "FF4F6A"
	case "warning":
		return "FFAB40"
	default:
		return "00D4FF"
	}
}
