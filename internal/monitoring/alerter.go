package monitoring

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/fmv-cli/internal/config"
)

// AlertType identifies the kind of alert.
type AlertType string

const (
	AlertLowCoverage     AlertType = "low_coverage"
	AlertStaleValuations AlertType = "stale_valuations"
	AlertLowConfidence   AlertType = "low_confidence"
)

// minPopulation is the smallest item count that can trigger a rate alert.
const minPopulation = 5

// Alert represents a single alert to be sent.
type Alert struct {
	Type      AlertType      `json:"type"`
	Severity  string         `json:"severity"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
	Timestamp time.Time      `json:"timestamp"`
}

// Alerter evaluates a Snapshot against configured thresholds and sends
// alerts via webhook when thresholds are breached.
type Alerter struct {
	cfg    config.MonitoringConfig
	client *http.Client
}

// NewAlerter creates a new Alerter with the given monitoring config.
func NewAlerter(cfg config.MonitoringConfig) *Alerter {
	return &Alerter{
		cfg:    cfg,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// Evaluate checks the snapshot against thresholds and returns any alerts.
func (a *Alerter) Evaluate(snap *Snapshot) []Alert {
	var alerts []Alert
	now := time.Now().UTC()

	if snap.UnsoldItems >= minPopulation && snap.Coverage < a.cfg.MinCoverage {
		alerts = append(alerts, Alert{
			Type:     AlertLowCoverage,
			Severity: "high",
			Message: fmt.Sprintf(
				"Only %.1f%% of unsold items are priced (%d of %d), threshold %.1f%%",
				snap.Coverage*100, snap.Valued, snap.UnsoldItems, a.cfg.MinCoverage*100,
			),
			Details: map[string]any{
				"coverage":  snap.Coverage,
				"threshold": a.cfg.MinCoverage,
				"unvalued":  snap.Unvalued,
			},
			Timestamp: now,
		})
	}

	if snap.Stale > 0 {
		alerts = append(alerts, Alert{
			Type:     AlertStaleValuations,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%d valuation(s) older than %dh",
				snap.Stale, snap.StaleAfterHours,
			),
			Details: map[string]any{
				"stale":         snap.Stale,
				"latest_run_id": snap.LatestRunID,
			},
			Timestamp: now,
		})
	}

	if a.cfg.LowConfidenceThreshold > 0 && snap.Valued >= minPopulation &&
		snap.LowConfidenceRate > a.cfg.LowConfidenceThreshold {
		alerts = append(alerts, Alert{
			Type:     AlertLowConfidence,
			Severity: "medium",
			Message: fmt.Sprintf(
				"%.1f%% of valuations rest on fewer than 3 sales, threshold %.1f%%",
				snap.LowConfidenceRate*100, a.cfg.LowConfidenceThreshold*100,
			),
			Details: map[string]any{
				"low_confidence": snap.LowConfidence,
				"valued":         snap.Valued,
			},
			Timestamp: now,
		})
	}

	return alerts
}

// SendAlerts delivers alerts to the configured webhook URL.
// Returns the number of alerts successfully sent.
func (a *Alerter) SendAlerts(ctx context.Context, alerts []Alert) int {
	if a.cfg.WebhookURL == "" || len(alerts) == 0 {
		return 0
	}

	sent := 0
	for _, alert := range alerts {
		if err := a.sendWebhook(ctx, alert); err != nil {
			zap.L().Error("monitoring: failed to send alert",
				zap.String("type", string(alert.Type)),
				zap.Error(err),
			)
			continue
		}
		zap.L().Info("monitoring: alert sent",
			zap.String("type", string(alert.Type)),
			zap.String("severity", alert.Severity),
		)
		sent++
	}
	return sent
}

func (a *Alerter) sendWebhook(ctx context.Context, alert Alert) error {
	payload, err := json.Marshal(alert)
	if err != nil {
		return eris.Wrap(err, "monitoring: marshal alert")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.WebhookURL, bytes.NewReader(payload))
	if err != nil {
		return eris.Wrap(err, "monitoring: create webhook request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return eris.Wrap(err, "monitoring: webhook request")
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= 400 {
		return eris.Errorf("monitoring: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
