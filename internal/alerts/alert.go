package alerts

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/angelmondragon/stockroom/internal/inventory"
)

type Kind string

const (
	KindLowStock       Kind = "low_stock"
	KindRestockStarted Kind = "restock_started"
	KindTaskFailed     Kind = "task_failed"
)

type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Alert is an operator notification.
type Alert struct {
	Kind       Kind           `json:"kind"`
	Severity   Severity       `json:"severity"`
	Title      string         `json:"title"`
	Message    string         `json:"message"`
	Fields     map[string]any `json:"fields,omitempty"`
	OccurredAt time.Time      `json:"occurredAt"`
}

// Sink delivers alerts somewhere an operator will see them.
type Sink interface {
	Send(ctx context.Context, alert Alert) error
}

// RestockOutcome is the per-product result of a restock attempt.
type RestockOutcome struct {
	ProductID   string `json:"productId"`
	JobID       string `json:"jobId,omitempty"`
	TargetCount int    `json:"targetCount,omitempty"`
	Skipped     string `json:"skipped,omitempty"`
	Error       string `json:"error,omitempty"`
}

func LowStock(products []inventory.LowStockProduct, threshold int, now time.Time) Alert {
	lines := make([]string, 0, len(products))
	for _, p := range products {
		lines = append(lines, fmt.Sprintf("%s: %d available", p.ProductID, p.AvailableItems))
	}
	return Alert{
		Kind:       KindLowStock,
		Severity:   SeverityWarning,
		Title:      fmt.Sprintf("%d product(s) below stock threshold %d", len(products), threshold),
		Message:    strings.Join(lines, "\n"),
		Fields:     map[string]any{"threshold": threshold, "products": len(products)},
		OccurredAt: now,
	}
}

func RestockStarted(outcomes []RestockOutcome, now time.Time) Alert {
	launched, failed := 0, 0
	lines := make([]string, 0, len(outcomes))
	for _, o := range outcomes {
		switch {
		case o.Error != "":
			failed++
			lines = append(lines, fmt.Sprintf("%s: failed (%s)", o.ProductID, o.Error))
		case o.Skipped != "":
			lines = append(lines, fmt.Sprintf("%s: skipped (%s)", o.ProductID, o.Skipped))
		default:
			launched++
			lines = append(lines, fmt.Sprintf("%s: job %s for %d items", o.ProductID, o.JobID, o.TargetCount))
		}
	}
	severity := SeverityInfo
	if failed > 0 {
		severity = SeverityWarning
	}
	return Alert{
		Kind:       KindRestockStarted,
		Severity:   severity,
		Title:      fmt.Sprintf("Restock: %d launched, %d failed", launched, failed),
		Message:    strings.Join(lines, "\n"),
		Fields:     map[string]any{"launched": launched, "failed": failed},
		OccurredAt: now,
	}
}

func TaskFailed(task string, err error, now time.Time) Alert {
	msg := ""
	if err != nil {
		msg = err.Error()
	}
	return Alert{
		Kind:       KindTaskFailed,
		Severity:   SeverityCritical,
		Title:      fmt.Sprintf("Scheduled task %s failed", task),
		Message:    msg,
		Fields:     map[string]any{"task": task},
		OccurredAt: now,
	}
}

// Text renders an alert as plain text with fields in key order.
func (a Alert) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", strings.ToUpper(string(a.Severity)), a.Title)
	if a.Message != "" {
		b.WriteString("\n")
		b.WriteString(a.Message)
	}
	keys := make([]string, 0, len(a.Fields))
	for k := range a.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fmt.Fprintf(&b, "\n%s: %v", k, a.Fields[k])
	}
	return b.String()
}
