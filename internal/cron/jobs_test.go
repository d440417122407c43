package cron

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/angelmondragon/stockroom/internal/alerts"
	"github.com/angelmondragon/stockroom/internal/automation"
	"github.com/angelmondragon/stockroom/internal/inventory"
	"github.com/angelmondragon/stockroom/internal/profiles"
	jobservicewebhook "github.com/angelmondragon/stockroom/internal/webhooks/jobservice"
	"github.com/angelmondragon/stockroom/pkg/db/models"
)

type fakeLedger struct {
	low   []inventory.LowStockProduct
	stats map[string]models.InventoryStats
	err   error
}

func (f *fakeLedger) GetLowStockProducts(context.Context, int) ([]inventory.LowStockProduct, error) {
	return f.low, f.err
}

func (f *fakeLedger) GetStats(_ context.Context, productID string) (models.InventoryStats, error) {
	return f.stats[productID], nil
}

type fakeProfiles struct {
	byID map[string]profiles.Profile
}

func (f *fakeProfiles) ForProducts(_ context.Context, ids []string) (map[string]profiles.Profile, error) {
	out := map[string]profiles.Profile{}
	for _, id := range ids {
		if p, ok := f.byID[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (f *fakeProfiles) ListActive(context.Context) ([]profiles.Profile, error) {
	out := []profiles.Profile{}
	for _, p := range f.byID {
		if p.Active {
			out = append(out, p)
		}
	}
	return out, nil
}

type fakeAutomation struct {
	collections []automation.CollectionInput
	validations []automation.ValidationInput
	failFor     string
}

func (f *fakeAutomation) RequestInventory(_ context.Context, in automation.CollectionInput) (automation.JobLaunch, error) {
	f.collections = append(f.collections, in)
	if in.ProductID == f.failFor {
		return automation.JobLaunch{}, errors.New("job service down")
	}
	return automation.JobLaunch{ProductID: in.ProductID, JobID: "J-" + in.ProductID, Launched: true}, nil
}

func (f *fakeAutomation) ValidateItems(_ context.Context, in automation.ValidationInput) (automation.JobLaunch, error) {
	f.validations = append(f.validations, in)
	if in.ProductID == f.failFor {
		return automation.JobLaunch{}, errors.New("job service down")
	}
	return automation.JobLaunch{ProductID: in.ProductID, Launched: true}, nil
}

func TestStockMonitorLaunchesRestocksAndIsolatesFailures(t *testing.T) {
	ledger := &fakeLedger{low: []inventory.LowStockProduct{
		{ProductID: "p1", AvailableItems: 3},
		{ProductID: "p2", AvailableItems: 0},
		{ProductID: "p3", AvailableItems: 1},
		{ProductID: "p4", AvailableItems: 2},
	}}
	profileSet := &fakeProfiles{byID: map[string]profiles.Profile{
		"p1": {ProductID: "p1", CollectionConfigID: "c1", Active: true},
		"p2": {ProductID: "p2", CollectionConfigID: "c2", Active: true, RestockBaseline: 250},
		"p3": {ProductID: "p3", CollectionConfigID: "c3", Active: false},
		"p4": {ProductID: "p4", CollectionConfigID: "c4", Active: true},
	}}
	auto := &fakeAutomation{failFor: "p4"}
	sink := &recordingSink{}

	job, err := NewStockMonitorJob(StockMonitorJobParams{
		Logger:     testLogger(),
		Ledger:     ledger,
		Profiles:   profileSet,
		Automation: auto,
		Alerts:     sink,
		Threshold:  10,
		Baseline:   100,
	})
	if err != nil {
		t.Fatalf("NewStockMonitorJob: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "restock p4") {
		t.Fatalf("expected p4 failure to be reported, got %v", err)
	}

	if len(auto.collections) != 3 {
		t.Fatalf("expected 3 launch attempts, got %d", len(auto.collections))
	}
	targets := map[string]int{}
	for _, c := range auto.collections {
		targets[c.ProductID] = c.TargetCount
	}
	if targets["p1"] != 100 || targets["p2"] != 250 {
		t.Fatalf("unexpected restock targets %v", targets)
	}

	if sink.count() != 2 {
		t.Fatalf("expected low stock and restock alerts, got %d", sink.count())
	}
	if sink.got[0].Kind != alerts.KindLowStock || sink.got[1].Kind != alerts.KindRestockStarted {
		t.Fatalf("unexpected alert kinds %s, %s", sink.got[0].Kind, sink.got[1].Kind)
	}
	if !strings.Contains(sink.got[1].Message, "p3: skipped") {
		t.Fatalf("inactive profile should be reported as skipped: %s", sink.got[1].Message)
	}
}

func TestStockMonitorQuietWhenStockHealthy(t *testing.T) {
	sink := &recordingSink{}
	job, err := NewStockMonitorJob(StockMonitorJobParams{
		Logger:     testLogger(),
		Ledger:     &fakeLedger{},
		Profiles:   &fakeProfiles{},
		Automation: &fakeAutomation{},
		Alerts:     sink,
		Threshold:  10,
	})
	if err != nil {
		t.Fatalf("NewStockMonitorJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sink.count() != 0 {
		t.Fatal("no alerts expected when stock is healthy")
	}
}

func TestStockMonitorPropagatesLookupErrors(t *testing.T) {
	job, _ := NewStockMonitorJob(StockMonitorJobParams{
		Logger:     testLogger(),
		Ledger:     &fakeLedger{err: errors.New("db down")},
		Profiles:   &fakeProfiles{},
		Automation: &fakeAutomation{},
		Alerts:     &recordingSink{},
		Threshold:  10,
	})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func TestValidationSweepOnlyLaunchesForBacklog(t *testing.T) {
	ledger := &fakeLedger{stats: map[string]models.InventoryStats{
		"p1": {ProductID: "p1", UncheckedItems: 4},
		"p2": {ProductID: "p2", UncheckedItems: 0},
		"p3": {ProductID: "p3", UncheckedItems: 9},
		"p4": {ProductID: "p4", UncheckedItems: 2},
	}}
	profileSet := &fakeProfiles{byID: map[string]profiles.Profile{
		"p1": {ProductID: "p1", ValidationConfigID: "v1", Active: true},
		"p2": {ProductID: "p2", ValidationConfigID: "v2", Active: true},
		"p3": {ProductID: "p3", CollectionConfigID: "c3", Active: true},
		"p4": {ProductID: "p4", ValidationConfigID: "v4", Active: true},
	}}
	auto := &fakeAutomation{failFor: "p4"}

	job, err := NewValidationSweepJob(ValidationSweepJobParams{
		Logger:     testLogger(),
		Ledger:     ledger,
		Profiles:   profileSet,
		Automation: auto,
	})
	if err != nil {
		t.Fatalf("NewValidationSweepJob: %v", err)
	}

	err = job.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "validate p4") {
		t.Fatalf("expected p4 failure, got %v", err)
	}
	launched := map[string]string{}
	for _, v := range auto.validations {
		launched[v.ProductID] = v.ConfigID
	}
	if len(launched) != 2 || launched["p1"] != "v1" || launched["p4"] != "v4" {
		t.Fatalf("unexpected validation launches %v", launched)
	}
}

type fakeDrainer struct {
	limit int
	err   error
}

func (f *fakeDrainer) DrainUnprocessed(_ context.Context, limit int) (jobservicewebhook.DrainSummary, error) {
	f.limit = limit
	return jobservicewebhook.DrainSummary{Scanned: 1, Processed: 1}, f.err
}

func TestWebhookDrainJobUsesBatchSize(t *testing.T) {
	drainer := &fakeDrainer{}
	job, err := NewWebhookDrainJob(WebhookDrainJobParams{Logger: testLogger(), Webhooks: drainer})
	if err != nil {
		t.Fatalf("NewWebhookDrainJob: %v", err)
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if drainer.limit != defaultDrainBatchSize {
		t.Fatalf("expected default batch %d, got %d", defaultDrainBatchSize, drainer.limit)
	}

	drainer.err = errors.New("db down")
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected drain error to propagate")
	}
}
