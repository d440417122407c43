package enums

import "testing"

func TestItemStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to ItemStatus
		ok       bool
	}{
		{ItemStatusAvailable, ItemStatusReserved, true},
		{ItemStatusReserved, ItemStatusSold, true},
		{ItemStatusReserved, ItemStatusAvailable, true},
		{ItemStatusAvailable, ItemStatusSold, false},
		{ItemStatusSold, ItemStatusAvailable, false},
		{ItemStatusSold, ItemStatusReserved, false},
	}
	for _, tc := range cases {
		if got := tc.from.CanTransitionTo(tc.to); got != tc.ok {
			t.Fatalf("%s -> %s: expected %v got %v", tc.from, tc.to, tc.ok, got)
		}
	}
}

func TestParseValidityResult(t *testing.T) {
	if _, err := ParseValidityResult("valid"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := ParseValidityResult("maybe"); err == nil {
		t.Fatal("expected error for unknown result")
	}
}

func TestWebhookEventTypeIsKnown(t *testing.T) {
	if !WebhookEventJobHit.IsKnown() {
		t.Fatal("job.hit should be known")
	}
	if WebhookEventType("job.exploded").IsKnown() {
		t.Fatal("unexpected type should not be known")
	}
}
