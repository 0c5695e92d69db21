package shipping

import (
	"testing"
	"time"

	"github.com/exstoreapp/exstore/internal/models"
)

func TestDefaults(t *testing.T) {
	t.Parallel()

	methods := Defaults()

	standard := methods.Get(models.ShippingStandard)
	if standard.DeliveryDays != 7 {
		t.Fatalf("standard delivery days = %d, want 7", standard.DeliveryDays)
	}

	express := methods.Get(models.ShippingExpress)
	if express.DeliveryDays != 2 {
		t.Fatalf("express delivery days = %d, want 2", express.DeliveryDays)
	}
	if !express.Cost.GreaterThan(standard.Cost) {
		t.Fatalf("express (%s) should cost more than standard (%s)", express.Cost, standard.Cost)
	}
}

func TestGetFallsBackToStandard(t *testing.T) {
	t.Parallel()

	methods := Defaults()
	got := methods.Get(models.ShippingMethod("overnight"))
	if got.Name != string(models.ShippingStandard) {
		t.Fatalf("unknown method resolved to %q, want standard", got.Name)
	}
}

func TestEstimatedDelivery(t *testing.T) {
	t.Parallel()

	methods := Defaults()
	from := time.Date(2026, 8, 29, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		method models.ShippingMethod
		want   time.Time
	}{
		{name: "standard adds 7 days", method: models.ShippingStandard, want: from.AddDate(0, 0, 7)},
		{name: "express adds 2 days", method: models.ShippingExpress, want: from.AddDate(0, 0, 2)},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got := methods.EstimatedDelivery(tc.method, from)
			if !got.Equal(tc.want) {
				t.Fatalf("EstimatedDelivery(%q) = %v, want %v", tc.method, got, tc.want)
			}
		})
	}
}

func TestParse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name: "valid config",
			content: `
methods:
  - name: standard
    display_name: Ground
    cost: "4.50"
    delivery_days: 6
  - name: express
    display_name: Two-Day
    cost: "12.00"
    delivery_days: 2
`,
		},
		{
			name: "unknown method name",
			content: `
methods:
  - name: drone
    cost: "99.00"
    delivery_days: 1
`,
			wantErr: "unknown shipping method",
		},
		{
			name: "negative cost",
			content: `
methods:
  - name: standard
    cost: "-1.00"
    delivery_days: 7
  - name: express
    cost: "12.00"
    delivery_days: 2
`,
			wantErr: "cost must be zero or positive",
		},
		{
			name: "missing express",
			content: `
methods:
  - name: standard
    cost: "5.99"
    delivery_days: 7
`,
			wantErr: "missing",
		},
		{
			name:    "empty config",
			content: `methods: []`,
			wantErr: "defines no methods",
		},
		{
			name: "duplicate method",
			content: `
methods:
  - name: standard
    cost: "5.99"
    delivery_days: 7
  - name: standard
    cost: "6.99"
    delivery_days: 5
`,
			wantErr: "duplicate",
		},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			methods, err := Parse([]byte(tc.content))
			if tc.wantErr != "" {
				if err == nil {
					t.Fatalf("expected error containing %q, got nil", tc.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() error = %v", err)
			}

			standard := methods.Get(models.ShippingStandard)
			if standard.DisplayName != "Ground" {
				t.Fatalf("standard display name = %q, want Ground", standard.DisplayName)
			}
			if standard.DeliveryDays != 6 {
				t.Fatalf("standard delivery days = %d, want 6", standard.DeliveryDays)
			}
		})
	}
}
