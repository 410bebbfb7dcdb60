package lead

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRetentionExpiry(t *testing.T) {
	tests := []struct {
		name   string
		now    string
		months int
		want   string
	}{
		{
			name:   "plain 24 months",
			now:    "2025-03-15T10:30:00Z",
			months: 24,
			want:   "2027-03-15T10:30:00Z",
		},
		{
			name:   "year rollover",
			now:    "2025-11-01T00:00:00Z",
			months: 24,
			want:   "2027-11-01T00:00:00Z",
		},
		{
			name:   "clamps to shorter month",
			now:    "2024-12-31T08:00:00Z",
			months: 2,
			want:   "2025-02-28T08:00:00Z",
		},
		{
			name:   "clamps to leap february",
			now:    "2025-12-31T08:00:00Z",
			months: 2,
			want:   "2026-02-28T08:00:00Z",
		},
		{
			name:   "no clamp needed in a leap february",
			now:    "2026-02-28T12:00:00Z",
			months: 24,
			want:   "2028-02-28T12:00:00Z",
		},
		{
			name:   "jan 31 plus 24 months stays jan 31",
			now:    "2025-01-31T23:59:59Z",
			months: 24,
			want:   "2027-01-31T23:59:59Z",
		},
		{
			name:   "feb 29 clamps to feb 28 in a common year",
			now:    "2024-02-29T00:00:00Z",
			months: 24,
			want:   "2026-02-28T00:00:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now, err := time.Parse(time.RFC3339, tt.now)
			if err != nil {
				t.Fatalf("parse now: %v", err)
			}
			want, err := time.Parse(time.RFC3339, tt.want)
			if err != nil {
				t.Fatalf("parse want: %v", err)
			}
			assert.True(t, RetentionExpiry(now, tt.months).Equal(want),
				"got %s, want %s", RetentionExpiry(now, tt.months), want)
		})
	}
}

func TestRetentionExpiry_AddDateWouldOverflow(t *testing.T) {
	// time.AddDate normalizes Oct 31 + 4 months to Mar 2/3; the stamper must
	// clamp to Feb 28 instead.
	now := time.Date(2025, time.October, 31, 9, 0, 0, 0, time.UTC)
	got := RetentionExpiry(now, 4)
	assert.Equal(t, time.Date(2026, time.February, 28, 9, 0, 0, 0, time.UTC), got)
}
