package score

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/sells-group/lead-qualifier/internal/model"
)

func euros(amount float64) *model.RevenueEstimate {
	return &model.RevenueEstimate{
		Value: &model.Money{Amount: int64(amount * 100), Currency: "EUR"},
	}
}

func TestPhysicalScoreTable(t *testing.T) {
	tests := []struct {
		name string
		est  *model.RevenueEstimate
		want int
	}{
		{"not determined", &model.RevenueEstimate{}, 2},
		{"tiny", euros(120_000), 3},
		{"just under half million", euros(499_999), 3},
		{"half million", euros(500_000), 5},
		{"just under one million", euros(999_999), 5},
		{"one million", euros(1_000_000), 6},
		{"five million", euros(5_000_000), 6},
		{"six and a half million", euros(6_500_000), 7},
		{"eight million", euros(8_000_000), 9},
		{"huge", euros(40_000_000), 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Physical(tt.est))
		})
	}
}

func TestPhysicalResultRationale(t *testing.T) {
	res := PhysicalResult(euros(2_000_000))
	assert.Equal(t, 6, res.Score)
	assert.Contains(t, res.Rationale, "2000000.00 EUR")
	assert.False(t, res.Flags.IsEcommerce)

	nd := PhysicalResult(&model.RevenueEstimate{})
	assert.Equal(t, 2, nd.Score)
	assert.Contains(t, nd.Rationale, "not determined")
}
