package types

import (
	"fmt"
	"math/rand"
)

// RandomMetrics synthesizes a placeholder metric set for a freshly created
// client, matching the ranges the dashboard seeds demo accounts with:
// success rate 75-95%, revenue 50k-100k, calls booked 100-300, hours saved
// 200-500, retention 70-90%. Every block gets a 12-point history.
func RandomMetrics() Metrics {
	successCurrent := float64(rand.Intn(20) + 75)
	successPrevious := float64(rand.Intn(20) + 70)
	successChange := successCurrent - successPrevious

	retentionTrend := fmt.Sprintf("+%d%%", rand.Intn(5)+1)
	if rand.Float64() > 0.8 {
		retentionTrend = fmt.Sprintf("-%d%%", rand.Intn(5)+1)
	}

	return Metrics{
		MetricSuccessRate: {
			Current:  Num(successCurrent),
			Previous: &successPrevious,
			Change:   &successChange,
			History:  randomHistory(75, 20),
		},
		MetricRevenue: {
			Current: Num(float64(rand.Intn(50000) + 50000)),
			Trend:   fmt.Sprintf("+%d%%", rand.Intn(20)+5),
			History: randomHistory(50000, 50000),
		},
		MetricCallsBooked: {
			Current: Num(float64(rand.Intn(200) + 100)),
			Trend:   fmt.Sprintf("+%d%%", rand.Intn(30)+10),
			History: randomHistory(100, 200),
		},
		MetricHoursSaved: {
			Current: Num(float64(rand.Intn(300) + 200)),
			Trend:   fmt.Sprintf("+%d%%", rand.Intn(25)+5),
			History: randomHistory(200, 300),
		},
		MetricRetentionRate: {
			Current: Str(fmt.Sprintf("%d%%", rand.Intn(20)+70)),
			Trend:   retentionTrend,
			History: randomHistory(70, 20),
		},
	}
}

func randomHistory(base, spread int) []float64 {
	history := make([]float64, HistoryPoints)
	for i := range history {
		history[i] = float64(rand.Intn(spread) + base)
	}
	return history
}
