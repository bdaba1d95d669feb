package slots

import (
	"time"

	"DCAClock/internal/domain/models"
	"DCAClock/pkg/util"
)

var ict = time.FixedZone("ICT", 7*3600)

type barFunc func(day, slot int) (low, close float64)

// series builds full 15-minute days starting at local midnight of start.
func series(start time.Time, days int, loc *time.Location, bar barFunc) []models.Candle {
	var out []models.Candle
	first := util.StartOfDay(start, loc)
	for d := 0; d < days; d++ {
		midnight := first.AddDate(0, 0, d)
		next := midnight.AddDate(0, 0, 1)
		for ts := midnight; ts.Before(next); ts = ts.Add(models.SlotInterval) {
			low, cl := bar(d, int(models.SlotOf(ts, loc)))
			out = append(out, models.Candle{
				Bucket: ts.UTC(),
				Symbol: "BTC/USDT",
				Open:   cl,
				High:   cl + 1,
				Low:    low,
				Close:  cl,
				Volume: 1,
			})
		}
	}
	return out
}

// lastDays builds the n full days right before asOf's local date.
func lastDays(asOf time.Time, n int, loc *time.Location, bar barFunc) []models.Candle {
	return series(util.StartOfDay(asOf, loc).AddDate(0, 0, -n), n, loc, bar)
}

// flat gives every slot a distinct close above 100 and no slot touching it.
func flat(_, slot int) (float64, float64) {
	cl := 101 + float64(slot)*0.01
	return cl - 0.2, cl
}
