package admin

import (
	"context"
	"time"
)

// Period selects the revenue roll-up granularity.
type Period string

const (
	// PeriodMonth buckets the current month by day.
	PeriodMonth Period = "month"
	// PeriodYear buckets the current year by month.
	PeriodYear Period = "year"
)

type Bucket struct {
	Label    string    `json:"label"`
	Start    time.Time `json:"start"`
	Amount   int64     `json:"amount"`
	Payments int       `json:"payments"`
}

type Revenue struct {
	Period   Period    `json:"period"`
	From     time.Time `json:"from"`
	To       time.Time `json:"to"`
	Total    int64     `json:"total"`
	Currency string    `json:"currency"`
	Buckets  []Bucket  `json:"buckets"`
}

// Revenue sums paid payments of the current month or year into day or
// month buckets. Empty buckets are included.
func (s *Service) Revenue(ctx context.Context, period Period) (*Revenue, error) {
	if period == "" {
		period = PeriodMonth
	}
	now := s.now().In(s.loc)

	var from, to time.Time
	var step func(time.Time) time.Time
	var label string
	switch period {
	case PeriodMonth:
		from, to = monthBounds(now)
		step = func(t time.Time) time.Time { return t.AddDate(0, 0, 1) }
		label = "2006-01-02"
	case PeriodYear:
		from = time.Date(now.Year(), time.January, 1, 0, 0, 0, 0, s.loc)
		to = from.AddDate(1, 0, 0)
		step = func(t time.Time) time.Time { return t.AddDate(0, 1, 0) }
		label = "2006-01"
	default:
		return nil, ErrInvalidPeriod
	}

	out := &Revenue{Period: period, From: from, To: to, Currency: "VND"}
	for t := from; t.Before(to); t = step(t) {
		out.Buckets = append(out.Buckets, Bucket{Label: t.Format(label), Start: t})
	}

	paid, err := s.dir.PaidBetween(ctx, from, to)
	if err != nil {
		return nil, err
	}
	for _, p := range paid {
		if p.PaidAt == nil {
			continue
		}
		at := p.PaidAt.In(s.loc)
		idx := at.Day() - 1
		if period == PeriodYear {
			idx = int(at.Month()) - 1
		}
		if idx < 0 || idx >= len(out.Buckets) {
			continue
		}
		out.Buckets[idx].Amount += p.AmountTotal
		out.Buckets[idx].Payments++
		out.Total += p.AmountTotal
	}
	return out, nil
}

func monthBounds(now time.Time) (time.Time, time.Time) {
	from := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
	return from, from.AddDate(0, 1, 0)
}
