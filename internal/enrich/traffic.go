package enrich

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/lead-qualifier/internal/model"
	"github.com/sells-group/lead-qualifier/pkg/semrush"
	"github.com/sells-group/lead-qualifier/pkg/similarweb"
)

// visitsLagMonths is how far the analytics provider trails the calendar.
// Asking for the current month returns an empty series.
const visitsLagMonths = 2

// TrafficSource merges search-engine estimates and site-analytics visits into
// one TrafficStats. The two providers are independent: either can fail
// without losing the other's data.
type TrafficSource struct {
	search   semrush.Client
	visits   similarweb.Client
	database string
	country  string
	log      *zap.Logger
	now      func() time.Time
}

// NewTrafficSource builds a TrafficSource. database is the search provider's
// regional database ("it"), country the analytics two-letter filter.
func NewTrafficSource(search semrush.Client, visits similarweb.Client, database, country string) *TrafficSource {
	return &TrafficSource{
		search:   search,
		visits:   visits,
		database: database,
		country:  country,
		log:      zap.L().With(zap.String("component", "enrich.traffic")),
		now:      time.Now,
	}
}

// Lookup queries both providers for one domain. It always returns stats; the
// availability flags record which providers answered.
func (t *TrafficSource) Lookup(ctx context.Context, domain string) *model.TrafficStats {
	stats := &model.TrafficStats{CountryDatabase: t.database}

	rank, err := t.search.DomainRank(ctx, domain, t.database)
	switch {
	case eris.Is(err, semrush.ErrNothingFound):
		t.log.Debug("no search data for domain", zap.String("domain", domain))
	case err != nil:
		t.log.Warn("search traffic lookup failed", zap.String("domain", domain), zap.Error(err))
	default:
		stats.OrganicMonthly = rank.OrganicTraffic
		stats.PaidMonthly = rank.AdwordsTraffic
		stats.SearchAvailable = true
		if rank.OrganicTraffic >= rank.AdwordsTraffic {
			stats.TopChannels = []string{"organic search", "paid search"}
		} else {
			stats.TopChannels = []string{"paid search", "organic search"}
		}
	}

	current, prior, err := t.visitWindows(ctx, domain)
	switch {
	case err != nil:
		t.log.Warn("visits lookup failed", zap.String("domain", domain), zap.Error(err))
	case current > 0:
		stats.Visits = int64(current / 12)
		stats.VisitsAvailable = true
		if prior > 0 {
			stats.VisitsYoY = (current - prior) / prior
		}
	}

	return stats
}

// visitWindows fetches 24 months of visits in one call and splits them into
// the trailing year and the year before it.
func (t *TrafficSource) visitWindows(ctx context.Context, domain string) (current, prior float64, err error) {
	ref := monthStart(t.now()).AddDate(0, -visitsLagMonths, 0)
	start := ref.AddDate(0, -23, 0)

	months, err := t.visits.Visits(ctx, domain, t.country, start, ref)
	if err != nil {
		return 0, 0, err
	}

	split := ref.AddDate(0, -11, 0).Format("2006-01-02")
	for _, m := range months {
		if m.Date >= split {
			current += m.Visits
		} else {
			prior += m.Visits
		}
	}
	return current, prior, nil
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
