package ledger

import (
	"slices"
	"strings"
	"time"

	"invencare/internal/core/apperror"
)

// AllStores is the storeId sentinel meaning "no store filter".
const AllStores = "all"

// Relative date ranges.
const (
	RangeToday = "today"
	RangeWeek  = "week"
	RangeMonth = "month"
	RangeAll   = "all"
)

// Listing limits.
const (
	DefaultLimit = 50
	MaxLimit     = 500
)

// ListFilter is the client-facing filter for listing and summarizing.
type ListFilter struct {
	StoreID   string
	Type      string
	DateRange string
	Start     *time.Time
	End       *time.Time
	Search    string
	Limit     int
	Offset    int
}

// resolve turns the filter into a Query relative to now. "today" starts at
// midnight in now's location; "week" and "month" are rolling 7 and 30 days.
// An explicit Start or End overrides DateRange.
func (f ListFilter) resolve(now time.Time) (Query, error) {
	q := Query{
		Search: strings.TrimSpace(f.Search),
		Limit:  f.Limit,
		Offset: f.Offset,
	}

	if store := strings.TrimSpace(f.StoreID); store != "" && !strings.EqualFold(store, AllStores) {
		q.StoreIDs = []string{store}
	}

	if t := strings.TrimSpace(f.Type); t != "" && !strings.EqualFold(t, "all") {
		parsed, err := ParseType(t)
		if err != nil {
			return Query{}, err
		}
		q.Type = parsed
	}

	if f.Start != nil || f.End != nil {
		if f.Start != nil && f.End != nil && f.End.Before(*f.Start) {
			return Query{}, apperror.NewInvalidField(apperror.CodeInvalidInput, "endDate",
				"endDate must not be before startDate")
		}
		q.From, q.To = f.Start, f.End
	} else {
		r := strings.ToLower(strings.TrimSpace(f.DateRange))
		from, err := rangeStart(r, now)
		if err != nil {
			return Query{}, err
		}
		if from != nil {
			q.From, q.Range = from, r
		}
	}

	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q, nil
}

func rangeStart(r string, now time.Time) (*time.Time, error) {
	var from time.Time
	switch r {
	case "", RangeAll:
		return nil, nil
	case RangeToday:
		y, m, d := now.Date()
		from = time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	case RangeWeek:
		from = now.AddDate(0, 0, -7)
	case RangeMonth:
		from = now.AddDate(0, 0, -30)
	default:
		return nil, apperror.NewInvalidField(apperror.CodeInvalidInput, "dateRange",
			"dateRange must be one of today, week, month, all")
	}
	return &from, nil
}

// scope narrows q to the stores the caller may see. A nil allowed list means
// unrestricted. Asking for a store outside the list is forbidden.
func (q Query) scope(allowed []string) (Query, error) {
	if allowed == nil {
		return q, nil
	}
	if len(q.StoreIDs) == 0 {
		q.StoreIDs = append([]string(nil), allowed...)
		if len(q.StoreIDs) == 0 {
			// nothing visible; keep a filter that matches no rows
			q.StoreIDs = []string{""}
		}
		return q, nil
	}
	for _, s := range q.StoreIDs {
		if !slices.Contains(allowed, s) {
			return Query{}, apperror.NewForbidden("no access to store").WithDetail("store_id", s)
		}
	}
	return q, nil
}
