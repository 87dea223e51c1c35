package report

import (
	"sort"

	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/cleaner"
	"github.com/Gerardo1909/ecommerce-reporting-etl/internal/table"
)

// ReviewRatingRecord summarises the reviews of one product.
type ReviewRatingRecord struct {
	ProductID     string
	ProductName   string
	ReviewCount   int64
	AverageRating float64
	PositiveRate  float64 // share of ratings >= 4
}

// ReviewRatings rates products with at least opts.MinReviews rated reviews.
// Sorted by average rating descending, review count descending, product id.
func ReviewRatings(reviews, products table.Table, opts Options) []ReviewRatingRecord {
	opts = opts.withDefaults()
	ixProduct, ixRating := reviews.Index("product_id"), reviews.Index("rating")
	if ixProduct < 0 || ixRating < 0 {
		return nil
	}

	names := productNames(products)

	type acc struct {
		id            string
		n, sum, happy int64
	}
	byProduct := make(map[string]*acc)
	for _, r := range reviews.Rows {
		k := cleaner.Fold(r[ixProduct])
		rating, ok := table.AsInt(r[ixRating])
		if k == "" || !ok {
			continue
		}
		a, ok := byProduct[k]
		if !ok {
			a = &acc{id: table.AsString(r[ixProduct])}
			byProduct[k] = a
		}
		a.n++
		a.sum += rating
		if rating >= 4 {
			a.happy++
		}
	}

	var out []ReviewRatingRecord
	for k, a := range byProduct {
		if a.n < int64(opts.MinReviews) {
			continue
		}
		out = append(out, ReviewRatingRecord{
			ProductID:     a.id,
			ProductName:   names[k],
			ReviewCount:   a.n,
			AverageRating: float64(a.sum) / float64(a.n),
			PositiveRate:  float64(a.happy) / float64(a.n),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.AverageRating != b.AverageRating {
			return a.AverageRating > b.AverageRating
		}
		if a.ReviewCount != b.ReviewCount {
			return a.ReviewCount > b.ReviewCount
		}
		return a.ProductID < b.ProductID
	})
	return out
}

var ReviewRatingsColumns = []table.Column{
	{Name: "product_id", Kind: table.Text},
	{Name: "product_name", Kind: table.Text, Nullable: true},
	{Name: "review_count", Kind: table.Int},
	{Name: "average_rating", Kind: table.Float},
	{Name: "positive_rate", Kind: table.Float},
}

func ReviewRatingsTable(recs []ReviewRatingRecord) table.Table {
	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		var name any
		if r.ProductName != "" {
			name = r.ProductName
		}
		rows[i] = table.Row{r.ProductID, name, r.ReviewCount, r.AverageRating, r.PositiveRate}
	}
	return table.New(ReviewRatingsName, ReviewRatingsColumns, rows)
}

// ReviewsOverviewRecord summarises every rated review.
type ReviewsOverviewRecord struct {
	ReviewCount   int64
	AverageRating float64
	PositiveRate  float64 // rating >= 4
	NegativeRate  float64 // rating <= 2
}

// ReviewsOverview returns one record, or nothing when no review is rated.
func ReviewsOverview(reviews table.Table) []ReviewsOverviewRecord {
	ix := reviews.Index("rating")
	if ix < 0 {
		return nil
	}
	var n, sum, pos, neg int64
	for _, r := range reviews.Rows {
		rating, ok := table.AsInt(r[ix])
		if !ok {
			continue
		}
		n++
		sum += rating
		switch {
		case rating >= 4:
			pos++
		case rating <= 2:
			neg++
		}
	}
	if n == 0 {
		return nil
	}
	return []ReviewsOverviewRecord{{
		ReviewCount:   n,
		AverageRating: float64(sum) / float64(n),
		PositiveRate:  float64(pos) / float64(n),
		NegativeRate:  float64(neg) / float64(n),
	}}
}

var ReviewsOverviewColumns = []table.Column{
	{Name: "review_count", Kind: table.Int},
	{Name: "average_rating", Kind: table.Float},
	{Name: "positive_rate", Kind: table.Float},
	{Name: "negative_rate", Kind: table.Float},
}

func ReviewsOverviewTable(recs []ReviewsOverviewRecord) table.Table {
	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		rows[i] = table.Row{r.ReviewCount, r.AverageRating, r.PositiveRate, r.NegativeRate}
	}
	return table.New(ReviewsOverviewName, ReviewsOverviewColumns, rows)
}

// ReviewsMonthlyRecord is the review volume of one month.
type ReviewsMonthlyRecord struct {
	Month         string
	Volume        int64
	AverageRating float64
}

// ReviewsMonthly groups rated reviews by the month of created_at. Undated
// reviews are left out. Sorted by month.
func ReviewsMonthly(reviews table.Table) []ReviewsMonthlyRecord {
	ixRating, ixDate := reviews.Index("rating"), reviews.Index("created_at")
	if ixRating < 0 || ixDate < 0 {
		return nil
	}
	type acc struct{ n, sum int64 }
	months := make(map[string]*acc)
	for _, r := range reviews.Rows {
		rating, ok := table.AsInt(r[ixRating])
		ts, dated := table.AsTime(r[ixDate])
		if !ok || !dated {
			continue
		}
		m := ts.UTC().Format(MonthLayout)
		a, ok := months[m]
		if !ok {
			a = &acc{}
			months[m] = a
		}
		a.n++
		a.sum += rating
	}
	out := make([]ReviewsMonthlyRecord, 0, len(months))
	for m, a := range months {
		out = append(out, ReviewsMonthlyRecord{Month: m, Volume: a.n, AverageRating: float64(a.sum) / float64(a.n)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month < out[j].Month })
	return out
}

var ReviewsMonthlyColumns = []table.Column{
	{Name: "month", Kind: table.Text},
	{Name: "volume", Kind: table.Int},
	{Name: "average_rating", Kind: table.Float},
}

func ReviewsMonthlyTable(recs []ReviewsMonthlyRecord) table.Table {
	rows := make([]table.Row, len(recs))
	for i, r := range recs {
		rows[i] = table.Row{r.Month, r.Volume, r.AverageRating}
	}
	return table.New(ReviewsMonthlyName, ReviewsMonthlyColumns, rows)
}
