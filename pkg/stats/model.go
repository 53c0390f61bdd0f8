package stats

import (
	"github.com/ethpandaops/statsql/pkg/query"
)

// ContentAdStatsTable is the materialized view the content-ad model reads
const ContentAdStatsTable = "mv_contentadstats"

// NewContentAdStatsModel declares the content-ad delivery stats model.
// Aggregate columns render through renderer.
func NewContentAdStatsModel(renderer query.FragmentRenderer) (*query.Model, error) {
	sum := func(name, column string) query.Column {
		return query.NewTemplateColumn(name, renderer, "columns/sum.sql", map[string]any{"column": column}, query.GroupAggregate)
	}

	nano := func(name, column string) query.Column {
		return query.NewTemplateColumn(name, renderer, "columns/sum_nano.sql", map[string]any{"column": column}, query.GroupAggregate)
	}

	return query.NewModel("contentadstats", ContentAdStatsTable,
		query.NewColumn("date", query.GroupBreakdown),
		query.NewColumn("source_id", query.GroupBreakdown),
		query.NewColumn("account_id", query.GroupBreakdown),
		query.NewColumn("campaign_id", query.GroupBreakdown),
		query.NewColumn("ad_group_id", query.GroupBreakdown),
		query.NewColumn("content_ad_id", query.GroupBreakdown),
		query.NewColumn("publisher", query.GroupBreakdown),

		sum("clicks", "clicks"),
		sum("impressions", "impressions"),
		nano("media_cost", "cost_nano"),
		nano("data_cost", "data_cost_nano"),
		query.NewTemplateColumn("ctr", renderer, "columns/ctr.sql", map[string]any{
			"clicks":      "clicks",
			"impressions": "impressions",
		}, query.GroupAggregate),
		query.NewTemplateColumn("cpc", renderer, "columns/cpc.sql", map[string]any{
			"cost":   "cost_nano",
			"clicks": "clicks",
		}, query.GroupAggregate),

		query.NewColumn("is_deleted", query.GroupHelper, query.WithColumnName("archived")),
	)
}
