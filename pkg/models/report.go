package models

// ReportSection names one of the seven report fields produced during an
// analysis. Each section is written at most once per session (first
// non-empty write wins).
type ReportSection string

const (
	SectionMarketReport         ReportSection = "market_report"
	SectionSentimentReport      ReportSection = "sentiment_report"
	SectionNewsReport           ReportSection = "news_report"
	SectionFundamentalsReport   ReportSection = "fundamentals_report"
	SectionInvestmentPlan       ReportSection = "investment_plan"
	SectionTraderInvestmentPlan ReportSection = "trader_investment_plan"
	SectionFinalTradeDecision   ReportSection = "final_trade_decision"
)

// ReportSections lists all sections in pipeline order.
var ReportSections = []ReportSection{
	SectionMarketReport,
	SectionSentimentReport,
	SectionNewsReport,
	SectionFundamentalsReport,
	SectionInvestmentPlan,
	SectionTraderInvestmentPlan,
	SectionFinalTradeDecision,
}

// Analyst identifies one of the four analyst pipelines.
type Analyst string

const (
	AnalystMarket       Analyst = "market"
	AnalystSocial       Analyst = "social"
	AnalystNews         Analyst = "news"
	AnalystFundamentals Analyst = "fundamentals"
)

// Analysts lists the four analysts in dispatch order.
var Analysts = []Analyst{AnalystMarket, AnalystSocial, AnalystNews, AnalystFundamentals}

// ReportSectionFor maps an analyst to the report section it owns.
func ReportSectionFor(a Analyst) ReportSection {
	switch a {
	case AnalystMarket:
		return SectionMarketReport
	case AnalystSocial:
		return SectionSentimentReport
	case AnalystNews:
		return SectionNewsReport
	case AnalystFundamentals:
		return SectionFundamentalsReport
	}
	return ""
}
