package models

// AnalysisResponse is the completed result of one analysis session.
// Returned by POST /analyze and persisted by the results writer.
type AnalysisResponse struct {
	Ticker               string `json:"ticker"`
	AnalysisDate         string `json:"analysis_date"`
	MarketReport         string `json:"market_report"`
	SentimentReport      string `json:"sentiment_report"`
	NewsReport           string `json:"news_report"`
	FundamentalsReport   string `json:"fundamentals_report"`
	InvestmentPlan       string `json:"investment_plan"`
	TraderInvestmentPlan string `json:"trader_investment_plan"`
	FinalTradeDecision   string `json:"final_trade_decision"`
	ProcessedSignal      string `json:"processed_signal"`
	Error                string `json:"error,omitempty"`
}

// Section returns the named report section from the response.
func (r *AnalysisResponse) Section(s ReportSection) string {
	switch s {
	case SectionMarketReport:
		return r.MarketReport
	case SectionSentimentReport:
		return r.SentimentReport
	case SectionNewsReport:
		return r.NewsReport
	case SectionFundamentalsReport:
		return r.FundamentalsReport
	case SectionInvestmentPlan:
		return r.InvestmentPlan
	case SectionTraderInvestmentPlan:
		return r.TraderInvestmentPlan
	case SectionFinalTradeDecision:
		return r.FinalTradeDecision
	}
	return ""
}
