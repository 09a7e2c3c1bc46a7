package alphavantage

// globalQuoteResponse is the GLOBAL_QUOTE envelope. All numeric values
// arrive as strings.
type globalQuoteResponse struct {
	GlobalQuote globalQuote `json:"Global Quote"`
	// Note and Information carry rate-limit messages delivered with a 200.
	Note        string `json:"Note"`
	Information string `json:"Information"`
	ErrorMsg    string `json:"Error Message"`
}

type globalQuote struct {
	Symbol        string `json:"01. symbol"`
	Price         string `json:"05. price"`
	Change        string `json:"09. change"`
	ChangePercent string `json:"10. change percent"`
}

// bulkQuotesResponse is the REALTIME_BULK_QUOTES envelope.
type bulkQuotesResponse struct {
	Data        []bulkQuote `json:"data"`
	Note        string      `json:"Note"`
	Information string      `json:"Information"`
	ErrorMsg    string      `json:"Error Message"`
}

type bulkQuote struct {
	Symbol        string `json:"symbol"`
	Close         string `json:"close"`
	Change        string `json:"change"`
	ChangePercent string `json:"change_percent"`
}

// dailySeriesResponse is the TIME_SERIES_DAILY envelope, keyed by
// YYYY-MM-DD date strings.
type dailySeriesResponse struct {
	Series      map[string]dailyBar `json:"Time Series (Daily)"`
	Note        string              `json:"Note"`
	Information string              `json:"Information"`
	ErrorMsg    string              `json:"Error Message"`
}

type dailyBar struct {
	Open   string `json:"1. open"`
	High   string `json:"2. high"`
	Low    string `json:"3. low"`
	Close  string `json:"4. close"`
	Volume string `json:"5. volume"`
}
