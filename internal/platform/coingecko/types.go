package coingecko

// simplePriceResponse is the /simple/price payload keyed by coin id.
type simplePriceResponse map[string]struct {
	USD *float64 `json:"usd"`
}

// coinGeckoError covers both error shapes the API returns.
type coinGeckoError struct {
	Error  string `json:"error"`
	Status struct {
		ErrorMessage string `json:"error_message"`
	} `json:"status"`
}

func (e coinGeckoError) message() string {
	if e.Error != "" {
		return e.Error
	}
	return e.Status.ErrorMessage
}
