package screen

// sma returns the simple moving average of the last n values.
func sma(vals []float64, n int) float64 {
	if n <= 0 || len(vals) == 0 {
		return 0
	}
	if len(vals) < n {
		n = len(vals)
	}
	sum := 0.0
	for _, v := range vals[len(vals)-n:] {
		sum += v
	}
	return sum / float64(n)
}

// rsi computes a simple-average RSI over the last period diffs.
// Returns 50 (neutral) when there is not enough history.
func rsi(closes []float64, period int) float64 {
	if len(closes) < period+1 {
		return 50
	}
	var gains, losses float64
	start := len(closes) - period
	for i := start; i < len(closes); i++ {
		diff := closes[i] - closes[i-1]
		if diff > 0 {
			gains += diff
		} else {
			losses -= diff
		}
	}
	if losses == 0 {
		return 100
	}
	rs := gains / losses
	return 100 - 100/(1+rs)
}
