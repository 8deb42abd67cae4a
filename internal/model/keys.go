package model

import "strconv"

// Itoa formats n in base 10 on a stack buffer; only the result allocates.
func Itoa(n int) string {
	var buf [20]byte
	return string(strconv.AppendInt(buf[:0], int64(n), 10))
}

// SymbolKey returns "exchange:token", the symbol form every key and
// benchmark reference uses.
func SymbolKey(exchange, token string) string {
	return exchange + ":" + token
}

// TFStreamKey returns the committed candle stream for a symbol key:
// "candle:{tf}s:{exchange}:{token}".
func TFStreamKey(tf int, symbol string) string {
	return "candle:" + Itoa(tf) + "s:" + symbol
}

// indicatorKey is "ind:{name}:{tf}s:" followed by parts joined with ':'.
func indicatorKey(name string, tf int, parts ...string) string {
	b := make([]byte, 0, 48)
	b = append(b, "ind:"...)
	b = append(b, name...)
	b = append(b, ':')
	b = strconv.AppendInt(b, int64(tf), 10)
	b = append(b, 's')
	for _, p := range parts {
		b = append(b, ':')
		b = append(b, p...)
	}
	return string(b)
}
