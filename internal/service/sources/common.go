package sources

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"Sentinel/pkg/util"

	"golang.org/x/text/encoding/simplifiedchinese"
)

// browserHeaders are required by the quote providers, which reject
// requests without a browser user agent.
var browserHeaders = map[string]string{
	"User-Agent": "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36",
}

// exchangePrefix maps a bare A-share code to its exchange prefix.
// 6xxxxx and 9xxxxx trade in Shanghai, everything else in Shenzhen.
func exchangePrefix(code string) string {
	if strings.HasPrefix(code, "6") || strings.HasPrefix(code, "9") {
		return "sh"
	}
	return "sz"
}

// secID maps a bare code to the eastmoney secid form: 1.600519 for
// Shanghai, 0.000001 for Shenzhen.
func secID(code string) string {
	if exchangePrefix(code) == "sh" {
		return "1." + code
	}
	return "0." + code
}

// indexSymbol maps an index code to its prefixed form. Shenzhen indices
// start with 399; everything else is a Shanghai index.
func indexSymbol(code string) string {
	if strings.HasPrefix(code, "399") {
		return "sz" + code
	}
	return "sh" + code
}

// decodeGBK converts a GBK payload to UTF-8. Tencent and Sina quote
// endpoints still serve GBK.
func decodeGBK(raw []byte) (string, error) {
	out, err := simplifiedchinese.GBK.NewDecoder().Bytes(raw)
	if err != nil {
		return "", fmt.Errorf("decode gbk: %w", err)
	}
	return string(out), nil
}

// parseDay parses a YYYY-MM-DD bar date in exchange time. A zero time
// marks an unparseable bar; callers drop those.
func parseDay(s string) time.Time {
	t, err := time.ParseInLocation(util.DateLayout, strings.TrimSpace(s), util.Shanghai)
	if err != nil {
		return time.Time{}
	}
	return t
}

func parseFloat(s string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0
	}
	return v
}
