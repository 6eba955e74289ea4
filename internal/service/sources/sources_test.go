package sources

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExchangePrefix(t *testing.T) {
	assert.Equal(t, "sh", exchangePrefix("600519"))
	assert.Equal(t, "sh", exchangePrefix("688981"))
	assert.Equal(t, "sz", exchangePrefix("000001"))
	assert.Equal(t, "sz", exchangePrefix("300750"))
}

func TestSecID(t *testing.T) {
	assert.Equal(t, "1.600519", secID("600519"))
	assert.Equal(t, "0.000001", secID("000001"))
}

func TestIndexSymbol(t *testing.T) {
	assert.Equal(t, "sh000001", indexSymbol("000001"))
	assert.Equal(t, "sz399006", indexSymbol("399006"))
}

func TestParseTencentQuote(t *testing.T) {
	fields := make([]string, 40)
	fields[txFieldName] = "贵州茅台"
	fields[txFieldCode] = "600519"
	fields[txFieldPrice] = "1700.50"
	fields[txFieldPrevClose] = "1690.00"
	fields[txFieldOpen] = "1692.00"
	fields[txFieldVolume] = "25000"
	fields[txFieldPct] = "0.62"
	fields[txFieldHigh] = "1705.00"
	fields[txFieldLow] = "1688.00"
	body := `v_sh600519="` + strings.Join(fields, "~") + `";`

	q, err := parseTencentQuote(body, "sh600519")
	require.NoError(t, err)
	assert.Equal(t, "贵州茅台", q.Name)
	assert.InDelta(t, 1700.50, q.Price, 1e-9)
	assert.InDelta(t, 0.62, q.PctChange, 1e-9)
	assert.InDelta(t, 2500000, q.Volume, 1e-9) // lots to shares
}

func TestParseTencentQuoteRejectsZeroPrice(t *testing.T) {
	fields := make([]string, 40)
	fields[txFieldPrice] = "0.00"
	body := `v_sh600519="` + strings.Join(fields, "~") + `";`

	_, err := parseTencentQuote(body, "sh600519")
	assert.Error(t, err)
}

func TestParseTencentQuoteMissingSymbol(t *testing.T) {
	_, err := parseTencentQuote(`v_sz000001="...";`, "sh600519")
	assert.Error(t, err)
}

func TestParseSinaQuote(t *testing.T) {
	body := `var hq_str_sh600519="贵州茅台,1692.000,1690.000,1700.500,1705.000,1688.000,1700.400,1700.500,2500000,4250000000.000,100,1700.400,2024-06-14,15:00:00,00";`

	q, err := parseSinaQuote(body, "sh600519")
	require.NoError(t, err)
	assert.Equal(t, "贵州茅台", q.Name)
	assert.InDelta(t, 1700.5, q.Price, 1e-9)
	assert.InDelta(t, (1700.5-1690.0)/1690.0*100, q.PctChange, 1e-9)
	assert.InDelta(t, 2500000, q.Volume, 1e-9)
}

func TestParseSinaQuoteShortPayload(t *testing.T) {
	_, err := parseSinaQuote(`var hq_str_sh600519="";`, "sh600519")
	assert.Error(t, err)
}
