package utils

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	billion  = decimal.NewFromInt(1_000_000_000)
)

// ShortAddress 地址缩写展示，形如 0x6982...1933
func ShortAddress(address string) string {
	if len(address) > 10 {
		return fmt.Sprintf("%s...%s", address[:6], address[len(address)-4:])
	}
	return address
}

// FormatCompact 大数字按 K/M/B 缩写，保留两位小数
func FormatCompact(v decimal.Decimal) string {
	abs := v.Abs()
	switch {
	case abs.GreaterThanOrEqual(billion):
		return v.Div(billion).StringFixed(2) + "B"
	case abs.GreaterThanOrEqual(million):
		return v.Div(million).StringFixed(2) + "M"
	case abs.GreaterThanOrEqual(thousand):
		return v.Div(thousand).StringFixed(2) + "K"
	case abs.LessThan(decimal.NewFromFloat(0.01)) && !abs.IsZero():
		return v.Truncate(6).String()
	}
	return v.StringFixed(2)
}

// FormatUSD 美元金额
func FormatUSD(v decimal.Decimal) string {
	return "$" + FormatCompact(v)
}

// FormatPercent 百分比，v 已经是百分数
func FormatPercent(v decimal.Decimal) string {
	if v.IsZero() {
		return "0%"
	}
	if v.Abs().LessThan(decimal.NewFromFloat(0.01)) {
		return v.Truncate(4).String() + "%"
	}
	return v.StringFixed(2) + "%"
}

// FormatPrice 格式化价格，小数部分前导0超过3个时压缩为 0{n}
func FormatPrice(price decimal.Decimal) string {
	if price.IsZero() {
		return "$0"
	}

	intPart, decPart := splitOnce(price.StringFixed(20), ".")

	if strings.TrimRight(decPart, "0") == "" {
		return fmt.Sprintf("$%s", intPart)
	}

	zeroPrefix := 0
	for zeroPrefix < len(decPart) && decPart[zeroPrefix] == '0' {
		zeroPrefix++
	}

	// 首个非零数字起取 4 位
	end := zeroPrefix + 4
	if end > len(decPart) {
		end = len(decPart)
	}
	digits := decPart[zeroPrefix:end]

	var frac string
	if zeroPrefix > 3 {
		frac = fmt.Sprintf("0{%d}%s", zeroPrefix, digits)
	} else {
		frac = strings.Repeat("0", zeroPrefix) + digits
	}

	return fmt.Sprintf("$%s.%s", intPart, frac)
}

// splitOnce 把 s 按第一个 sep 切成两段，若不存在 sep，则 decPart 为空串
func splitOnce(s, sep string) (intPart, decPart string) {
	if idx := strings.Index(s, sep); idx != -1 {
		return s[:idx], s[idx+1:]
	}
	return s, ""
}
