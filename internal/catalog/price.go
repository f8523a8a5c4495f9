package catalog

import (
	"regexp"
	"strconv"
	"strings"
)

// Price is the normalized free/min/max triple derived from a display price.
type Price struct {
	IsFree bool
	Min    *float64
	Max    *float64
	Text   string
}

const numberPattern = `\d{1,3}(?:,\d{3})+(?:\.\d+)?|\d+(?:[.,]\d+)?`

var (
	priceNumber = regexp.MustCompile(numberPattern)

	// "S/ 80", "S/. 1,500.00", "80 soles"
	currencyAmount = regexp.MustCompile(`(?i)s/\.?\s*(` + numberPattern + `)|(` + numberPattern + `)\s*soles?\b`)

	thousandsGrouped = regexp.MustCompile(`^\d{1,3}(?:,\d{3})+(?:\.\d+)?$`)
)

// freeMarkers are lowercase phrases that mark a price text as no-cost.
var freeMarkers = []string{
	"gratis",
	"gratuito",
	"gratuita",
	"libre",
	"free",
	"sin costo",
	"no tiene costo",
	"sin cargo",
}

// IsFreeText reports whether a display price uses free or no-cost phrasing.
func IsFreeText(text string) bool {
	lower := strings.ToLower(text)
	for _, m := range freeMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// PriceNumbers extracts the amounts of a display price, in order. Amounts
// marked with S/ or soles take precedence, so promo fragments such as "2x1"
// are ignored when a currency amount is present. Malformed fragments are ignored.
func PriceNumbers(text string) []float64 {
	var matches []string
	for _, m := range currencyAmount.FindAllStringSubmatch(text, -1) {
		if m[1] != "" {
			matches = append(matches, m[1])
		} else {
			matches = append(matches, m[2])
		}
	}
	if len(matches) == 0 {
		matches = priceNumber.FindAllString(text, -1)
	}
	nums := make([]float64, 0, len(matches))
	for _, m := range matches {
		if v, ok := parseNumber(m); ok {
			nums = append(nums, v)
		}
	}
	return nums
}

// FirstPrice returns the first number found in a display price.
func FirstPrice(text string) (float64, bool) {
	nums := PriceNumbers(text)
	if len(nums) == 0 {
		return 0, false
	}
	return nums[0], true
}

// NormalizePrice converts a display price into the free/min/max triple.
// Free phrasing, or only zero amounts, yields IsFree with a 0..0 range.
// Text without numbers leaves Min and Max unset.
func NormalizePrice(text string) Price {
	text = strings.TrimSpace(text)
	p := Price{Text: text}
	if text == "" {
		return p
	}

	nums := PriceNumbers(text)
	allZero := len(nums) > 0
	for _, n := range nums {
		if n != 0 {
			allZero = false
			break
		}
	}

	if IsFreeText(text) || allZero {
		zeroMin, zeroMax := 0.0, 0.0
		p.IsFree = true
		p.Min = &zeroMin
		p.Max = &zeroMax
		return p
	}

	if len(nums) == 0 {
		return p
	}

	lo, hi := nums[0], nums[0]
	for _, n := range nums[1:] {
		if n < lo {
			lo = n
		}
		if n > hi {
			hi = n
		}
	}
	p.Min = &lo
	p.Max = &hi
	return p
}

// parseNumber accepts "25", "25.50", "25,50", "1,500" and "1,500.00".
func parseNumber(s string) (float64, bool) {
	switch {
	case thousandsGrouped.MatchString(s):
		s = strings.ReplaceAll(s, ",", "")
	case strings.Contains(s, ","):
		s = strings.Replace(s, ",", ".", 1)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
