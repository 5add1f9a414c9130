package carddata

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// Era start years for gengō date conversion. Driver's licenses print birth
// and validity dates in era form (e.g. 平成31年01月01日); residence cards use
// Western 8-digit dates.
var eraStart = map[string]int{
	"昭和": 1925, // Shōwa 1 = 1926, offset is start-1
	"平成": 1988,
	"令和": 2018,
	"S":  1925,
	"H":  1988,
	"R":  2018,
}

var eraDatePattern = regexp.MustCompile(`(昭和|平成|令和|[SHR])\s?(\d{1,2}|元)年?\s?(\d{1,2})[月./]\s?(\d{1,2})日?`)

// ParseEraDate converts an era-form date string to a calendar date.
func ParseEraDate(s string) (time.Time, error) {
	m := eraDatePattern.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, fmt.Errorf("no era date in %q", s)
	}
	base, ok := eraStart[m[1]]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown era %q", m[1])
	}
	year := 1
	if m[2] != "元" {
		y, err := strconv.Atoi(m[2])
		if err != nil || y < 1 {
			return time.Time{}, fmt.Errorf("bad era year %q", m[2])
		}
		year = y
	}
	month, _ := strconv.Atoi(m[3])
	day, _ := strconv.Atoi(m[4])
	if month < 1 || month > 12 || day < 1 || day > 31 {
		return time.Time{}, fmt.Errorf("implausible era date %q", s)
	}
	return time.Date(base+year, time.Month(month), day, 0, 0, 0, 0, time.UTC), nil
}

// ParseNumericDate converts an 8-digit YYYYMMDD string, the fixed-width
// format used in chip TLV records.
func ParseNumericDate(s string) (time.Time, error) {
	if len(s) != 8 {
		return time.Time{}, fmt.Errorf("date %q is not 8 digits", s)
	}
	t, err := time.Parse("20060102", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}
