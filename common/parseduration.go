package common

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"emperror.dev/errors"
)

// Parses a time string like 1day3h
func ParseDuration(str string) (time.Duration, error) {
	var dur time.Duration
	var currentNumBuf, currentModifierBuf string

	// Parse the time
	for _, v := range str {
		// Ignore whitespace
		if unicode.Is(unicode.White_Space, v) {
			continue
		}

		if unicode.IsNumber(v) {
			// If we reached a number and the modifier was also set, parse the last duration component before starting a new one
			if currentModifierBuf != "" {
				if currentNumBuf == "" {
					currentNumBuf = "1"
				}
				d, err := parseDurationComponent(currentNumBuf, currentModifierBuf)
				if err != nil {
					return 0, err
				}

				dur += d

				currentNumBuf = ""
				currentModifierBuf = ""
			}

			currentNumBuf += string(v)

		} else {
			currentModifierBuf += string(v)
		}
	}

	if currentNumBuf != "" {
		d, err := parseDurationComponent(currentNumBuf, currentModifierBuf)
		if err != nil {
			return 0, errors.WrapIf(err, "not a duration")
		}

		dur += d
	}

	return dur, nil
}

func parseDurationComponent(numStr, modifierStr string) (time.Duration, error) {
	parsedNum, err := strconv.ParseInt(numStr, 10, 64)
	if err != nil {
		return 0, err
	}

	parsedDur := time.Duration(parsedNum)

	switch {
	case strings.HasPrefix(modifierStr, "s"):
		parsedDur = parsedDur * time.Second
	case modifierStr == "", (strings.HasPrefix(modifierStr, "m") && (len(modifierStr) < 2 || modifierStr[1] != 'o')):
		parsedDur = parsedDur * time.Minute
	case strings.HasPrefix(modifierStr, "h"):
		parsedDur = parsedDur * time.Hour
	case strings.HasPrefix(modifierStr, "d"):
		parsedDur = parsedDur * time.Hour * 24
	case strings.HasPrefix(modifierStr, "w"):
		parsedDur = parsedDur * time.Hour * 24 * 7
	case strings.HasPrefix(modifierStr, "mo"):
		parsedDur = parsedDur * time.Hour * 24 * 30
	case strings.HasPrefix(modifierStr, "y"):
		parsedDur = parsedDur * time.Hour * 24 * 365
	default:
		return 0, errors.New("couldn't figure out what '" + numStr + modifierStr + "' was")
	}

	return parsedDur, nil

}

type DurationFormatPrecision int

const (
	DurationPrecisionSeconds DurationFormatPrecision = iota
	DurationPrecisionMinutes
	DurationPrecisionHours
	DurationPrecisionDays
	DurationPrecisionWeeks
	DurationPrecisionYears
)

func (d DurationFormatPrecision) String() string {
	switch d {
	case DurationPrecisionSeconds:
		return "second"
	case DurationPrecisionMinutes:
		return "minute"
	case DurationPrecisionHours:
		return "hour"
	case DurationPrecisionDays:
		return "day"
	case DurationPrecisionWeeks:
		return "week"
	case DurationPrecisionYears:
		return "year"
	}

	return "unknown"
}

func (d DurationFormatPrecision) FromSeconds(in int64) int64 {
	switch d {
	case DurationPrecisionSeconds:
		return in % 60
	case DurationPrecisionMinutes:
		return (in % 3600) / 60
	case DurationPrecisionHours:
		return ((in % (3600 * 24)) / 3600)
	case DurationPrecisionDays:
		return ((in % (3600 * 24 * 7)) / (3600 * 24))
	case DurationPrecisionWeeks:
		// winds up with 52 weeks and 1 day over a year
		return ((in % (3600 * 24 * 365)) / (3600 * 24 * 7))
	case DurationPrecisionYears:
		return in / (3600 * 24 * 365)
	}

	panic("We shouldn't be here")
}

// HumanizeDuration renders a duration down to the given precision, "3 days
// and 2 hours" style.
func HumanizeDuration(precision DurationFormatPrecision, in time.Duration) string {
	seconds := int64(in.Seconds())

	out := make([]string, 0)

	for i := int(DurationPrecisionYears); i >= int(precision); i-- {
		curPrec := DurationFormatPrecision(i)
		units := curPrec.FromSeconds(seconds)
		if units > 0 {
			out = append(out, fmt.Sprintf("%d %s", units, curPrec.String()+pluralSuffix(units)))
		}
	}

	outStr := ""

	for i, v := range out {
		if i == 0 {
			outStr += v
			continue
		}

		if i == len(out)-1 {
			outStr += " and " + v
		} else {
			outStr += ", " + v
		}
	}

	if outStr == "" {
		outStr = "less than 1 " + precision.String()
	}

	return outStr
}

func pluralSuffix(count int64) string {
	if count == 1 {
		return ""
	}

	return "s"
}
