// internal/nlu/parse.go
//
// Deterministic pt-BR parsing. Everything here is locale-specific on
// purpose: dates, times, counts, and affirmations are parsed without the
// LLM whenever the utterance is unambiguous, so slot values stay stable
// across model versions.
package nlu

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var (
	emailTokenRe = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	timeRangeRe  = regexp.MustCompile(`(\d{1,2})(?::(\d{2}))?\s*h?\s*(?:às|as|até|ate|a|-)\s*(?:às|as)?\s*(\d{1,2})(?::(\d{2}))?\s*h?`)
	singleTimeRe = regexp.MustCompile(`(?:às|as)?\s*(\d{1,2})(?::(\d{2}))?\s*h(?:oras)?\b|(?:às|as)\s+(\d{1,2})(?::(\d{2}))?\b`)
	numericDayRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)
	digitsRe     = regexp.MustCompile(`\b(\d{1,2})\b`)

	cancelRe = regexp.MustCompile(`(?i)\b(cancel(e|ar)?|pare|parar|stop|reset(ar)?|recome(ç|c)ar|novo comando)\b`)
	onlyMeRe = regexp.MustCompile(`(?i)\b(s(ó|o) eu|somente eu|apenas eu|sem convidados?)\b`)
	yesRe    = regexp.MustCompile(`(?i)\b(sim|pode|claro|confirmo|confirmar|ok|isso|manda|envia|yes)\b`)
	noRe     = regexp.MustCompile(`(?i)\b(n(ã|a)o|negativo|cancela|deixa|no)\b`)
)

var countWords = map[string]int{
	"um": 1, "uma": 1, "dois": 2, "duas": 2, "três": 3, "tres": 3,
	"quatro": 4, "cinco": 5, "seis": 6, "sete": 7, "oito": 8,
	"nove": 9, "dez": 10,
}

// IsCancel reports whether the utterance is a cancellation token.
func IsCancel(text string) bool {
	return cancelRe.MatchString(text)
}

// OnlyMe reports whether the user declined attendees ("só eu",
// "sem convidados"), which maps to an empty attendee list.
func OnlyMe(text string) bool {
	return onlyMeRe.MatchString(text)
}

// YesNo parses an affirmation. ok is false when the utterance is neither.
func YesNo(text string) (yes, ok bool) {
	if noRe.MatchString(text) {
		return false, true
	}
	if yesRe.MatchString(text) {
		return true, true
	}
	return false, false
}

// Emails returns every token matching the address shape; everything else
// is dropped.
func Emails(text string) []string {
	return emailTokenRe.FindAllString(text, -1)
}

// ParseDate resolves relative ("hoje", "amanhã") and numeric (dd/mm)
// dates against now in loc, returning the "2006-01-02" form.
func ParseDate(text string, loc *time.Location, now time.Time) (string, bool) {
	lower := strings.ToLower(text)
	today := now.In(loc)

	switch {
	case strings.Contains(lower, "depois de amanhã"), strings.Contains(lower, "depois de amanha"):
		return today.AddDate(0, 0, 2).Format("2006-01-02"), true
	case strings.Contains(lower, "amanhã"), strings.Contains(lower, "amanha"):
		return today.AddDate(0, 0, 1).Format("2006-01-02"), true
	case strings.Contains(lower, "hoje"):
		return today.Format("2006-01-02"), true
	}

	if m := numericDayRe.FindStringSubmatch(lower); m != nil {
		day, _ := strconv.Atoi(m[1])
		month, _ := strconv.Atoi(m[2])
		year := today.Year()
		if m[3] != "" {
			year, _ = strconv.Atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		if day < 1 || day > 31 || month < 1 || month > 12 {
			return "", false
		}
		d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, loc)
		// A bare dd/mm in the past rolls to next year.
		if m[3] == "" && d.Before(today.Truncate(24*time.Hour)) {
			d = d.AddDate(1, 0, 0)
		}
		return d.Format("2006-01-02"), true
	}
	return "", false
}

// ParseTimeRange parses "9h às 10h", "9:00-10:30", "das 10h até 11h"
// into "15:04" start/end.
func ParseTimeRange(text string) (start, end string, ok bool) {
	m := timeRangeRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return "", "", false
	}
	sh, _ := strconv.Atoi(m[1])
	eh, _ := strconv.Atoi(m[3])
	if sh > 23 || eh > 23 {
		return "", "", false
	}
	sm, em := 0, 0
	if m[2] != "" {
		sm, _ = strconv.Atoi(m[2])
	}
	if m[4] != "" {
		em, _ = strconv.Atoi(m[4])
	}
	if sm > 59 || em > 59 {
		return "", "", false
	}
	return clock(sh, sm), clock(eh, em), true
}

// ParseTime parses a single "às 10h" / "10:30" style time.
func ParseTime(text string) (string, bool) {
	m := singleTimeRe.FindStringSubmatch(strings.ToLower(text))
	if m == nil {
		return "", false
	}
	hs, ms := m[1], m[2]
	if hs == "" {
		hs, ms = m[3], m[4]
	}
	h, _ := strconv.Atoi(hs)
	if h > 23 {
		return "", false
	}
	min := 0
	if ms != "" {
		min, _ = strconv.Atoi(ms)
		if min > 59 {
			return "", false
		}
	}
	return clock(h, min), true
}

// ParseCount finds a small count in the utterance, as a digit or a
// pt-BR number word ("dois últimos e-mails" → 2).
func ParseCount(text string) (int, bool) {
	lower := strings.ToLower(text)
	for _, word := range strings.FieldsFunc(lower, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '!' || r == '?'
	}) {
		if n, ok := countWords[word]; ok {
			return n, true
		}
	}
	if m := digitsRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		return n, true
	}
	return 0, false
}

func clock(h, m int) string {
	return fmt.Sprintf("%02d:%02d", h, m)
}
