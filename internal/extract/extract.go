// Package extract derives structured facts from free channel text:
// phone numbers, city names from a fixed gazetteer, and word tokens.
// All functions are pure.
package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// MinTokenLength is the shortest word kept by Tokenize.
const MinTokenLength = 4

var (
	phonePattern = regexp.MustCompile(`\+?\d[\d\s\-()]{7,15}`)
	phoneExact   = regexp.MustCompile(`^\+?\d[\d\s\-()]{7,15}$`)
	// Anything that is not a letter, digit, underscore or whitespace.
	punctuation = regexp.MustCompile(`[^\p{L}\p{N}_\s]`)
)

// Cities is the gazetteer searched by Location, in match priority order.
// Latin and Cyrillic spellings are separate entries.
var Cities = []string{
	"Almaty", "Astana", "Shymkent", "Karaganda", "Aktobe", "Taraz", "Pavlodar",
	"Ust-Kamenogorsk", "Semey", "Atyrau", "Kostanay", "Kyzylorda", "Uralsk",
	"Petropavl", "Aktau", "Temirtau", "Turkistan", "Kokshetau", "Zhanaozen",
	"Ekibastuz", "Taldykorgan",
	"Алматы", "Астана", "Шымкент", "Караганда", "Актобе", "Тараз", "Павлодар",
	"Өскемен", "Семей", "Атырау", "Қостанай", "Қызылорда", "Орал",
	"Петропавл", "Ақтау", "Теміртау", "Түркістан", "Көкшетау", "Жаңаөзен",
	"Екібастұз", "Талдықорған",
}

// Phone returns the first phone-like substring of text.
// No checksum or country-code validation is attempted.
func Phone(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	match := phonePattern.FindString(text)
	if match == "" {
		return "", false
	}
	// The character class swallows trailing separators. Trimming them must
	// not leave something the pattern would reject.
	if trimmed := strings.TrimRight(match, " \t\r\n-("); phoneExact.MatchString(trimmed) {
		return trimmed, true
	}
	return match, true
}

// Location returns the first gazetteer city that occurs in text,
// compared case-insensitively. A city embedded in a longer word matches.
func Location(text string) (string, bool) {
	if text == "" {
		return "", false
	}
	lower := strings.ToLower(text)
	for _, city := range Cities {
		if strings.Contains(lower, strings.ToLower(city)) {
			return city, true
		}
	}
	return "", false
}

// Tokenize lowercases text, strips punctuation and returns the
// whitespace-separated words longer than three characters.
func Tokenize(text string) []string {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(text), "")
	fields := strings.Fields(cleaned)

	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) >= MinTokenLength {
			words = append(words, f)
		}
	}
	return words
}

// Counts tokenizes text and returns the number of occurrences of each word.
func Counts(text string) map[string]int {
	counts := make(map[string]int)
	for _, w := range Tokenize(text) {
		counts[w]++
	}
	return counts
}
