package extract

import (
	"reflect"
	"strings"
	"testing"
)

func TestPhone(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"international with spaces", "Call +7 701 234 5678 now", "+7 701 234 5678", true},
		{"local with dashes", "тел: 8-777-123-45-67", "8-777-123-45-67", true},
		{"parentheses", "Office (727) 250-00-00 daily", "727) 250-00-00", true},
		{"first match wins", "+77011112233 or +77024445566", "+77011112233", true},
		{"trailing bracket trimmed", "8 777 123 45 67 (Алматы)", "8 777 123 45 67", true},
		{"dash run keeps full match", "Price 5 -------- list", "5 -------- ", true},
		{"bracket run keeps full match", "room 7 (((((((( x", "7 (((((((( ", true},
		{"no numbers", "no numbers here", "", false},
		{"too short", "room 1234", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Phone(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("Phone(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Phone(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestPhone_MatchesPattern(t *testing.T) {
	inputs := []string{
		"Price 5 -------- list",
		"room 7 (((((((( x",
		"+7 -------",
		"8 777 123 45 67 (Алматы)",
		"call 1       now",
	}
	for _, text := range inputs {
		got, ok := Phone(text)
		if !ok {
			t.Fatalf("Phone(%q) found nothing", text)
		}
		if !phoneExact.MatchString(got) {
			t.Errorf("Phone(%q) = %q, does not match the phone pattern", text, got)
		}
	}
}

func TestPhone_ContainsDigits(t *testing.T) {
	got, ok := Phone("Call +7 701 234 5678 now")
	if !ok {
		t.Fatal("Phone() found nothing")
	}
	digits := strings.Map(func(r rune) rune {
		if r >= '0' && r <= '9' {
			return r
		}
		return -1
	}, got)
	if digits != "77012345678" {
		t.Errorf("Phone() digits = %q, want %q", digits, "77012345678")
	}
}

func TestLocation(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		want   string
		wantOK bool
	}{
		{"cyrillic", "Офис находится в Алматы", "Алматы", true},
		{"latin case-insensitive", "best coffee in ALMATY", "Almaty", true},
		{"gazetteer order wins", "from Shymkent to Almaty", "Almaty", true},
		{"kazakh letters", "Біз Қостанай қаласындамыз", "Қостанай", true},
		{"embedded substring still matches", "Оралхан туралы", "Орал", true},
		{"hyphenated", "ust-kamenogorsk news", "Ust-Kamenogorsk", true},
		{"no city", "Новости дня", "", false},
		{"empty", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Location(tt.text)
			if ok != tt.wantOK {
				t.Fatalf("Location(%q) ok = %v, want %v", tt.text, ok, tt.wantOK)
			}
			if got != tt.want {
				t.Errorf("Location(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"drops short words", "Hello, World! A cat.", []string{"hello", "world"}},
		{"cyrillic", "Привет, мир! Алматы зовёт", []string{"привет", "алматы", "зовёт"}},
		{"keeps underscores and digits", "snake_case 2024 год", []string{"snake_case", "2024"}},
		{"punctuation glued words", "e-mail: test@mail.kz", []string{"email", "testmailkz"}},
		{"repeated words kept", "apple apple APPLE", []string{"apple", "apple", "apple"}},
		{"empty", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestCounts(t *testing.T) {
	got := Counts("Apple pie, apple juice and an apple.")
	want := map[string]int{"apple": 3, "juice": 1}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Counts() = %v, want %v", got, want)
	}
}
