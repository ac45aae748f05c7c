package language

import (
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// English names and ISO 639-2/B codes are accepted alongside BCP 47 tags,
// since transcription tools and users supply all three.
var aliases = map[string]string{
	"english":    "en",
	"spanish":    "es",
	"french":     "fr",
	"german":     "de",
	"italian":    "it",
	"portuguese": "pt",
	"japanese":   "ja",
	"korean":     "ko",
	"chinese":    "zh",
	"russian":    "ru",
	"arabic":     "ar",
	"hindi":      "hi",
	"dutch":      "nl",
	"polish":     "pl",
	"swedish":    "sv",
	"danish":     "da",
	"norwegian":  "no",
	"finnish":    "fi",
	"fre":        "fr",
	"ger":        "de",
	"chi":        "zh",
	"dut":        "nl",
}

var namer = display.English.Languages()

// Normalize maps a language code, tag or English name to its shortest ISO 639
// code ("eng", "en-US" and "English" all become "en"). It returns "" when the
// input is blank or unrecognized.
func Normalize(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	if value == "" {
		return ""
	}
	if code, ok := aliases[value]; ok {
		return code
	}
	base, ok := parseBase(value)
	if !ok {
		return ""
	}
	return base.String()
}

// ISO3 returns the ISO 639-2 code for value, or "und" when unrecognized.
func ISO3(value string) string {
	code := Normalize(value)
	if code == "" {
		return "und"
	}
	base, ok := parseBase(code)
	if !ok {
		return "und"
	}
	return base.ISO3()
}

// DisplayName returns the English name for value. Blank input yields
// "Unknown"; unrecognized input is returned upper-cased.
func DisplayName(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "Unknown"
	}
	code := Normalize(trimmed)
	if code == "" {
		return strings.ToUpper(trimmed)
	}
	tag, err := xlanguage.Parse(code)
	if err != nil {
		return strings.ToUpper(trimmed)
	}
	if name := namer.Name(tag); name != "" {
		return name
	}
	return strings.ToUpper(trimmed)
}

func parseBase(value string) (xlanguage.Base, bool) {
	tag, err := xlanguage.Parse(value)
	if err != nil {
		return xlanguage.Base{}, false
	}
	base, confidence := tag.Base()
	if confidence == xlanguage.No || base.String() == "und" {
		return xlanguage.Base{}, false
	}
	return base, true
}
