package stt

import (
	"strings"
	"sync"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// whisperLanguages lists the language codes Whisper models can detect.
var whisperLanguages = []string{
	"en", "zh", "de", "es", "ru", "ko", "fr", "ja", "pt", "tr", "pl", "ca", "nl",
	"ar", "sv", "it", "id", "hi", "fi", "vi", "he", "uk", "el", "ms", "cs", "ro",
	"da", "hu", "ta", "no", "th", "ur", "hr", "bg", "lt", "la", "mi", "ml", "cy",
	"sk", "te", "fa", "lv", "bn", "sr", "az", "sl", "kn", "et", "mk", "br", "eu",
	"is", "hy", "ne", "mn", "bs", "kk", "sq", "sw", "gl", "mr", "pa", "si", "km",
	"sn", "yo", "so", "af", "oc", "ka", "be", "tg", "sd", "gu", "am", "yi", "lo",
	"uz", "fo", "ht", "ps", "tk", "nn", "mt", "sa", "lb", "my", "bo", "tl", "mg",
	"as", "tt", "haw", "ln", "ha", "ba", "jw", "su", "yue",
}

var (
	nameToCodeOnce sync.Once
	nameToCode     map[string]string
)

// NormalizeLanguage maps what a backend reports as the spoken language to a
// lower-case ISO 639 base code. Backends report either codes ("zh", "zh-TW")
// or English names ("chinese"). Unknown values are returned lower-cased.
func NormalizeLanguage(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return ""
	}
	nameToCodeOnce.Do(func() {
		nameToCode = make(map[string]string, len(whisperLanguages))
		namer := display.English.Languages()
		for _, code := range whisperLanguages {
			tag, err := language.Parse(code)
			if err != nil {
				continue
			}
			if name := namer.Name(tag); name != "" {
				nameToCode[strings.ToLower(name)] = code
			}
		}
		// Whisper's own spellings that differ from CLDR.
		nameToCode["javanese"] = "jw"
		nameToCode["mandarin"] = "zh"
		nameToCode["castilian"] = "es"
		nameToCode["flemish"] = "nl"
		nameToCode["haitian creole"] = "ht"
	})
	if code, ok := nameToCode[s]; ok {
		return code
	}
	if tag, err := language.Parse(s); err == nil {
		base, _ := tag.Base()
		return base.String()
	}
	return s
}
