package ocr

import (
	"strings"

	"golang.org/x/text/language"
)

// tesseract names for scripts that have no plain ISO 639-3 code.
var tessSpecial = map[string]string{
	"ch_sim": "chi_sim",
	"ch_tra": "chi_tra",
	"zh":     "chi_sim",
}

// TesseractLanguages maps short language codes such as "ru" and "en" to the
// traineddata names tesseract expects ("rus", "eng"). Codes that cannot be
// parsed are passed through unchanged.
func TesseractLanguages(langs []string) []string {
	out := make([]string, 0, len(langs))
	seen := make(map[string]bool, len(langs))
	for _, l := range langs {
		name := tesseractLang(strings.TrimSpace(l))
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, name)
	}
	return out
}

func tesseractLang(code string) string {
	if code == "" {
		return ""
	}
	lc := strings.ToLower(code)
	if s, ok := tessSpecial[lc]; ok {
		return s
	}
	if len(lc) == 3 {
		return lc
	}
	tag, err := language.Parse(lc)
	if err != nil {
		return lc
	}
	base, conf := tag.Base()
	if conf == language.No {
		return lc
	}
	if iso3 := base.ISO3(); iso3 != "" {
		return iso3
	}
	return lc
}
