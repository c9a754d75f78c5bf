package models

// Language is a translation target offered at submission time.
type Language struct {
	Code string
	Name string
}

var SupportedLanguages = []Language{
	{Code: "en", Name: "English"},
	{Code: "tr", Name: "Turkish"},
	{Code: "es", Name: "Spanish"},
	{Code: "fr", Name: "French"},
	{Code: "de", Name: "German"},
	{Code: "it", Name: "Italian"},
	{Code: "pt", Name: "Portuguese"},
	{Code: "ru", Name: "Russian"},
	{Code: "zh-cn", Name: "Chinese (Simplified)"},
	{Code: "ja", Name: "Japanese"},
}

func IsSupportedLanguage(code string) bool {
	for _, lang := range SupportedLanguages {
		if lang.Code == code {
			return true
		}
	}
	return false
}
