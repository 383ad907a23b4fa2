package apierr

import "golang.org/x/text/language"

var supported = []language.Tag{language.English, language.Uzbek}

var matcher = language.NewMatcher(supported)

var catalog = map[language.Tag]map[string]string{
	language.English: {
		CodeUnauthorized:         "Please sign in to continue.",
		CodeForbidden:            "You do not have permission for this action.",
		CodeValidation:           "The request is invalid.",
		CodeNotFound:             "Not found.",
		CodeTestNotFound:         "Test not found.",
		CodeCooldownActive:       "This test was generated recently. Try again later.",
		CodeGenerationInProgress: "A test is already being generated for this lesson.",
		CodeUpstream:             "The question service is unavailable.",
		CodeMalformedResponse:    "The question service returned an unreadable answer.",
		CodeEmptyGeneration:      "The question service returned no questions.",
		CodeGenerationFailed:     "Test generation failed.",
		CodeNoActiveSession:      "No active test. Start the test first.",
		CodeInvalidSubmission:    "Answers must be a list.",
		CodeConfiguration:        "The server is misconfigured.",
		CodeMethodNotAllowed:     "Method not allowed.",
		CodeInternal:             "Something went wrong.",
	},
	language.Uzbek: {
		CodeUnauthorized:         "Davom etish uchun tizimga kiring.",
		CodeForbidden:            "Bu amal uchun ruxsatingiz yo'q.",
		CodeValidation:           "So'rov noto'g'ri.",
		CodeNotFound:             "Topilmadi.",
		CodeTestNotFound:         "Test topilmadi.",
		CodeCooldownActive:       "Bu test yaqinda yaratilgan. Keyinroq urinib ko'ring.",
		CodeGenerationInProgress: "Bu dars uchun test allaqachon yaratilmoqda.",
		CodeUpstream:             "Savollar xizmati ishlamayapti.",
		CodeMalformedResponse:    "Savollar xizmati o'qib bo'lmaydigan javob qaytardi.",
		CodeEmptyGeneration:      "Savollar xizmati savol qaytarmadi.",
		CodeGenerationFailed:     "Test yaratib bo'lmadi.",
		CodeNoActiveSession:      "Faol test yo'q. Avval testni boshlang.",
		CodeInvalidSubmission:    "Javoblar ro'yxat bo'lishi kerak.",
		CodeConfiguration:        "Server sozlamalari noto'g'ri.",
		CodeMethodNotAllowed:     "Bu usulga ruxsat berilmagan.",
		CodeInternal:             "Xatolik yuz berdi.",
	},
}

// Negotiate picks the best supported language for an Accept-Language header.
// Falls back to English.
func Negotiate(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.English
	}
	_, idx, conf := matcher.Match(tags...)
	if conf == language.No {
		return language.English
	}
	return supported[idx]
}

// Message returns the user-facing text for code in lang.
func Message(code string, lang language.Tag) string {
	if m, ok := catalog[lang][code]; ok {
		return m
	}
	if m, ok := catalog[language.English][code]; ok {
		return m
	}
	return catalog[language.English][CodeInternal]
}
