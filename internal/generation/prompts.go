package generation

import (
	"fmt"
	"strings"

	"github.com/mind-engage/skillway/internal/knowledge"
)

const (
	systemTest       = "Sen test yaratuvchi AI san. Faqat JSON formatda javob ber."
	systemAdaptive   = "Sen adaptiv test yaratuvchi AI san. Faqat JSON formatda javob ber."
	systemDiagnostic = "Sen diagnostik test yaratuvchi AI san. Faqat JSON formatda javob ber."
)

var tierInstructions = map[knowledge.Level]string{
	knowledge.Beginner: `MUHIM: Bu BOSHLANG'ICH daraja uchun test. Savollar:
- Juda sodda va tushunarli bo'lsin
- Faqat asosiy tushunchalarni so'rasin
- Javoblar orasidagi farq aniq bo'lsin
- Chalg'ituvchi variantlar kam bo'lsin`,
	knowledge.Intermediate: `MUHIM: Bu O'RTA daraja uchun test. Savollar:
- Amaliy masalalar bo'lsin
- Tahliliy fikrlashni talab qilsin
- Ba'zilari murakkab, ba'zilari oddiy bo'lsin`,
	knowledge.Advanced: `MUHIM: Bu YUQORI daraja uchun test. Savollar:
- Murakkab muammolarni hal qilishni talab qilsin
- Tanqidiy fikrlash kerak bo'lsin
- Chalg'ituvchi variantlar kuchli bo'lsin
- Olimpiada darajasidagi savollar bo'lsin`,
}

// lessonPrompt asks for a lesson's shared test bank.
func lessonPrompt(topic string, grade int, tier knowledge.Level) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Mavzu: %q\n", topic)
	fmt.Fprintf(&b, "Sinf: %d-sinf\n", grade)
	fmt.Fprintf(&b, "Daraja: %s\n\n", strings.ToUpper(string(tier)))
	b.WriteString(tierInstructions[tier])
	b.WriteString("\n\n5 ta test savoli yarat. Har birida 4 ta variant va faqat 1 ta to'g'ri javob bo'lsin.\n")
	b.WriteString(`JSON: {"questions":[{"question":"?","options":["A","B","C","D"],"correct":0,"explanation":"..."}]}`)
	return b.String()
}

// adaptivePrompt asks for a private test pitched at the student's tier.
func adaptivePrompt(topic string, grade int, tier knowledge.Level) string {
	var b strings.Builder
	b.WriteString("Sen ta'lim platformasi uchun ADAPTIV test yaratuvchi AIsan.\n")
	fmt.Fprintf(&b, "Mavzu: %q\n", topic)
	fmt.Fprintf(&b, "Sinf darajasi: %d-sinf\n", grade)
	fmt.Fprintf(&b, "Bilim darajasi: %s\n\n", strings.ToUpper(string(tier)))
	b.WriteString(tierInstructions[tier])
	b.WriteString("\n\n5 ta test savoli yarat. Har bir savol uchun:\n")
	b.WriteString("- 4 ta variant (A, B, C, D)\n- Faqat 1 ta to'g'ri javob\n")
	b.WriteString("- \"explanation\" maydoni bo'lishi SHART\n")
	fmt.Fprintf(&b, "- \"difficulty\" maydoni: %q\n\n", string(tier))
	fmt.Fprintf(&b, `JSON formatda javob ber:
{"questions":[{"question":"Savol matni?","options":["A","B","C","D"],"correct":0,"explanation":"...","difficulty":%q}]}`, string(tier))
	return b.String()
}

// diagnosticPrompt asks for a short mixed-difficulty placement test.
func diagnosticPrompt(grade int, subjects []string) string {
	var b strings.Builder
	b.WriteString("Sen boshlang'ich bilim darajasini aniqlovchi diagnostik test yaratuvchisan.\n")
	fmt.Fprintf(&b, "Sinf: %d-sinf\n", grade)
	fmt.Fprintf(&b, "Fanlar: %s\n\n", strings.Join(subjects, ", "))
	fmt.Fprintf(&b, "Har bir fan uchun %d ta aralash qiyinlikdagi savol yarat:\n", QuestionsPerSubject)
	b.WriteString("- 1 ta OSON savol (asosiy tushunchalar)\n- 1 ta O'RTA qiyinlikdagi savol\n\n")
	b.WriteString(`Javob formati (FAQAT JSON):
{"subjects":{"Fan nomi":{"questions":[{"question":"Savol?","options":["A","B","C","D"],"correct":0,"level":"easy"}]}}}`)
	return b.String()
}
