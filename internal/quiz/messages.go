package quiz

import (
	"fmt"
	"strings"
)

// User-facing texts. The wording is fixed product copy; only the contact
// handle is configurable.
const (
	msgChooseRole      = "Оберіть роль, щоб почати 👇"
	msgSessionEnded    = "Сесію завершено. Щоб почати заново — оберіть роль нижче 👇"
	msgChooseRoleFirst = "Спочатку оберіть роль 👇"
	msgChooseAnswer    = "Будь ласка, оберіть A, B або C 👇"

	msgVerdictStrong = "У Вас добрий рівень розуміння клієнтського досвіду. Ви відчуваєте, що сервіс — це більше, ніж просто послуга."
	msgVerdictGaps   = "Є сильні сторони і моменти, які можуть зіпсувати враження пацієнтів. Я можу показати, як це виглядає їх очима."

	// ExitButton is the decorated exit key shown on every keyboard.
	ExitButton = "🔚 Завершити"

	exitGlyph = "🔚"
	exitWord  = "завершити"

	// verdictErrorThreshold switches the final message to the critical
	// variant once the error tally reaches it.
	verdictErrorThreshold = 2
)

// IsExit reports whether text is a member of the exit phrase family:
// trimmed, case-folded, the decorative glyph stripped, and suffix-matched
// against the localized word for "finish".
func IsExit(text string) bool {
	t := strings.ToLower(strings.TrimSpace(text))
	t = strings.TrimSpace(strings.ReplaceAll(t, exitGlyph, ""))
	return strings.HasSuffix(t, exitWord)
}

func finalMessage(correct, errorCount int, contact string) string {
	verdict := msgVerdictStrong
	if errorCount >= verdictErrorThreshold {
		verdict = msgVerdictGaps
	}
	return fmt.Sprintf("%s\n\n✅ Ви відповіли правильно на %d із %d.%s\n\nХочете пройти тест у іншій ролі?",
		verdict, correct, QuestionsPerRole, ctaSuffix(contact))
}

func ctaSuffix(contact string) string {
	handle := strings.TrimPrefix(strings.TrimSpace(contact), "@")
	if handle == "" {
		return ""
	}
	return fmt.Sprintf("\n\nНапишіть мені в особисті: @%s — підкажу, як швидко підтягнути сервіс.", handle)
}
