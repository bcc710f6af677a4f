package bot

import (
	"fmt"
	"unicode"

	"github.com/m3rciful/guideshop/core/logger"
	"github.com/m3rciful/guideshop/internal/shop"
)

const (
	textWelcome      = "Привет! Здесь можно купить гайды и курсы.\nВыберите раздел на клавиатуре ниже."
	textWelcomeAdmin = "\n\nМеню администратора: /admin"
	textUnknown      = "Не понял вас. Выберите раздел на клавиатуре ниже."
	textNotForYou    = "Эта команда не для вас)"
	textAdminMenu    = "Рад вас видеть! Что делаем?"
	textStale        = "Эта заявка уже обработана."
	textBadButton    = "Кнопка устарела."
	textTooFast      = "Слишком часто, подождите немного."
	textTryLater     = "Что-то пошло не так, попробуйте позже."
	textStatsCaption = "Статистика просмотров"
	textCheckoutFail = "Оплата сейчас недоступна, попробуйте позже."

	labelStats = "Статистика"

	uniqueStats = "stats"
	statsFile   = "stats.txt"
)

func menuLabel(k shop.Kind) string { return k.Emoji() + " " + k.Plural() }

func addLabel(k shop.Kind) string { return "Добавить " + lowerFirst(k.Title()) }

func deleteLabel(k shop.Kind) string { return "Удалить " + lowerFirst(k.Title()) }

func textErrorReport(handler string, err error) string {
	return fmt.Sprintf("⚠️ Ошибка в боте\nОбработчик: %s\nОписание: %s\n\nПроверьте логи для деталей.",
		handler, logger.SanitizeLimit(err.Error(), 100))
}

func lowerFirst(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	r[0] = unicode.ToLower(r[0])
	return string(r)
}
