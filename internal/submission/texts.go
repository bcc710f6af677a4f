package submission

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/guideshop/internal/shop"
	"github.com/m3rciful/guideshop/internal/validate"
)

const summaryDescRunes = 50

const (
	textLookupFailed = "⚠️ Ошибка при проверке данных. Попробуйте позже."
	textCreateFailed = "⚠️ Ошибка при сохранении в базу данных. Пожалуйста, начните заново."
	textConflict     = "⚠️ Ошибка: данные с таким названием уже существуют.\nПожалуйста, начните процесс заново."
	textNothing      = "Пока ничего нет."
	textRemoved      = "🗑 Удалено: %s"
	textRemoveGone   = "Такой позиции уже нет."
	textRemoveFailed = "⚠️ Не удалось удалить. Попробуйте позже."
)

func promptName(k shop.Kind) string { return "📝 Введите название " + k.Genitive() + ":" }

func nameTaken(name string) string {
	return fmt.Sprintf("⚠️ Данные с названием '%s' уже существуют.", name)
}

func promptPhoto(k shop.Kind, max int64) string {
	return fmt.Sprintf("📸 Теперь отправьте фото для %s (макс. %s):", k.Genitive(), validate.FormatMB(max))
}

func promptDescription(k shop.Kind, size int64) string {
	return fmt.Sprintf("✅ Фото сохранено! (Размер: %s)\n📝 Теперь введите описание %s:", validate.FormatMB(size), k.Genitive())
}

func promptFile(k shop.Kind, max int64) string {
	return fmt.Sprintf("📎 Загрузите файл %s (макс. %s):\nПоддерживаемые форматы: PDF, Word (docx/doc), текстовые файлы.",
		k.Genitive(), validate.FormatMB(max))
}

func promptPriceMinor(att shop.Attachment) string {
	return fmt.Sprintf("✅ Файл успешно принят!\n📄 Название: %s\n📦 Тип: %s\n📏 Размер: %s\n\n💳 Теперь укажите цену в рублях:",
		att.FileName, att.MIME, validate.FormatMB(att.Size))
}

func promptPriceStars(k shop.Kind, price int) string {
	return fmt.Sprintf("✅ Цена в рублях: %d₽\n⭐ Теперь укажите цену %s в звездах:", price, k.Genitive())
}

func missingFields(fields []string) string {
	return "❌ Отсутствуют обязательные данные: " + strings.Join(fields, ", ") + "\nПожалуйста, начните процесс заново."
}

func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n]) + "..."
}

func summary(it shop.Item) string {
	return fmt.Sprintf("✅ %s успешно добавлен!\n\n📌 Название: %s\n📝 Описание: %s\n💳 Цена: %d₽\n⭐ Звёзды: %d\n\nСпасибо за добавление %s!",
		it.Kind.Title(), it.Name, truncate(it.Description, summaryDescRunes), it.PriceMinor, it.PriceStars, it.Kind.Genitive())
}

func removeMenu(k shop.Kind) string { return "Выберите, что удалить (" + strings.ToLower(k.Plural()) + "):" }
