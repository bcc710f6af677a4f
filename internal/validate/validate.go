// Package validate holds the pure field checks used by the dialogues.
package validate

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/m3rciful/guideshop/internal/shop"
)

const (
	// MinNameRunes is the shortest accepted item name, counted in characters.
	MinNameRunes = 3
	// MaxNameBytes caps names so they fit into callback data next to the unique.
	MaxNameBytes = 48
	// MinDescriptionRunes is the shortest accepted description.
	MinDescriptionRunes = 10

	// MiB is one mebibyte, the unit of the upload limits.
	MiB = 1 << 20
)

// Error codes.
const (
	CodeNameShort       = "name_short"
	CodeNameLong        = "name_long"
	CodeNoPhoto         = "no_photo"
	CodeTooLarge        = "too_large"
	CodeDescShort       = "description_short"
	CodeNotDocument     = "not_document"
	CodeNoDocument      = "no_document"
	CodeMIME            = "mime_unsupported"
	CodeSizeUnknown     = "size_unknown"
	CodeNotNumber       = "not_number"
	CodeOutOfRange      = "out_of_range"
	CodeReceiptDocument = "receipt_document"
)

// Error is a rejected input. Message is safe to show to the user.
type Error struct {
	Code    string
	Message string
}

func (e *Error) Error() string { return "validate: " + e.Code }

func fail(code, msg string) *Error { return &Error{Code: code, Message: msg} }

// AllowedMIME lists accepted document MIME prefixes.
var AllowedMIME = []string{
	"application/pdf",
	"application/vnd.openxmlformats-officedocument",
	"application/msword",
	"text/plain",
}

// Name trims text and checks its length. The byte limit keeps names inside callback data.
func Name(text string) (string, error) {
	name := strings.TrimSpace(text)
	if utf8.RuneCountInString(name) < MinNameRunes {
		return "", fail(CodeNameShort, fmt.Sprintf("❌ Название должно содержать минимум %d символа.", MinNameRunes))
	}
	if len(name) > MaxNameBytes {
		return "", fail(CodeNameLong, "❌ Название слишком длинное. Сократите его, пожалуйста.")
	}
	return name, nil
}

// Photo checks an item preview image.
func Photo(att shop.Attachment, maxBytes int64) error {
	if att.Kind != shop.AttachPhoto || att.Ref == "" {
		return fail(CodeNoPhoto, "❌ Пожалуйста, отправьте фото.")
	}
	if maxBytes > 0 && att.Size > maxBytes {
		return fail(CodeTooLarge, fmt.Sprintf("❌ Фото слишком большое (%s). Максимальный размер: %s.", FormatMB(att.Size), FormatMB(maxBytes)))
	}
	return nil
}

// Description trims text and checks its length.
func Description(text string) (string, error) {
	desc := strings.TrimSpace(text)
	if utf8.RuneCountInString(desc) < MinDescriptionRunes {
		return "", fail(CodeDescShort, fmt.Sprintf("❌ Описание должно содержать минимум %d символов.", MinDescriptionRunes))
	}
	return desc, nil
}

// Document checks the item file. Photos and voice notes get a distinct message
// asking to resend as a document.
func Document(att shop.Attachment, maxBytes int64) error {
	switch att.Kind {
	case shop.AttachDocument:
	case shop.AttachPhoto, shop.AttachVoice:
		return fail(CodeNotDocument, "⚠️ Пожалуйста, отправьте файл как документ\n\n"+
			"1. Нажмите на скрепку в поле ввода\n"+
			"2. Выберите \"Документ\"\n"+
			"3. Выберите нужный файл")
	default:
		return fail(CodeNoDocument, "❌ Пожалуйста, отправьте файл через меню \"Прикрепить\" -> \"Документ\".")
	}
	if !AllowedType(att.MIME) {
		mime := att.MIME
		if mime == "" {
			mime = "неизвестный"
		}
		return fail(CodeMIME, "❌ Неподдерживаемый формат файла.\nПолучен: "+mime+"\nПоддерживаются: PDF, Word (docx/doc), текстовые файлы.")
	}
	if att.Size <= 0 {
		return fail(CodeSizeUnknown, "⚠️ Не удалось получить размер файла. Попробуйте другой файл.")
	}
	if maxBytes > 0 && att.Size > maxBytes {
		return fail(CodeTooLarge, fmt.Sprintf("❌ Файл слишком большой (%s). Максимальный размер: %s.", FormatMB(att.Size), FormatMB(maxBytes)))
	}
	return nil
}

// AllowedType reports whether mime starts with an allowed prefix.
func AllowedType(mime string) bool {
	mime = strings.ToLower(strings.TrimSpace(mime))
	if mime == "" {
		return false
	}
	for _, p := range AllowedMIME {
		if strings.HasPrefix(mime, p) {
			return true
		}
	}
	return false
}

// Price parses a non-negative integer made of ASCII digits within [min, max].
func Price(text string, min, max int, unit string) (int, error) {
	s := strings.TrimSpace(text)
	if s == "" || strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' }) >= 0 {
		return 0, fail(CodeNotNumber, "❌ Пожалуйста, укажите корректную цену в "+unit+" (только цифры).")
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < min || n > max {
		return 0, fail(CodeOutOfRange, fmt.Sprintf("❌ Цена должна быть от %d до %d.\nПожалуйста, введите корректное значение.", min, max))
	}
	return n, nil
}

// Receipt checks a manual-transfer receipt screenshot.
func Receipt(att shop.Attachment, maxBytes int64) error {
	switch att.Kind {
	case shop.AttachPhoto:
	case shop.AttachDocument:
		return fail(CodeReceiptDocument, "Пожалуйста, отправьте именно 📸 скриншот (как изображение), а не файл-документ.")
	default:
		return fail(CodeNoPhoto, "Прикрепите скриншот вашего чека по оплате, пожалуйста.")
	}
	if maxBytes > 0 && att.Size > maxBytes {
		return fail(CodeTooLarge, "Изображение слишком большое. Пожалуйста, сделайте скриншот меньше или обрежьте его.")
	}
	return nil
}

// FormatMB renders a byte count like "2.0MB".
func FormatMB(n int64) string {
	return strconv.FormatFloat(float64(n)/MiB, 'f', 1, 64) + "MB"
}

// Message extracts the user-facing text from a validation error. ok is false for other errors.
func Message(err error) (string, bool) {
	var ve *Error
	if errors.As(err, &ve) {
		return ve.Message, true
	}
	return "", false
}
