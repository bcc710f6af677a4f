package payment

import (
	"fmt"

	"github.com/m3rciful/guideshop/internal/shop"
)

const (
	textPickFirst       = "Сначала выберите товар из списка."
	textItemGone        = "Этот товар больше недоступен."
	textTryLater        = "⚠️ Что-то пошло не так. Попробуйте ещё раз позже."
	textStarsOff        = "Оплата звёздами для этого товара недоступна."
	textSendReceipt     = "Прикрепите чек🧾 для подтверждения оплаты!\n\nЕсли вы нажали не на ту кнопку, напишите \"%s\""
	textCancelled       = "Процесс оплаты отменен."
	textWaitAdmin       = "Ожидайте подтверждение вашей оплаты админом."
	textUnderReview     = "Ваш чек уже на проверке. Ожидайте, пожалуйста."
	textAdminUnreach    = "Не удалось передать чек администратору. Пожалуйста, отправьте его ещё раз чуть позже."
	textReviewCaption   = "Проверьте оплату на корректность:\n%s: %s\nПокупатель: %d"
	textAreYouSure      = "Вы точно все внимательно проверили?"
	textRejectedAdmin   = "Понял вас! Сообщаю о некорректности платежа пользователю!"
	textRejectedBuyer   = "Админ не подтвердил ваш платеж! Перепроверьте оплату!"
	textDeliveryFailAdm = "%s не отправился...\nОшибка записана в журнал, её уже разбирают."
	textYes             = "Да"
	textNo              = "Нет"
	textApprove         = "✅ Всё верно"
	textReject          = "❌ Оплата не пришла"
	textPayStars        = "⭐ Оплатить звёздами"
	textPayTransfer     = "💳 Перевод по номеру телефона"
)

func textEmpty(k shop.Kind) string { return "Пока " + k.GenitivePlural() + " нет." }

func textList(k shop.Kind) string { return k.Emoji() + k.Plural() + ":" }

func textDetails(it shop.Item) string {
	return fmt.Sprintf("%s: %s\nОписание: %s\nСтоимость в рублях: %d\nСтоимость в звездах: %d",
		it.Kind.Title(), it.Name, it.Description, it.PriceMinor, it.PriceStars)
}

func textTransfer(k shop.Kind, phone string) string {
	return fmt.Sprintf("Переведите на этот номер телефона сумму, указанную в описании %s: %s", k.Genitive(), phone)
}

func textDeliveryCaption(k shop.Kind, name string) string { return k.Title() + ": " + name }

func textSending(k shop.Kind) string { return "Отправляю " + lower(k.Title()) + " счастливчику🥳" }

func textDeliveryFailBuyer(k shop.Kind) string {
	what := "товар"
	if k.Valid() {
		what = lower(k.Title())
	}
	return fmt.Sprintf("Не удалось отправить вам %s. Мы уже работаем над этой проблемой и обязательно пришлём его, как только решим её. Приносим извинения за неудобства!", what)
}

func lower(s string) string {
	r := []rune(s)
	if len(r) == 0 {
		return s
	}
	if r[0] >= 'А' && r[0] <= 'Я' {
		r[0] += 'а' - 'А'
	}
	return string(r)
}
