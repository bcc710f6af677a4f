package shop

import "context"

// Catalog persists sellable items.
type Catalog interface {
	// FindByName returns ErrNotFound when no item of kind has exactly name.
	FindByName(ctx context.Context, kind Kind, name string) (Item, error)
	// Create returns ErrConflict when the name is already taken.
	Create(ctx context.Context, item Item) (int64, error)
	// Delete returns ErrNotFound when nothing was removed.
	Delete(ctx context.Context, kind Kind, name string) error
	List(ctx context.Context, kind Kind) ([]Item, error)
}

// ViewLog records who viewed what.
type ViewLog interface {
	RecordView(ctx context.Context, v View) error
	Views(ctx context.Context) ([]View, error)
}

// MessageRef points at a sent message.
type MessageRef struct {
	ChatID    int64 `json:"chat_id"`
	MessageID int   `json:"message_id"`
}

// IsZero reports whether the ref points nowhere.
func (r MessageRef) IsZero() bool { return r.ChatID == 0 && r.MessageID == 0 }

// Button is an inline keyboard button.
type Button struct {
	Text   string
	Unique string
	Data   string
}

// Keyboard is attached to outgoing messages. Inline wins over Reply.
type Keyboard struct {
	Inline [][]Button
	Reply  [][]string
	Remove bool
}

// Invoice is a payment request in the platform currency.
type Invoice struct {
	Title       string
	Description string
	Payload     string
	Label       string
	Amount      int
}

// Messenger is the outbound side of the messaging platform. Every call may fail.
type Messenger interface {
	SendText(ctx context.Context, chatID int64, text string, kb *Keyboard) (MessageRef, error)
	SendPhoto(ctx context.Context, chatID int64, photoRef, caption string, kb *Keyboard) (MessageRef, error)
	SendDocument(ctx context.Context, chatID int64, fileRef, fileName, caption string) (MessageRef, error)
	SendInvoice(ctx context.Context, chatID int64, inv Invoice) error
	Delete(ctx context.Context, ref MessageRef) error
	Refund(ctx context.Context, userID int64, chargeID string) error
}
