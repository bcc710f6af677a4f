package bot

import (
	"strings"

	"github.com/m3rciful/guideshop/internal/shop"

	tele "gopkg.in/telebot.v4"
)

// InputFrom reduces an inbound message to the workflow input. Captions count as text.
func InputFrom(msg *tele.Message) shop.Input {
	if msg == nil {
		return shop.Input{}
	}
	in := shop.Input{Text: msg.Text}
	if in.Text == "" {
		in.Text = msg.Caption
	}
	in.Text = strings.TrimSpace(in.Text)

	switch {
	case msg.Photo != nil:
		in.Attachment = shop.Attachment{Kind: shop.AttachPhoto, Ref: msg.Photo.FileID, Size: int64(msg.Photo.FileSize)}
	case msg.Document != nil:
		d := msg.Document
		in.Attachment = shop.Attachment{
			Kind:     shop.AttachDocument,
			Ref:      d.FileID,
			Size:     int64(d.FileSize),
			MIME:     d.MIME,
			FileName: d.FileName,
		}
	case msg.Voice != nil:
		in.Attachment = shop.Attachment{Kind: shop.AttachVoice, Ref: msg.Voice.FileID, Size: int64(msg.Voice.FileSize), MIME: msg.Voice.MIME}
	case msg.Audio != nil, msg.Video != nil, msg.Animation != nil, msg.Sticker != nil, msg.VideoNote != nil:
		in.Attachment = shop.Attachment{Kind: shop.AttachOther}
	}
	return in
}
