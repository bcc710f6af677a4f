package validate

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/guideshop/internal/shop"
)

func code(t *testing.T, err error) string {
	t.Helper()
	var ve *Error
	require.True(t, errors.As(err, &ve), "want *validate.Error, got %v", err)
	assert.NotEmpty(t, ve.Message)
	return ve.Code
}

func TestName(t *testing.T) {
	got, err := Name("  Guide Alpha \n")
	require.NoError(t, err)
	assert.Equal(t, "Guide Alpha", got)

	_, err = Name("  ab  ")
	assert.Equal(t, CodeNameShort, code(t, err))

	got, err = Name("абв")
	require.NoError(t, err, "three cyrillic runes are enough")
	assert.Equal(t, "абв", got)

	_, err = Name(strings.Repeat("я", 25))
	assert.Equal(t, CodeNameLong, code(t, err))
}

func TestPhoto(t *testing.T) {
	ok := shop.Attachment{Kind: shop.AttachPhoto, Ref: "ph", Size: 2 * MiB}
	assert.NoError(t, Photo(ok, 5*MiB))

	assert.Equal(t, CodeNoPhoto, code(t, Photo(shop.Attachment{}, 5*MiB)))
	assert.Equal(t, CodeNoPhoto, code(t, Photo(shop.Attachment{Kind: shop.AttachDocument, Ref: "d"}, 5*MiB)))

	big := ok
	big.Size = 5*MiB + 1
	assert.Equal(t, CodeTooLarge, code(t, Photo(big, 5*MiB)))
}

func TestDescription(t *testing.T) {
	_, err := Description("  short  ")
	assert.Equal(t, CodeDescShort, code(t, err))

	got, err := Description(" Ten chars! ")
	require.NoError(t, err)
	assert.Equal(t, "Ten chars!", got)
}

func TestDocument(t *testing.T) {
	pdf := shop.Attachment{Kind: shop.AttachDocument, Ref: "f", Size: 3 * MiB, MIME: "application/pdf", FileName: "a.pdf"}
	assert.NoError(t, Document(pdf, 20*MiB))

	docx := pdf
	docx.MIME = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	assert.NoError(t, Document(docx, 20*MiB))

	assert.Equal(t, CodeNotDocument, code(t, Document(shop.Attachment{Kind: shop.AttachPhoto, Ref: "p"}, 20*MiB)))
	assert.Equal(t, CodeNotDocument, code(t, Document(shop.Attachment{Kind: shop.AttachVoice, Ref: "v"}, 20*MiB)))
	assert.Equal(t, CodeNoDocument, code(t, Document(shop.Attachment{}, 20*MiB)))

	for _, size := range []int64{1, 3 * MiB, 100 * MiB} {
		zip := pdf
		zip.MIME, zip.Size = "application/zip", size
		assert.Equal(t, CodeMIME, code(t, Document(zip, 20*MiB)), "size %d", size)
	}

	noSize := pdf
	noSize.Size = 0
	assert.Equal(t, CodeSizeUnknown, code(t, Document(noSize, 20*MiB)))

	huge := pdf
	huge.Size = 25 * MiB
	assert.Equal(t, CodeTooLarge, code(t, Document(huge, 20*MiB)))
}

func TestPrice(t *testing.T) {
	for in, want := range map[string]int{"0": 0, " 500 ": 500, "100000": 100000} {
		got, err := Price(in, 0, 100000, "рублях")
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}
	for _, in := range []string{"", "abc", "-1", "1.5", "1e3", "+7", "٣"} {
		_, err := Price(in, 0, 100000, "рублях")
		assert.Equal(t, CodeNotNumber, code(t, err), in)
	}
	for _, in := range []string{"100001", "99999999999999999999"} {
		_, err := Price(in, 0, 100000, "звёздах")
		assert.Equal(t, CodeOutOfRange, code(t, err), in)
	}
}

func TestReceipt(t *testing.T) {
	assert.NoError(t, Receipt(shop.Attachment{Kind: shop.AttachPhoto, Ref: "r", Size: MiB}, 5*MiB))
	assert.Equal(t, CodeReceiptDocument, code(t, Receipt(shop.Attachment{Kind: shop.AttachDocument, Ref: "d"}, 5*MiB)))
	assert.Equal(t, CodeNoPhoto, code(t, Receipt(shop.Attachment{}, 5*MiB)))
	assert.Equal(t, CodeTooLarge, code(t, Receipt(shop.Attachment{Kind: shop.AttachPhoto, Ref: "r", Size: 6 * MiB}, 5*MiB)))
}

func TestMessage(t *testing.T) {
	_, err := Name("x")
	msg, ok := Message(fmt.Errorf("step: %w", err))
	assert.True(t, ok)
	assert.Contains(t, msg, "3")

	_, ok = Message(errors.New("other"))
	assert.False(t, ok)
	assert.Equal(t, "2.0MB", FormatMB(2*MiB))
}
