package submission

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m3rciful/guideshop/core/telegram/state"
	"github.com/m3rciful/guideshop/internal/catalog"
	"github.com/m3rciful/guideshop/internal/session"
	"github.com/m3rciful/guideshop/internal/shop"
	"github.com/m3rciful/guideshop/internal/shop/shoptest"
	"github.com/m3rciful/guideshop/internal/validate"
)

const admin int64 = 100

type fixture struct {
	wf    *Workflow
	store *state.MemoryStore[session.Session]
	cat   *shoptest.Catalog
	msg   *shoptest.Messenger
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		store: state.NewMemoryStore[session.Session](0),
		cat:   &shoptest.Catalog{Catalog: catalog.NewMemory()},
		msg:   &shoptest.Messenger{},
	}
	f.wf = New(f.store, f.cat, f.msg, DefaultConfig())
	return f
}

func (f *fixture) send(t *testing.T, in shop.Input) {
	t.Helper()
	handled, err := f.wf.Handle(context.Background(), admin, in)
	require.NoError(t, err)
	require.True(t, handled)
}

func (f *fixture) step(t *testing.T) session.Step {
	t.Helper()
	s, ok, err := f.store.Get(context.Background(), admin)
	require.NoError(t, err)
	if !ok {
		return ""
	}
	return s.Step
}

func (f *fixture) lastText(t *testing.T) string {
	t.Helper()
	s, ok := f.msg.Last(admin)
	require.True(t, ok)
	return s.Text
}

func text(s string) shop.Input { return shop.Input{Text: s} }

func photo(size int64) shop.Input {
	return shop.Input{Attachment: shop.Attachment{Kind: shop.AttachPhoto, Ref: "photo-1", Size: size}}
}

func doc(mime string, size int64) shop.Input {
	return shop.Input{Attachment: shop.Attachment{Kind: shop.AttachDocument, Ref: "file-1", Size: size, MIME: mime, FileName: "alpha.pdf"}}
}

func (f *fixture) toFile(t *testing.T) {
	t.Helper()
	require.NoError(t, f.wf.Start(context.Background(), admin, shop.Guide))
	f.send(t, text("Guide Alpha"))
	f.send(t, photo(2*validate.MiB))
	f.send(t, text(strings.Repeat("d", 40)))
	require.Equal(t, session.StepFile, f.step(t))
}

func TestScenarioAFullSubmission(t *testing.T) {
	f := newFixture(t)
	f.toFile(t)
	f.send(t, doc("application/pdf", 3*validate.MiB))
	f.send(t, text("500"))
	f.send(t, text("100"))

	creates := f.cat.Creates()
	require.Len(t, creates, 1)
	got := creates[0]
	assert.Equal(t, shop.Guide, got.Kind)
	assert.Equal(t, "Guide Alpha", got.Name)
	assert.Equal(t, "photo-1", got.PhotoRef)
	assert.Equal(t, strings.Repeat("d", 40), got.Description)
	assert.Equal(t, "file-1", got.FileRef)
	assert.Equal(t, "alpha.pdf", got.FileName)
	assert.Equal(t, 500, got.PriceMinor)
	assert.Equal(t, 100, got.PriceStars)

	assert.Equal(t, session.Step(""), f.step(t), "session cleared")
	assert.Contains(t, f.lastText(t), "успешно добавлен")
	assert.Contains(t, f.lastText(t), "Guide Alpha")
}

func TestSummaryTruncatesDescription(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.wf.Start(context.Background(), admin, shop.Course))
	f.send(t, text("  Go Course  "))
	f.send(t, photo(validate.MiB))
	f.send(t, text(strings.Repeat("я", 60)))
	f.send(t, doc("text/plain", 100))
	f.send(t, text("0"))
	f.send(t, text("0"))

	require.Len(t, f.cat.Creates(), 1)
	assert.Equal(t, "Go Course", f.cat.Creates()[0].Name)
	assert.Contains(t, f.lastText(t), strings.Repeat("я", 50)+"...")
	assert.NotContains(t, f.lastText(t), strings.Repeat("я", 51))
}

func TestShortNameMakesNoCatalogCall(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.wf.Start(context.Background(), admin, shop.Guide))
	for _, in := range []string{"", "ab", "  ab  ", " \n"} {
		f.send(t, text(in))
		assert.Equal(t, session.StepName, f.step(t), "input %q", in)
	}
	assert.Zero(t, f.cat.Finds())
}

func TestDuplicateNameStaysAtName(t *testing.T) {
	f := newFixture(t)
	_, err := f.cat.Catalog.Create(context.Background(), shop.Item{Kind: shop.Guide, Name: "Guide Alpha"})
	require.NoError(t, err)

	require.NoError(t, f.wf.Start(context.Background(), admin, shop.Guide))
	f.send(t, text("Guide Alpha"))
	assert.Equal(t, session.StepName, f.step(t))
	assert.Contains(t, f.lastText(t), "уже существуют")

	// other kind with the same name is fine
	require.NoError(t, f.wf.Start(context.Background(), admin, shop.Course))
	f.send(t, text("Guide Alpha"))
	assert.Equal(t, session.StepPhoto, f.step(t))
}

func TestLookupFailureKeepsSession(t *testing.T) {
	f := newFixture(t)
	f.cat.FindErr = errors.New("db down")
	require.NoError(t, f.wf.Start(context.Background(), admin, shop.Guide))
	f.send(t, text("Guide Alpha"))
	assert.Equal(t, session.StepName, f.step(t))
	assert.Equal(t, textLookupFailed, f.lastText(t))
}

func TestScenarioDOversizedFile(t *testing.T) {
	f := newFixture(t)
	f.toFile(t)
	f.send(t, doc("application/pdf", 25*validate.MiB))
	assert.Equal(t, session.StepFile, f.step(t))
	assert.Contains(t, f.lastText(t), "слишком большой")
}

func TestFileStepRejectsWrongTypes(t *testing.T) {
	f := newFixture(t)
	f.toFile(t)

	f.send(t, photo(validate.MiB))
	assert.Contains(t, f.lastText(t), "как документ")
	for _, size := range []int64{1, 3 * validate.MiB, 30 * validate.MiB} {
		f.send(t, doc("image/png", size))
		assert.Equal(t, session.StepFile, f.step(t))
		assert.Contains(t, f.lastText(t), "Неподдерживаемый формат")
	}
	f.send(t, shop.Input{Attachment: shop.Attachment{Kind: shop.AttachVoice, Ref: "v"}})
	assert.Equal(t, session.StepFile, f.step(t))
}

func TestPriceOutOfRangeStays(t *testing.T) {
	f := newFixture(t)
	f.toFile(t)
	f.send(t, doc("application/msword", validate.MiB))

	for _, in := range []string{"-5", "100001", "12a", "1 000"} {
		f.send(t, text(in))
		assert.Equal(t, session.StepPriceMinor, f.step(t), in)
	}
	f.send(t, text("100000"))
	for _, in := range []string{"100001", "abc"} {
		f.send(t, text(in))
		assert.Equal(t, session.StepPriceStars, f.step(t), in)
	}
	assert.Empty(t, f.cat.Creates())
}

func TestRejectedStepLeavesFieldsUntouched(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.wf.Start(context.Background(), admin, shop.Guide))
	f.send(t, text("Guide Alpha"))
	f.send(t, photo(6*validate.MiB))

	s, ok, err := f.store.Get(context.Background(), admin)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, session.StepPhoto, s.Step)
	assert.Equal(t, "Guide Alpha", s.Pending.Name)
	assert.Empty(t, s.Pending.PhotoRef)
}

func TestConflictAtCreateClearsSession(t *testing.T) {
	f := newFixture(t)
	f.toFile(t)
	f.send(t, doc("application/pdf", validate.MiB))
	f.send(t, text("1"))

	// a concurrent submission took the name after the name step
	_, err := f.cat.Catalog.Create(context.Background(), shop.Item{Kind: shop.Guide, Name: "Guide Alpha"})
	require.NoError(t, err)

	f.send(t, text("2"))
	assert.Equal(t, session.Step(""), f.step(t))
	assert.Equal(t, textConflict, f.lastText(t))
}

func TestCreateFailureClearsSession(t *testing.T) {
	f := newFixture(t)
	f.toFile(t)
	f.send(t, doc("application/pdf", validate.MiB))
	f.send(t, text("1"))
	f.cat.CreateErr = errors.New("disk full")

	f.send(t, text("2"))
	assert.Equal(t, session.Step(""), f.step(t))
	assert.Equal(t, textCreateFailed, f.lastText(t))
}

func TestMissingFieldsAbort(t *testing.T) {
	f := newFixture(t)
	one := 1
	broken := session.NewSubmission(admin, shop.Guide, f.wf.now())
	broken.Step = session.StepPriceStars
	broken.Pending = &shop.PendingItem{Name: "Guide Alpha", PriceMinor: &one}
	require.NoError(t, f.store.Update(context.Background(), admin, func(session.Session, bool) (session.Session, state.Action, error) {
		return broken, state.Save, nil
	}))

	f.send(t, text("5"))
	assert.Empty(t, f.cat.Creates())
	assert.Equal(t, session.Step(""), f.step(t))
	assert.Contains(t, f.lastText(t), "photo")
}

func TestStartReplacesSession(t *testing.T) {
	f := newFixture(t)
	f.toFile(t)
	require.NoError(t, f.wf.Start(context.Background(), admin, shop.Course))

	s, ok, err := f.store.Get(context.Background(), admin)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, session.StepName, s.Step)
	assert.Equal(t, shop.Course, s.Kind)
	assert.Empty(t, s.Pending.Name)
}

func TestHandleIgnoresOtherFlows(t *testing.T) {
	f := newFixture(t)
	handled, err := f.wf.Handle(context.Background(), admin, text("hello"))
	require.NoError(t, err)
	assert.False(t, handled)

	require.NoError(t, f.store.Update(context.Background(), admin, func(session.Session, bool) (session.Session, state.Action, error) {
		return session.NewPurchase(admin, shop.Guide, "x", f.wf.now()), state.Save, nil
	}))
	handled, err = f.wf.Handle(context.Background(), admin, text("hello"))
	require.NoError(t, err)
	assert.False(t, handled)
	assert.Empty(t, f.msg.Sent())
}

func TestRemove(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.wf.RemoveMenu(ctx, admin, shop.Guide))
	assert.Equal(t, textNothing, f.lastText(t))

	_, err := f.cat.Catalog.Create(ctx, shop.Item{Kind: shop.Guide, Name: "Alpha"})
	require.NoError(t, err)
	require.NoError(t, f.wf.RemoveMenu(ctx, admin, shop.Guide))
	last, _ := f.msg.Last(admin)
	require.NotNil(t, last.Keyboard)
	require.Len(t, last.Keyboard.Inline, 1)
	assert.Equal(t, shop.Button{Text: "❌ Alpha", Unique: "rm_guide", Data: "Alpha"}, last.Keyboard.Inline[0][0])

	require.NoError(t, f.wf.Remove(ctx, admin, shop.Guide, "Alpha"))
	assert.Contains(t, f.lastText(t), "Удалено")
	require.NoError(t, f.wf.Remove(ctx, admin, shop.Guide, "Alpha"))
	assert.Equal(t, textRemoveGone, f.lastText(t))
}
