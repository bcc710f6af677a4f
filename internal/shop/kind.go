package shop

import (
	"fmt"
	"strings"
)

// Kind is the sort of item the shop sells.
type Kind uint8

const (
	// KindUnknown is the zero Kind.
	KindUnknown Kind = iota
	// Guide is a single downloadable guide.
	Guide
	// Course is a course delivered as one file.
	Course
)

// kindInfo holds everything that differs between guides and courses.
type kindInfo struct {
	key      string
	title    string // "Гайд"
	genitive string // "гайда"
	plural   string // "Гайды"
	none     string // "гайдов"
	emoji    string

	addUnique    string
	deleteUnique string
	removeUnique string
	selectUnique string
}

var kinds = map[Kind]kindInfo{
	Guide: {
		key:          "guide",
		title:        "Гайд",
		genitive:     "гайда",
		plural:       "Гайды",
		none:         "гайдов",
		emoji:        "📖",
		addUnique:    "add_guide",
		deleteUnique: "del_guide",
		removeUnique: "rm_guide",
		selectUnique: "sel_guide",
	},
	Course: {
		key:          "course",
		title:        "Курс",
		genitive:     "курса",
		plural:       "Курсы",
		none:         "курсов",
		emoji:        "🤓",
		addUnique:    "add_course",
		deleteUnique: "del_course",
		removeUnique: "rm_course",
		selectUnique: "sel_course",
	},
}

// Kinds lists the known kinds in display order.
func Kinds() []Kind { return []Kind{Guide, Course} }

// ParseKind maps a stored key back to a Kind.
func ParseKind(s string) (Kind, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for k, info := range kinds {
		if info.key == s {
			return k, nil
		}
	}
	return KindUnknown, fmt.Errorf("shop: unknown kind %q", s)
}

func (k Kind) info() kindInfo { return kinds[k] }

// Valid reports whether k is Guide or Course.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// String returns the storage key ("guide", "course").
func (k Kind) String() string {
	if !k.Valid() {
		return "unknown"
	}
	return k.info().key
}

// Title is the capitalized singular name ("Гайд").
func (k Kind) Title() string { return k.info().title }

// Genitive is the singular genitive form ("гайда").
func (k Kind) Genitive() string { return k.info().genitive }

// Plural is the capitalized plural used on menu buttons ("Гайды").
func (k Kind) Plural() string { return k.info().plural }

// Emoji decorates menu buttons and captions.
func (k Kind) Emoji() string { return k.info().emoji }

// GenitivePlural is used in "there are no ..." phrases.
func (k Kind) GenitivePlural() string { return k.info().none }

// AddUnique is the callback unique of the admin "add" button.
func (k Kind) AddUnique() string { return k.info().addUnique }

// DeleteUnique is the callback unique of the admin "delete" menu button.
func (k Kind) DeleteUnique() string { return k.info().deleteUnique }

// RemoveUnique is the callback unique of a per-item removal button.
func (k Kind) RemoveUnique() string { return k.info().removeUnique }

// SelectUnique is the callback unique of a buyer's item button.
func (k Kind) SelectUnique() string { return k.info().selectUnique }

// MarshalText stores the kind by key so persisted sessions survive reordering.
func (k Kind) MarshalText() ([]byte, error) {
	if k == KindUnknown {
		return []byte(""), nil
	}
	if !k.Valid() {
		return nil, fmt.Errorf("shop: invalid kind %d", k)
	}
	return []byte(k.String()), nil
}

// UnmarshalText parses a storage key. An empty key yields KindUnknown.
func (k *Kind) UnmarshalText(b []byte) error {
	if len(b) == 0 {
		*k = KindUnknown
		return nil
	}
	parsed, err := ParseKind(string(b))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}
