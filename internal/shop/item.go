package shop

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned by Catalog lookups and deletes for a missing item.
	ErrNotFound = errors.New("item not found")
	// ErrConflict is returned by Catalog.Create when the name is taken.
	ErrConflict = errors.New("item already exists")
)

// Item is a persisted catalog record. Name is unique per kind.
type Item struct {
	ID          int64     `db:"id"`
	Kind        Kind      `db:"-"`
	Name        string    `db:"name"`
	PhotoRef    string    `db:"photo_ref"`
	Description string    `db:"description"`
	FileRef     string    `db:"file_ref"`
	FileName    string    `db:"file_name"`
	PriceMinor  int       `db:"price_minor"`
	PriceStars  int       `db:"price_stars"`
	CreatedAt   time.Time `db:"created_at"`
}

// PendingItem is an item being assembled by the submission dialogue.
// Prices are pointers because zero is a valid price.
type PendingItem struct {
	Name        string `json:"name,omitempty"`
	PhotoRef    string `json:"photo_ref,omitempty"`
	Description string `json:"description,omitempty"`
	FileRef     string `json:"file_ref,omitempty"`
	FileName    string `json:"file_name,omitempty"`
	PriceMinor  *int   `json:"price_minor,omitempty"`
	PriceStars  *int   `json:"price_stars,omitempty"`
}

// Missing names the required fields that are still empty.
func (p *PendingItem) Missing() []string {
	if p == nil {
		return []string{"name", "photo", "description", "file", "price_minor", "price_stars"}
	}
	var out []string
	if p.Name == "" {
		out = append(out, "name")
	}
	if p.PhotoRef == "" {
		out = append(out, "photo")
	}
	if p.Description == "" {
		out = append(out, "description")
	}
	if p.FileRef == "" {
		out = append(out, "file")
	}
	if p.PriceMinor == nil {
		out = append(out, "price_minor")
	}
	if p.PriceStars == nil {
		out = append(out, "price_stars")
	}
	return out
}

// Item converts a complete PendingItem. Callers check Missing first.
func (p *PendingItem) Item(kind Kind) Item {
	it := Item{
		Kind:        kind,
		Name:        p.Name,
		PhotoRef:    p.PhotoRef,
		Description: p.Description,
		FileRef:     p.FileRef,
		FileName:    p.FileName,
	}
	if p.PriceMinor != nil {
		it.PriceMinor = *p.PriceMinor
	}
	if p.PriceStars != nil {
		it.PriceStars = *p.PriceStars
	}
	return it
}

// View records that a buyer opened an item card.
type View struct {
	BuyerID  int64     `db:"buyer_id"`
	Username string    `db:"username"`
	Kind     Kind      `db:"-"`
	ItemName string    `db:"item_name"`
	ViewedAt time.Time `db:"viewed_at"`
}
