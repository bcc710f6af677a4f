package catalog

import (
	"fmt"
	"sort"
	"strings"

	"github.com/m3rciful/guideshop/internal/shop"
)

// ViewerStats lists the distinct items one buyer has opened.
type ViewerStats struct {
	BuyerID  int64    `json:"buyer_id"`
	Username string   `json:"username,omitempty"`
	Items    []string `json:"items"`
}

// Summarize groups views by buyer, keeping first-seen order of items.
func Summarize(views []shop.View) []ViewerStats {
	idx := make(map[int64]int)
	var out []ViewerStats
	seen := make(map[int64]map[string]struct{})
	for _, v := range views {
		i, ok := idx[v.BuyerID]
		if !ok {
			i = len(out)
			idx[v.BuyerID] = i
			out = append(out, ViewerStats{BuyerID: v.BuyerID})
			seen[v.BuyerID] = make(map[string]struct{})
		}
		if v.Username != "" {
			out[i].Username = v.Username
		}
		label := v.Kind.Title() + ": " + v.ItemName
		if _, dup := seen[v.BuyerID][label]; dup {
			continue
		}
		seen[v.BuyerID][label] = struct{}{}
		out[i].Items = append(out[i].Items, label)
	}
	sort.SliceStable(out, func(a, b int) bool { return len(out[a].Items) > len(out[b].Items) })
	return out
}

// Report renders stats as a plain text document.
func Report(stats []ViewerStats) string {
	if len(stats) == 0 {
		return "Пока никто ничего не смотрел.\n"
	}
	var b strings.Builder
	for _, s := range stats {
		who := fmt.Sprintf("id %d", s.BuyerID)
		if s.Username != "" {
			who = s.Username + " (" + who + ")"
		}
		fmt.Fprintf(&b, "%s:\n", who)
		for _, it := range s.Items {
			fmt.Fprintf(&b, "  - %s\n", it)
		}
	}
	return b.String()
}
