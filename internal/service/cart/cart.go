// Package cart keeps the anonymous per-browser cart and the per-account
// cloud cart, merging the first into the second on sign-in.
package cart

import (
	"math"
	"strconv"
	"strings"
)

// Item is a cart line. Entries written before quantities existed have no
// qty and count as one.
type Item struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
	Qty   int     `json:"qty,omitempty"`
}

func (it Item) quantity() int {
	if it.Qty <= 0 {
		return 1
	}
	return it.Qty
}

func (it Item) key() string {
	return it.Name + "::" + strconv.FormatFloat(it.Price, 'f', -1, 64)
}

// Normalize collapses items with the same name and price into one line,
// summing quantities in first-seen order. Unnamed or non-finite entries are
// dropped.
func Normalize(items []Item) []Item {
	index := make(map[string]int, len(items))
	out := make([]Item, 0, len(items))
	for _, it := range items {
		if strings.TrimSpace(it.Name) == "" || math.IsNaN(it.Price) || math.IsInf(it.Price, 0) {
			continue
		}
		k := it.key()
		if i, ok := index[k]; ok {
			out[i].Qty += it.quantity()
			continue
		}
		index[k] = len(out)
		out = append(out, Item{Name: it.Name, Price: it.Price, Qty: it.quantity()})
	}
	return out
}

// Merge combines a cloud cart with a local one.
func Merge(cloud, local []Item) []Item {
	all := make([]Item, 0, len(cloud)+len(local))
	all = append(all, cloud...)
	all = append(all, local...)
	return Normalize(all)
}

// Total returns the cart value.
func Total(items []Item) float64 {
	var sum float64
	for _, it := range items {
		sum += it.Price * float64(it.quantity())
	}
	return math.Round(sum*100) / 100
}
