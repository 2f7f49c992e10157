package statement

import (
	"github.com/ONSBigData/parsing-company-accounts/internal/layout"
)

// DetectColumnOrder reads the column order from year header rows: a band
// carrying both reporting years votes for whichever sits on the left. With
// no header, or a tied vote, fallback is returned.
func DetectColumnOrder(bands []layout.Band, current, prior int, fallback ColumnOrder) ColumnOrder {
	if current == 0 || prior == 0 || current == prior {
		return fallback
	}

	var currentFirst, priorFirst int
	for _, b := range bands {
		cl, pl := -1, -1
		for _, w := range b.Words {
			if !w.HasValue || w.Value != float64(int(w.Value)) {
				continue
			}
			switch int(w.Value) {
			case current:
				if cl < 0 {
					cl = w.Left
				}
			case prior:
				if pl < 0 {
					pl = w.Left
				}
			}
		}
		if cl < 0 || pl < 0 {
			continue
		}
		if cl < pl {
			currentFirst++
		} else {
			priorFirst++
		}
	}

	switch {
	case currentFirst > priorFirst:
		return CurrentFirst
	case priorFirst > currentFirst:
		return PriorFirst
	default:
		return fallback
	}
}
