// Package taxonomy holds the fixed two-level category scheme used to
// validate and resolve receipt items. The mapping is loaded once and
// read-only afterwards; it is passed explicitly to the parser, the store
// and the aggregation layer instead of living in a shared global.
package taxonomy

import (
	"strings"

	"yeongsu/internal/core"
)

type Taxonomy struct {
	order   []string
	subs    map[string][]string
	mainIDs map[string]int64
	subIDs  map[string]map[string]int64
}

// New builds a taxonomy from an ordered category list and its
// subcategory sets. Identifiers are assigned deterministically in seed
// order: main categories 1..n, subcategories numbered globally across
// the whole map. The store seeds its reference tables with the same ids.
func New(order []string, subs map[string][]string) *Taxonomy {
	t := &Taxonomy{
		order:   order,
		subs:    make(map[string][]string, len(order)),
		mainIDs: make(map[string]int64, len(order)),
		subIDs:  make(map[string]map[string]int64, len(order)),
	}
	var nextSub int64 = 1
	for i, cat := range order {
		t.mainIDs[cat] = int64(i + 1)
		t.subs[cat] = append([]string(nil), subs[cat]...)
		ids := make(map[string]int64, len(subs[cat]))
		for _, sub := range subs[cat] {
			ids[sub] = nextSub
			nextSub++
		}
		t.subIDs[cat] = ids
	}
	return t
}

// Default returns the canonical taxonomy.
func Default() *Taxonomy {
	return New(
		[]string{"미용", "쇼핑", "교통", "의료", "여행", "음식", "취미", "투자", "공과금"},
		map[string][]string{
			"미용":  {"피부 미용", "헤어", "화장", "세정"},
			"쇼핑":  {"생필품", "의류", "가전", "가구", "식재료", "장난감", "화장품", "스마트기기"},
			"교통":  {"택시", "대중교통", "여객선", "기차", "항공기", "주유"},
			"의료":  {"약품", "진료"},
			"여행":  {"식비", "숙박비", "티켓"},
			"음식":  {"아침", "점심", "저녁", "간식", "음료", "과일", "디저트", "유제품"},
			"취미":  {"게임", "영화", "공연", "놀이공원", "운동", "도서"},
			"투자":  {"교육", "보험", "주식", "부동산", "신용카드"},
			"공과금": {"통신비", "전기세", "가스비", "구독료", "멤버십", "인터넷 요금", "휴대폰 요금", "세금"},
		},
	)
}

// Categories returns the main category names in seed order.
func (t *Taxonomy) Categories() []string {
	return append([]string(nil), t.order...)
}

// Subcategories returns the ordered subcategory names of a main
// category, or nil if the category does not exist.
func (t *Taxonomy) Subcategories(category string) []string {
	subs, ok := t.subs[strings.TrimSpace(category)]
	if !ok {
		return nil
	}
	return append([]string(nil), subs...)
}

// Validate reports whether the pair is an exact member of the taxonomy.
func (t *Taxonomy) Validate(category, subcategory string) bool {
	category = strings.TrimSpace(category)
	subcategory = strings.TrimSpace(subcategory)
	ids, ok := t.subIDs[category]
	if !ok {
		return false
	}
	_, ok = ids[subcategory]
	return ok
}

// MainID returns the identifier of a main category.
func (t *Taxonomy) MainID(category string) (int64, bool) {
	id, ok := t.mainIDs[strings.TrimSpace(category)]
	return id, ok
}

// Resolve maps a category pair to its identifiers. On an exact-match
// miss it attempts fuzzy correction of the subcategory against the
// category's own subcategory set, accepting the single closest candidate
// at or above the similarity cutoff. An unknown category always fails
// without fuzzy fallback.
func (t *Taxonomy) Resolve(category, subcategory string) (mainID, subID int64, err error) {
	category = strings.TrimSpace(category)
	subcategory = strings.TrimSpace(subcategory)

	mainID, ok := t.mainIDs[category]
	if !ok {
		return 0, 0, &core.ValidationError{Category: category, Subcategory: subcategory}
	}
	if id, ok := t.subIDs[category][subcategory]; ok {
		return mainID, id, nil
	}
	match, ok := closestMatch(subcategory, t.subs[category], fuzzyCutoff)
	if !ok {
		return 0, 0, &core.ValidationError{Category: category, Subcategory: subcategory}
	}
	return mainID, t.subIDs[category][match], nil
}
