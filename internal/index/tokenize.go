package index

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/julianstephens/dayjot/internal/models"
)

const (
	wordPrefix = "w:"
	datePrefix = "d:"
	moodPrefix = "m:"
	tagPrefix  = "t:"

	minTokenRunes = 2
)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {}, "by": {},
	"for": {}, "from": {}, "had": {}, "has": {}, "have": {}, "he": {}, "her": {}, "his": {},
	"in": {}, "is": {}, "it": {}, "its": {}, "me": {}, "my": {}, "of": {}, "on": {}, "or": {},
	"she": {}, "so": {}, "that": {}, "the": {}, "their": {}, "them": {}, "then": {}, "there": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "we": {}, "were": {}, "with": {}, "you": {},
}

// Tokenize lowercases text and splits it into distinct searchable words,
// in order of first appearance.
func Tokenize(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	seen := make(map[string]struct{}, len(fields))
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if utf8.RuneCountInString(f) < minTokenRunes {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		if _, dup := seen[f]; dup {
			continue
		}
		seen[f] = struct{}{}
		out = append(out, f)
	}
	return out
}

func dateKey(e models.Entry) string {
	return datePrefix + e.CreatedAt.UTC().Format("2006-01-02")
}

// KeysFor derives every index key of an entry. An entry always has exactly
// one date key.
func KeysFor(e models.Entry) []models.IndexKey {
	mk := func(key string) models.IndexKey {
		return models.IndexKey{Key: key, EntryID: e.ID, CreatedAt: e.CreatedAt}
	}

	keys := []models.IndexKey{mk(dateKey(e))}
	for _, w := range Tokenize(e.Text) {
		keys = append(keys, mk(wordPrefix+w))
	}
	if e.Mood != "" {
		keys = append(keys, mk(moodPrefix+string(e.Mood)))
	}
	for _, t := range models.NormalizeTags(e.Tags) {
		keys = append(keys, mk(tagPrefix+t))
	}
	return keys
}

// queryKeys turns search keywords into keys. "#tag" keywords match tags;
// everything else is tokenized like entry text. ok is false when keywords
// were given but none survived tokenization.
func queryKeys(keywords []string) (keys []string, ok bool) {
	given := false
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if kw == "" {
			continue
		}
		given = true
		if strings.HasPrefix(kw, "#") {
			for _, t := range models.NormalizeTags([]string{kw}) {
				keys = append(keys, tagPrefix+t)
			}
			continue
		}
		for _, w := range Tokenize(kw) {
			keys = append(keys, wordPrefix+w)
		}
	}
	return keys, !given || len(keys) > 0
}
