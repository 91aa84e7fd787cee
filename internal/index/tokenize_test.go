package index

import (
	"testing"
	"time"

	"github.com/julianstephens/dayjot/internal/models"
)

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{name: "stopwords and case", text: "The Cat and the DOG", want: []string{"cat", "dog"}},
		{name: "punctuation", text: "coffee, tea; coffee!", want: []string{"coffee", "tea"}},
		{name: "short tokens", text: "a b c ok", want: []string{"ok"}},
		{name: "unicode", text: "Café über naïve", want: []string{"café", "über", "naïve"}},
		{name: "hashtag", text: "#Outside run", want: []string{"outside", "run"}},
		{name: "digits", text: "ran 10k in 2024", want: []string{"ran", "10k", "2024"}},
		{name: "empty", text: "", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Tokenize(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("Tokenize(%q) = %v, want %v", tt.text, got, tt.want)
					break
				}
			}
		})
	}
}

func TestKeysFor(t *testing.T) {
	e := models.Entry{
		ID:        "e1",
		UserID:    "u1",
		CreatedAt: time.Date(2024, 3, 1, 23, 30, 0, 0, time.FixedZone("EST", -5*3600)),
		Text:      "walked the dog #outside",
		Mood:      models.MoodHappy,
		Tags:      []string{"outside"},
	}
	keys := KeysFor(e)

	got := make(map[string]bool)
	for _, k := range keys {
		if k.EntryID != "e1" {
			t.Errorf("key %s has entry id %s", k.Key, k.EntryID)
		}
		got[k.Key] = true
	}
	for _, want := range []string{"d:2024-03-02", "w:walked", "w:dog", "w:outside", "m:happy", "t:outside"} {
		if !got[want] {
			t.Errorf("missing key %s in %v", want, keys)
		}
	}
	if got["w:the"] {
		t.Error("stopword was indexed")
	}
}

func TestQueryKeys(t *testing.T) {
	keys, ok := queryKeys([]string{"Dog", "#Park"})
	if !ok || len(keys) != 2 || keys[0] != "w:dog" || keys[1] != "t:park" {
		t.Errorf("queryKeys() = %v, %v", keys, ok)
	}

	if _, ok := queryKeys([]string{"the"}); ok {
		t.Error("stopword-only query should not match")
	}
	if keys, ok := queryKeys([]string{" "}); !ok || len(keys) != 0 {
		t.Errorf("blank keywords = %v, %v, want no filter", keys, ok)
	}
}
