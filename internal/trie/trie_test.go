package trie_test

import (
	"testing"

	"github.com/soypat/atlas/internal/trie"
)

func TestInsertSearch(t *testing.T) {
	tr := trie.New()
	tr.Insert("top", 1)
	tr.Insert("topic", 2)
	tr.Insert("toast", 3)
	tr.Insert("a.b.loop", 4)

	cases := []struct {
		key     string
		want    uint32
		wantOk  bool
		comment string
	}{
		{"top", 1, true, "exact match of split base"},
		{"topic", 2, true, "exact match of extended key"},
		{"toast", 3, true, "diverges after shared prefix 'to'"},
		{"a.b.loop", 4, true, "workspace-qualified style key"},
		{"to", 0, false, "intermediate-only node must not resolve"},
		{"toaster", 0, false, "longer than any stored key"},
		{"missing", 0, false, "absent branch"},
	}
	for _, c := range cases {
		got, ok := tr.Search(c.key)
		if ok != c.wantOk || (ok && got != c.want) {
			t.Errorf("%s: Search(%q) = (%d, %v), want (%d, %v)", c.comment, c.key, got, ok, c.want, c.wantOk)
		}
	}
}

func TestInsertOverwrite(t *testing.T) {
	tr := trie.New()
	tr.Insert("x", 1)
	tr.Insert("x", 2)
	got, ok := tr.Search("x")
	if !ok || got != 2 {
		t.Fatalf("Search(x) = (%d, %v), want (2, true)", got, ok)
	}
}

func TestEmptyTrie(t *testing.T) {
	tr := trie.New()
	if _, ok := tr.Search("anything"); ok {
		t.Fatal("empty trie should find nothing")
	}
}
