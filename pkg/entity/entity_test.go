package entity

import (
	"testing"

	"github.com/rs/zerolog"

	"github.com/carmentacollective/carmenta-sub005/pkg/docstore"
)

func TestCanonicalize(t *testing.T) {
	cases := map[string]string{
		"Jane Doe":           "jane doe",
		"  What’s   up?  ":   "what's up",
		"Jean–Luc":           "jean-luc",
		"AT&T (the carrier)": "at&t the carrier",
		"":                   "",
	}
	for in, want := range cases {
		if got := Canonicalize(in); got != want {
			t.Errorf("Canonicalize(%q) = %q, want %q", in, got, want)
		}
	}
}

func testEntries() []docstore.Entry {
	return []docstore.Entry{
		{ID: "d1", UserID: "u1", Path: "work.projects.acme-rollout", Name: "Acme Rollout"},
		{ID: "d2", UserID: "u1", Path: "profile.people.jane-doe", Name: "Jane Doe"},
		{ID: "d3", UserID: "u1", Path: "notes.ada", Name: "Ada"},
	}
}

func TestDetectFindsNamesAndPathLeaves(t *testing.T) {
	dict, err := Compile(testEntries())
	if err != nil {
		t.Fatal(err)
	}

	got := dict.Detect("I talked to Jane Doe about the acme rollout yesterday.")
	want := map[string]bool{"Jane Doe": true, "Acme Rollout": true}
	if len(got) != len(want) {
		t.Fatalf("Detect = %v, want %d entities", got, len(want))
	}
	for _, e := range got {
		if !want[e] {
			t.Errorf("unexpected entity %q", e)
		}
	}
}

func TestDetectRespectsWordBoundaries(t *testing.T) {
	dict, err := Compile(testEntries())
	if err != nil {
		t.Fatal(err)
	}
	if got := dict.Detect("We vacationed in Canada."); len(got) != 0 {
		t.Errorf("Detect = %v, want none (ada inside canada)", got)
	}
	if got := dict.Detect("Ada pushed a fix."); len(got) != 1 || got[0] != "Ada" {
		t.Errorf("Detect = %v, want [Ada]", got)
	}
}

func TestDetectDeduplicates(t *testing.T) {
	dict, err := Compile(testEntries())
	if err != nil {
		t.Fatal(err)
	}
	got := dict.Detect("Ada asked Ada about Ada.")
	if len(got) != 1 {
		t.Errorf("Detect = %v, want single Ada", got)
	}
}

func TestEmptyDictionaryMatchesNothing(t *testing.T) {
	dict, err := Compile(nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := dict.Detect("anything at all"); got != nil {
		t.Errorf("Detect = %v, want nil", got)
	}
}

func TestDetectorRecompilesOnSnapshotChange(t *testing.T) {
	docs := docstore.New()
	det := NewDetector(docs, zerolog.Nop())

	if got := det.DetectEntities("u1", "ship the acme rollout"); len(got) != 0 {
		t.Fatalf("empty snapshot detected %v", got)
	}

	docs.Upsert(docstore.Entry{ID: "d1", UserID: "u1", Path: "work.projects.acme-rollout", Name: "Acme Rollout"})

	got := det.DetectEntities("u1", "ship the acme rollout")
	if len(got) != 1 || got[0] != "Acme Rollout" {
		t.Errorf("after upsert Detect = %v, want [Acme Rollout]", got)
	}

	docs.Remove("u1", "d1")
	if got := det.DetectEntities("u1", "ship the acme rollout"); len(got) != 0 {
		t.Errorf("after remove Detect = %v, want none", got)
	}
}
