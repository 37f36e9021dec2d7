package profile

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/carmentacollective/carmenta-sub005/internal/store"
)

func newService(t *testing.T) (*Service, *store.SQLiteStore) {
	t.Helper()
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return NewService(st, zerolog.Nop()), st
}

func TestInitializeIsIdempotent(t *testing.T) {
	svc, st := newService(t)

	created, err := svc.Initialize("u1")
	require.NoError(t, err)
	require.True(t, created, "first init must create sections")

	require.NoError(t, svc.UpdateSection("u1", PathGoals, "Ship the thing"))

	created, err = svc.Initialize("u1")
	require.NoError(t, err)
	require.False(t, created, "second init must create nothing")

	doc, err := st.GetDocumentByPath("u1", PathGoals)
	require.NoError(t, err)
	require.Equal(t, "Ship the thing", doc.Content, "re-init must not clobber edits")
}

func TestUpdateSectionFlipsSeedToManual(t *testing.T) {
	svc, st := newService(t)
	_, err := svc.Initialize("u1")
	require.NoError(t, err)

	doc, err := st.GetDocumentByPath("u1", PathIdentity)
	require.NoError(t, err)
	require.Equal(t, store.SourceSeed, doc.SourceType)

	require.NoError(t, svc.UpdateSection("u1", PathIdentity, "Ada. Lives in Lisbon, builds compilers."))

	doc, err = st.GetDocumentByPath("u1", PathIdentity)
	require.NoError(t, err)
	require.Equal(t, store.SourceManual, doc.SourceType)
	require.Equal(t, "Ada. Lives in Lisbon, builds compilers.", doc.Content)
}

func TestUpdateSectionRejectsUnknownPath(t *testing.T) {
	svc, _ := newService(t)
	require.Error(t, svc.UpdateSection("u1", "profile.astrology", "..."))
}

func TestIsPopulated(t *testing.T) {
	svc, _ := newService(t)

	// no profile at all
	ok, err := svc.IsPopulated("u1")
	require.NoError(t, err)
	require.False(t, ok)

	// seeded: bracketed placeholders still present
	_, err = svc.Initialize("u1")
	require.NoError(t, err)
	ok, err = svc.IsPopulated("u1")
	require.NoError(t, err)
	require.False(t, ok, "seed template must not count as populated")

	// partially filled but a placeholder remains
	require.NoError(t, svc.UpdateSection("u1", PathIdentity, "Ada\n[Where you live, what you do]"))
	ok, err = svc.IsPopulated("u1")
	require.NoError(t, err)
	require.False(t, ok, "remaining placeholder must not count as populated")

	// real data
	require.NoError(t, svc.UpdateSection("u1", PathIdentity, "Ada. Lisbon. Compilers."))
	ok, err = svc.IsPopulated("u1")
	require.NoError(t, err)
	require.True(t, ok)
}

func TestAddPersonUpserts(t *testing.T) {
	svc, st := newService(t)

	slug, err := svc.AddPerson("u1", "Jane Doe", "Sister. Lives in Berlin.")
	require.NoError(t, err)
	require.Equal(t, "jane-doe", slug)

	// same slug overwrites rather than appending
	_, err = svc.AddPerson("u1", "Jane Doe", "Sister. Moved to Porto.")
	require.NoError(t, err)

	people, err := st.ListDocumentsByPrefix("u1", PathPeople)
	require.NoError(t, err)
	require.Len(t, people, 1)
	require.Equal(t, "Sister. Moved to Porto.", people[0].Content)
}

func TestSlugify(t *testing.T) {
	cases := map[string]string{
		"Jane Doe":       "jane-doe",
		"  Mr. O'Brien ": "mr-o-brien",
		"Zoë":            "zo",
		"---":            "",
	}
	for in, want := range cases {
		if got := Slugify(in); got != want {
			t.Errorf("Slugify(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestCompileOmitsEmptyAndOrders(t *testing.T) {
	svc, _ := newService(t)

	require.NoError(t, svc.UpdateSection("u1", PathGoals, "Ship the thing\n"))
	require.NoError(t, svc.UpdateSection("u1", PathIdentity, "Ada. Lisbon."))
	require.NoError(t, svc.UpdateSection("u1", PathPreferences, "   "))
	_, err := svc.AddPerson("u1", "Jane Doe", "Sister.")
	require.NoError(t, err)

	out := svc.Compile("u1")

	require.Equal(t, "## Identity\n\nAda. Lisbon.\n\n## Goals\n\nShip the thing\n\n### Jane Doe\n\nSister.", out)
	require.NotContains(t, out, "## Interaction Preferences", "blank section must be omitted")
	require.NotContains(t, out, "\n\n\n", "no run of more than one blank line")
}

func TestCompileDegradesToEmptyOnStorageFailure(t *testing.T) {
	st, err := store.NewSQLiteStore()
	require.NoError(t, err)
	svc := NewService(st, zerolog.Nop())
	require.NoError(t, st.Close())

	require.Equal(t, "", svc.Compile("u1"))
}
