package capsule

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStatsStore(t *testing.T) *Store {
	t.Helper()
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	seed := []struct {
		ns    string
		title string
		typ   RecordType
		tags  []string
	}{
		{"proj/abc/session/s1/files", "main.go", TypeSummary, []string{"branch:main"}},
		{"proj/abc/session/s1/files", "util.go", TypeSummary, []string{"branch:main"}},
		{"proj/abc/session/s2/files", "main.go", TypeSummary, []string{"branch:feature"}},
		{"proj/abc/session/s2/subagents", "explorer", TypeMeta, nil},
		{"proj/abc/discoveries", "cache invalidation", TypeSummary, []string{"branch:main"}},
		{"proj/other/session/s9/files", "other.go", TypeSummary, nil},
	}
	for i, sd := range seed {
		ts := base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, s.Save(ctx, &Record{
			Namespace: sd.ns, Title: sd.title, Type: sd.typ, Tags: sd.tags,
			CreatedAt: ts, UpdatedAt: ts,
		}))
	}
	return s
}

func TestCollectStats(t *testing.T) {
	s := seedStatsStore(t)
	ctx := context.Background()

	t.Run("Should count whole store with empty prefix", func(t *testing.T) {
		st, err := s.CollectStats(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 6, st.Total)
		assert.Equal(t, 5, st.ByType["SUMMARY"])
		assert.Equal(t, 1, st.ByType["META"])
		assert.False(t, st.Newest.IsZero())
	})

	t.Run("Should scope to a prefix", func(t *testing.T) {
		st, err := s.CollectStats(ctx, "proj/abc")
		require.NoError(t, err)
		assert.Equal(t, 5, st.Total)
	})
}

func TestPrefixCounts(t *testing.T) {
	s := seedStatsStore(t)

	counts, err := s.PrefixCounts(context.Background(), "proj/abc/session")
	require.NoError(t, err)
	require.Len(t, counts, 2)

	byNS := map[string]int{}
	for _, c := range counts {
		byNS[c.Namespace] = c.Count
	}
	assert.Equal(t, 2, byNS["s1"])
	assert.Equal(t, 2, byNS["s2"])
}

func TestTopTitles(t *testing.T) {
	s := seedStatsStore(t)

	top, err := s.TopTitles(context.Background(), "proj/abc", 5)
	require.NoError(t, err)
	require.NotEmpty(t, top)
	// main.go appears in two sessions, everything else once.
	assert.Equal(t, "main.go", top[0].Title)
	assert.Equal(t, 2, top[0].Count)
}

func TestTagCounts(t *testing.T) {
	s := seedStatsStore(t)

	tags, err := s.TagCounts(context.Background(), "proj/abc", "branch:")
	require.NoError(t, err)
	assert.Equal(t, 3, tags["branch:main"])
	assert.Equal(t, 1, tags["branch:feature"])
}
