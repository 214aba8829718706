package capsule

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Stats summarizes a store for the overview view.
type Stats struct {
	Total      int            `json:"total"`
	ByType     map[string]int `json:"by_type"`
	Namespaces int            `json:"namespaces"`
	Oldest     time.Time      `json:"oldest,omitempty"`
	Newest     time.Time      `json:"newest,omitempty"`
}

// CollectStats gathers store-wide counts, optionally restricted to a
// namespace prefix. An empty prefix covers the whole store.
func (s *Store) CollectStats(ctx context.Context, prefix string) (*Stats, error) {
	where, args, err := prefixClause(prefix)
	if err != nil {
		return nil, err
	}

	st := &Stats{ByType: map[string]int{}}

	row := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COUNT(DISTINCT namespace), COALESCE(MIN(created_at), ''), COALESCE(MAX(updated_at), '') FROM records`+where, args...)
	var oldest, newest string
	if err := row.Scan(&st.Total, &st.Namespaces, &oldest, &newest); err != nil {
		return nil, fmt.Errorf("capsule: collect stats: %w", err)
	}
	if oldest != "" {
		st.Oldest = parseTime(oldest)
	}
	if newest != "" {
		st.Newest = parseTime(newest)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT type, COUNT(*) FROM records`+where+` GROUP BY type`, args...)
	if err != nil {
		return nil, fmt.Errorf("capsule: count types: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, fmt.Errorf("capsule: scan type count: %w", err)
		}
		st.ByType[typ] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("capsule: iterate type counts: %w", err)
	}
	return st, nil
}

// NamespaceCount pairs a namespace (or namespace group) with how many
// records it holds.
type NamespaceCount struct {
	Namespace string    `json:"namespace"`
	Count     int       `json:"count"`
	Newest    time.Time `json:"newest"`
}

// PrefixCounts groups records under prefix by their next path segment.
// With prefix "proj/abc/session" the groups are individual session ids.
func (s *Store) PrefixCounts(ctx context.Context, prefix string) ([]NamespaceCount, error) {
	ns, err := NormalizeNamespace(prefix)
	if err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT namespace, COUNT(*), MAX(updated_at) FROM records
WHERE namespace = ? OR namespace LIKE ? ESCAPE '\'
GROUP BY namespace`, ns, escapeLike(ns)+"/%")
	if err != nil {
		return nil, fmt.Errorf("capsule: prefix counts: %w", err)
	}
	defer rows.Close()

	grouped := map[string]*NamespaceCount{}
	var order []string
	for rows.Next() {
		var full, newest string
		var n int
		if err := rows.Scan(&full, &n, &newest); err != nil {
			return nil, fmt.Errorf("capsule: scan prefix count: %w", err)
		}
		seg := nextSegment(full, ns)
		nc, ok := grouped[seg]
		if !ok {
			nc = &NamespaceCount{Namespace: seg}
			grouped[seg] = nc
			order = append(order, seg)
		}
		nc.Count += n
		if t := parseTime(newest); t.After(nc.Newest) {
			nc.Newest = t
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("capsule: iterate prefix counts: %w", err)
	}

	out := make([]NamespaceCount, 0, len(order))
	for _, seg := range order {
		out = append(out, *grouped[seg])
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Newest.After(out[j].Newest)
	})
	return out, nil
}

// TitleCount pairs a record title with an aggregate count across
// namespaces. Used for the hot-files view where the title is a file path.
type TitleCount struct {
	Title    string    `json:"title"`
	Count    int       `json:"count"`
	Hits     int       `json:"hits"`
	LastSeen time.Time `json:"last_seen"`
}

// TopTitles aggregates records under prefix by title and returns the
// most frequently saved ones. limit <= 0 defaults to 10.
func (s *Store) TopTitles(ctx context.Context, prefix string, limit int) ([]TitleCount, error) {
	ns, err := NormalizeNamespace(prefix)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 10
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT title, COUNT(*), SUM(hit_count), MAX(updated_at) FROM records
WHERE namespace = ? OR namespace LIKE ? ESCAPE '\'
GROUP BY title
ORDER BY COUNT(*) DESC, MAX(updated_at) DESC
LIMIT ?`, ns, escapeLike(ns)+"/%", limit)
	if err != nil {
		return nil, fmt.Errorf("capsule: top titles: %w", err)
	}
	defer rows.Close()

	var out []TitleCount
	for rows.Next() {
		var tc TitleCount
		var last string
		if err := rows.Scan(&tc.Title, &tc.Count, &tc.Hits, &last); err != nil {
			return nil, fmt.Errorf("capsule: scan title count: %w", err)
		}
		tc.LastSeen = parseTime(last)
		out = append(out, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("capsule: iterate title counts: %w", err)
	}
	return out, nil
}

// TagCounts aggregates records under prefix by tag. Tags are stored as a
// JSON array, so the store fetches and unpacks rather than asking SQLite
// to parse JSON.
func (s *Store) TagCounts(ctx context.Context, prefix, tagPrefix string) (map[string]int, error) {
	recs, err := s.ListPrefix(ctx, prefix, 0)
	if err != nil {
		return nil, err
	}
	out := map[string]int{}
	for _, rec := range recs {
		for _, tag := range rec.Tags {
			if tagPrefix != "" && !strings.HasPrefix(tag, tagPrefix) {
				continue
			}
			out[tag]++
		}
	}
	return out, nil
}

// prefixClause renders an optional WHERE clause for a namespace prefix.
func prefixClause(prefix string) (string, []interface{}, error) {
	if prefix == "" {
		return "", nil, nil
	}
	ns, err := NormalizeNamespace(prefix)
	if err != nil {
		return "", nil, err
	}
	return ` WHERE (namespace = ? OR namespace LIKE ? ESCAPE '\')`,
		[]interface{}{ns, escapeLike(ns) + "/%"}, nil
}

// nextSegment returns the first path segment of full below base, or the
// last segment of base when full equals base.
func nextSegment(full, base string) string {
	if full == base {
		if i := strings.LastIndex(base, "/"); i >= 0 {
			return base[i+1:]
		}
		return base
	}
	rest := strings.TrimPrefix(full, base+"/")
	if i := strings.Index(rest, "/"); i >= 0 {
		return rest[:i]
	}
	return rest
}

