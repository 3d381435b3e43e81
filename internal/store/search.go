package store

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

const snippetRadius = 24

// SearchMessages finds messages whose text contains query, case-insensitively
// for ASCII. An empty peer searches every conversation. Newest first.
func (db *DB) SearchMessages(query, peer string, limit int) ([]SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}
	if limit <= 0 {
		limit = 50
	}

	q := `
		SELECT ` + messageColumns + `, peer_id
		FROM messages
		WHERE text LIKE ? ESCAPE '\'`
	args := []any{"%" + escapeLike(query) + "%"}
	if peer != "" {
		q += " AND peer_id = ?"
		args = append(args, peer)
	}
	q += " ORDER BY timestamp DESC LIMIT ?"
	args = append(args, limit)

	rows, err := db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("search messages: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		m, err := scanMessage(rows, &r.PeerID)
		if err != nil {
			return nil, err
		}
		r.Message = m
		r.Snippet = snippet(m.Text, query)
		results = append(results, r)
	}
	return results, rows.Err()
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

// snippet returns text around the first match of query, with the match
// wrapped in << >>.
func snippet(text, query string) string {
	lt, lq := strings.ToLower(text), strings.ToLower(query)
	var i int
	if len(lt) == len(text) && len(lq) == len(query) {
		i = strings.Index(lt, lq)
	} else {
		i = strings.Index(text, query)
	}
	if i < 0 {
		return text
	}
	j := i + len(query)

	start := max(0, i-snippetRadius)
	for start > 0 && !utf8.RuneStart(text[start]) {
		start--
	}
	end := min(len(text), j+snippetRadius)
	for end < len(text) && !utf8.RuneStart(text[end]) {
		end++
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString("...")
	}
	b.WriteString(text[start:i])
	b.WriteString("<<")
	b.WriteString(text[i:j])
	b.WriteString(">>")
	b.WriteString(text[j:end])
	if end < len(text) {
		b.WriteString("...")
	}
	return b.String()
}
