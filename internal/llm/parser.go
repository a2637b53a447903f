package llm

import (
	"fmt"
	"strconv"
	"strings"
)

// CategoryOption is one category the model may assign, labeled for the
// prompt as "parent:name".
type CategoryOption struct {
	Label string
	ID    int64
}

// BuildPrompt renders the classification prompt: the category catalog as
// "id-label" entries, then the transactions as numbered place lines.
func BuildPrompt(categories []CategoryOption, places []string) string {
	catalog := make([]string, len(categories))
	for i, c := range categories {
		catalog[i] = fmt.Sprintf("%d-%s", c.ID, c.Label)
	}

	var b strings.Builder
	b.WriteString("Categories: ")
	b.WriteString(strings.Join(catalog, "; "))
	b.WriteString("\n\nTransactions:\n")
	for i, place := range places {
		fmt.Fprintf(&b, "%d. %s\n", i+1, place)
	}
	return b.String()
}

// ParseAssignments extracts (transaction index, category id) pairs from the
// model's response. Each line is expected as "index. id - name"; lines that
// do not fit are dropped so the caller can apply its default bucket.
func ParseAssignments(response string) map[int]int64 {
	assignments := make(map[int]int64)

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		parts := strings.SplitN(line, ".", 2)
		if len(parts) != 2 {
			continue
		}
		index, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil || index < 1 {
			continue
		}

		idPart := strings.TrimSpace(strings.SplitN(parts[1], "-", 2)[0])
		categoryID, err := strconv.ParseInt(idPart, 10, 64)
		if err != nil {
			continue
		}
		assignments[index] = categoryID
	}

	return assignments
}
