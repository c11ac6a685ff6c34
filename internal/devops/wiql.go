package devops

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/roksva123/go-devops-report/internal/model"
)

const wiqlDate = "2006-01-02"

var fieldNamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_.]*$`)

// FieldReference formats a field name for WIQL. System and Microsoft fields
// and already-prefixed custom fields are used as given; bare names are
// assumed to be custom fields.
func FieldReference(name string) (string, error) {
	name = strings.TrimSpace(name)
	if !fieldNamePattern.MatchString(name) {
		return "", fmt.Errorf("%w: field name %q", ErrInvalidQuery, name)
	}
	switch {
	case strings.HasPrefix(name, "System."),
		strings.HasPrefix(name, "Microsoft."),
		strings.HasPrefix(name, model.CustomNamespace):
		return "[" + name + "]", nil
	}
	return "[" + model.CustomNamespace + name + "]", nil
}

// QuoteLiteral wraps s in single quotes, doubling any embedded quote.
func QuoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// BuildQuery renders q as a WIQL statement selecting item ids.
func BuildQuery(q model.ItemQuery) (string, error) {
	var b strings.Builder
	b.WriteString("SELECT [System.Id] FROM WorkItems WHERE [System.TeamProject] = @project")

	if q.Type != "" {
		b.WriteString(" AND [System.WorkItemType] = ")
		b.WriteString(QuoteLiteral(q.Type))
	}
	if q.Created.From != nil {
		b.WriteString(" AND [System.CreatedDate] >= ")
		b.WriteString(QuoteLiteral(q.Created.From.Format(wiqlDate)))
	}
	if q.Created.To != nil {
		b.WriteString(" AND [System.CreatedDate] <= ")
		b.WriteString(QuoteLiteral(q.Created.To.Format(wiqlDate)))
	}
	if q.AssignedTo != "" {
		b.WriteString(" AND [System.AssignedTo] = ")
		b.WriteString(QuoteLiteral(q.AssignedTo))
	}
	for _, f := range q.Filters {
		ref, err := FieldReference(f.Key)
		if err != nil {
			return "", err
		}
		b.WriteString(" AND ")
		b.WriteString(ref)
		b.WriteString(" = ")
		b.WriteString(QuoteLiteral(f.Value))
	}
	b.WriteString(" ORDER BY [System.Id]")
	return b.String(), nil
}
