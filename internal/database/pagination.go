package database

import (
	"fmt"
	"strings"

	"github.com/smarttransit/bus-reservation-backend/internal/models"
)

// limitClause appends LIMIT/OFFSET placeholders unless every row was requested
func limitClause(req models.PageRequest, args []interface{}) (string, []interface{}) {
	if req.All() {
		return "", args
	}
	n := len(args)
	clause := fmt.Sprintf(" LIMIT $%d OFFSET $%d", n+1, n+2)
	return clause, append(args, req.PageSize, req.Offset())
}

// likePattern escapes LIKE wildcards and wraps the term for a substring match
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.TrimSpace(term)) + "%"
}
