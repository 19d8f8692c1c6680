package postgres

import (
	"fmt"
	"strings"

	"github.com/alanyoungcy/settleoracle/internal/domain"
)

// listQuery appends time filters, newest-first ordering and pagination from
// opts to base, which must already contain a WHERE clause. Placeholders
// continue after the args already in args.
func listQuery(base string, args []any, opts domain.ListOpts) (string, []any) {
	var b strings.Builder
	b.WriteString(base)

	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if opts.Since != nil {
		b.WriteString(" AND created_at >= " + next(*opts.Since))
	}
	if opts.Until != nil {
		b.WriteString(" AND created_at <= " + next(*opts.Until))
	}
	b.WriteString(" ORDER BY created_at DESC, id DESC")
	if opts.Limit > 0 {
		b.WriteString(" LIMIT " + next(opts.Limit))
	}
	if opts.Offset > 0 {
		b.WriteString(" OFFSET " + next(opts.Offset))
	}
	return b.String(), args
}
