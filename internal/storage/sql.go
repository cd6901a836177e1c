package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// transactionColumns is the column order used by every SQL engine.
var transactionColumns = []string{
	"transaction_id",
	"user_id",
	"product_id",
	"timestamp",
	"transaction_amount",
}

// aggregateQuery builds the per-user aggregate statement.
//
// placeholder renders the n-th (1-based) bind parameter for the dialect,
// tsColumn is the quoted timestamp column and tsArg converts window bounds
// into the engine's stored representation.
func aggregateQuery(placeholder func(n int) string, tsColumn string, tsArg func(time.Time) any, userID int64, w Window) (string, []any) {
	args := []any{userID}
	conds := []string{"user_id = " + placeholder(1)}
	if w.From != nil {
		args = append(args, tsArg(*w.From))
		conds = append(conds, fmt.Sprintf("%s >= %s", tsColumn, placeholder(len(args))))
	}
	if w.To != nil {
		args = append(args, tsArg(*w.To))
		conds = append(conds, fmt.Sprintf("%s < %s", tsColumn, placeholder(len(args))))
	}

	query := fmt.Sprintf(`
		SELECT COUNT(*) AS count,
			MIN(transaction_amount) AS min,
			MAX(transaction_amount) AS max,
			SUM(transaction_amount) AS sum
		FROM transactions
		WHERE %s`, strings.Join(conds, " AND "))
	return query, args
}

// scanAggregate reads the row produced by aggregateQuery.
// A zero count yields (nil, nil).
func scanAggregate(row *sql.Row) (*Aggregate, error) {
	var (
		count            int64
		minV, maxV, sumV sql.NullFloat64
	)
	if err := row.Scan(&count, &minV, &maxV, &sumV); err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, nil
	}
	if !minV.Valid || !maxV.Valid || !sumV.Valid {
		return nil, fmt.Errorf("aggregate returned NULL amounts for %d rows", count)
	}
	return &Aggregate{Count: count, Min: minV.Float64, Max: maxV.Float64, Sum: sumV.Float64}, nil
}
