package watermark

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/ethpandaops/deltastage/pkg/catalog"
	"github.com/ethpandaops/deltastage/pkg/errkind"
	"github.com/ethpandaops/deltastage/pkg/query"
	"github.com/ethpandaops/deltastage/pkg/source"
	"github.com/sirupsen/logrus"
)

// Refresher computes a new watermark from the source's current max modification timestamps
type Refresher interface {
	Refresh(ctx context.Context, tables []catalog.Table) (Watermark, error)
}

type refresher struct {
	log      logrus.FieldLogger
	db       *sql.DB
	engine   *query.Engine
	modified string
}

// NewRefresher creates a refresher reading MAX(modified) per table
func NewRefresher(log logrus.FieldLogger, db *sql.DB, dialect source.Dialect, modified string) Refresher {
	return &refresher{
		log:      log.WithField("component", "watermark_refresher"),
		db:       db,
		engine:   query.NewEngine(dialect),
		modified: modified,
	}
}

// Refresh returns one entry per input table. Empty tables map to SentinelMin.
func (r *refresher) Refresh(ctx context.Context, tables []catalog.Table) (Watermark, error) {
	w := make(Watermark, len(tables))

	for _, table := range tables {
		stmt, err := r.engine.Max(table.Schema, table.Name, r.modified)
		if err != nil {
			return nil, fmt.Errorf("failed to render max query for %s: %w", table.Name, err)
		}

		var latest nullTimestamp
		if err := r.db.QueryRowContext(ctx, stmt).Scan(&latest); err != nil {
			return nil, errkind.Wrap(fmt.Sprintf("refresh %s", table.Name), err)
		}

		ts := SentinelMin
		if latest.Valid {
			ts = latest.Time
		}

		w[table.Name] = ts

		r.log.WithFields(logrus.Fields{
			"table":     table.Name,
			"watermark": FormatTimestamp(ts),
		}).Debug("Refreshed table watermark")
	}

	return w, nil
}

// nullTimestamp scans MAX() results, which drivers return as time.Time, text or bytes
type nullTimestamp struct {
	Time  time.Time
	Valid bool
}

func (n *nullTimestamp) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		n.Time, n.Valid = time.Time{}, false

		return nil
	case time.Time:
		n.Time, n.Valid = v.UTC(), true

		return nil
	case string:
		return n.parse(v)
	case []byte:
		return n.parse(string(v))
	default:
		return fmt.Errorf("%w: unsupported type %T", ErrInvalidTimestamp, src)
	}
}

func (n *nullTimestamp) parse(value string) error {
	ts, err := ParseTimestamp(value)
	if err != nil {
		return err
	}

	n.Time, n.Valid = ts, true

	return nil
}
