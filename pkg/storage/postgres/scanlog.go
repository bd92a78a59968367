package postgres

import (
	"context"
	"fmt"

	"exposureshield/pkg/domain"
)

const (
	scanLogsTable = "scan_logs"
)

// StoreScanLog inserts log. ID and CreatedAt are generated by the database.
func (s *Store) StoreScanLog(ctx context.Context, log domain.ScanLog) error {
	var row PgScanLog
	row.FromDomain(log)

	if _, err := s.Builder.Insert(scanLogsTable).Rows(row).Executor().ExecContext(ctx); err != nil {
		return fmt.Errorf("could not store scan log into pg: %w", err)
	}

	return nil
}
