package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zeroclaw-labs/platform/internal/apperr"
)

type InsertResourceSnapshotParams struct {
	TenantID    uuid.UUID
	CPUPercent  float64
	MemBytes    int64
	MemLimit    int64
	DiskBytes   int64
	NetInBytes  int64
	NetOutBytes int64
	PIDs        int32
}

func (q *Queries) InsertResourceSnapshot(ctx context.Context, p InsertResourceSnapshotParams) error {
	_, err := q.db.Exec(ctx, `
		INSERT INTO resource_snapshots
			(tenant_id, ts, cpu_percent, mem_bytes, mem_limit, disk_bytes, net_in_bytes, net_out_bytes, pids)
		VALUES ($1, now(), $2, $3, $4, $5, $6, $7, $8)`,
		p.TenantID, p.CPUPercent, p.MemBytes, p.MemLimit, p.DiskBytes, p.NetInBytes, p.NetOutBytes, p.PIDs)
	if err != nil {
		return fmt.Errorf("inserting resource snapshot: %w", err)
	}
	return nil
}

func (q *Queries) LatestResourceSnapshot(ctx context.Context, tenantID uuid.UUID) (ResourceSnapshot, error) {
	var s ResourceSnapshot
	s.TenantID = tenantID
	err := q.db.QueryRow(ctx, `
		SELECT id, ts, cpu_percent, mem_bytes, mem_limit, disk_bytes, net_in_bytes, net_out_bytes, pids
		FROM resource_snapshots WHERE tenant_id = $1 ORDER BY ts DESC LIMIT 1`, tenantID).
		Scan(&s.ID, &s.TS, &s.CPUPercent, &s.MemBytes, &s.MemLimit, &s.DiskBytes, &s.NetInBytes, &s.NetOutBytes, &s.PIDs)
	if err != nil {
		if isNoRows(err) {
			return ResourceSnapshot{}, apperr.NotFound("no resource snapshots for tenant")
		}
		return ResourceSnapshot{}, fmt.Errorf("querying latest snapshot: %w", err)
	}
	return s, nil
}

// ResourceSnapshotHistory returns snapshots for a tenant within [since, now),
// ordered oldest-first, for usage-over-time charts.
func (q *Queries) ResourceSnapshotHistory(ctx context.Context, tenantID uuid.UUID, since time.Time) ([]ResourceSnapshot, error) {
	rows, err := q.db.Query(ctx, `
		SELECT id, ts, cpu_percent, mem_bytes, mem_limit, disk_bytes, net_in_bytes, net_out_bytes, pids
		FROM resource_snapshots
		WHERE tenant_id = $1 AND ts >= $2
		ORDER BY ts ASC`, tenantID, since)
	if err != nil {
		return nil, fmt.Errorf("querying snapshot history: %w", err)
	}
	defer rows.Close()

	var out []ResourceSnapshot
	for rows.Next() {
		var s ResourceSnapshot
		s.TenantID = tenantID
		if err := rows.Scan(&s.ID, &s.TS, &s.CPUPercent, &s.MemBytes, &s.MemLimit, &s.DiskBytes, &s.NetInBytes, &s.NetOutBytes, &s.PIDs); err != nil {
			return nil, fmt.Errorf("scanning snapshot row: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// PruneResourceSnapshots deletes snapshots older than the retention window,
// called periodically by the resource monitor.
func (q *Queries) PruneResourceSnapshots(ctx context.Context, olderThan time.Time) (int64, error) {
	tag, err := q.db.Exec(ctx, `DELETE FROM resource_snapshots WHERE ts < $1`, olderThan)
	if err != nil {
		return 0, fmt.Errorf("pruning resource snapshots: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (q *Queries) DeleteResourceSnapshotsForTenant(ctx context.Context, tenantID uuid.UUID) error {
	_, err := q.db.Exec(ctx, `DELETE FROM resource_snapshots WHERE tenant_id = $1`, tenantID)
	if err != nil {
		return fmt.Errorf("deleting resource snapshots for tenant: %w", err)
	}
	return nil
}
