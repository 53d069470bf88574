package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"

	"github.com/dmitrijs2005/farmsync/internal/common"
	"github.com/dmitrijs2005/farmsync/internal/proto"
	"github.com/dmitrijs2005/farmsync/internal/server/models"
	"github.com/dmitrijs2005/farmsync/internal/server/repositories/repomanager"
)

const (
	DefaultPullLimit = 200
	MaxPullLimit     = 1000
)

// Reasons reported in rejected acks.
const (
	ReasonMissingID = "missing id"
	ReasonStale     = "stale"
)

var tableNameRe = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// SyncService stores pushed records per user and serves them back ordered
// by a per-user version counter.
type SyncService struct {
	repomanager repomanager.RepositoryManager
}

func NewSyncService(m repomanager.RepositoryManager) *SyncService {
	return &SyncService{repomanager: m}
}

func checkTable(table string) error {
	if !tableNameRe.MatchString(table) {
		return fmt.Errorf("%w: bad table name %q", common.ErrConstraint, table)
	}
	return nil
}

// Push stores a batch for userID in one transaction and returns one ack per
// record, in input order. A record is rejected when the stored copy carries
// a newer _last_modified; equal timestamps are accepted.
func (s *SyncService) Push(ctx context.Context, userID, table string, batch []proto.Record) ([]proto.Ack, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}

	acks := make([]proto.Ack, 0, len(batch))
	err := s.repomanager.WithTx(ctx, func(ctx context.Context, tx repomanager.RepositoryManager) error {
		acks = acks[:0]
		for _, rec := range batch {
			ack, err := s.pushOne(ctx, tx, userID, table, rec)
			if err != nil {
				return err
			}
			acks = append(acks, ack)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return acks, nil
}

func (s *SyncService) pushOne(ctx context.Context, tx repomanager.RepositoryManager, userID, table string, rec proto.Record) (proto.Ack, error) {
	if rec.ID == "" {
		return proto.Ack{Accepted: false, Reason: ReasonMissingID}, nil
	}

	stored, err := tx.Records().Get(ctx, userID, table, rec.ID)
	switch {
	case errors.Is(err, common.ErrNotFound):
	case err != nil:
		return proto.Ack{}, err
	case stored.ModifiedAt > rec.LastModified:
		return proto.Ack{
			ID:             rec.ID,
			Accepted:       false,
			RemoteModified: stored.ModifiedAt,
			Version:        stored.Version,
			Reason:         ReasonStale,
		}, nil
	}

	payload, err := json.Marshal(rec)
	if err != nil {
		return proto.Ack{}, fmt.Errorf("encode %s/%s: %w", table, rec.ID, err)
	}

	version, err := tx.Users().IncrementCurrentVersion(ctx, userID)
	if err != nil {
		return proto.Ack{}, fmt.Errorf("next version: %w", err)
	}

	err = tx.Records().Upsert(ctx, &models.Record{
		UserID:     userID,
		Table:      table,
		ID:         rec.ID,
		Payload:    payload,
		IsDeleted:  rec.IsDeleted,
		ModifiedAt: rec.LastModified,
		Version:    version,
	})
	if err != nil {
		return proto.Ack{}, err
	}

	return proto.Ack{
		ID:             rec.ID,
		Accepted:       true,
		RemoteModified: rec.LastModified,
		Version:        version,
	}, nil
}

// Pull returns the records of table changed after version since. The
// watermark of the response is the version of its last record, or since
// when nothing changed.
func (s *SyncService) Pull(ctx context.Context, userID, table string, since int64, limit int) (*proto.PullResponse, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultPullLimit
	}
	if limit > MaxPullLimit {
		limit = MaxPullLimit
	}

	rows, err := s.repomanager.Records().ListSince(ctx, userID, table, since, limit+1)
	if err != nil {
		return nil, err
	}

	resp := &proto.PullResponse{Records: []proto.RemoteRecord{}, Watermark: since}
	if len(rows) > limit {
		resp.HasMore = true
		rows = rows[:limit]
	}

	for _, row := range rows {
		var rec proto.Record
		if err := json.Unmarshal(row.Payload, &rec); err != nil {
			return nil, fmt.Errorf("decode %s/%s: %w", table, row.ID, err)
		}
		resp.Records = append(resp.Records, proto.RemoteRecord{
			Record:         rec,
			RemoteModified: row.ModifiedAt,
			Version:        row.Version,
		})
		resp.Watermark = row.Version
	}
	return resp, nil
}
