package outcome

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/desiyatra/bargainer/pkg/errorsx"
	"github.com/desiyatra/bargainer/pkg/offer"
)

// Row is the archived form of an Outcome.
type Row struct {
	bun.BaseModel `bun:"table:negotiation_outcomes,alias:o"`

	ID            int64          `bun:"id,pk,autoincrement"`
	SessionID     string         `bun:"session_id,notnull,unique"`
	CallSID       string         `bun:"call_sid"`
	VendorName    string         `bun:"vendor_name"`
	VendorType    string         `bun:"vendor_type"`
	Kind          string         `bun:"kind,notnull"`
	Reason        string         `bun:"reason"`
	AcceptedPrice *int64         `bun:"accepted_price"`
	Currency      string         `bun:"currency"`
	Unit          string         `bun:"unit"`
	RoundCount    int            `bun:"round_count"`
	TranscriptRef string         `bun:"transcript_ref"`
	History       []HistoryEntry `bun:"history,type:jsonb"`
	StartedAt     time.Time      `bun:"started_at,notnull"`
	EndedAt       time.Time      `bun:"ended_at,notnull"`
}

type HistoryEntry struct {
	Amount     int64   `json:"amount"`
	Source     string  `json:"source"`
	Unit       string  `json:"unit,omitempty"`
	Confidence float64 `json:"confidence"`
}

func rowFromOutcome(o Outcome) Row {
	row := Row{
		SessionID:     o.SessionID,
		CallSID:       o.CallSID,
		VendorName:    o.VendorName,
		VendorType:    o.VendorType,
		Kind:          string(o.Kind),
		Reason:        o.Reason,
		Currency:      o.Currency,
		Unit:          string(o.Unit),
		RoundCount:    o.RoundCount,
		TranscriptRef: o.TranscriptReference,
		StartedAt:     o.StartedAt.UTC(),
		EndedAt:       o.EndedAt.UTC(),
	}
	if o.AcceptedPrice != nil {
		price := int64(*o.AcceptedPrice)
		row.AcceptedPrice = &price
	}
	row.History = make([]HistoryEntry, 0, len(o.History))
	for _, h := range o.History {
		row.History = append(row.History, HistoryEntry{
			Amount:     int64(h.Amount),
			Source:     h.Source.String(),
			Unit:       string(h.Unit),
			Confidence: h.Confidence,
		})
	}
	return row
}

// AcceptedAmount returns the accepted price of an archived row, if any.
func (r Row) AcceptedAmount() (offer.Amount, bool) {
	if r.AcceptedPrice == nil {
		return 0, false
	}
	return offer.Amount(*r.AcceptedPrice), true
}

// BunArchive stores outcomes in Postgres.
type BunArchive struct {
	db *bun.DB
}

// NewBunArchive connects to dsn and creates the outcomes table if needed.
func NewBunArchive(ctx context.Context, dsn string) (*BunArchive, error) {
	if dsn == "" {
		return nil, errorsx.New(errorsx.ReasonOutcomeStore, "outcome: archive dsn is empty")
	}
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	if _, err := db.NewCreateTable().Model((*Row)(nil)).IfNotExists().Exec(ctx); err != nil {
		_ = db.Close()
		return nil, errorsx.Wrap(err, errorsx.ReasonOutcomeStore)
	}
	return &BunArchive{db: db}, nil
}

func (a *BunArchive) Report(ctx context.Context, o Outcome) error {
	row := rowFromOutcome(o)
	if _, err := a.db.NewInsert().Model(&row).Exec(ctx); err != nil {
		return errorsx.Wrap(err, errorsx.ReasonOutcomeStore)
	}
	return nil
}

// Recent lists the latest outcomes for a vendor, newest first.
func (a *BunArchive) Recent(ctx context.Context, vendorName string, limit int) ([]Row, error) {
	if limit <= 0 {
		limit = 10
	}
	var rows []Row
	q := a.db.NewSelect().Model(&rows).Order("ended_at DESC").Limit(limit)
	if vendorName != "" {
		q = q.Where("vendor_name = ?", vendorName)
	}
	if err := q.Scan(ctx); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, errorsx.Wrap(err, errorsx.ReasonOutcomeStore)
	}
	return rows, nil
}

func (a *BunArchive) Close() error {
	return a.db.Close()
}
