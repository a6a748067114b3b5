package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"hms-backend/internal/models"
)

// ErrMalformedMRN is returned when an existing identifier for the year
// cannot be parsed, so the next value cannot be derived safely.
var ErrMalformedMRN = errors.New("existing MRN has a non-numeric sequence")

// MRNRepository hands out medical record numbers of the form PREFIX-YEAR-NNNNN
// from a durable per-year counter.
type MRNRepository struct {
	db *gorm.DB
}

func NewMRNRepo(db *gorm.DB) *MRNRepository {
	return &MRNRepository{db: db}
}

func (r *MRNRepository) WithTx(tx *gorm.DB) *MRNRepository {
	return &MRNRepository{db: tx}
}

// FormatMRN renders a sequence number. Numbers beyond 99999 widen.
func FormatMRN(prefix string, year int, seq int64) string {
	return fmt.Sprintf("%s-%d-%05d", prefix, year, seq)
}

// Allocate reserves the next identifier for prefix and year. It must run
// inside the transaction that inserts the patient: the counter increment
// holds the row lock until that transaction ends.
func (r *MRNRepository) Allocate(ctx context.Context, prefix string, year int) (string, error) {
	db := r.db.WithContext(ctx)

	var existing int64
	if err := db.Model(&models.MRNSequence{}).
		Where("prefix = ? AND year = ?", prefix, year).
		Count(&existing).Error; err != nil {
		return "", fmt.Errorf("checking mrn counter: %w", err)
	}

	if existing == 0 {
		seed, err := r.highestIssued(ctx, prefix, year)
		if err != nil {
			return "", err
		}
		err = db.Clauses(clause.OnConflict{DoNothing: true}).
			Create(&models.MRNSequence{Prefix: prefix, Year: year, LastValue: seed}).Error
		if err != nil {
			return "", fmt.Errorf("creating mrn counter: %w", err)
		}
	}

	err := db.Model(&models.MRNSequence{}).
		Where("prefix = ? AND year = ?", prefix, year).
		Update("last_value", gorm.Expr("last_value + 1")).Error
	if err != nil {
		return "", fmt.Errorf("incrementing mrn counter: %w", err)
	}

	var seq models.MRNSequence
	if err := db.Where("prefix = ? AND year = ?", prefix, year).First(&seq).Error; err != nil {
		return "", fmt.Errorf("reading mrn counter: %w", err)
	}

	return FormatMRN(prefix, year, seq.LastValue), nil
}

// Resync raises the counter to the highest identifier already issued.
// Used after a unique violation shows the counter fell behind the table.
func (r *MRNRepository) Resync(ctx context.Context, prefix string, year int) error {
	highest, err := r.highestIssued(ctx, prefix, year)
	if err != nil {
		return err
	}

	return r.db.WithContext(ctx).Model(&models.MRNSequence{}).
		Where("prefix = ? AND year = ? AND last_value < ?", prefix, year, highest).
		Update("last_value", highest).Error
}

// highestIssued scans patients for the largest sequence issued in year.
// Longer identifiers sort first so values past 99999 are found.
func (r *MRNRepository) highestIssued(ctx context.Context, prefix string, year int) (int64, error) {
	stem := fmt.Sprintf("%s-%d-", prefix, year)

	var mrns []string
	err := r.db.WithContext(ctx).Model(&models.Patient{}).
		Where("mrn LIKE ?", stem+"%").
		Order("LENGTH(mrn) DESC").Order("mrn DESC").
		Limit(1).
		Pluck("mrn", &mrns).Error
	if err != nil {
		return 0, fmt.Errorf("scanning issued mrns: %w", err)
	}
	if len(mrns) == 0 {
		return 0, nil
	}

	n, err := strconv.ParseInt(strings.TrimPrefix(mrns[0], stem), 10, 64)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedMRN, mrns[0])
	}
	return n, nil
}
