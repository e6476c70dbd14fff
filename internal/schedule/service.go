package schedule

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/andescare/hospital-platform/internal/domain"
	"github.com/andescare/hospital-platform/internal/store"
	"github.com/andescare/hospital-platform/pkg/logging"
)

// NoSchedule is the summary rendered for a doctor with no blocks.
const NoSchedule = "no schedule"

// Service persists schedule blocks and answers availability queries.
type Service struct {
	store  *store.Store
	logger *logging.Logger
}

// NewService creates a schedule service.
func NewService(s *store.Store, logger *logging.Logger) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	return &Service{store: s, logger: logger.WithComponent("schedule")}
}

// ReplaceDay swaps the full set of blocks for one (doctor, weekday). The
// existing rows are deleted and the new set inserted in a single
// transaction: a validation failure or storage fault writes nothing.
func (s *Service) ReplaceDay(ctx context.Context, doctorID int64, weekday Weekday, blocks []Block) error {
	exists, err := s.store.ExistsByID(ctx, store.TableDoctor, doctorID)
	if err != nil {
		return err
	}
	if !exists {
		return &domain.NotFoundError{Table: string(store.TableDoctor), ID: doctorID}
	}
	if !weekday.Valid() {
		return domain.Invalid("weekday", fmt.Sprintf("day index %d out of range 0-6", int(weekday)))
	}
	if err := ValidateBlocks(blocks); err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			"DELETE FROM schedule_block WHERE doctor_id = $1 AND weekday = $2",
			doctorID, int(weekday)); err != nil {
			return fmt.Errorf("schedule: clear day: %w", err)
		}
		for _, b := range blocks {
			if _, err := tx.Exec(ctx,
				`INSERT INTO schedule_block (doctor_id, weekday, start_time, end_time, category)
				 VALUES ($1, $2, $3, $4, NULLIF($5, ''))`,
				doctorID, int(weekday), b.Start, b.End, b.Category); err != nil {
				return fmt.Errorf("schedule: insert block %s: %w", b, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.logger.Info("replaced day schedule",
		"doctor_id", doctorID, "weekday", weekday.Label(), "blocks", len(blocks))
	return nil
}

// ClearDay removes all blocks for one (doctor, weekday) and returns how many
// rows went away.
func (s *Service) ClearDay(ctx context.Context, doctorID int64, weekday Weekday) (int64, error) {
	exists, err := s.store.ExistsByID(ctx, store.TableDoctor, doctorID)
	if err != nil {
		return 0, err
	}
	if !exists {
		return 0, &domain.NotFoundError{Table: string(store.TableDoctor), ID: doctorID}
	}
	if !weekday.Valid() {
		return 0, domain.Invalid("weekday", fmt.Sprintf("day index %d out of range 0-6", int(weekday)))
	}
	tag, err := s.store.Pool().Exec(ctx,
		"DELETE FROM schedule_block WHERE doctor_id = $1 AND weekday = $2",
		doctorID, int(weekday))
	if err != nil {
		return 0, fmt.Errorf("schedule: clear day: %w", err)
	}
	return tag.RowsAffected(), nil
}

// WeeklySchedule returns the doctor's blocks grouped per weekday, each day's
// blocks ordered by start time.
func (s *Service) WeeklySchedule(ctx context.Context, doctorID int64) (map[Weekday][]Block, error) {
	rows, err := s.store.Pool().Query(ctx,
		`SELECT weekday, start_time, end_time, COALESCE(category, '')
		 FROM schedule_block
		 WHERE doctor_id = $1
		 ORDER BY weekday, start_time`,
		doctorID)
	if err != nil {
		return nil, fmt.Errorf("schedule: load week: %w", err)
	}
	defer rows.Close()

	week := make(map[Weekday][]Block)
	for rows.Next() {
		var day int
		var b Block
		if err := rows.Scan(&day, &b.Start, &b.End, &b.Category); err != nil {
			return nil, fmt.Errorf("schedule: load week: read row: %w", err)
		}
		week[Weekday(day)] = append(week[Weekday(day)], b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: load week: %w", err)
	}
	return week, nil
}

// AvailableDoctor is one row of an availability query.
type AvailableDoctor struct {
	ID        int64  `json:"id"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

// Availability lists doctors with a block covering the given weekday and
// time (start <= t < end).
func (s *Service) Availability(ctx context.Context, weekday Weekday, at string) ([]AvailableDoctor, error) {
	if !weekday.Valid() {
		return nil, domain.Invalid("weekday", fmt.Sprintf("day index %d out of range 0-6", int(weekday)))
	}
	if !ValidTime(at) {
		return nil, domain.Invalid("time", fmt.Sprintf("malformed time %q: want HH:MM", at))
	}

	rows, err := s.store.Pool().Query(ctx,
		`SELECT DISTINCT d.id, d.first_name, d.last_name
		 FROM schedule_block b
		 JOIN doctor d ON b.doctor_id = d.id
		 WHERE b.weekday = $1 AND b.start_time <= $2 AND b.end_time > $2
		 ORDER BY d.first_name, d.last_name`,
		int(weekday), at)
	if err != nil {
		return nil, fmt.Errorf("schedule: availability: %w", err)
	}
	defer rows.Close()

	var out []AvailableDoctor
	for rows.Next() {
		var d AvailableDoctor
		if err := rows.Scan(&d.ID, &d.FirstName, &d.LastName); err != nil {
			return nil, fmt.Errorf("schedule: availability: read row: %w", err)
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("schedule: availability: %w", err)
	}
	return out, nil
}

// Summarize renders the weekly schedule as one line, e.g.
// "Monday: 08:00-12:00, 14:00-18:00 | Wednesday: 09:00-13:00".
func (s *Service) Summarize(ctx context.Context, doctorID int64) (string, error) {
	week, err := s.WeeklySchedule(ctx, doctorID)
	if err != nil {
		return "", err
	}
	var parts []string
	for day := Weekday(0); day <= 6; day++ {
		blocks := week[day]
		if len(blocks) == 0 {
			continue
		}
		ranges := make([]string, len(blocks))
		for i, b := range blocks {
			ranges[i] = b.String()
		}
		parts = append(parts, day.Label()+": "+strings.Join(ranges, ", "))
	}
	if len(parts) == 0 {
		return NoSchedule, nil
	}
	return strings.Join(parts, " | "), nil
}
