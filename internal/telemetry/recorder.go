package telemetry

import (
	"context"
	"fmt"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zeusync/carview/internal/core/observability/log"
	"github.com/zeusync/carview/internal/sim"
)

// Sample is one recorded frame.
type Sample struct {
	ID        uint    `gorm:"primaryKey"`
	SessionID string  `gorm:"size:36;index:idx_session_seq,priority:1"`
	Seq       uint64  `gorm:"index:idx_session_seq,priority:2"`
	SimTime   float64 // seconds since the session started
	X         float64
	Y         float64
	Z         float64
	Heading   float64
	Speed     float64
	Mode      string `gorm:"size:16"`
	Reset     bool
	CreatedAt time.Time
}

// Recorder stores frames in SQLite so drives can be replayed later.
type Recorder struct {
	db     *gorm.DB
	logger log.Log
}

// OpenRecorder opens (creating if needed) the database at path. An empty
// path opens a private in-memory database.
func OpenRecorder(path string, l log.Log) (*Recorder, error) {
	dsn := path
	if dsn == "" {
		dsn = fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		PrepareStmt:            true,
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("open recorder db: %w", err)
	}

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("error setting PRAGMA: %w", err)
		}
	}

	if err := db.AutoMigrate(&Sample{}); err != nil {
		return nil, fmt.Errorf("migrate recorder db: %w", err)
	}

	l.Info("Recorder opened", log.String("path", path))
	return &Recorder{db: db, logger: l.With(log.String("component", "recorder"))}, nil
}

func (r *Recorder) Record(ctx context.Context, sessionID string, f sim.Frame) error {
	s := Sample{
		SessionID: sessionID,
		Seq:       f.Seq,
		SimTime:   f.Time,
		X:         f.Vehicle.Position.X,
		Y:         f.Vehicle.Position.Y,
		Z:         f.Vehicle.Position.Z,
		Heading:   f.Vehicle.Heading,
		Speed:     f.Vehicle.Speed,
		Mode:      f.Mode.String(),
		Reset:     f.Reset,
	}
	if err := r.db.WithContext(ctx).Create(&s).Error; err != nil {
		return fmt.Errorf("record frame %d: %w", f.Seq, err)
	}
	return nil
}

// Samples returns the recorded frames of a session in sequence order.
func (r *Recorder) Samples(ctx context.Context, sessionID string) ([]Sample, error) {
	var out []Sample
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("seq").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("load samples: %w", err)
	}
	return out, nil
}

// Sessions lists the ids of every recorded session.
func (r *Recorder) Sessions(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&Sample{}).
		Distinct("session_id").
		Order("session_id").
		Pluck("session_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return ids, nil
}

func (r *Recorder) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
