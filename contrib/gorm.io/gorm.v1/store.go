// Package gorm_v1 keeps profiler sessions in a SQL table through gorm.
package gorm_v1

import (
	"context"
	"errors"
	"time"

	"github.com/volcengine/apminsight-tick-profiler-go/profiler/common"
	"github.com/volcengine/apminsight-tick-profiler-go/profiler/store"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ProfilerSession is one row per bot.
type ProfilerSession struct {
	Name      string `gorm:"primaryKey;size:128"`
	Data      string `gorm:"type:longtext"`
	UpdatedAt time.Time
}

func (ProfilerSession) TableName() string {
	return "profiler_sessions"
}

type Store struct {
	db   *gorm.DB
	name string
}

var _ store.SessionStore = (*Store)(nil)

// OpenMySQL opens dsn and migrates the sessions table.
func OpenMySQL(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&ProfilerSession{}); err != nil {
		return nil, err
	}
	return db, nil
}

func NewStore(db *gorm.DB, name string) *Store {
	return &Store{db: db, name: name}
}

func (s *Store) Load(ctx context.Context) (*common.Session, error) {
	var row ProfilerSession
	err := s.db.WithContext(ctx).Where("name = ?", s.name).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return store.Decode([]byte(row.Data))
}

func (s *Store) Save(ctx context.Context, session *common.Session) error {
	if session == nil {
		return s.Clear(ctx)
	}
	b, err := store.Encode(session)
	if err != nil {
		return err
	}
	return upsert(s.db.WithContext(ctx), &ProfilerSession{Name: s.name, Data: string(b)}).Error
}

func (s *Store) Clear(ctx context.Context) error {
	return s.db.WithContext(ctx).Where("name = ?", s.name).Delete(&ProfilerSession{}).Error
}

func upsert(db *gorm.DB, row *ProfilerSession) *gorm.DB {
	return db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "name"}},
		DoUpdates: clause.AssignmentColumns([]string{"data", "updated_at"}),
	}).Create(row)
}
