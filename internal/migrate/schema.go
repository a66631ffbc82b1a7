package migrate

import (
	"context"
	"database/sql"
	"fmt"

	"restroom-api/internal/logger"
)

// NotifyChannel：记录变更通知通道（LISTEN/NOTIFY）
const NotifyChannel = "restrooms_changed"

// Statements：建表、索引与变更通知触发器
var Statements = []string{
	`CREATE TABLE IF NOT EXISTS restrooms (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		address TEXT NOT NULL DEFAULT '',
		lat DOUBLE PRECISION NOT NULL,
		lng DOUBLE PRECISION NOT NULL,
		category TEXT NOT NULL DEFAULT 'public_toilet',
		is_public BOOLEAN NOT NULL DEFAULT FALSE,
		is_free BOOLEAN NOT NULL DEFAULT FALSE,
		is_gender_neutral BOOLEAN NOT NULL DEFAULT FALSE,
		is_baby_friendly BOOLEAN NOT NULL DEFAULT FALSE,
		is_dog_friendly BOOLEAN NOT NULL DEFAULT FALSE,
		is_wheelchair_accessible BOOLEAN NOT NULL DEFAULT FALSE,
		has_changing_table BOOLEAN NOT NULL DEFAULT FALSE,
		has_paper BOOLEAN NOT NULL DEFAULT FALSE,
		has_soap BOOLEAN NOT NULL DEFAULT FALSE,
		has_hand_dryer BOOLEAN NOT NULL DEFAULT FALSE,
		has_running_water BOOLEAN NOT NULL DEFAULT FALSE,
		has_shower BOOLEAN NOT NULL DEFAULT FALSE,
		cleanliness_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		availability_rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		rating DOUBLE PRECISION NOT NULL DEFAULT 0 CHECK (rating >= 0 AND rating <= 5),
		review_count INT NOT NULL DEFAULT 0,
		source TEXT NOT NULL DEFAULT 'user',
		submitted_by TEXT NOT NULL DEFAULT '',
		is_from_commercial BOOLEAN NOT NULL DEFAULT FALSE,
		commercial_place_id TEXT NOT NULL DEFAULT '',
		is_approved BOOLEAN NOT NULL DEFAULT TRUE,
		submitted_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_restrooms_lat_lng ON restrooms(lat, lng)`,
	`CREATE TABLE IF NOT EXISTS restroom_reviews (
		id TEXT PRIMARY KEY,
		parent_id TEXT NOT NULL REFERENCES restrooms(id) ON DELETE CASCADE,
		user_id TEXT NOT NULL DEFAULT '',
		user_name TEXT NOT NULL DEFAULT '',
		rating DOUBLE PRECISION NOT NULL DEFAULT 0,
		comment TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		helpful_count INT NOT NULL DEFAULT 0
	)`,
	`CREATE INDEX IF NOT EXISTS idx_restroom_reviews_parent ON restroom_reviews(parent_id, created_at DESC)`,
	`CREATE OR REPLACE FUNCTION restrooms_notify() RETURNS trigger AS $$
	BEGIN
		PERFORM pg_notify('` + NotifyChannel + `', COALESCE(NEW.id, OLD.id));
		RETURN NULL;
	END;
	$$ LANGUAGE plpgsql`,
	`DROP TRIGGER IF EXISTS trg_restrooms_notify ON restrooms`,
	`CREATE TRIGGER trg_restrooms_notify AFTER INSERT OR UPDATE OR DELETE ON restrooms
		FOR EACH ROW EXECUTE FUNCTION restrooms_notify()`,
}

// 背景：首次运行自动创建所需表、索引与通知触发器
// 约束：使用 IF NOT EXISTS / OR REPLACE，可重复执行
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for i, s := range Statements {
		logger.L().Debug("schema_exec", "idx", i)
		if _, err := db.ExecContext(ctx, s); err != nil {
			return fmt.Errorf("schema stmt %d: %w", i, err)
		}
	}
	logger.L().Debug("schema_done")
	return nil
}
