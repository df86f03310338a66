package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Hands table - one 14-feature hand record per row
		`CREATE TABLE IF NOT EXISTS hands (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			roll REAL NOT NULL,
			pitch REAL NOT NULL,
			yaw REAL NOT NULL,
			finger1 INTEGER NOT NULL,
			finger2 INTEGER NOT NULL,
			finger3 INTEGER NOT NULL,
			finger4 INTEGER NOT NULL,
			finger5 INTEGER NOT NULL,
			mean_acceleration REAL NOT NULL DEFAULT 0,
			std_acceleration REAL NOT NULL DEFAULT 0,
			mean_angular_velocity REAL NOT NULL DEFAULT 0,
			std_angular_velocity REAL NOT NULL DEFAULT 0,
			gyro_axis INTEGER NOT NULL DEFAULT 0 CHECK(gyro_axis BETWEEN 0 AND 3),
			accel_axis INTEGER NOT NULL DEFAULT 0 CHECK(accel_axis BETWEEN 0 AND 3)
		)`,

		// Gestures table - named exemplars referencing one or two hands
		`CREATE TABLE IF NOT EXISTS gestures (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL UNIQUE,
			kind TEXT NOT NULL CHECK(kind IN ('static', 'dynamic')),
			left_hand_id INTEGER REFERENCES hands(id) ON DELETE SET NULL,
			right_hand_id INTEGER REFERENCES hands(id) ON DELETE SET NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			CHECK(left_hand_id IS NOT NULL OR right_hand_id IS NOT NULL)
		)`,

		`CREATE INDEX IF NOT EXISTS idx_gestures_left_hand ON gestures(left_hand_id)`,
		`CREATE INDEX IF NOT EXISTS idx_gestures_right_hand ON gestures(right_hand_id)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
