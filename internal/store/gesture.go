package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrNoHands is returned when a gesture has neither a left nor a right hand.
var ErrNoHands = errors.New("gesture must have at least one hand")

// GestureKind represents the kind of gesture (static or dynamic).
type GestureKind string

const (
	// GestureKindStatic represents a static hand pose gesture.
	GestureKindStatic GestureKind = "static"
	// GestureKindDynamic represents a dynamic motion-based gesture.
	GestureKindDynamic GestureKind = "dynamic"
)

// Hand is one stored hand feature record.
type Hand struct {
	ID                  int64   `json:"-"`
	Roll                float64 `json:"roll"`
	Pitch               float64 `json:"pitch"`
	Yaw                 float64 `json:"yaw"`
	Fingers             [5]int  `json:"fingers"`
	MeanAcceleration    float64 `json:"mean_acceleration"`
	StdAcceleration     float64 `json:"std_acceleration"`
	MeanAngularVelocity float64 `json:"mean_angular_velocity"`
	StdAngularVelocity  float64 `json:"std_angular_velocity"`
	GyroAxis            int     `json:"gyro_axis"`
	AccelAxis           int     `json:"accel_axis"`
}

// Gesture represents a gesture exemplar stored in the database.
type Gesture struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Kind      GestureKind `json:"kind"`
	Left      *Hand       `json:"left,omitempty"`
	Right     *Hand       `json:"right,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// GestureRepository provides CRUD operations for gestures.
type GestureRepository struct {
	db *sql.DB
}

// Gestures returns the gesture repository for this store.
func (s *Store) Gestures() *GestureRepository {
	return &GestureRepository{db: s.db}
}

const selectGesture = `SELECT g.id, g.name, g.kind, g.created_at, g.updated_at,
	lh.id, lh.roll, lh.pitch, lh.yaw, lh.finger1, lh.finger2, lh.finger3, lh.finger4, lh.finger5,
	lh.mean_acceleration, lh.std_acceleration, lh.mean_angular_velocity, lh.std_angular_velocity,
	lh.gyro_axis, lh.accel_axis,
	rh.id, rh.roll, rh.pitch, rh.yaw, rh.finger1, rh.finger2, rh.finger3, rh.finger4, rh.finger5,
	rh.mean_acceleration, rh.std_acceleration, rh.mean_angular_velocity, rh.std_angular_velocity,
	rh.gyro_axis, rh.accel_axis
	FROM gestures g
	LEFT JOIN hands lh ON g.left_hand_id = lh.id
	LEFT JOIN hands rh ON g.right_hand_id = rh.id`

// Create inserts a new gesture and its hands. An empty ID is filled with a
// new UUID.
func (r *GestureRepository) Create(g *Gesture) error {
	if g.Left == nil && g.Right == nil {
		return ErrNoHands
	}
	if g.ID == "" {
		g.ID = uuid.New().String()
	}

	now := time.Now()
	g.CreatedAt = now
	g.UpdatedAt = now

	return r.withTx(func(tx *sql.Tx) error {
		leftID, err := insertHand(tx, g.Left)
		if err != nil {
			return err
		}
		rightID, err := insertHand(tx, g.Right)
		if err != nil {
			return err
		}

		_, err = tx.Exec(
			`INSERT INTO gestures (id, name, kind, left_hand_id, right_hand_id, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			g.ID, g.Name, string(g.Kind), leftID, rightID, g.CreatedAt, g.UpdatedAt,
		)
		return err
	})
}

// GetByID retrieves a gesture by its ID.
func (r *GestureRepository) GetByID(id string) (*Gesture, error) {
	return scanOne(r.db.QueryRow(selectGesture+` WHERE g.id = ?`, id))
}

// GetByName retrieves a gesture by its name.
func (r *GestureRepository) GetByName(name string) (*Gesture, error) {
	return scanOne(r.db.QueryRow(selectGesture+` WHERE g.name = ?`, name))
}

// List retrieves all gestures ordered by name.
func (r *GestureRepository) List() ([]*Gesture, error) {
	rows, err := r.db.Query(selectGesture + ` ORDER BY g.name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gestures []*Gesture
	for rows.Next() {
		g, err := scanGesture(rows)
		if err != nil {
			return nil, err
		}
		gestures = append(gestures, g)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return gestures, nil
}

// Count returns the number of stored gestures.
func (r *GestureRepository) Count() (int, error) {
	var n int
	err := r.db.QueryRow(`SELECT COUNT(*) FROM gestures`).Scan(&n)
	return n, err
}

// Update replaces a gesture's name, kind and hands.
func (r *GestureRepository) Update(g *Gesture) error {
	if g.Left == nil && g.Right == nil {
		return ErrNoHands
	}
	g.UpdatedAt = time.Now()

	return r.withTx(func(tx *sql.Tx) error {
		oldLeft, oldRight, err := handIDs(tx, g.ID)
		if err != nil {
			return err
		}

		leftID, err := insertHand(tx, g.Left)
		if err != nil {
			return err
		}
		rightID, err := insertHand(tx, g.Right)
		if err != nil {
			return err
		}

		_, err = tx.Exec(
			`UPDATE gestures SET name = ?, kind = ?, left_hand_id = ?, right_hand_id = ?, updated_at = ?
			 WHERE id = ?`,
			g.Name, string(g.Kind), leftID, rightID, g.UpdatedAt, g.ID,
		)
		if err != nil {
			return err
		}

		return deleteHands(tx, oldLeft, oldRight)
	})
}

// Delete removes a gesture and its hands by ID.
func (r *GestureRepository) Delete(id string) error {
	return r.withTx(func(tx *sql.Tx) error {
		left, right, err := handIDs(tx, id)
		if err != nil {
			return err
		}

		if _, err := tx.Exec(`DELETE FROM gestures WHERE id = ?`, id); err != nil {
			return err
		}

		return deleteHands(tx, left, right)
	})
}

func (r *GestureRepository) withTx(fn func(tx *sql.Tx) error) error {
	tx, err := r.db.Begin()
	if err != nil {
		return err
	}

	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}

	return tx.Commit()
}

func handIDs(tx *sql.Tx, gestureID string) (left, right sql.NullInt64, err error) {
	err = tx.QueryRow(`SELECT left_hand_id, right_hand_id FROM gestures WHERE id = ?`, gestureID).Scan(&left, &right)
	if errors.Is(err, sql.ErrNoRows) {
		err = ErrNotFound
	}
	return left, right, err
}

func deleteHands(tx *sql.Tx, ids ...sql.NullInt64) error {
	for _, id := range ids {
		if !id.Valid {
			continue
		}
		if _, err := tx.Exec(`DELETE FROM hands WHERE id = ?`, id.Int64); err != nil {
			return err
		}
	}
	return nil
}

func insertHand(tx *sql.Tx, h *Hand) (sql.NullInt64, error) {
	if h == nil {
		return sql.NullInt64{}, nil
	}
	if err := h.validate(); err != nil {
		return sql.NullInt64{}, err
	}

	res, err := tx.Exec(
		`INSERT INTO hands (roll, pitch, yaw, finger1, finger2, finger3, finger4, finger5,
			mean_acceleration, std_acceleration, mean_angular_velocity, std_angular_velocity,
			gyro_axis, accel_axis)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		h.Roll, h.Pitch, h.Yaw,
		h.Fingers[0], h.Fingers[1], h.Fingers[2], h.Fingers[3], h.Fingers[4],
		h.MeanAcceleration, h.StdAcceleration, h.MeanAngularVelocity, h.StdAngularVelocity,
		h.GyroAxis, h.AccelAxis,
	)
	if err != nil {
		return sql.NullInt64{}, err
	}

	id, err := res.LastInsertId()
	if err != nil {
		return sql.NullInt64{}, err
	}
	h.ID = id
	return sql.NullInt64{Int64: id, Valid: true}, nil
}

func (h *Hand) validate() error {
	if h.GyroAxis < 0 || h.GyroAxis > 3 || h.AccelAxis < 0 || h.AccelAxis > 3 {
		return fmt.Errorf("axis out of range: gyro %d, accel %d", h.GyroAxis, h.AccelAxis)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// nullHand holds the nullable columns of a LEFT JOINed hand.
type nullHand struct {
	id                               sql.NullInt64
	roll, pitch, yaw                 sql.NullFloat64
	fingers                          [5]sql.NullInt64
	meanAcc, stdAcc, meanAng, stdAng sql.NullFloat64
	gyroAxis, accelAxis              sql.NullInt64
}

func (n *nullHand) dest() []any {
	return []any{
		&n.id, &n.roll, &n.pitch, &n.yaw,
		&n.fingers[0], &n.fingers[1], &n.fingers[2], &n.fingers[3], &n.fingers[4],
		&n.meanAcc, &n.stdAcc, &n.meanAng, &n.stdAng,
		&n.gyroAxis, &n.accelAxis,
	}
}

func (n *nullHand) hand() *Hand {
	if !n.id.Valid {
		return nil
	}
	h := &Hand{
		ID:                  n.id.Int64,
		Roll:                n.roll.Float64,
		Pitch:               n.pitch.Float64,
		Yaw:                 n.yaw.Float64,
		MeanAcceleration:    n.meanAcc.Float64,
		StdAcceleration:     n.stdAcc.Float64,
		MeanAngularVelocity: n.meanAng.Float64,
		StdAngularVelocity:  n.stdAng.Float64,
		GyroAxis:            int(n.gyroAxis.Int64),
		AccelAxis:           int(n.accelAxis.Int64),
	}
	for i, f := range n.fingers {
		h.Fingers[i] = int(f.Int64)
	}
	return h
}

func scanGesture(row scanner) (*Gesture, error) {
	g := &Gesture{}
	var kind string
	var left, right nullHand

	dest := []any{&g.ID, &g.Name, &kind, &g.CreatedAt, &g.UpdatedAt}
	dest = append(dest, left.dest()...)
	dest = append(dest, right.dest()...)

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}

	g.Kind = GestureKind(kind)
	g.Left = left.hand()
	g.Right = right.hand()
	return g, nil
}

func scanOne(row *sql.Row) (*Gesture, error) {
	g, err := scanGesture(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return g, nil
}
