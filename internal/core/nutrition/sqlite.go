package nutrition

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"meal-analyzer/internal/pkg/common"

	"go.uber.org/zap"
)

// Store 以 SQLite 保存三個查詢表
type Store struct {
	db *sql.DB
}

// OpenStore 開啟（必要時建立）SQLite 資料庫
func OpenStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return store, nil
}

// Close 關閉資料庫
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS nutrition (
        name TEXT PRIMARY KEY,
        calories REAL NOT NULL,
        carbs REAL NOT NULL,
        protein REAL NOT NULL,
        fat REAL NOT NULL,
        fiber REAL NOT NULL,
        flags TEXT NOT NULL DEFAULT '[]',
        warnings TEXT NOT NULL DEFAULT '{}'
    );

    CREATE TABLE IF NOT EXISTS glycemic_index (
        name TEXT PRIMARY KEY,
        gi INTEGER NOT NULL
    );

    CREATE TABLE IF NOT EXISTS foods_extended (
        name TEXT PRIMARY KEY,
        calories REAL NOT NULL,
        carbs REAL NOT NULL,
        protein REAL NOT NULL,
        fat REAL NOT NULL,
        fiber REAL NOT NULL,
        glycemic_index INTEGER,
        gi_category TEXT NOT NULL DEFAULT '',
        flags TEXT NOT NULL DEFAULT '[]'
    );
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// Save 將查詢表寫入資料庫，同名資料覆蓋
func (s *Store) Save(ctx context.Context, t *Tables) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to start transaction: %w", err)
	}
	defer tx.Rollback()

	nutritionQuery := `
        INSERT OR REPLACE INTO nutrition (name, calories, carbs, protein, fat, fiber, flags, warnings)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `
	for _, name := range t.nutritionKeys {
		entry := t.nutrition[name]
		flags, warnings, err := encodeExtras(entry.Flags, entry.Warnings)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, nutritionQuery,
			name, entry.Calories, entry.Carbs, entry.Protein, entry.Fat, entry.Fiber,
			flags, warnings); err != nil {
			return fmt.Errorf("failed to insert nutrition %q: %w", name, err)
		}
	}

	giQuery := `INSERT OR REPLACE INTO glycemic_index (name, gi) VALUES (?, ?)`
	for _, name := range t.giKeys {
		if _, err := tx.ExecContext(ctx, giQuery, name, t.gi[name]); err != nil {
			return fmt.Errorf("failed to insert glycemic index %q: %w", name, err)
		}
	}

	extendedQuery := `
        INSERT OR REPLACE INTO foods_extended (name, calories, carbs, protein, fat, fiber, glycemic_index, gi_category, flags)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	for name, entry := range t.extended {
		flags, _, err := encodeExtras(entry.Flags, nil)
		if err != nil {
			return err
		}
		var gi sql.NullInt64
		if entry.GlycemicIndex != nil {
			gi = sql.NullInt64{Int64: int64(*entry.GlycemicIndex), Valid: true}
		}
		if _, err := tx.ExecContext(ctx, extendedQuery,
			name, entry.Calories, entry.Carbs, entry.Protein, entry.Fat, entry.Fiber,
			gi, entry.GICategory, flags); err != nil {
			return fmt.Errorf("failed to insert extended food %q: %w", name, err)
		}
	}

	return tx.Commit()
}

// Load 從資料庫讀出查詢表
func (s *Store) Load(ctx context.Context) (*Tables, error) {
	nutrition, err := s.loadNutrition(ctx)
	if err != nil {
		return nil, err
	}
	gi, err := s.loadGI(ctx)
	if err != nil {
		return nil, err
	}
	extended, err := s.loadExtended(ctx)
	if err != nil {
		return nil, err
	}
	return NewTables(nutrition, gi, extended), nil
}

func (s *Store) loadNutrition(ctx context.Context) (map[string]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT name, calories, carbs, protein, fat, fiber, flags, warnings
        FROM nutrition
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to query nutrition: %w", err)
	}
	defer rows.Close()

	result := make(map[string]Entry)
	for rows.Next() {
		var (
			name            string
			entry           Entry
			flags, warnings string
		)
		if err := rows.Scan(&name, &entry.Calories, &entry.Carbs, &entry.Protein,
			&entry.Fat, &entry.Fiber, &flags, &warnings); err != nil {
			return nil, fmt.Errorf("failed to scan nutrition: %w", err)
		}
		if err := common.ParseJSON(flags, &entry.Flags); err != nil {
			return nil, fmt.Errorf("invalid flags for %q: %w", name, err)
		}
		if err := common.ParseJSON(warnings, &entry.Warnings); err != nil {
			return nil, fmt.Errorf("invalid warnings for %q: %w", name, err)
		}
		result[name] = entry
	}
	return result, rows.Err()
}

func (s *Store) loadGI(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT name, gi FROM glycemic_index`)
	if err != nil {
		return nil, fmt.Errorf("failed to query glycemic index: %w", err)
	}
	defer rows.Close()

	result := make(map[string]int)
	for rows.Next() {
		var (
			name string
			gi   int
		)
		if err := rows.Scan(&name, &gi); err != nil {
			return nil, fmt.Errorf("failed to scan glycemic index: %w", err)
		}
		result[name] = gi
	}
	return result, rows.Err()
}

func (s *Store) loadExtended(ctx context.Context) ([]ExtendedEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT name, calories, carbs, protein, fat, fiber, glycemic_index, gi_category, flags
        FROM foods_extended
        ORDER BY name
    `)
	if err != nil {
		return nil, fmt.Errorf("failed to query extended foods: %w", err)
	}
	defer rows.Close()

	var result []ExtendedEntry
	for rows.Next() {
		var (
			entry ExtendedEntry
			gi    sql.NullInt64
			flags string
		)
		if err := rows.Scan(&entry.Name, &entry.Calories, &entry.Carbs, &entry.Protein,
			&entry.Fat, &entry.Fiber, &gi, &entry.GICategory, &flags); err != nil {
			return nil, fmt.Errorf("failed to scan extended food: %w", err)
		}
		if gi.Valid {
			v := int(gi.Int64)
			entry.GlycemicIndex = &v
		}
		if err := common.ParseJSON(flags, &entry.Flags); err != nil {
			return nil, fmt.Errorf("invalid flags for %q: %w", entry.Name, err)
		}
		result = append(result, entry)
	}
	return result, rows.Err()
}

// LoadSQLite 開啟資料庫、讀出查詢表後關閉
func LoadSQLite(ctx context.Context, dbPath string) (*Tables, error) {
	store, err := OpenStore(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	t, err := store.Load(ctx)
	if err != nil {
		return nil, err
	}
	n, gi, ext := t.Sizes()
	common.LogInfo("從 SQLite 載入營養資料表",
		zap.String("path", dbPath),
		zap.Int("nutrition", n),
		zap.Int("glycemic_index", gi),
		zap.Int("extended", ext),
	)
	return t, nil
}

func encodeExtras(flags []string, warnings map[string]string) (string, string, error) {
	if flags == nil {
		flags = []string{}
	}
	if warnings == nil {
		warnings = map[string]string{}
	}
	f, err := json.Marshal(flags)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode flags: %w", err)
	}
	w, err := json.Marshal(warnings)
	if err != nil {
		return "", "", fmt.Errorf("failed to encode warnings: %w", err)
	}
	return string(f), string(w), nil
}
