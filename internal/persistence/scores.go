package persistence

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/talgya/adaptation-sim/internal/scoring"
)

// ScoreRow is a stored block score.
type ScoreRow struct {
	User       string             `json:"user_name"`
	Scenario   string             `json:"scenario_name"`
	Period     string             `json:"period"`
	Raw        scoring.Indicators `json:"raw"`
	Score      scoring.Indicators `json:"score"`
	TotalScore float64            `json:"total_score"`
	CreatedAt  int64              `json:"timestamp"`
}

type scoreRow struct {
	User       string  `db:"user_name"`
	Scenario   string  `db:"scenario_name"`
	Period     string  `db:"period"`
	RawJSON    string  `db:"raw_json"`
	ScoreJSON  string  `db:"score_json"`
	TotalScore float64 `db:"total_score"`
	CreatedAt  int64   `db:"created_at"`
}

// RankEntry is one line of the user ranking.
type RankEntry struct {
	User       string  `db:"user_name" json:"user_name"`
	TotalScore float64 `db:"total_score" json:"total_score"`
	Rank       int     `db:"-" json:"rank"`
}

// SaveBlockScores stores blocks for (user, scenario). A period that is
// already stored for the pair keeps its first score. It returns how many
// blocks were newly stored.
func (db *DB) SaveBlockScores(user, scenario string, blocks []scoring.Block) (int, error) {
	tx, err := db.conn.Beginx()
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	now := time.Now().UnixNano()
	stored := 0
	for _, b := range blocks {
		raw, err := json.Marshal(b.Raw)
		if err != nil {
			return 0, fmt.Errorf("encode raw %s: %w", b.Period, err)
		}
		score, err := json.Marshal(b.Score)
		if err != nil {
			return 0, fmt.Errorf("encode score %s: %w", b.Period, err)
		}
		res, err := tx.Exec(`INSERT OR IGNORE INTO block_scores
			(user_name, scenario_name, period, raw_json, score_json, total_score, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			user, scenario, b.Period, string(raw), string(score), b.TotalScore, now,
		)
		if err != nil {
			return 0, fmt.Errorf("insert block %s: %w", b.Period, err)
		}
		if n, _ := res.RowsAffected(); n > 0 {
			stored++
		}
	}
	return stored, tx.Commit()
}

// BlockScores returns every stored block score.
func (db *DB) BlockScores() ([]ScoreRow, error) {
	var rows []scoreRow
	err := db.conn.Select(&rows, `SELECT user_name, scenario_name, period, raw_json, score_json, total_score, created_at
		FROM block_scores ORDER BY user_name, scenario_name, period`)
	if err != nil {
		return nil, fmt.Errorf("load block scores: %w", err)
	}

	out := make([]ScoreRow, 0, len(rows))
	for _, r := range rows {
		row := ScoreRow{
			User:       r.User,
			Scenario:   r.Scenario,
			Period:     r.Period,
			TotalScore: r.TotalScore,
			CreatedAt:  r.CreatedAt,
		}
		if err := json.Unmarshal([]byte(r.RawJSON), &row.Raw); err != nil {
			return nil, fmt.Errorf("decode raw: %w", err)
		}
		if err := json.Unmarshal([]byte(r.ScoreJSON), &row.Score); err != nil {
			return nil, fmt.Errorf("decode score: %w", err)
		}
		out = append(out, row)
	}
	return out, nil
}

// Ranking averages each user's stored block totals, best first.
func (db *DB) Ranking() ([]RankEntry, error) {
	var entries []RankEntry
	err := db.conn.Select(&entries, `SELECT user_name, AVG(total_score) AS total_score
		FROM block_scores GROUP BY user_name ORDER BY total_score DESC, user_name`)
	if err != nil {
		return nil, fmt.Errorf("ranking: %w", err)
	}
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// BlockSink returns a sink that stores blocks for (user, scenario).
func (db *DB) BlockSink(user, scenario string) scoring.BlockSink {
	return blockSink{db: db, user: user, scenario: scenario}
}

type blockSink struct {
	db             *DB
	user, scenario string
}

func (s blockSink) Block(b scoring.Block) error {
	_, err := s.db.SaveBlockScores(s.user, s.scenario, []scoring.Block{b})
	return err
}
