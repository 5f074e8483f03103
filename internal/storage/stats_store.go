// internal/storage/stats_store.go
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/amusedev/amuse/internal/models"
)

// StatsStore 小说统计数据存储
// 浏览量、点赞、收藏这类高频计数写入SQLite，避免JSON文件反复整体重写
type StatsStore struct {
	db   *sql.DB
	path string
}

const statsSchema = `
CREATE TABLE IF NOT EXISTS novel_stats (
    novel_id       TEXT PRIMARY KEY,
    view_count     INTEGER NOT NULL DEFAULT 0,
    like_count     INTEGER NOT NULL DEFAULT 0,
    favorite_count INTEGER NOT NULL DEFAULT 0,
    updated_at     TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS user_favorites (
    user_id    TEXT NOT NULL,
    novel_id   TEXT NOT NULL,
    created_at TEXT NOT NULL,
    PRIMARY KEY (user_id, novel_id)
);
`

// OpenStatsStore 打开或创建统计数据库
func OpenStatsStore(dataDir string) (*StatsStore, error) {
	dbPath := filepath.Join(dataDir, "stats.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("打开统计数据库失败: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("设置PRAGMA失败 %q: %w", pragma, execErr)
		}
	}

	if _, err := db.Exec(statsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("初始化统计表失败: %w", err)
	}

	return &StatsStore{db: db, path: dbPath}, nil
}

// Close 关闭数据库连接
func (s *StatsStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// EnsureNovel 为新小说创建统计行
func (s *StatsStore) EnsureNovel(ctx context.Context, novelID string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(
		ctx,
		`INSERT INTO novel_stats (novel_id, view_count, like_count, favorite_count, updated_at)
         VALUES (?, 0, 0, 0, ?)
         ON CONFLICT(novel_id) DO NOTHING`,
		novelID, now,
	)
	if err != nil {
		return fmt.Errorf("创建统计行失败: %w", err)
	}
	return nil
}

// Get 获取小说统计
func (s *StatsStore) Get(ctx context.Context, novelID string) (*models.NovelStats, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT novel_id, view_count, like_count, favorite_count FROM novel_stats WHERE novel_id = ?`,
		novelID,
	)

	stats := &models.NovelStats{}
	err := row.Scan(&stats.NovelID, &stats.ViewCount, &stats.LikeCount, &stats.FavoriteCount)
	if errors.Is(err, sql.ErrNoRows) {
		return &models.NovelStats{NovelID: novelID}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("查询统计失败: %w", err)
	}
	return stats, nil
}

// IncrementView 浏览量+1
func (s *StatsStore) IncrementView(ctx context.Context, novelID string) error {
	return s.increment(ctx, novelID, "view_count", 1)
}

// AddLike 点赞计数调整，delta取±1
func (s *StatsStore) AddLike(ctx context.Context, novelID string, delta int) error {
	return s.increment(ctx, novelID, "like_count", delta)
}

func (s *StatsStore) increment(ctx context.Context, novelID, column string, delta int) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	query := fmt.Sprintf(
		`INSERT INTO novel_stats (novel_id, %s, updated_at) VALUES (?, MAX(0, ?), ?)
         ON CONFLICT(novel_id) DO UPDATE SET %s = MAX(0, %s + ?), updated_at = excluded.updated_at`,
		column, column, column,
	)
	if _, err := s.db.ExecContext(ctx, query, novelID, delta, now, delta); err != nil {
		return fmt.Errorf("更新统计失败: %w", err)
	}
	return nil
}

// AddFavorite 添加收藏，返回是否新增
func (s *StatsStore) AddFavorite(ctx context.Context, userID, novelID string) (bool, error) {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	res, err := s.db.ExecContext(
		ctx,
		`INSERT INTO user_favorites (user_id, novel_id, created_at) VALUES (?, ?, ?)
         ON CONFLICT(user_id, novel_id) DO NOTHING`,
		userID, novelID, now,
	)
	if err != nil {
		return false, fmt.Errorf("添加收藏失败: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		if err := s.increment(ctx, novelID, "favorite_count", 1); err != nil {
			return true, err
		}
	}
	return affected > 0, nil
}

// RemoveFavorite 取消收藏，返回是否实际删除
func (s *StatsStore) RemoveFavorite(ctx context.Context, userID, novelID string) (bool, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM user_favorites WHERE user_id = ? AND novel_id = ?`,
		userID, novelID,
	)
	if err != nil {
		return false, fmt.Errorf("取消收藏失败: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	if affected > 0 {
		if err := s.increment(ctx, novelID, "favorite_count", -1); err != nil {
			return true, err
		}
	}
	return affected > 0, nil
}

// IsFavorite 查询用户是否已收藏该小说
func (s *StatsStore) IsFavorite(ctx context.Context, userID, novelID string) (bool, error) {
	row := s.db.QueryRowContext(
		ctx,
		`SELECT 1 FROM user_favorites WHERE user_id = ? AND novel_id = ?`,
		userID, novelID,
	)
	var one int
	err := row.Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("查询收藏失败: %w", err)
	}
	return true, nil
}

// ListFavorites 列出用户收藏的小说ID，按收藏时间倒序
func (s *StatsStore) ListFavorites(ctx context.Context, userID string) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT novel_id FROM user_favorites WHERE user_id = ? ORDER BY created_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("查询收藏列表失败: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// DeleteNovel 删除小说时清理统计与收藏记录
func (s *StatsStore) DeleteNovel(ctx context.Context, novelID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM novel_stats WHERE novel_id = ?`, novelID); err != nil {
		return fmt.Errorf("删除统计失败: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM user_favorites WHERE novel_id = ?`, novelID); err != nil {
		return fmt.Errorf("删除收藏记录失败: %w", err)
	}
	return nil
}
