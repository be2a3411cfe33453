package store

import (
	"database/sql"
	"fmt"
	"time"
)

// maxMetadataSize caps the stored metadata JSON per activity.
const maxMetadataSize = 10 * 1024 // 10KB

// Activity is one row of the durable event log.
type Activity struct {
	ID           int64
	ActivityID   string
	Timestamp    time.Time
	ActivityType string
	AppName      string
	WindowTitle  string
	FilePath     string
	URL          string
	Duration     int
	Metadata     string // JSON bag for fields not modeled as columns
}

// RecordActivity appends an activity to the event log and bumps the
// application/file usage tallies.
func (db *DB) RecordActivity(a *Activity) error {
	if a.ActivityID == "" {
		return fmt.Errorf("record activity: empty activity_id")
	}
	if a.ActivityType == "" {
		return fmt.Errorf("record activity: empty activity_type")
	}
	if a.Timestamp.IsZero() {
		a.Timestamp = time.Now()
	}
	meta := a.Metadata
	if len(meta) > maxMetadataSize {
		meta = meta[:maxMetadataSize]
	}

	now := time.Now().UnixMilli()
	result, err := db.Exec(`
		INSERT INTO activities (activity_id, timestamp, activity_type, app_name, window_title, file_path, url, duration, metadata, created_at)
		VALUES (?, ?, ?, NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), NULLIF(?, ''), ?, NULLIF(?, ''), ?)
		ON CONFLICT(activity_id) DO UPDATE SET
			timestamp = excluded.timestamp,
			activity_type = excluded.activity_type,
			app_name = excluded.app_name,
			window_title = excluded.window_title,
			file_path = excluded.file_path,
			url = excluded.url,
			duration = excluded.duration,
			metadata = excluded.metadata
	`, a.ActivityID, a.Timestamp.UnixMilli(), a.ActivityType,
		a.AppName, a.WindowTitle, a.FilePath, a.URL, a.Duration, meta, now)
	if err != nil {
		return fmt.Errorf("insert activity: %w", err)
	}
	if id, err := result.LastInsertId(); err == nil {
		a.ID = id
	}

	ts := a.Timestamp.UnixMilli()
	if a.AppName != "" {
		if err := db.touchApplication(a.AppName, a.Duration, ts); err != nil {
			return err
		}
	}
	if a.FilePath != "" {
		if err := db.touchFile(a.FilePath, ts); err != nil {
			return err
		}
	}
	return nil
}

func (db *DB) touchApplication(name string, duration int, ts int64) error {
	_, err := db.Exec(`
		INSERT INTO applications (name, first_seen, last_used, total_duration, usage_count)
		VALUES (?, ?, ?, ?, 1)
		ON CONFLICT(name) DO UPDATE SET
			last_used = excluded.last_used,
			total_duration = total_duration + excluded.total_duration,
			usage_count = usage_count + 1
	`, name, ts, ts, duration)
	if err != nil {
		return fmt.Errorf("touch application: %w", err)
	}
	return nil
}

func (db *DB) touchFile(path string, ts int64) error {
	_, err := db.Exec(`
		INSERT INTO files (path, first_seen, last_accessed, access_count)
		VALUES (?, ?, ?, 1)
		ON CONFLICT(path) DO UPDATE SET
			last_accessed = excluded.last_accessed,
			access_count = access_count + 1
	`, path, ts, ts)
	if err != nil {
		return fmt.Errorf("touch file: %w", err)
	}
	return nil
}

// RecentActivities returns activities newer than hoursBack hours,
// newest first, capped at limit.
func (db *DB) RecentActivities(limit int, hoursBack float64) ([]Activity, error) {
	if limit <= 0 {
		limit = 100
	}
	if hoursBack <= 0 {
		hoursBack = 24
	}
	cutoff := time.Now().Add(-time.Duration(hoursBack * float64(time.Hour))).UnixMilli()

	rows, err := db.Query(`
		SELECT id, activity_id, timestamp, activity_type, app_name, window_title, file_path, url, duration, metadata
		FROM activities
		WHERE timestamp >= ?
		ORDER BY timestamp DESC
		LIMIT ?
	`, cutoff, limit)
	if err != nil {
		return nil, fmt.Errorf("recent activities: %w", err)
	}
	defer rows.Close()

	return scanActivities(rows)
}

// GetActivity returns an activity by its activity_id, or nil if not found.
func (db *DB) GetActivity(activityID string) (*Activity, error) {
	row := db.QueryRow(`
		SELECT id, activity_id, timestamp, activity_type, app_name, window_title, file_path, url, duration, metadata
		FROM activities WHERE activity_id = ?
	`, activityID)

	a, err := scanActivity(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get activity: %w", err)
	}
	return a, nil
}

// CountActivities returns the total number of logged activities.
func (db *DB) CountActivities() (int, error) {
	var count int
	err := db.QueryRow("SELECT COUNT(*) FROM activities").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count activities: %w", err)
	}
	return count, nil
}

// AppUsage is a usage tally for one application.
type AppUsage struct {
	Name          string
	LastUsed      time.Time
	TotalDuration int
	UsageCount    int
}

// TopApplications returns the most used applications by usage count.
func (db *DB) TopApplications(limit int) ([]AppUsage, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT name, last_used, total_duration, usage_count
		FROM applications ORDER BY usage_count DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top applications: %w", err)
	}
	defer rows.Close()

	var apps []AppUsage
	for rows.Next() {
		var a AppUsage
		var lastUsed int64
		if err := rows.Scan(&a.Name, &lastUsed, &a.TotalDuration, &a.UsageCount); err != nil {
			return nil, fmt.Errorf("scan application: %w", err)
		}
		a.LastUsed = time.UnixMilli(lastUsed)
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// FileUsage is a usage tally for one file path.
type FileUsage struct {
	Path         string
	LastAccessed time.Time
	AccessCount  int
}

// TopFiles returns the most accessed files by access count.
func (db *DB) TopFiles(limit int) ([]FileUsage, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := db.Query(`
		SELECT path, last_accessed, access_count
		FROM files ORDER BY access_count DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("top files: %w", err)
	}
	defer rows.Close()

	var files []FileUsage
	for rows.Next() {
		var f FileUsage
		var lastAccessed int64
		if err := rows.Scan(&f.Path, &lastAccessed, &f.AccessCount); err != nil {
			return nil, fmt.Errorf("scan file: %w", err)
		}
		f.LastAccessed = time.UnixMilli(lastAccessed)
		files = append(files, f)
	}
	return files, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanActivity(row rowScanner) (*Activity, error) {
	var a Activity
	var ts int64
	var app, title, path, url, meta sql.NullString
	err := row.Scan(&a.ID, &a.ActivityID, &ts, &a.ActivityType, &app, &title, &path, &url, &a.Duration, &meta)
	if err != nil {
		return nil, err
	}
	a.Timestamp = time.UnixMilli(ts)
	a.AppName = app.String
	a.WindowTitle = title.String
	a.FilePath = path.String
	a.URL = url.String
	a.Metadata = meta.String
	return &a, nil
}

func scanActivities(rows *sql.Rows) ([]Activity, error) {
	var activities []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}
