package database

import (
	"database/sql"
	"fmt"
	"log/slog"

	"golang.org/x/crypto/bcrypt"
)

// Seed populates the database with initial development data.
// It creates a default operator if none exists, plus a handful of posts,
// menu items, widgets and redirects that exercise every content source.
// The operator will be prompted to set up 2FA on first login.
func Seed(db *sql.DB) error {
	// Check if any operators exist already.
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM operators").Scan(&count); err != nil {
		return fmt.Errorf("seed check operators: %w", err)
	}

	if count > 0 {
		slog.Info("database already seeded, skipping")
		return nil
	}

	// Hash the default operator password.
	hash, err := bcrypt.GenerateFromPassword([]byte("admin"), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("seed bcrypt: %w", err)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("seed begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(`
		INSERT INTO operators (email, password_hash, display_name, totp_enabled)
		VALUES ($1, $2, $3, $4)
	`, "admin@redirclean.local", string(hash), "Admin", false); err != nil {
		return fmt.Errorf("seed insert operator: %w", err)
	}

	if err := seedContent(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("seed commit: %w", err)
	}

	slog.Info("database seeded with default operator",
		"email", "admin@redirclean.local",
		"password", "admin",
	)
	return nil
}

// seedContent inserts sample content that points at redirected URLs.
func seedContent(tx *sql.Tx) error {
	var postID string
	err := tx.QueryRow(`
		INSERT INTO content (type, title, slug, body, excerpt, status)
		VALUES ('post', 'Welcome', 'welcome', $1, $2, 'published')
		RETURNING id
	`,
		`<p>Read <a href="/old-about">about us</a> or visit <a href="http://example.com/old-blog">the blog</a>.</p>`,
		`See http://example.com/old-blog for more.`,
	).Scan(&postID)
	if err != nil {
		return fmt.Errorf("seed insert post: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO content (type, title, slug, body, status)
		VALUES ('page', 'About', 'about', $1, 'published')
	`, `<p>Our story.</p><img src="/old-images/team.jpg">`); err != nil {
		return fmt.Errorf("seed insert page: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO content_meta (content_id, meta_key, meta_value)
		VALUES ($1, 'cta_link', '/old-about'), ($1, 'hero_html', $2)
	`, postID, `<a href="/old-contact">Contact</a>`); err != nil {
		return fmt.Errorf("seed insert meta: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO menu_items (menu, title, url, position) VALUES
		('primary', 'About', '/old-about', 1),
		('primary', 'Blog', 'http://example.com/old-blog', 2),
		('primary', 'Contact', '/old-contact', 3)
	`); err != nil {
		return fmt.Errorf("seed insert menu items: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO widgets (area, widget_type, settings) VALUES
		('sidebar', 'text', $1::jsonb),
		('footer', 'link', $2::jsonb)
	`,
		`{"title": "Find us", "text": "<a href=\"/old-contact\">Get in touch</a>", "visible": true}`,
		`{"label": "Blog", "url": "http://example.com/old-blog", "order": 2}`,
	); err != nil {
		return fmt.Errorf("seed insert widgets: %w", err)
	}

	if _, err := tx.Exec(`
		INSERT INTO redirects (source_url, target_url, status_code, position) VALUES
		('/old-about', '/about', 301, 1),
		('/old-contact', '/contact', 301, 2),
		('/old-images/team.jpg', '/images/team.jpg', 301, 3),
		('http://example.com/old-blog', 'https://example.com/blog', 308, 4)
	`); err != nil {
		return fmt.Errorf("seed insert redirects: %w", err)
	}
	return nil
}
