// Package db provides the embedded database schema and catalog seed data.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedArticles is the default catalog, a JSON array of articles.
//
//go:embed seed/articles.json
var SeedArticles []byte
