package store

import "embed"

// Migrations embeds the goose migration set for the snapshot store's
// schema: the project/projectVersion/operation/graphSnapshot tables,
// plus the membership tables internal/authz reads from. cmd/collabd's
// migrate command drives these through pressly/goose.
//
//go:embed migrations/*.sql
var Migrations embed.FS
