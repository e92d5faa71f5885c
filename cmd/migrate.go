/*
Copyright 2024 Reviewloop Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package main

import (
	"fmt"
	"log"

	migrate "github.com/rubenv/sql-migrate"
	"github.com/spf13/cobra"

	"github.com/reviewloop/reviewloop"
	"github.com/reviewloop/reviewloop/config"
	"github.com/reviewloop/reviewloop/database"
)

const schemaName = "reviewloop"

// runMigrations applies or rolls back the embedded migrations. The migration table lives in
// the reviewloop schema, which has to exist before sql-migrate can create it.
func runMigrations(direction migrate.MigrationDirection) (int, error) {
	cnf, err := config.Fetch()
	if err != nil {
		return 0, err
	}
	if cnf.UsesMemoryStore() {
		return 0, fmt.Errorf("the in-memory store has no migrations")
	}

	db, err := database.ConnectDB(cnf.DataSource.Dns)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	if _, err := db.Exec("CREATE SCHEMA IF NOT EXISTS " + schemaName); err != nil {
		return 0, err
	}

	migrations := migrate.EmbedFileSystemMigrationSource{
		FileSystem: reviewloop.SQLFiles,
		Root:       "sql",
	}
	migrate.SetSchema(schemaName)
	return migrate.Exec(db, "postgres", migrations, direction)
}

func migrateCommands(_ *engineInstance) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "run reviewloop database migrations",
	}
	cmd.AddCommand(migrateUpCommands())
	cmd.AddCommand(migrateDownCommands())
	return cmd
}

func migrateUpCommands() *cobra.Command {
	return &cobra.Command{
		Use: "up",
		Run: func(cmd *cobra.Command, args []string) {
			n, err := runMigrations(migrate.Up)
			if err != nil {
				log.Printf("Error migrating up: %v", err)
				return
			}
			fmt.Printf("Applied %d migrations!\n", n)
		},
	}
}

func migrateDownCommands() *cobra.Command {
	return &cobra.Command{
		Use: "down",
		Run: func(cmd *cobra.Command, args []string) {
			n, err := runMigrations(migrate.Down)
			if err != nil {
				log.Printf("Error migrating down: %v", err)
				return
			}
			fmt.Printf("Rolled back %d migrations!\n", n)
		},
	}
}
