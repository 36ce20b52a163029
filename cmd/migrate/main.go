package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/lpkmns/nihongo-exam/internal/config"
)

func main() {
	dir := flag.String("path", "migrations", "directory holding the *.up.sql / *.down.sql files")
	dbURL := flag.String("database", "", "database URL (defaults to DATABASE_URL)")
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	url := *dbURL
	if url == "" {
		url = config.Load().DatabaseURL
	}
	if url == "" {
		log.Fatal("no database URL: set DATABASE_URL or pass -database")
	}

	m, err := migrate.New("file://"+*dir, url)
	if err != nil {
		log.Fatalf("open migrations: %v", err)
	}
	defer m.Close()

	if err := run(m, args); err != nil {
		log.Fatal(err)
	}
	printVersion(m)
}

func run(m *migrate.Migrate, args []string) error {
	switch args[0] {
	case "up":
		return ignoreNoChange(m.Up())
	case "down":
		// A bare down would drop every table.
		if len(args) < 2 || args[1] != "all" {
			return errors.New(`down wipes the schema; use "down all" or "steps -N"`)
		}
		return ignoreNoChange(m.Down())
	case "steps":
		n, err := intArg(args)
		if err != nil {
			return err
		}
		return ignoreNoChange(m.Steps(n))
	case "force":
		v, err := intArg(args)
		if err != nil {
			return err
		}
		return m.Force(v)
	case "version":
		return nil
	default:
		usage()
		return fmt.Errorf("unknown command %q", args[0])
	}
}

func intArg(args []string) (int, error) {
	if len(args) < 2 {
		return 0, fmt.Errorf("%s needs a number", args[0])
	}
	n, err := strconv.Atoi(args[1])
	if err != nil {
		return 0, fmt.Errorf("%s: %w", args[0], err)
	}
	return n, nil
}

func ignoreNoChange(err error) error {
	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("No change")
		return nil
	}
	return err
}

func printVersion(m *migrate.Migrate) {
	version, dirty, err := m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		fmt.Println("Schema version: none")
	case err != nil:
		log.Fatalf("read version: %v", err)
	default:
		fmt.Printf("Schema version: %d (dirty: %t)\n", version, dirty)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "Usage: migrate [flags] <command>")
	fmt.Fprintln(os.Stderr, "Commands: up | down all | steps <n> | force <version> | version")
	flag.PrintDefaults()
}
