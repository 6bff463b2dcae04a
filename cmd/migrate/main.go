// Command migrate applies the embedded coursehub schema.
//
// Usage:
//
//	migrate [-database URL] up|down|version
//
// The database URL defaults to COURSEHUB_DATABASE_URL (a .env file in the working directory is honored).
package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"

	"coursehub/cmd/internal/db/migrate"

	"github.com/joho/godotenv"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Fatalf("dotenv: %v", err)
	}

	dsn := flag.String("database", os.Getenv("COURSEHUB_DATABASE_URL"), "Postgres URL")
	flag.Usage = func() {
		fmt.Fprintf(flag.CommandLine.Output(), "usage: %s [-database URL] up|down|version\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	switch cmd := flag.Arg(0); cmd {
	case "up", "down":
		if err := migrate.Run(*dsn, cmd); err != nil {
			log.Fatal(err)
		}
		fmt.Printf("migrate %s: ok\n", cmd)
	case "version":
		v, dirty, err := migrate.Version(*dsn)
		if err != nil {
			log.Fatal(err)
		}
		fmt.Printf("version=%d dirty=%t\n", v, dirty)
	default:
		flag.Usage()
		os.Exit(2)
	}
}
