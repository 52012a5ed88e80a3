package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"bookshelf.org/internal/auth"
	"bookshelf.org/internal/initdb"
	"bookshelf.org/internal/store/pg"
)

func main() {
	log.SetFlags(0)
	_ = godotenv.Load()
	var (
		dsn  = flag.String("dsn", os.Getenv("DATABASE_URL"), "PostgreSQL DSN")
		cost = flag.Int("bcrypt-cost", 0, "bcrypt cost for seeded passwords (0 = default)")
	)
	flag.Parse()

	if *dsn == "" {
		log.Fatal("missing DSN: provide via -dsn or DATABASE_URL")
	}
	if len(flag.Args()) == 0 {
		log.Fatal("usage: initdb [schema|seed|all|ping]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	st, err := pg.Open(*dsn)
	if err != nil {
		log.Fatalf("open db: %v", err)
	}
	defer st.Close()

	seed := func() error {
		var opts []auth.HasherOption
		if *cost > 0 {
			opts = append(opts, auth.WithCost(*cost))
		}
		res, err := initdb.Seed(ctx, st, st, auth.NewHasher(opts...))
		if err != nil {
			return err
		}
		if res.Skipped {
			fmt.Println("catalog not empty, seed skipped")
			return nil
		}
		fmt.Printf("seeded %d users, %d books, %d shelf entries\n", res.Users, res.Books, res.Entries)
		return nil
	}

	switch flag.Arg(0) {
	case "schema":
		err = initdb.EnsureSchema(ctx, st.DB())
	case "seed":
		err = seed()
	case "all":
		if err = initdb.EnsureSchema(ctx, st.DB()); err == nil {
			err = seed()
		}
	case "ping":
		err = st.Ping(ctx)
	default:
		log.Fatalf("unknown command %q", flag.Arg(0))
	}
	if err != nil {
		log.Fatalf("%s: %v", flag.Arg(0), err)
	}
	log.Printf("%s completed", flag.Arg(0))
}
