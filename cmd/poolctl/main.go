package main

import (
	"encoding/json"
	"flag"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/gookit/color"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"

	"paluwagan/domain/pool"
)

// poolctl inspects the pool database from the command line while the
// daemon is running. Read-only; it never takes the write lock.

type Config struct {
	BadgerFilepath string `env:"BADGER_FILEPATH,required=true"`
}

func main() {
	table := flag.String("table", "all", "table to print: slots|members|allocations|contributions|all")
	flag.Parse()

	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	// BypassLockGuard allows opening while the daemon holds the lock.
	opts := badger.DefaultOptions(config.BadgerFilepath).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	switch *table {
	case "slots":
		printSlots(db)
	case "members":
		printMembers(db)
	case "allocations":
		printAllocations(db)
	case "contributions":
		printContributions(db)
	case "all":
		printSlots(db)
		printMembers(db)
		printAllocations(db)
		printContributions(db)
	default:
		log.Fatalf("Unknown table %q", *table)
	}
}

func printSlots(db *badger.DB) {
	color.Cyan.Println("\nSLOTS")
	t := tablewriter.NewWriter(os.Stdout)
	t.SetHeader([]string{"ID", "Name", "Number", "Amount", "Active", "Occupied"})
	forEach(db, "slot:", func(val []byte) {
		var s pool.Slot
		if json.Unmarshal(val, &s) != nil {
			return
		}
		t.Append([]string{
			short(s.ID.String()), s.Name, strconv.Itoa(s.Number),
			s.Amount.StringFixed(2), yesNo(s.IsActive), yesNo(s.IsOccupied),
		})
	})
	t.Render()
}

func printMembers(db *badger.DB) {
	color.Cyan.Println("\nMEMBERS")
	t := tablewriter.NewWriter(os.Stdout)
	t.SetHeader([]string{"ID", "Codename", "Roles", "Active"})
	forEach(db, "member:", func(val []byte) {
		var m pool.Member
		if json.Unmarshal(val, &m) != nil {
			return
		}
		t.Append([]string{
			short(m.ID.String()), m.Codename, strings.Join(m.Roles, ","), yesNo(m.IsActive),
		})
	})
	t.Render()
}

func printAllocations(db *badger.DB) {
	color.Cyan.Println("\nALLOCATIONS")
	t := tablewriter.NewWriter(os.Stdout)
	t.SetHeader([]string{"Member", "Slot", "Number", "Amount", "Committed"})
	forEach(db, "alloc:", func(val []byte) {
		var a pool.Allocation
		if json.Unmarshal(val, &a) != nil {
			return
		}
		t.Append([]string{
			short(a.MemberID.String()), a.SlotName, strconv.Itoa(a.Number),
			a.Amount.StringFixed(2), a.CommittedAt.Format("2006-01-02 15:04"),
		})
	})
	t.Render()
}

func printContributions(db *badger.DB) {
	color.Cyan.Println("\nCONTRIBUTIONS")
	t := tablewriter.NewWriter(os.Stdout)
	t.SetHeader([]string{"Slot", "Member", "Status", "At"})
	forEach(db, "contrib:", func(val []byte) {
		var c pool.Contribution
		if json.Unmarshal(val, &c) != nil {
			return
		}
		t.Append([]string{
			short(c.SlotID.String()), short(c.MemberID.String()),
			string(c.Status), c.At.Format("2006-01-02 15:04"),
		})
	})
	t.Render()
}

func forEach(db *badger.DB, prefix string, fn func(val []byte)) {
	_ = db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
			_ = it.Item().Value(func(val []byte) error {
				fn(val)
				return nil
			})
		}
		return nil
	})
}

func short(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func yesNo(b bool) string {
	if b {
		return color.Green.Sprint("yes")
	}
	return color.Gray.Sprint("no")
}
