package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/Netflix/go-env"
	"github.com/dgraph-io/badger/v4"
	"github.com/joho/godotenv"
	"github.com/olekukonko/tablewriter"
	"github.com/samber/lo"

	"chat-relay/internal"
	"chat-relay/logs"
	"chat-relay/repositories"
)

// Config defines the viewer-side environment variables.
type Config struct {
	AuditDB   string `env:"AUDIT_DB,default=audit.db"`
	DebugPort int    `env:"DEBUG_PORT,default=0"`
}

func main() {
	// 1. Load config
	_ = godotenv.Load()
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		log.Fatalf("Config error: %v", err)
	}

	limit := flag.Int("limit", 0, "Maximum records to show (0 = all)")
	tail := flag.Bool("tail", false, "Newest records first")
	flag.Parse()

	// 2. Open Badger in Read-Only mode
	// Note: BypassLockGuard allows opening while the relay holds the lock
	opts := badger.DefaultOptions(config.AuditDB).
		WithReadOnly(true).
		WithBypassLockGuard(true).
		WithLoggingLevel(badger.WARNING)

	db, err := badger.Open(opts)
	if err != nil {
		log.Fatalf("Failed to open audit store: %v", err)
	}
	defer db.Close()

	// 3. Scan and render
	repository := repositories.NewSessionRepository(db, logs.GetLoggerFromString("error"))

	var records []repositories.AuditRecord
	if *tail {
		records, err = repository.Tail(*limit)
	} else {
		records, err = repository.List(*limit)
	}
	if err != nil {
		log.Fatalf("Failed to read audit records: %v", err)
	}

	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Kind", "Session", "Detail"})
	table.SetAutoWrapText(false)
	table.SetAutoFormatHeaders(true)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetCenterSeparator("")
	table.SetColumnSeparator("")
	table.SetRowSeparator("")
	table.SetHeaderLine(false)
	table.SetBorder(false)
	table.SetTablePadding("\t")

	rows := lo.Map(records, func(rec repositories.AuditRecord, _ int) []string {
		// On affiche les 8 premiers caractères de la session pour la lisibilité
		session := rec.Session.String()
		if len(session) > 8 {
			session = session[:8]
		}
		return []string{
			rec.At.Format("2006-01-02 15:04:05.000"),
			rec.Kind,
			session,
			rec.Detail,
		}
	})
	for _, row := range rows {
		table.Append(row)
	}
	table.Render()
	fmt.Printf("%d audit records\n", len(records))

	// 4. Optional debug server for live inspection
	if config.DebugPort > 0 {
		stats := func() map[string]any {
			return map[string]any{
				"Status": "Viewer Mode (Read-Only)",
				"Time":   time.Now().Format(time.RFC822),
			}
		}

		fmt.Printf("🌐 Viewer started at http://localhost:%d/inspect\n", config.DebugPort)
		internal.StartDebugServer(db, config.DebugPort, "/inspect", AuditMapper, stats)
		// Wait blocks until someone hits /resume, keeping the page alive.
		internal.Wait("audit:")
	}
}

// AuditMapper decodes protowire audit records for the inspect page.
func AuditMapper(key string, val []byte) internal.InspectRow {
	row := internal.DefaultMapper(key, val)
	rec, err := repositories.ParseRecord(val)
	if err != nil {
		return row
	}
	row.Kind = rec.Kind
	row.Detail = rec.Detail
	return row
}
