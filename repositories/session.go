//go:generate go run go.uber.org/mock/mockgen -source=session.go -destination=../mocks/mock_session_repository.go -package=mocks
package repositories

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"google.golang.org/protobuf/encoding/protowire"

	"chat-relay/domain"
)

const auditPrefix = "audit:"

// Audit record fields on disk.
const (
	fieldKind    = 1
	fieldSession = 2
	fieldAt      = 3
	fieldDetail  = 4
)

type ISessionRepository interface {
	Record(rec AuditRecord) error
	List(limit int) ([]AuditRecord, error)
	Tail(limit int) ([]AuditRecord, error)
}

// AuditRecord is one row of the relay's audit trail.
type AuditRecord struct {
	Kind    string
	Session domain.ClientID
	At      time.Time
	Detail  string
}

type SessionRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewSessionRepository(db *badger.DB, log *slog.Logger) SessionRepository {
	return SessionRepository{db: db, log: log}
}

// Record persists one audit record in BadgerDB.
// The key is formatted as "audit:{timestamp_padded}:{session}" to:
//  1. Ensure chronological sorting using 19-digit zero padding (lexicographical order).
//  2. Prevent data loss by using the session id as a collision disconnector if
//     two records arrive at the same nanosecond.
func (r SessionRepository) Record(rec AuditRecord) error {
	key := fmt.Sprintf("%s%019d:%s", auditPrefix, rec.At.UnixNano(), rec.Session)
	value := appendRecord(nil, rec)
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

// List returns up to limit records, oldest first. A limit of zero or less
// means everything.
func (r SessionRepository) List(limit int) ([]AuditRecord, error) {
	var raw [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(auditPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(raw) == limit {
				r.log.Debug(fmt.Sprintf("Maximum of %d records reached", limit))
				break
			}
			if err := it.Item().Value(func(v []byte) error {
				raw = append(raw, append([]byte(nil), v...))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parseAll(raw)
}

// Tail returns up to limit records, newest first. Thanks to the padded
// timestamp in the key the reverse scan needs no sort.
func (r SessionRepository) Tail(limit int) ([]AuditRecord, error) {
	var raw [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		prefix := []byte(auditPrefix)
		// Seek past the newest possible key, then walk backwards.
		seekKey := append(append([]byte(nil), prefix...), []byte("9999999999999999999")...)
		for it.Seek(seekKey); it.ValidForPrefix(prefix); it.Next() {
			if limit > 0 && len(raw) == limit {
				break
			}
			if err := it.Item().Value(func(v []byte) error {
				raw = append(raw, append([]byte(nil), v...))
				return nil
			}); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return parseAll(raw)
}

func parseAll(raw [][]byte) ([]AuditRecord, error) {
	records := make([]AuditRecord, 0, len(raw))
	for _, b := range raw {
		rec, err := ParseRecord(b)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, nil
}

func appendRecord(b []byte, rec AuditRecord) []byte {
	b = protowire.AppendTag(b, fieldKind, protowire.BytesType)
	b = protowire.AppendString(b, rec.Kind)

	id := uuid.UUID(rec.Session)
	b = protowire.AppendTag(b, fieldSession, protowire.BytesType)
	b = protowire.AppendBytes(b, id[:])

	b = protowire.AppendTag(b, fieldAt, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, uint64(rec.At.UnixNano()))

	if rec.Detail != "" {
		b = protowire.AppendTag(b, fieldDetail, protowire.BytesType)
		b = protowire.AppendString(b, rec.Detail)
	}
	return b
}

// ParseRecord decodes one stored audit record. Unknown fields are skipped so
// older binaries can read databases written by newer ones.
func ParseRecord(b []byte) (AuditRecord, error) {
	var rec AuditRecord
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return AuditRecord{}, fmt.Errorf("audit record tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch {
		case num == fieldKind && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return AuditRecord{}, fmt.Errorf("audit record kind: %w", protowire.ParseError(n))
			}
			rec.Kind = v
			b = b[n:]
		case num == fieldSession && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return AuditRecord{}, fmt.Errorf("audit record session: %w", protowire.ParseError(n))
			}
			id, err := uuid.FromBytes(v)
			if err != nil {
				return AuditRecord{}, fmt.Errorf("audit record session: %w", err)
			}
			rec.Session = domain.ClientID(id)
			b = b[n:]
		case num == fieldAt && typ == protowire.Fixed64Type:
			v, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return AuditRecord{}, fmt.Errorf("audit record time: %w", protowire.ParseError(n))
			}
			rec.At = time.Unix(0, int64(v)).UTC()
			b = b[n:]
		case num == fieldDetail && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return AuditRecord{}, fmt.Errorf("audit record detail: %w", protowire.ParseError(n))
			}
			rec.Detail = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return AuditRecord{}, fmt.Errorf("audit record field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return rec, nil
}
