package output

import "tavily-register/internal/domain/entity"

// ResultStorePort is append-only persistence for completed sessions.
// Append must be atomic per record: no partial lines, no interleaving
// under concurrent sessions.
type ResultStorePort interface {
	Append(record entity.Record) error
}
