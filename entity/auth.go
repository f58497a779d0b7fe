package entity

// Operation identifies a repository operation for authorization purposes.
type Operation string

const (
	OpRead     Operation = "read"
	OpQuery    Operation = "query"
	OpUpdate   Operation = "update"
	OpDelete   Operation = "delete"
	OpTransfer Operation = "transfer"
)

// Decision is the outcome of an authorization check.
type Decision int

const (
	Allow Decision = iota
	Forbidden
)

// Authorize is the single place mutation authorization is decided.
//
// Reads and queries are always allowed: the store is read-public, ownership
// gates mutation, not visibility. Mutations are allowed iff the caller is
// the entity's current owner. There is no delegation, role, or multi-owner
// model.
func Authorize(op Operation, caller, owner Owner) Decision {
	switch op {
	case OpRead, OpQuery:
		return Allow
	case OpUpdate, OpDelete, OpTransfer:
		if caller == owner {
			return Allow
		}
		return Forbidden
	default:
		return Forbidden
	}
}
