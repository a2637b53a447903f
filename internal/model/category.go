package model

// Category is a user-curated spending bucket. Only categories with a parent
// and the Categorizable flag participate in automatic classification.
type Category struct {
	Name          string
	ID            int64
	OwnerID       int64
	ParentID      *int64
	Categorizable bool
}

// MatchMode selects how a category mapping keyword is compared against a
// transaction's place string.
type MatchMode string

const (
	// MatchExact requires case-insensitive equality.
	MatchExact MatchMode = "exact"
	// MatchContains requires case-insensitive substring containment.
	MatchContains MatchMode = "contains"
)

// CategoryMapping is a user-defined rule resolving a place string to a
// category. Rules are evaluated in (Priority, ID) order; the first hit wins.
type CategoryMapping struct {
	Keyword    string
	Mode       MatchMode
	ID         int64
	OwnerID    int64
	CategoryID int64
	Priority   int
}
