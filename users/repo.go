package users

type UserRepo interface {
	Upsert(user *User) error
	Delete(email string) error
	GetByEmail(email string) (*User, error)
	GetByID(ID string) (*User, error)
	List(offset, limit int) ([]*User, error)
	SetBlocked(email string, blocked bool) error
	SetVerified(email string, verified bool) error
}

// MembershipRepo manages the (user, tenant) membership rows independently of
// the denormalized copies held on User.
type MembershipRepo interface {
	Upsert(membership *Membership) error
	Delete(userID, tenantID string) error
	Get(userID, tenantID string) (*Membership, error)
	ListByUser(userID string) ([]*Membership, error)
	ListByTenant(tenantID string) ([]*Membership, error)
	TouchLastAccessed(userID, tenantID string) error
}
