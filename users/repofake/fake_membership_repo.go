package fakeuserrepo

import (
	"sync"
	"time"

	"github.com/jrsteele09/go-tenant-guard/internal/errors"
	"github.com/jrsteele09/go-tenant-guard/users"
)

var _ users.MembershipRepo = (*FakeMembershipRepo)(nil)

type membershipKey struct {
	userID   string
	tenantID string
}

type FakeMembershipRepo struct {
	memberships map[membershipKey]*users.Membership
	lock        sync.RWMutex
}

func NewFakeMembershipRepo() *FakeMembershipRepo {
	return &FakeMembershipRepo{
		memberships: make(map[membershipKey]*users.Membership),
	}
}

func (mr *FakeMembershipRepo) Upsert(m *users.Membership) error {
	mr.lock.Lock()
	defer mr.lock.Unlock()
	mr.memberships[membershipKey{m.UserID, m.TenantID}] = m
	return nil
}

func (mr *FakeMembershipRepo) Delete(userID, tenantID string) error {
	mr.lock.Lock()
	defer mr.lock.Unlock()
	delete(mr.memberships, membershipKey{userID, tenantID})
	return nil
}

func (mr *FakeMembershipRepo) Get(userID, tenantID string) (*users.Membership, error) {
	mr.lock.RLock()
	defer mr.lock.RUnlock()
	m, ok := mr.memberships[membershipKey{userID, tenantID}]
	if !ok {
		return nil, errors.NotFound(errors.ReasonMembership, "no membership for user %q in tenant %q", userID, tenantID)
	}
	return m, nil
}

func (mr *FakeMembershipRepo) ListByUser(userID string) ([]*users.Membership, error) {
	mr.lock.RLock()
	defer mr.lock.RUnlock()
	var out []*users.Membership
	for k, m := range mr.memberships {
		if k.userID == userID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (mr *FakeMembershipRepo) ListByTenant(tenantID string) ([]*users.Membership, error) {
	mr.lock.RLock()
	defer mr.lock.RUnlock()
	var out []*users.Membership
	for k, m := range mr.memberships {
		if k.tenantID == tenantID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (mr *FakeMembershipRepo) TouchLastAccessed(userID, tenantID string) error {
	mr.lock.Lock()
	defer mr.lock.Unlock()
	m, ok := mr.memberships[membershipKey{userID, tenantID}]
	if !ok {
		return errors.NotFound(errors.ReasonMembership, "no membership for user %q in tenant %q", userID, tenantID)
	}
	m.LastAccessedAt = time.Now()
	return nil
}
