package store

import (
	"context"
	"sync"
	"time"

	"emis/internal/identity"
)

type loginKey struct {
	scope string
	email string
}

// Memory keeps every credential record in process. It is used by tests and
// by STORE_BACKEND=memory for local runs.
type Memory struct {
	mu sync.RWMutex

	admins      map[string]identity.Admin
	adminOrder  []string
	adminByName map[string]string

	districtHeads map[string]identity.DistrictHead
	districtByKey map[loginKey]string

	principals     map[string]identity.Principal
	principalByKey map[loginKey]string

	teachers     map[string]identity.Teacher
	teacherByKey map[loginKey]string

	parents     map[string]identity.Parent
	parentByKey map[loginKey]string
}

var _ identity.Backend = (*Memory)(nil)

// NewMemory returns an empty store.
func NewMemory() *Memory {
	return &Memory{
		admins:         make(map[string]identity.Admin),
		adminByName:    make(map[string]string),
		districtHeads:  make(map[string]identity.DistrictHead),
		districtByKey:  make(map[loginKey]string),
		principals:     make(map[string]identity.Principal),
		principalByKey: make(map[loginKey]string),
		teachers:       make(map[string]identity.Teacher),
		teacherByKey:   make(map[loginKey]string),
		parents:        make(map[string]identity.Parent),
		parentByKey:    make(map[loginKey]string),
	}
}

func (m *Memory) CreateAdmin(_ context.Context, a identity.Admin) (identity.Admin, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.adminByName[a.Username]; ok {
		return identity.Admin{}, identity.ErrDuplicate
	}
	m.admins[a.ID] = a
	m.adminOrder = append(m.adminOrder, a.ID)
	m.adminByName[a.Username] = a.ID
	return a, nil
}

func (m *Memory) AdminByUsername(_ context.Context, username string) (identity.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.adminByName[username]
	if !ok {
		return identity.Admin{}, identity.ErrNotFound
	}
	return m.admins[id], nil
}

// AdminByEmail returns the earliest admin registered with email.
func (m *Memory) AdminByEmail(_ context.Context, email string) (identity.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, id := range m.adminOrder {
		if a := m.admins[id]; a.Email == email {
			return a, nil
		}
	}
	return identity.Admin{}, identity.ErrNotFound
}

func (m *Memory) AdminByID(_ context.Context, id string) (identity.Admin, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.admins[id]
	if !ok {
		return identity.Admin{}, identity.ErrNotFound
	}
	return a, nil
}

func (m *Memory) SetRecoveryCode(_ context.Context, id, code string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[id]
	if !ok {
		return identity.ErrNotFound
	}
	a.RecoveryCode = code
	a.RecoveryCodeExpiry = expiresAt
	m.admins[id] = a
	return nil
}

func (m *Memory) RedeemRecoveryCode(_ context.Context, id, code, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.admins[id]
	if !ok {
		return identity.ErrNotFound
	}
	if code == "" || a.RecoveryCode != code {
		return identity.ErrCodeMismatch
	}
	a.PasswordHash = passwordHash
	a.RecoveryCode = ""
	a.RecoveryCodeExpiry = time.Time{}
	m.admins[id] = a
	return nil
}

func (m *Memory) CreateDistrictHead(_ context.Context, d identity.DistrictHead) (identity.DistrictHead, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := loginKey{d.DistrictID, d.Email}
	if _, ok := m.districtByKey[k]; ok {
		return identity.DistrictHead{}, identity.ErrDuplicate
	}
	m.districtHeads[d.ID] = d
	m.districtByKey[k] = d.ID
	return d, nil
}

func (m *Memory) DistrictHeadByLogin(_ context.Context, districtID, email string) (identity.DistrictHead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.districtByKey[loginKey{districtID, email}]
	if !ok {
		return identity.DistrictHead{}, identity.ErrNotFound
	}
	return m.districtHeads[id], nil
}

func (m *Memory) DistrictHeadByID(_ context.Context, id string) (identity.DistrictHead, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, ok := m.districtHeads[id]
	if !ok {
		return identity.DistrictHead{}, identity.ErrNotFound
	}
	return d, nil
}

func (m *Memory) CreatePrincipal(_ context.Context, p identity.Principal) (identity.Principal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := loginKey{p.SchoolID, p.Email}
	if _, ok := m.principalByKey[k]; ok {
		return identity.Principal{}, identity.ErrDuplicate
	}
	m.principals[p.ID] = p
	m.principalByKey[k] = p.ID
	return p, nil
}

func (m *Memory) PrincipalByLogin(_ context.Context, schoolID, email string) (identity.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.principalByKey[loginKey{schoolID, email}]
	if !ok {
		return identity.Principal{}, identity.ErrNotFound
	}
	return m.principals[id], nil
}

func (m *Memory) PrincipalByID(_ context.Context, id string) (identity.Principal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.principals[id]
	if !ok {
		return identity.Principal{}, identity.ErrNotFound
	}
	return p, nil
}

func (m *Memory) CreateTeacher(_ context.Context, t identity.Teacher) (identity.Teacher, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := loginKey{t.SchoolID, t.Email}
	if _, ok := m.teacherByKey[k]; ok {
		return identity.Teacher{}, identity.ErrDuplicate
	}
	m.teachers[t.ID] = t
	m.teacherByKey[k] = t.ID
	return t, nil
}

func (m *Memory) TeacherByLogin(_ context.Context, schoolID, email string) (identity.Teacher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.teacherByKey[loginKey{schoolID, email}]
	if !ok {
		return identity.Teacher{}, identity.ErrNotFound
	}
	return m.teachers[id], nil
}

func (m *Memory) TeacherByID(_ context.Context, id string) (identity.Teacher, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	t, ok := m.teachers[id]
	if !ok {
		return identity.Teacher{}, identity.ErrNotFound
	}
	return t, nil
}

// CreateParent treats (email, date of birth) as the unique login key.
func (m *Memory) CreateParent(_ context.Context, p identity.Parent) (identity.Parent, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := loginKey{p.DateOfBirth, p.Email}
	if _, ok := m.parentByKey[k]; ok {
		return identity.Parent{}, identity.ErrDuplicate
	}
	m.parents[p.ID] = p
	m.parentByKey[k] = p.ID
	return p, nil
}

func (m *Memory) ParentByLogin(_ context.Context, email, dateOfBirth string) (identity.Parent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.parentByKey[loginKey{dateOfBirth, email}]
	if !ok {
		return identity.Parent{}, identity.ErrNotFound
	}
	return m.parents[id], nil
}

func (m *Memory) ParentByID(_ context.Context, id string) (identity.Parent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.parents[id]
	if !ok {
		return identity.Parent{}, identity.ErrNotFound
	}
	return p, nil
}

// Healthy always reports true.
func (m *Memory) Healthy(context.Context) bool { return true }

// Close is a no-op.
func (m *Memory) Close() error { return nil }
