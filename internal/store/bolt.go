package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.etcd.io/bbolt"

	"emis/internal/identity"
)

var (
	bucketAdmins        = []byte("admins")
	bucketDistrictHeads = []byte("district_heads")
	bucketPrincipals    = []byte("principals")
	bucketTeachers      = []byte("teachers")
	bucketParents       = []byte("parents")

	// login-key indexes: key -> record id
	indexAdminUsername = []byte("idx_admin_username")
	indexDistrictHead  = []byte("idx_district_head_login")
	indexPrincipal     = []byte("idx_principal_login")
	indexTeacher       = []byte("idx_teacher_login")
	indexParent        = []byte("idx_parent_login")
)

var boltBuckets = [][]byte{
	bucketAdmins, bucketDistrictHeads, bucketPrincipals, bucketTeachers, bucketParents,
	indexAdminUsername, indexDistrictHead, indexPrincipal, indexTeacher, indexParent,
}

// Bolt persists credential records in a single bbolt file. Records are JSON
// documents keyed by id; index buckets enforce login-key uniqueness.
type Bolt struct {
	db *bbolt.DB
}

var _ identity.Backend = (*Bolt)(nil)

// OpenBolt opens (or creates) the database at path.
func OpenBolt(path string) (*Bolt, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("store: open bolt %s: %w", path, err)
	}
	err = db.Update(func(tx *bbolt.Tx) error {
		for _, name := range boltBuckets {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}
	return &Bolt{db: db}, nil
}

// Close releases the file lock.
func (b *Bolt) Close() error { return b.db.Close() }

// Healthy reports whether the file is still open.
func (b *Bolt) Healthy(context.Context) bool {
	return b.db.View(func(*bbolt.Tx) error { return nil }) == nil
}

func compositeKey(parts ...string) []byte {
	var k []byte
	for i, p := range parts {
		if i > 0 {
			k = append(k, 0)
		}
		k = append(k, p...)
	}
	return k
}

// insert writes rec under id and claims key in index, failing with
// ErrDuplicate if the key is taken.
func insert(tx *bbolt.Tx, bucket, index, key []byte, id string, rec any) error {
	idx := tx.Bucket(index)
	if idx.Get(key) != nil {
		return identity.ErrDuplicate
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := tx.Bucket(bucket).Put([]byte(id), raw); err != nil {
		return err
	}
	return idx.Put(key, []byte(id))
}

func load[T any](tx *bbolt.Tx, bucket []byte, id []byte) (T, error) {
	var rec T
	raw := tx.Bucket(bucket).Get(id)
	if raw == nil {
		return rec, identity.ErrNotFound
	}
	if err := json.Unmarshal(raw, &rec); err != nil {
		return rec, fmt.Errorf("store: decode %s/%s: %w", bucket, id, err)
	}
	return rec, nil
}

func lookup[T any](tx *bbolt.Tx, bucket, index, key []byte) (T, error) {
	id := tx.Bucket(index).Get(key)
	if id == nil {
		var zero T
		return zero, identity.ErrNotFound
	}
	return load[T](tx, bucket, id)
}

func create[T any](b *Bolt, bucket, index, key []byte, id string, rec T) (T, error) {
	err := b.db.Update(func(tx *bbolt.Tx) error {
		return insert(tx, bucket, index, key, id, rec)
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return rec, nil
}

func byKey[T any](b *Bolt, bucket, index, key []byte) (T, error) {
	var rec T
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = lookup[T](tx, bucket, index, key)
		return err
	})
	return rec, err
}

func byID[T any](b *Bolt, bucket []byte, id string) (T, error) {
	var rec T
	err := b.db.View(func(tx *bbolt.Tx) error {
		var err error
		rec, err = load[T](tx, bucket, []byte(id))
		return err
	})
	return rec, err
}

func (b *Bolt) CreateAdmin(_ context.Context, a identity.Admin) (identity.Admin, error) {
	return create(b, bucketAdmins, indexAdminUsername, []byte(a.Username), a.ID, a)
}

func (b *Bolt) AdminByUsername(_ context.Context, username string) (identity.Admin, error) {
	return byKey[identity.Admin](b, bucketAdmins, indexAdminUsername, []byte(username))
}

// AdminByEmail scans admins and returns the earliest registered match.
func (b *Bolt) AdminByEmail(_ context.Context, email string) (identity.Admin, error) {
	var (
		found identity.Admin
		ok    bool
	)
	err := b.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketAdmins).ForEach(func(_, raw []byte) error {
			var a identity.Admin
			if err := json.Unmarshal(raw, &a); err != nil {
				return err
			}
			if a.Email != email {
				return nil
			}
			if !ok || a.CreatedAt.Before(found.CreatedAt) {
				found, ok = a, true
			}
			return nil
		})
	})
	if err != nil {
		return identity.Admin{}, err
	}
	if !ok {
		return identity.Admin{}, identity.ErrNotFound
	}
	return found, nil
}

func (b *Bolt) AdminByID(_ context.Context, id string) (identity.Admin, error) {
	return byID[identity.Admin](b, bucketAdmins, id)
}

func (b *Bolt) SetRecoveryCode(_ context.Context, id, code string, expiresAt time.Time) error {
	return b.updateAdmin(id, func(a *identity.Admin) error {
		a.RecoveryCode = code
		a.RecoveryCodeExpiry = expiresAt
		return nil
	})
}

func (b *Bolt) RedeemRecoveryCode(_ context.Context, id, code, passwordHash string) error {
	return b.updateAdmin(id, func(a *identity.Admin) error {
		if code == "" || a.RecoveryCode != code {
			return identity.ErrCodeMismatch
		}
		a.PasswordHash = passwordHash
		a.RecoveryCode = ""
		a.RecoveryCodeExpiry = time.Time{}
		return nil
	})
}

// updateAdmin runs fn inside one write transaction, which bbolt serialises.
func (b *Bolt) updateAdmin(id string, fn func(*identity.Admin) error) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		a, err := load[identity.Admin](tx, bucketAdmins, []byte(id))
		if err != nil {
			return err
		}
		if err := fn(&a); err != nil {
			return err
		}
		raw, err := json.Marshal(a)
		if err != nil {
			return err
		}
		return tx.Bucket(bucketAdmins).Put([]byte(id), raw)
	})
}

func (b *Bolt) CreateDistrictHead(_ context.Context, d identity.DistrictHead) (identity.DistrictHead, error) {
	return create(b, bucketDistrictHeads, indexDistrictHead, compositeKey(d.DistrictID, d.Email), d.ID, d)
}

func (b *Bolt) DistrictHeadByLogin(_ context.Context, districtID, email string) (identity.DistrictHead, error) {
	return byKey[identity.DistrictHead](b, bucketDistrictHeads, indexDistrictHead, compositeKey(districtID, email))
}

func (b *Bolt) DistrictHeadByID(_ context.Context, id string) (identity.DistrictHead, error) {
	return byID[identity.DistrictHead](b, bucketDistrictHeads, id)
}

func (b *Bolt) CreatePrincipal(_ context.Context, p identity.Principal) (identity.Principal, error) {
	return create(b, bucketPrincipals, indexPrincipal, compositeKey(p.SchoolID, p.Email), p.ID, p)
}

func (b *Bolt) PrincipalByLogin(_ context.Context, schoolID, email string) (identity.Principal, error) {
	return byKey[identity.Principal](b, bucketPrincipals, indexPrincipal, compositeKey(schoolID, email))
}

func (b *Bolt) PrincipalByID(_ context.Context, id string) (identity.Principal, error) {
	return byID[identity.Principal](b, bucketPrincipals, id)
}

func (b *Bolt) CreateTeacher(_ context.Context, t identity.Teacher) (identity.Teacher, error) {
	return create(b, bucketTeachers, indexTeacher, compositeKey(t.SchoolID, t.Email), t.ID, t)
}

func (b *Bolt) TeacherByLogin(_ context.Context, schoolID, email string) (identity.Teacher, error) {
	return byKey[identity.Teacher](b, bucketTeachers, indexTeacher, compositeKey(schoolID, email))
}

func (b *Bolt) TeacherByID(_ context.Context, id string) (identity.Teacher, error) {
	return byID[identity.Teacher](b, bucketTeachers, id)
}

func (b *Bolt) CreateParent(_ context.Context, p identity.Parent) (identity.Parent, error) {
	return create(b, bucketParents, indexParent, compositeKey(p.Email, p.DateOfBirth), p.ID, p)
}

func (b *Bolt) ParentByLogin(_ context.Context, email, dateOfBirth string) (identity.Parent, error) {
	return byKey[identity.Parent](b, bucketParents, indexParent, compositeKey(email, dateOfBirth))
}

func (b *Bolt) ParentByID(_ context.Context, id string) (identity.Parent, error) {
	return byID[identity.Parent](b, bucketParents, id)
}
