package brokerauth

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Users is the user store. It layers the phone-login provisioning and admin
// listing operations on top of the generic repository.
type Users interface {
	repository.Repository[*User]

	GetByUID(ctx context.Context, uid string) (*User, error)
	FindByUIDOrPhone(ctx context.Context, uid, phoneE164 string) (*User, error)

	CreateFromToken(ctx context.Context, uid, phoneE164 string) (*User, error)
	SyncIdentity(ctx context.Context, user *User, uid, phoneE164 string) (*User, error)
	ApplyPatch(ctx context.Context, id string, patch UserPatch) (*User, error)

	List(ctx context.Context, filter UserFilter, page, pageSize int) (*UserPage, error)
	CountWhere(ctx context.Context, filter UserFilter) (int, error)
	Metrics(ctx context.Context) (*UserMetrics, error)
}

const (
	// DefaultPageSize is the page size used when the caller provides none.
	DefaultPageSize = 10
	// MaxPageSize caps the page size a caller may request.
	MaxPageSize = 100
)

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
	_ IdentityStore                = (*users)(nil)
	_ UserFinder                   = (*users)(nil)
	_ AdminStore                   = (*users)(nil)
)

// NewUsersRepository creates the bun-backed user store.
func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "uid"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) GetByUID(ctx context.Context, uid string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.uid = ?", uid).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"uid": uid})
		}
		return nil, err
	}
	return record, nil
}

func (a *users) FindByUIDOrPhone(ctx context.Context, uid, phoneE164 string) (*User, error) {
	record := &User{}
	err := a.db.NewSelect().
		Model(record).
		Where("?TableAlias.uid = ? OR ?TableAlias.phone_e164 = ?", uid, phoneE164).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"uid": uid, "phone_e164": phoneE164})
		}
		return nil, err
	}
	return record, nil
}

func (a *users) CreateFromToken(ctx context.Context, uid, phoneE164 string) (*User, error) {
	record := &User{
		UID:       uid,
		PhoneE164: phoneE164,
	}
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, a.db, record)
}

// SyncIdentity re-points an existing row at the token's uid and phone. The
// provider can reissue a uid for the same phone (re-provisioning) or correct
// a phone for the same uid; both land here.
func (a *users) SyncIdentity(ctx context.Context, user *User, uid, phoneE164 string) (*User, error) {
	_, err := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("uid = ?", uid).
		Set("phone_e164 = ?", phoneE164).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", user.ID).
		Exec(ctx)
	if err != nil {
		return nil, err
	}

	return a.GetByUID(ctx, uid)
}

func (a *users) ApplyPatch(ctx context.Context, id string, patch UserPatch) (*User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id})
	}

	q := a.db.NewUpdate().
		Model((*User)(nil)).
		Set("updated_at = ?", time.Now()).
		Where("id = ?", userID)

	if patch.Status != nil {
		q = q.Set("status = ?", *patch.Status)
	}
	if patch.Role != nil {
		q = q.Set("user_role = ?", *patch.Role)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return nil, err
	}

	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id})
	}

	record := &User{}
	if err := a.db.NewSelect().Model(record).Where("?TableAlias.id = ?", userID).Scan(ctx); err != nil {
		return nil, err
	}
	return record, nil
}

func (a *users) List(ctx context.Context, filter UserFilter, page, pageSize int) (*UserPage, error) {
	page, pageSize = clampPagination(page, pageSize)

	var records []*User
	q := a.db.NewSelect().Model(&records)
	applyUserFilter(q, filter)

	total, err := q.
		Order("created_at DESC").
		Limit(pageSize).
		Offset((page - 1) * pageSize).
		ScanAndCount(ctx)
	if err != nil {
		return nil, err
	}

	if records == nil {
		records = []*User{}
	}

	return &UserPage{
		Users:      records,
		Page:       page,
		PageSize:   pageSize,
		Total:      total,
		TotalPages: totalPages(total, pageSize),
	}, nil
}

func (a *users) CountWhere(ctx context.Context, filter UserFilter) (int, error) {
	q := a.db.NewSelect().Model((*User)(nil))
	applyUserFilter(q, filter)
	return q.Count(ctx)
}

// Metrics recomputes the dashboard aggregates on every call; counts are
// cheap at this scale and staleness confuses the approval workflow.
func (a *users) Metrics(ctx context.Context) (*UserMetrics, error) {
	metrics := &UserMetrics{}

	counts := []struct {
		filter UserFilter
		target *int
	}{
		{UserFilter{}, &metrics.Total},
		{UserFilter{Status: StatusPending}, &metrics.Pending},
		{UserFilter{Status: StatusActive}, &metrics.Active},
		{UserFilter{Status: StatusBlocked}, &metrics.Blocked},
		{UserFilter{Role: RoleAdmin}, &metrics.Admins},
	}

	for _, c := range counts {
		n, err := a.CountWhere(ctx, c.filter)
		if err != nil {
			return nil, err
		}
		*c.target = n
	}

	return metrics, nil
}

func applyUserFilter(q *bun.SelectQuery, filter UserFilter) {
	if filter.Status != "" {
		q.Where("?TableAlias.status = ?", filter.Status)
	}
	if filter.Role != "" {
		q.Where("?TableAlias.user_role = ?", filter.Role)
	}
	if needle := strings.TrimSpace(filter.PhoneContains); needle != "" {
		q.Where(
			"LOWER(?TableAlias.phone_e164) LIKE ?",
			fmt.Sprintf("%%%s%%", strings.ToLower(needle)),
		)
	}
}

func clampPagination(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	return page, pageSize
}

func totalPages(total, pageSize int) int {
	if total == 0 {
		return 0
	}
	return (total + pageSize - 1) / pageSize
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.ID == uuid.Nil {
		if id, err := hashid.NewUUID(record.PhoneE164); err == nil {
			record.ID = id
		} else {
			record.ID = uuid.New()
		}
	}

	if record.Status == "" {
		record.Status = StatusPending
	}

	if record.Role == "" {
		record.Role = RoleBroker
	}
}
