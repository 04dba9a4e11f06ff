package directory

import (
	"context"
	"errors"
	"testing"

	"golang.org/x/crypto/bcrypt"

	"treasura.org/internal/lifecycle"
)

type stubUserStore struct {
	createWithRole func(ctx context.Context, u User, roleName string) (User, error)
	get            func(ctx context.Context, id int64) (User, error)
	list           func(ctx context.Context, scope []string, status *lifecycle.Status) ([]User, error)
	awaiting       func(ctx context.Context, scope []string) ([]User, error)
	update         func(ctx context.Context, id int64, upd UserUpdate, status lifecycle.Status) (User, error)
	statuses       func(ctx context.Context, ids []int64) (map[int64]lifecycle.Status, error)
	setStatus      func(ctx context.Context, ids []int64, status lifecycle.Status, actor, comment string) ([]User, error)
	hardDelete     func(ctx context.Context, ids []int64) ([]int64, error)
}

func (s *stubUserStore) CreateWithRole(ctx context.Context, u User, roleName string) (User, error) {
	return s.createWithRole(ctx, u, roleName)
}
func (s *stubUserStore) Get(ctx context.Context, id int64) (User, error) { return s.get(ctx, id) }
func (s *stubUserStore) List(ctx context.Context, scope []string, status *lifecycle.Status) ([]User, error) {
	return s.list(ctx, scope, status)
}
func (s *stubUserStore) Awaiting(ctx context.Context, scope []string) ([]User, error) {
	return s.awaiting(ctx, scope)
}
func (s *stubUserStore) Update(ctx context.Context, id int64, upd UserUpdate, status lifecycle.Status) (User, error) {
	return s.update(ctx, id, upd, status)
}
func (s *stubUserStore) Statuses(ctx context.Context, ids []int64) (map[int64]lifecycle.Status, error) {
	return s.statuses(ctx, ids)
}
func (s *stubUserStore) SetStatus(ctx context.Context, ids []int64, status lifecycle.Status, actor, comment string) ([]User, error) {
	return s.setStatus(ctx, ids, status, actor, comment)
}
func (s *stubUserStore) HardDelete(ctx context.Context, ids []int64) ([]int64, error) {
	return s.hardDelete(ctx, ids)
}

func statusMap(pairs map[int64]lifecycle.Status) func(context.Context, []int64) (map[int64]lifecycle.Status, error) {
	return func(_ context.Context, ids []int64) (map[int64]lifecycle.Status, error) {
		out := map[int64]lifecycle.Status{}
		for _, id := range ids {
			if st, ok := pairs[id]; ok {
				out[id] = st
			}
		}
		return out, nil
	}
}

func TestCreateHashesPasswordAndStartsPending(t *testing.T) {
	var stored User
	var storedRole string
	st := &stubUserStore{createWithRole: func(_ context.Context, u User, roleName string) (User, error) {
		stored, storedRole = u, roleName
		u.ID = 11
		return u, nil
	}}
	svc, err := NewUserService(st)
	if err != nil {
		t.Fatalf("NewUserService: %v", err)
	}

	got, err := svc.Create(context.Background(), NewUser{
		EmployeeName: " Dana Smith ",
		Email:        "Dana@Example.com",
		Password:     "correct-horse",
		RoleName:     "maker",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.ID != 11 {
		t.Fatalf("expected stored id, got %d", got.ID)
	}
	if stored.EmployeeName != "Dana Smith" || stored.Email != "dana@example.com" {
		t.Fatalf("expected normalized fields, got %+v", stored)
	}
	if stored.Status != lifecycle.StatusPending {
		t.Fatalf("expected Pending, got %q", stored.Status)
	}
	if storedRole != "maker" {
		t.Fatalf("expected role forwarded, got %q", storedRole)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("correct-horse")); err != nil {
		t.Fatalf("stored hash does not verify: %v", err)
	}
}

func TestCreateValidation(t *testing.T) {
	svc, _ := NewUserService(&stubUserStore{})
	cases := []NewUser{
		{Email: "a@b.com", Password: "longenough", RoleName: "maker"}, // no name
		{EmployeeName: "A", Email: "not-an-email", Password: "longenough", RoleName: "maker"},
		{EmployeeName: "A", Email: "a@b.com", Password: "short", RoleName: "maker"},
		{EmployeeName: "A", Email: "a@b.com", Password: "longenough"}, // no role
	}
	for i, in := range cases {
		if _, err := svc.Create(context.Background(), in); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("case %d: expected ErrInvalidInput, got %v", i, err)
		}
	}
}

func TestListEmptyScopeShortCircuits(t *testing.T) {
	svc, _ := NewUserService(&stubUserStore{
		list: func(context.Context, []string, *lifecycle.Status) ([]User, error) {
			t.Fatal("store must not be queried with empty scope")
			return nil, nil
		},
	})
	got, err := svc.List(context.Background(), nil, "")
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty list, got %v", got)
	}
}

func TestUserUpdateForcesAwaitingApproval(t *testing.T) {
	var gotStatus lifecycle.Status
	svc, _ := NewUserService(&stubUserStore{
		update: func(_ context.Context, id int64, _ UserUpdate, status lifecycle.Status) (User, error) {
			gotStatus = status
			return User{ID: id, Status: status}, nil
		},
	})
	name := "Renamed"
	if _, err := svc.Update(context.Background(), 3, UserUpdate{EmployeeName: &name}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gotStatus != lifecycle.StatusAwaitingApproval {
		t.Fatalf("expected Awaiting-Approval, got %q", gotStatus)
	}
}

func TestUserApproveSplitsBatch(t *testing.T) {
	st := &stubUserStore{
		statuses: statusMap(map[int64]lifecycle.Status{
			1: lifecycle.StatusDeleteApproval,
			2: lifecycle.StatusPending,
			3: lifecycle.StatusApproved,
		}),
	}
	var deleted []int64
	st.hardDelete = func(_ context.Context, ids []int64) ([]int64, error) {
		deleted = ids
		return ids, nil
	}
	var confirmed []int64
	st.setStatus = func(_ context.Context, ids []int64, status lifecycle.Status, actor, _ string) ([]User, error) {
		if status != lifecycle.StatusApproved {
			t.Fatalf("expected Approved, got %q", status)
		}
		if actor != "checker@co" {
			t.Fatalf("expected actor recorded, got %q", actor)
		}
		confirmed = ids
		out := make([]User, 0, len(ids))
		for _, id := range ids {
			out = append(out, User{ID: id, Status: status})
		}
		return out, nil
	}
	svc, _ := NewUserService(st)

	out, err := svc.Approve(context.Background(), []int64{1, 2, 3}, "checker@co", "ok")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != 1 {
		t.Fatalf("expected user 1 deleted, got %v", deleted)
	}
	if len(confirmed) != 2 || confirmed[0] != 2 || confirmed[1] != 3 {
		t.Fatalf("expected users 2,3 confirmed, got %v", confirmed)
	}
	if len(out.Deleted) != 1 || len(out.Approved) != 2 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}

func TestUserApproveUnknownID(t *testing.T) {
	svc, _ := NewUserService(&stubUserStore{
		statuses: statusMap(map[int64]lifecycle.Status{1: lifecycle.StatusPending}),
	})
	if _, err := svc.Approve(context.Background(), []int64{1, 99}, "x", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestUserRejectIsUnconditional(t *testing.T) {
	st := &stubUserStore{
		statuses: statusMap(map[int64]lifecycle.Status{
			4: lifecycle.StatusDeleteApproval,
			5: lifecycle.StatusApproved,
		}),
	}
	var gotStatus lifecycle.Status
	var gotIDs []int64
	st.setStatus = func(_ context.Context, ids []int64, status lifecycle.Status, _, _ string) ([]User, error) {
		gotStatus, gotIDs = status, ids
		return []User{}, nil
	}
	svc, _ := NewUserService(st)

	if _, err := svc.Reject(context.Background(), []int64{4, 5}, "checker@co", "no"); err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if gotStatus != lifecycle.StatusRejected {
		t.Fatalf("expected Rejected, got %q", gotStatus)
	}
	if len(gotIDs) != 2 {
		t.Fatalf("expected both ids rejected, got %v", gotIDs)
	}
}

func TestRequestDeleteFlagsForApproval(t *testing.T) {
	st := &stubUserStore{
		statuses: statusMap(map[int64]lifecycle.Status{7: lifecycle.StatusApproved}),
	}
	var gotStatus lifecycle.Status
	st.setStatus = func(_ context.Context, _ []int64, status lifecycle.Status, _, _ string) ([]User, error) {
		gotStatus = status
		return []User{}, nil
	}
	svc, _ := NewUserService(st)

	if _, err := svc.RequestDelete(context.Background(), []int64{7}, "maker@co", "leaving"); err != nil {
		t.Fatalf("RequestDelete: %v", err)
	}
	if gotStatus != lifecycle.StatusDeleteApproval {
		t.Fatalf("expected Delete-Approval, got %q", gotStatus)
	}
}
