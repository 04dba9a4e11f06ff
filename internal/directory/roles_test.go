package directory

import (
	"context"
	"errors"
	"testing"

	"treasura.org/internal/lifecycle"
)

type stubRoleStore struct {
	insert     func(ctx context.Context, r Role) (Role, error)
	get        func(ctx context.Context, id int64) (Role, error)
	list       func(ctx context.Context, status *lifecycle.Status) ([]Role, error)
	update     func(ctx context.Context, id int64, upd RoleUpdate, status lifecycle.Status) (Role, error)
	statuses   func(ctx context.Context, ids []int64) (map[int64]lifecycle.Status, error)
	setStatus  func(ctx context.Context, ids []int64, status lifecycle.Status, actor, comment string) ([]Role, error)
	hardDelete func(ctx context.Context, ids []int64) ([]int64, error)
}

func (s *stubRoleStore) Insert(ctx context.Context, r Role) (Role, error) { return s.insert(ctx, r) }
func (s *stubRoleStore) Get(ctx context.Context, id int64) (Role, error)  { return s.get(ctx, id) }
func (s *stubRoleStore) List(ctx context.Context, status *lifecycle.Status) ([]Role, error) {
	return s.list(ctx, status)
}
func (s *stubRoleStore) Update(ctx context.Context, id int64, upd RoleUpdate, status lifecycle.Status) (Role, error) {
	return s.update(ctx, id, upd, status)
}
func (s *stubRoleStore) Statuses(ctx context.Context, ids []int64) (map[int64]lifecycle.Status, error) {
	return s.statuses(ctx, ids)
}
func (s *stubRoleStore) SetStatus(ctx context.Context, ids []int64, status lifecycle.Status, actor, comment string) ([]Role, error) {
	return s.setStatus(ctx, ids, status, actor, comment)
}
func (s *stubRoleStore) HardDelete(ctx context.Context, ids []int64) ([]int64, error) {
	return s.hardDelete(ctx, ids)
}

func TestRoleCreateNormalizesAndStartsPending(t *testing.T) {
	var stored Role
	svc, _ := NewRoleService(&stubRoleStore{insert: func(_ context.Context, r Role) (Role, error) {
		stored = r
		r.ID = 2
		return r, nil
	}})

	start, end, creator := "09:00", "18:00", "admin@co"
	got, err := svc.Create(context.Background(), NewRole{
		RoleName:           " Checker ",
		RoleCode:           " chk ",
		OfficeStartTimeIST: &start,
		OfficeEndTimeIST:   &end,
		CreatedBy:          &creator,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if got.ID != 2 {
		t.Fatalf("expected stored id, got %d", got.ID)
	}
	if stored.RoleName != "Checker" || stored.RoleCode != "CHK" {
		t.Fatalf("expected normalized fields, got %+v", stored)
	}
	if stored.Status != lifecycle.StatusPending {
		t.Fatalf("expected Pending, got %q", stored.Status)
	}
	if stored.OfficeStartTimeIST == nil || *stored.OfficeStartTimeIST != "09:00" {
		t.Fatalf("expected office start carried, got %+v", stored.OfficeStartTimeIST)
	}
	if stored.OfficeEndTimeIST == nil || *stored.OfficeEndTimeIST != "18:00" {
		t.Fatalf("expected office end carried, got %+v", stored.OfficeEndTimeIST)
	}
	if stored.CreatedBy == nil || *stored.CreatedBy != "admin@co" {
		t.Fatalf("expected created_by carried, got %+v", stored.CreatedBy)
	}
}

func TestRoleUpdateOfficeHoursOnlyIsNotEmpty(t *testing.T) {
	var gotUpd RoleUpdate
	svc, _ := NewRoleService(&stubRoleStore{
		update: func(_ context.Context, id int64, upd RoleUpdate, status lifecycle.Status) (Role, error) {
			gotUpd = upd
			return Role{ID: id, Status: status}, nil
		},
	})
	start := "08:30"
	if _, err := svc.Update(context.Background(), 2, RoleUpdate{OfficeStartTimeIST: &start}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gotUpd.OfficeStartTimeIST == nil || *gotUpd.OfficeStartTimeIST != "08:30" {
		t.Fatalf("expected office start in update, got %+v", gotUpd.OfficeStartTimeIST)
	}
}

func TestRoleCreateRequiresNameAndCode(t *testing.T) {
	svc, _ := NewRoleService(&stubRoleStore{})
	if _, err := svc.Create(context.Background(), NewRole{RoleCode: "CHK"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing name, got %v", err)
	}
	if _, err := svc.Create(context.Background(), NewRole{RoleName: "Checker"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for missing code, got %v", err)
	}
}

func TestRoleUpdateForcesAwaitingApproval(t *testing.T) {
	var gotStatus lifecycle.Status
	svc, _ := NewRoleService(&stubRoleStore{
		update: func(_ context.Context, id int64, _ RoleUpdate, status lifecycle.Status) (Role, error) {
			gotStatus = status
			return Role{ID: id, Status: status}, nil
		},
	})
	desc := "reviews entity changes"
	if _, err := svc.Update(context.Background(), 2, RoleUpdate{Description: &desc}); err != nil {
		t.Fatalf("Update: %v", err)
	}
	if gotStatus != lifecycle.StatusAwaitingApproval {
		t.Fatalf("expected Awaiting-Approval, got %q", gotStatus)
	}
}

func TestRoleApproveSplitsBatch(t *testing.T) {
	st := &stubRoleStore{
		statuses: func(_ context.Context, ids []int64) (map[int64]lifecycle.Status, error) {
			all := map[int64]lifecycle.Status{
				1: lifecycle.StatusDeleteApproval,
				2: lifecycle.StatusAwaitingApproval,
			}
			out := map[int64]lifecycle.Status{}
			for _, id := range ids {
				if st, ok := all[id]; ok {
					out[id] = st
				}
			}
			return out, nil
		},
	}
	var deleted, confirmed []int64
	st.hardDelete = func(_ context.Context, ids []int64) ([]int64, error) {
		deleted = ids
		return ids, nil
	}
	st.setStatus = func(_ context.Context, ids []int64, status lifecycle.Status, _, _ string) ([]Role, error) {
		if status != lifecycle.StatusApproved {
			t.Fatalf("expected Approved, got %q", status)
		}
		confirmed = ids
		return []Role{{ID: ids[0], Status: status}}, nil
	}
	svc, _ := NewRoleService(st)

	out, err := svc.Approve(context.Background(), []int64{1, 2}, "checker@co", "")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if len(deleted) != 1 || deleted[0] != 1 {
		t.Fatalf("expected role 1 deleted, got %v", deleted)
	}
	if len(confirmed) != 1 || confirmed[0] != 2 {
		t.Fatalf("expected role 2 confirmed, got %v", confirmed)
	}
	if len(out.Deleted) != 1 || len(out.Approved) != 1 {
		t.Fatalf("unexpected outcome %+v", out)
	}
}
