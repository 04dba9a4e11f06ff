package httpapi

import (
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"

	"treasura.org/internal/access"
	"treasura.org/internal/auth"
	"treasura.org/internal/directory"
	"treasura.org/internal/exposure"
	"treasura.org/internal/hierarchy"
	"treasura.org/internal/lifecycle"
	"treasura.org/internal/obs"
	"treasura.org/internal/session"
)

// ReadyProbe checks downstream readiness (ping the database).
type ReadyProbe struct {
	DB *sql.DB
}

func (rp ReadyProbe) Check(ctx context.Context) error {
	if rp.DB == nil {
		return nil
	}
	return rp.DB.PingContext(ctx)
}

// AuthService handles login, logout and session lookup.
type AuthService interface {
	Login(ctx context.Context, email, password string) (auth.LoginResult, error)
	Logout(ctx context.Context, userID int64) (int, error)
	Session(userID int64) (session.Record, bool)
}

// EntityService is the hierarchy surface the API exposes.
type EntityService interface {
	Create(ctx context.Context, in hierarchy.CreateInput) (hierarchy.Entity, error)
	Get(ctx context.Context, id string) (hierarchy.Entity, error)
	List(ctx context.Context) ([]hierarchy.Entity, error)
	Names(ctx context.Context) ([]string, error)
	ParentCandidates(ctx context.Context, level int) ([]string, error)
	Update(ctx context.Context, id string, upd hierarchy.Update) (hierarchy.Entity, error)
	SyncRelationships(ctx context.Context) (hierarchy.SyncResult, error)
	Hierarchy(ctx context.Context) ([]*hierarchy.Node, error)
	Descendants(ctx context.Context, rootID string) ([]string, error)
	RequestDelete(ctx context.Context, id, comment string) ([]hierarchy.Entity, error)
	RequestDeleteBulk(ctx context.Context, entityIDs []string, comment string) ([]hierarchy.Entity, error)
	Approve(ctx context.Context, id, comment string) (hierarchy.BulkOutcome, error)
	ApproveBulk(ctx context.Context, entityIDs []string, comment string) (hierarchy.BulkOutcome, error)
	Reject(ctx context.Context, id, comment string) (hierarchy.Entity, error)
	RejectBulk(ctx context.Context, entityIDs []string, comment string) ([]hierarchy.Entity, error)
}

// PermissionService flattens, stores and resolves permission trees.
type PermissionService interface {
	Assign(ctx context.Context, roleName string, pages map[string]access.PageGrant) (int, error)
	RoleTree(ctx context.Context, roleName string) (map[string]access.PageGrant, error)
	PageTree(ctx context.Context, roleName, page string) (access.PageGrant, error)
	Sidebar(ctx context.Context, userID int64) (map[string]bool, error)
	SetStatusByRole(ctx context.Context, roleName string, status lifecycle.Status) (int64, error)
	RoleStatuses(ctx context.Context) ([]access.RoleStatus, error)
}

// ScopeService resolves the caller's accessible business-unit names.
type ScopeService interface {
	Scope(ctx context.Context, userID int64) ([]string, error)
}

// UserService is the user-directory surface the API exposes.
type UserService interface {
	Create(ctx context.Context, in directory.NewUser) (directory.User, error)
	Get(ctx context.Context, id int64) (directory.User, error)
	List(ctx context.Context, scope []string, status string) ([]directory.User, error)
	Awaiting(ctx context.Context, scope []string) ([]directory.User, error)
	Update(ctx context.Context, id int64, upd directory.UserUpdate) (directory.User, error)
	RequestDelete(ctx context.Context, ids []int64, actor, comment string) ([]directory.User, error)
	Approve(ctx context.Context, ids []int64, approvedBy, comment string) (directory.UserBulkOutcome, error)
	Reject(ctx context.Context, ids []int64, rejectedBy, comment string) ([]directory.User, error)
}

// RoleService is the role-directory surface the API exposes.
type RoleService interface {
	Create(ctx context.Context, in directory.NewRole) (directory.Role, error)
	Get(ctx context.Context, id int64) (directory.Role, error)
	List(ctx context.Context, status string) ([]directory.Role, error)
	Update(ctx context.Context, id int64, upd directory.RoleUpdate) (directory.Role, error)
	RequestDelete(ctx context.Context, ids []int64, actor, comment string) ([]directory.Role, error)
	Approve(ctx context.Context, ids []int64, approvedBy, comment string) (directory.RoleBulkOutcome, error)
	Reject(ctx context.Context, ids []int64, rejectedBy, comment string) ([]directory.Role, error)
}

// ExposureService is the exposure surface the API exposes.
type ExposureService interface {
	Upload(ctx context.Context, scope []string, r io.Reader) (exposure.UploadResult, error)
	Get(ctx context.Context, id string) (exposure.Exposure, error)
	List(ctx context.Context, scope []string) ([]exposure.Exposure, error)
	Awaiting(ctx context.Context, scope []string, track exposure.Track) ([]exposure.Exposure, error)
	RequestDelete(ctx context.Context, ids []string, comment string) ([]exposure.Exposure, error)
	Approve(ctx context.Context, ids []string, track exposure.Track, comment string) (exposure.BulkOutcome, error)
	Reject(ctx context.Context, ids []string, track exposure.Track, comment string) ([]exposure.Exposure, error)
	UpdateBuckets(ctx context.Context, id string, b exposure.Buckets) (exposure.Exposure, error)
	HedgingProposals(ctx context.Context, scope []string) ([]exposure.HedgingProposal, error)
}

// Services bundles everything New needs to wire routes.
type Services struct {
	Auth        AuthService
	Entities    EntityService
	Permissions PermissionService
	Scope       ScopeService
	Users       UserService
	Roles       RoleService
	Exposures   ExposureService
	Sessions    *session.Directory
}

// API is the HTTP layer.
type API struct {
	mux        *http.ServeMux
	readyProbe ReadyProbe
	version    string

	auth        AuthService
	entities    EntityService
	permissions PermissionService
	scope       ScopeService
	users       UserService
	roles       RoleService
	exposures   ExposureService
	sessions    *session.Directory
}

func New(rp ReadyProbe, version string, svc Services) *API {
	a := &API{
		mux:         http.NewServeMux(),
		readyProbe:  rp,
		version:     version,
		auth:        svc.Auth,
		entities:    svc.Entities,
		permissions: svc.Permissions,
		scope:       svc.Scope,
		users:       svc.Users,
		roles:       svc.Roles,
		exposures:   svc.Exposures,
		sessions:    svc.Sessions,
	}

	// health/ready/metrics
	a.mux.HandleFunc("/healthz", a.Healthz)
	a.mux.HandleFunc("/readyz", a.Ready)
	a.mux.Handle("/metrics", obs.Handler())

	// auth
	a.mux.HandleFunc("/api/auth/login", a.handleLogin)
	a.mux.HandleFunc("/api/auth/logout", a.handleLogout)
	a.mux.HandleFunc("/api/auth/sessions", a.handleSessions)

	// entity hierarchy
	a.mux.HandleFunc("/api/entity/create", a.handleEntityCreate)
	a.mux.HandleFunc("/api/entity/sync-relationships", a.handleEntitySync)
	a.mux.HandleFunc("/api/entity/hierarchy", a.handleEntityHierarchy)
	a.mux.HandleFunc("/api/entity/names", a.handleEntityNames)
	a.mux.HandleFunc("/api/entity/parents", a.handleEntityParents)
	a.mux.HandleFunc("/api/entity/delete-bulk", a.handleEntityDeleteBulk)
	a.mux.HandleFunc("/api/entity/approve-bulk", a.handleEntityApproveBulk)
	a.mux.HandleFunc("/api/entity/reject-bulk", a.handleEntityRejectBulk)
	a.mux.HandleFunc("/api/entity/", a.handleEntityScoped)

	// permissions
	a.mux.HandleFunc("/api/permissions/assign", a.handlePermissionAssign)
	a.mux.HandleFunc("/api/permissions/permissionjson", a.handlePermissionTree)
	a.mux.HandleFunc("/api/permissions/pagejson", a.handlePermissionPage)
	a.mux.HandleFunc("/api/permissions/sidebar", a.handleSidebar)
	a.mux.HandleFunc("/api/permissions/role-status", a.handleRoleStatus)

	// users
	a.mux.HandleFunc("/api/users", a.handleUserList)
	a.mux.HandleFunc("/api/users/create", a.handleUserCreate)
	a.mux.HandleFunc("/api/users/awaiting", a.handleUserAwaiting)
	a.mux.HandleFunc("/api/users/delete", a.handleUserDelete)
	a.mux.HandleFunc("/api/users/bulk-approve", a.handleUserBulkApprove)
	a.mux.HandleFunc("/api/users/bulk-reject", a.handleUserBulkReject)
	a.mux.HandleFunc("/api/users/", a.handleUserScoped)

	// roles
	a.mux.HandleFunc("/api/roles", a.handleRoleList)
	a.mux.HandleFunc("/api/roles/create", a.handleRoleCreate)
	a.mux.HandleFunc("/api/roles/delete", a.handleRoleDelete)
	a.mux.HandleFunc("/api/roles/bulk-approve", a.handleRoleBulkApprove)
	a.mux.HandleFunc("/api/roles/bulk-reject", a.handleRoleBulkReject)
	a.mux.HandleFunc("/api/roles/", a.handleRoleScoped)

	// exposures
	a.mux.HandleFunc("/api/exposures", a.handleExposureList)
	a.mux.HandleFunc("/api/exposures/upload", a.handleExposureUpload)
	a.mux.HandleFunc("/api/exposures/pending", a.handleExposurePending)
	a.mux.HandleFunc("/api/exposures/delete", a.handleExposureDelete)
	a.mux.HandleFunc("/api/exposures/bulk-approve", a.handleExposureBulkApprove)
	a.mux.HandleFunc("/api/exposures/bulk-reject", a.handleExposureBulkReject)
	a.mux.HandleFunc("/api/exposures/hedging-proposals", a.handleHedgingProposals)
	a.mux.HandleFunc("/api/exposures/bucketing/", a.handleExposureBucketing)

	a.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	})

	return a
}

// Handler returns the full handler chain for the server.
func (a *API) Handler() http.Handler {
	return obs.Instrument(a.withAuth(a.mux))
}

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": "treasura-api",
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	if err := a.readyProbe.Check(r.Context()); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
