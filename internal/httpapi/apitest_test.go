package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"sync"
	"testing"
	"time"

	"docvault.org/internal/auth"
	"docvault.org/internal/blob"
	"docvault.org/internal/docs"
)

// fakeStore is an in-memory implementation of both persistence contracts,
// enough to drive the full HTTP stack in tests.
type fakeStore struct {
	mu         sync.Mutex
	seq        int
	users      map[string]auth.User
	roles      map[string]auth.Role
	perms      map[string]auth.Permission
	userRoles  map[string]map[string]bool
	roleGrants map[string]map[string]bool
	documents  map[string]docs.Document

	listUsersErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:      make(map[string]auth.User),
		roles:      make(map[string]auth.Role),
		perms:      make(map[string]auth.Permission),
		userRoles:  make(map[string]map[string]bool),
		roleGrants: make(map[string]map[string]bool),
		documents:  make(map[string]docs.Document),
	}
}

func (m *fakeStore) nextID(prefix string) string {
	m.seq++
	return fmt.Sprintf("%s-%03d", prefix, m.seq)
}

func (m *fakeStore) CreateUser(ctx context.Context, u auth.NewUser) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Email == u.Email {
			return auth.User{}, auth.ErrConflict
		}
	}
	now := time.Now().UTC()
	user := auth.User{
		ID:           m.nextID("user"),
		Email:        u.Email,
		PasswordHash: u.PasswordHash,
		FirstName:    u.FirstName,
		LastName:     u.LastName,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	m.users[user.ID] = user
	return user, nil
}

func (m *fakeStore) UserByID(ctx context.Context, id string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	return user, nil
}

func (m *fakeStore) UserByEmail(ctx context.Context, email string) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, user := range m.users {
		if user.Email == email {
			return user, nil
		}
	}
	return auth.User{}, auth.ErrNotFound
}

func (m *fakeStore) UpdateUser(ctx context.Context, id string, upd auth.UserUpdate) (auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return auth.User{}, auth.ErrNotFound
	}
	if upd.FirstName != nil {
		user.FirstName = *upd.FirstName
	}
	if upd.LastName != nil {
		user.LastName = *upd.LastName
	}
	if upd.PasswordHash != nil {
		user.PasswordHash = *upd.PasswordHash
	}
	if upd.IsActive != nil {
		user.IsActive = *upd.IsActive
	}
	user.UpdatedAt = time.Now().UTC()
	m.users[id] = user
	return user, nil
}

func (m *fakeStore) ListUsers(ctx context.Context, page, limit int) ([]auth.User, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listUsersErr != nil {
		return nil, 0, m.listUsersErr
	}
	var all []auth.User
	for _, u := range m.users {
		all = append(all, u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	total := len(all)
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return all[start:end], total, nil
}

func (m *fakeStore) TouchLastLogin(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[id]
	if !ok {
		return auth.ErrNotFound
	}
	now := time.Now().UTC()
	user.LastLogin = &now
	m.users[id] = user
	return nil
}

func (m *fakeStore) DefaultRole(ctx context.Context) (auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var candidates []auth.Role
	for _, role := range m.roles {
		if role.IsDefault {
			candidates = append(candidates, role)
		}
	}
	if len(candidates) == 0 {
		return auth.Role{}, auth.ErrNotFound
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].ID < candidates[j].ID })
	return candidates[0], nil
}

func (m *fakeStore) RolesForUser(ctx context.Context, userID string) ([]auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var roles []auth.Role
	for roleID := range m.userRoles[userID] {
		if role, ok := m.roles[roleID]; ok {
			roles = append(roles, role)
		}
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (m *fakeStore) PermissionNamesForUser(ctx context.Context, userID string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	set := make(map[string]bool)
	for roleID := range m.userRoles[userID] {
		for permID := range m.roleGrants[roleID] {
			if perm, ok := m.perms[permID]; ok {
				set[perm.Name] = true
			}
		}
	}
	var names []string
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (m *fakeStore) AssignRole(ctx context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[userID]; !ok {
		return auth.ErrNotFound
	}
	if _, ok := m.roles[roleID]; !ok {
		return auth.ErrNotFound
	}
	if m.userRoles[userID] == nil {
		m.userRoles[userID] = make(map[string]bool)
	}
	m.userRoles[userID][roleID] = true
	return nil
}

func (m *fakeStore) RemoveRole(ctx context.Context, userID, roleID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.userRoles[userID][roleID] {
		return auth.ErrNotFound
	}
	delete(m.userRoles[userID], roleID)
	return nil
}

func (m *fakeStore) CreateRole(ctx context.Context, name, description string, isDefault bool) (auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, role := range m.roles {
		if role.Name == name {
			return auth.Role{}, auth.ErrConflict
		}
	}
	now := time.Now().UTC()
	role := auth.Role{
		ID:          m.nextID("role"),
		Name:        name,
		Description: description,
		IsDefault:   isDefault,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	m.roles[role.ID] = role
	return role, nil
}

func (m *fakeStore) RoleByID(ctx context.Context, id string) (auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[id]
	if !ok {
		return auth.Role{}, auth.ErrNotFound
	}
	return role, nil
}

func (m *fakeStore) RoleByName(ctx context.Context, name string) (auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, role := range m.roles {
		if role.Name == name {
			return role, nil
		}
	}
	return auth.Role{}, auth.ErrNotFound
}

func (m *fakeStore) ListRoles(ctx context.Context) ([]auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var roles []auth.Role
	for _, role := range m.roles {
		roles = append(roles, role)
	}
	sort.Slice(roles, func(i, j int) bool { return roles[i].Name < roles[j].Name })
	return roles, nil
}

func (m *fakeStore) UpdateRole(ctx context.Context, id string, upd auth.RoleUpdate) (auth.Role, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	role, ok := m.roles[id]
	if !ok {
		return auth.Role{}, auth.ErrNotFound
	}
	if upd.Name != nil {
		role.Name = *upd.Name
	}
	if upd.Description != nil {
		role.Description = *upd.Description
	}
	role.UpdatedAt = time.Now().UTC()
	m.roles[id] = role
	return role, nil
}

func (m *fakeStore) DeleteRole(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.roles[id]; !ok {
		return auth.ErrNotFound
	}
	delete(m.roles, id)
	delete(m.roleGrants, id)
	for userID := range m.userRoles {
		delete(m.userRoles[userID], id)
	}
	return nil
}

func (m *fakeStore) ReplaceRoleGrants(ctx context.Context, roleID string, permissionNames []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	grants := make(map[string]bool)
	for _, name := range permissionNames {
		found := false
		for id, perm := range m.perms {
			if perm.Name == name {
				grants[id] = true
				found = true
			}
		}
		if !found {
			return fmt.Errorf("%w: unknown permission %q", auth.ErrInvalidInput, name)
		}
	}
	m.roleGrants[roleID] = grants
	return nil
}

func (m *fakeStore) PermissionsForRole(ctx context.Context, roleID string) ([]auth.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var perms []auth.Permission
	for permID := range m.roleGrants[roleID] {
		if perm, ok := m.perms[permID]; ok {
			perms = append(perms, perm)
		}
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	return perms, nil
}

func (m *fakeStore) ListPermissions(ctx context.Context) ([]auth.Permission, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var perms []auth.Permission
	for _, perm := range m.perms {
		perms = append(perms, perm)
	}
	sort.Slice(perms, func(i, j int) bool { return perms[i].Name < perms[j].Name })
	return perms, nil
}

func (m *fakeStore) EnsurePermissions(ctx context.Context, perms []auth.Permission) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range perms {
		exists := false
		for _, existing := range m.perms {
			if existing.Name == p.Name {
				exists = true
				break
			}
		}
		if exists {
			continue
		}
		p.ID = m.nextID("perm")
		p.CreatedAt = time.Now().UTC()
		m.perms[p.ID] = p
	}
	return nil
}

func (m *fakeStore) CreateDocument(ctx context.Context, d docs.Document) (docs.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	d.ID = m.nextID("doc")
	d.CreatedAt = now
	d.UpdatedAt = now
	m.documents[d.ID] = d
	return d, nil
}

func (m *fakeStore) DocumentByID(ctx context.Context, id string) (docs.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return docs.Document{}, docs.ErrNotFound
	}
	return doc, nil
}

func (m *fakeStore) ListDocuments(ctx context.Context, viewerID string, page, limit int) ([]docs.Document, int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var visible []docs.Document
	for _, doc := range m.documents {
		if doc.UploadedBy == viewerID || doc.IsPublic {
			visible = append(visible, doc)
		}
	}
	sort.Slice(visible, func(i, j int) bool { return visible[i].ID < visible[j].ID })
	total := len(visible)
	start := (page - 1) * limit
	if start >= total {
		return nil, total, nil
	}
	end := start + limit
	if end > total {
		end = total
	}
	return visible[start:end], total, nil
}

func (m *fakeStore) UpdateDocument(ctx context.Context, id string, upd docs.Update) (docs.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.documents[id]
	if !ok {
		return docs.Document{}, docs.ErrNotFound
	}
	if upd.IsPublic != nil {
		doc.IsPublic = *upd.IsPublic
	}
	if len(upd.Metadata) > 0 {
		if doc.Metadata == nil {
			doc.Metadata = make(map[string]any)
		}
		for k, v := range upd.Metadata {
			doc.Metadata[k] = v
		}
	}
	doc.UpdatedAt = time.Now().UTC()
	m.documents[id] = doc
	return doc, nil
}

func (m *fakeStore) DeleteDocument(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.documents[id]; !ok {
		return docs.ErrNotFound
	}
	delete(m.documents, id)
	return nil
}

type apiClient struct {
	baseURL string
	client  *http.Client
	store   *fakeStore
	adminID string
	t       *testing.T
}

// newTestAPI stands up the full stack over an in-memory store with the seed
// catalog applied: a default "User" role with the document permissions and
// an "Administrator" role holding everything.
func newTestAPI(t *testing.T, opts ...Option) *apiClient {
	t.Helper()

	store := newFakeStore()
	tokens, err := auth.NewTokenService("test-secret")
	if err != nil {
		t.Fatalf("token service: %v", err)
	}
	authSvc, err := auth.NewService(store, tokens)
	if err != nil {
		t.Fatalf("auth service: %v", err)
	}
	ctx := context.Background()
	if err := authSvc.EnsureBuiltins(ctx); err != nil {
		t.Fatalf("ensure builtins: %v", err)
	}
	rbacSvc, err := auth.NewRBACService(store)
	if err != nil {
		t.Fatalf("rbac service: %v", err)
	}
	blobs, err := blob.NewLocal(t.TempDir())
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}
	docSvc, err := docs.NewService(store, blobs)
	if err != nil {
		t.Fatalf("docs service: %v", err)
	}

	userRole, err := store.CreateRole(ctx, "User", "Standard user", true)
	if err != nil {
		t.Fatalf("seed default role: %v", err)
	}
	if err := store.ReplaceRoleGrants(ctx, userRole.ID, []string{
		auth.PermissionDocumentCreate,
		auth.PermissionDocumentRead,
		auth.PermissionDocumentUpdate,
		auth.PermissionDocumentDelete,
	}); err != nil {
		t.Fatalf("seed default grants: %v", err)
	}
	adminRole, err := store.CreateRole(ctx, "Administrator", "Full access", false)
	if err != nil {
		t.Fatalf("seed admin role: %v", err)
	}
	var allPerms []string
	for _, p := range auth.BuiltinPermissions {
		allPerms = append(allPerms, p.Name)
	}
	if err := store.ReplaceRoleGrants(ctx, adminRole.ID, allPerms); err != nil {
		t.Fatalf("seed admin grants: %v", err)
	}

	api := New(ReadyProbe{}, "test", authSvc, rbacSvc, docSvc, nil,
		append([]Option{WithRateLimit(100, 100)}, opts...)...)

	srv := httptest.NewServer(api.Handler())
	t.Cleanup(srv.Close)

	return &apiClient{
		baseURL: srv.URL,
		client:  srv.Client(),
		store:   store,
		adminID: adminRole.ID,
		t:       t,
	}
}

func (c *apiClient) do(method, path string, body any, headers map[string]string) *http.Response {
	c.t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			c.t.Fatalf("marshal body: %v", err)
		}
	}
	req, err := http.NewRequest(method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

func (c *apiClient) post(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPost, path, body, headers)
}

func (c *apiClient) patch(path string, body any, headers map[string]string) *http.Response {
	return c.do(http.MethodPatch, path, body, headers)
}

func (c *apiClient) del(path string, headers map[string]string) *http.Response {
	return c.do(http.MethodDelete, path, nil, headers)
}

func (c *apiClient) get(path string, params url.Values, headers map[string]string) *http.Response {
	c.t.Helper()
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		c.t.Fatalf("parse url: %v", err)
	}
	if params != nil {
		u.RawQuery = params.Encode()
	}
	req, err := http.NewRequest(http.MethodGet, u.String(), nil)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("get request: %v", err)
	}
	return resp
}

// upload posts a multipart form with one file under the given field name.
func (c *apiClient) upload(path, field, filename string, content []byte, form map[string]string, headers map[string]string) *http.Response {
	c.t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		c.t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		c.t.Fatalf("write form file: %v", err)
	}
	for k, v := range form {
		if err := mw.WriteField(k, v); err != nil {
			c.t.Fatalf("write form field: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		c.t.Fatalf("close multipart writer: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, &buf)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("upload request: %v", err)
	}
	return resp
}

// batchBody accumulates a multipart form with several files.
type batchBody struct {
	buf bytes.Buffer
	mw  *multipart.Writer
}

func (b *batchBody) add(t *testing.T, field, filename string, content []byte) {
	t.Helper()
	if b.mw == nil {
		b.mw = multipart.NewWriter(&b.buf)
	}
	fw, err := b.mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatalf("create form file: %v", err)
	}
	if _, err := fw.Write(content); err != nil {
		t.Fatalf("write form file: %v", err)
	}
}

func (b *batchBody) post(c *apiClient, path string, headers map[string]string) *http.Response {
	c.t.Helper()
	if err := b.mw.Close(); err != nil {
		c.t.Fatalf("close multipart writer: %v", err)
	}
	req, err := http.NewRequest(http.MethodPost, c.baseURL+path, &b.buf)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", b.mw.FormDataContentType())
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("batch request: %v", err)
	}
	return resp
}

// register creates an account and returns its access token and user id.
func (c *apiClient) register(email, password string) (token, userID string) {
	c.t.Helper()
	resp := c.post("/v1/auth/register", map[string]any{
		"email":      email,
		"password":   password,
		"first_name": "Test",
		"last_name":  "User",
	}, nil)
	if resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.t.Fatalf("register status %d: %s", resp.StatusCode, body)
	}
	payload := decode[struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}](c.t, resp)
	if payload.Token == "" || payload.User.ID == "" {
		c.t.Fatalf("incomplete register payload: %+v", payload)
	}
	return payload.Token, payload.User.ID
}

// registerAdmin registers an account and grants it the administrator role
// directly in the store, then logs in again so the fresh token reflects it.
func (c *apiClient) registerAdmin(email, password string) (token, userID string) {
	c.t.Helper()
	_, userID = c.register(email, password)
	if err := c.store.AssignRole(context.Background(), userID, c.adminID); err != nil {
		c.t.Fatalf("assign admin role: %v", err)
	}
	return c.login(email, password), userID
}

func (c *apiClient) login(email, password string) string {
	c.t.Helper()
	resp := c.post("/v1/auth/login", map[string]any{
		"email":    email,
		"password": password,
	}, nil)
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.t.Fatalf("login status %d: %s", resp.StatusCode, body)
	}
	payload := decode[struct {
		Token string `json:"token"`
	}](c.t, resp)
	return payload.Token
}

func authz(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

func decode[T any](t *testing.T, r *http.Response) T {
	t.Helper()
	defer r.Body.Close()
	var v T
	if err := json.NewDecoder(r.Body).Decode(&v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return v
}

type errorBody struct {
	Message   string `json:"message"`
	RequestID string `json:"request_id"`
}

func wantError(t *testing.T, resp *http.Response, status int, message string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("status = %d, want %d", resp.StatusCode, status)
	}
	body := decode[errorBody](t, resp)
	if body.Message != message {
		t.Fatalf("message = %q, want %q", body.Message, message)
	}
	if body.RequestID == "" {
		t.Fatal("error body missing request_id")
	}
}
